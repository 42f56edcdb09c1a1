package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/docflowlabs/docproc/internal/models"
)

// FirestoreStore keeps one Firestore document per record in a single
// collection.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreStore wraps an existing Firestore client. The caller owns the
// client's lifecycle.
func NewFirestoreStore(client *firestore.Client, collection string) (*FirestoreStore, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client must be provided")
	}
	if collection == "" {
		return nil, fmt.Errorf("collection name must not be empty")
	}
	return &FirestoreStore{client: client, collection: collection}, nil
}

func (s *FirestoreStore) doc(id string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(id)
}

func (s *FirestoreStore) Create(ctx context.Context, rec *models.DocumentRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}
	if _, err := s.doc(rec.DocumentID).Create(ctx, rec); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create record %s: %w", rec.DocumentID, err)
	}
	return nil
}

// UpdateIf runs a transaction that re-reads the stored status and aborts with
// ErrPreconditionFailed on mismatch. The transaction is what keeps a stale
// stage invocation from clobbering a record a faster execution already
// advanced.
func (s *FirestoreStore) UpdateIf(ctx context.Context, documentID string, expected models.Status, fields Fields, next models.Status) error {
	docRef := s.doc(documentID)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrNotFound
			}
			return err
		}
		current, err := snap.DataAt("status")
		if err != nil {
			return fmt.Errorf("failed to read status field: %w", err)
		}
		cur, _ := current.(string)
		if models.Status(cur) != expected {
			return ErrPreconditionFailed
		}
		if !expected.CanAdvanceTo(next) {
			return fmt.Errorf("illegal transition %s -> %s", expected, next)
		}

		updates := []firestore.Update{{Path: "status", Value: string(next)}}
		for path, value := range fields {
			updates = append(updates, firestore.Update{Path: path, Value: value})
		}
		return tx.Update(docRef, updates)
	})
	if err != nil {
		// Sentinel errors pass through so callers can branch on them.
		return err
	}
	return nil
}

func (s *FirestoreStore) Get(ctx context.Context, documentID string) (*models.DocumentRecord, error) {
	snap, err := s.doc(documentID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read record %s: %w", documentID, err)
	}
	var rec models.DocumentRecord
	if err := snap.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", documentID, err)
	}
	return &rec, nil
}

func (s *FirestoreStore) ScanAll(ctx context.Context) ([]*models.DocumentRecord, error) {
	it := s.client.Collection(s.collection).Documents(ctx)
	defer it.Stop()

	var records []*models.DocumentRecord
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan records: %w", err)
		}
		var rec models.DocumentRecord
		if err := snap.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode record %s: %w", snap.Ref.ID, err)
		}
		records = append(records, &rec)
	}
	return records, nil
}
