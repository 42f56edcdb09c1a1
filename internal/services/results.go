package services

import (
	"context"

	"github.com/docflowlabs/docproc/internal/models"
	"github.com/docflowlabs/docproc/internal/store"
)

// ResultsService is the read-only query surface over the record store.
type ResultsService struct {
	records store.RecordStore
}

func NewResultsService(records store.RecordStore) *ResultsService {
	return &ResultsService{records: records}
}

// Get returns one record, or store.ErrNotFound.
func (s *ResultsService) Get(ctx context.Context, documentID string) (*models.DocumentRecord, error) {
	return s.records.Get(ctx, documentID)
}

// List returns every record. Order is not guaranteed.
func (s *ResultsService) List(ctx context.Context) ([]*models.DocumentRecord, error) {
	return s.records.ScanAll(ctx)
}
