package services

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"

	"github.com/docflowlabs/docproc/internal/blob"
	"github.com/docflowlabs/docproc/internal/gcp"
	"github.com/docflowlabs/docproc/internal/inference"
	"github.com/docflowlabs/docproc/internal/models"
	"github.com/docflowlabs/docproc/internal/pipeline"
	"github.com/docflowlabs/docproc/internal/store"
)

// CloudConfig holds the environment shared by the deployed functions.
type CloudConfig struct {
	ProjectID      string
	VertexAIRegion string
	VertexModel    string
	Collection     string
	DocumentBucket string
	TriggerURLs    map[models.StageName]string
	StaleAfter     time.Duration
}

// LoadCloudConfig reads and validates the function environment. Trigger URLs
// are only required by the functions that fire the corresponding stage, so
// they are validated at use, not here.
func LoadCloudConfig() (*CloudConfig, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	bucket := gcp.GetEnv("DOCUMENT_BUCKET", "")
	if bucket == "" {
		return nil, fmt.Errorf("DOCUMENT_BUCKET environment variable must be set")
	}

	staleAfter := DefaultStaleAfter
	if v := gcp.GetEnv("SWEEP_STALE_AFTER", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SWEEP_STALE_AFTER value %q: %w", v, err)
		}
		staleAfter = d
	}

	return &CloudConfig{
		ProjectID:      projectID,
		VertexAIRegion: gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		VertexModel:    gcp.GetEnv("VERTEX_MODEL", ""),
		Collection:     gcp.GetEnv("FIRESTORE_COLLECTION", "documents"),
		DocumentBucket: bucket,
		TriggerURLs: map[models.StageName]string{
			models.StageExtract:   gcp.GetEnv("EXTRACT_TRIGGER_URL", ""),
			models.StageClassify:  gcp.GetEnv("CLASSIFY_TRIGGER_URL", ""),
			models.StageSummarize: gcp.GetEnv("SUMMARIZE_TRIGGER_URL", ""),
		},
		StaleAfter: staleAfter,
	}, nil
}

func (c *CloudConfig) newRecordStore(ctx context.Context) (store.RecordStore, error) {
	client, err := gcp.NewFirestoreClient(ctx, c.ProjectID)
	if err != nil {
		return nil, err
	}
	return store.NewFirestoreStore(client, c.Collection)
}

func (c *CloudConfig) newBlobStore(ctx context.Context) (blob.Store, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return blob.NewGCSStore(client, c.DocumentBucket)
}

func (c *CloudConfig) newTrigger() (pipeline.Trigger, error) {
	targets := make(map[models.StageName]string)
	for stage, url := range c.TriggerURLs {
		if url != "" {
			targets[stage] = url
		}
	}
	return pipeline.NewCloudEventsTrigger(targets)
}

// NewCloudIngest assembles the ingest service for the submit function.
func NewCloudIngest(ctx context.Context) (*IngestService, error) {
	cfg, err := LoadCloudConfig()
	if err != nil {
		return nil, err
	}
	records, err := cfg.newRecordStore(ctx)
	if err != nil {
		return nil, err
	}
	blobs, err := cfg.newBlobStore(ctx)
	if err != nil {
		return nil, err
	}
	trigger, err := cfg.newTrigger()
	if err != nil {
		return nil, err
	}
	return NewIngestService(records, blobs, trigger), nil
}

// NewCloudRunner assembles the stage runner for the worker functions. All
// three stages are registered; each deployed function only dispatches its
// own.
func NewCloudRunner(ctx context.Context) (*pipeline.Runner, error) {
	cfg, err := LoadCloudConfig()
	if err != nil {
		return nil, err
	}
	records, err := cfg.newRecordStore(ctx)
	if err != nil {
		return nil, err
	}
	blobs, err := cfg.newBlobStore(ctx)
	if err != nil {
		return nil, err
	}
	model, err := inference.NewVertexModel(ctx, cfg.ProjectID, cfg.VertexAIRegion, cfg.VertexModel)
	if err != nil {
		return nil, err
	}
	trigger, err := cfg.newTrigger()
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(records, trigger,
		NewExtractStage(blobs, model),
		NewClassifyStage(model),
		NewSummarizeStage(model),
	)
}

// NewCloudResults assembles the query service for the results function.
func NewCloudResults(ctx context.Context) (*ResultsService, error) {
	cfg, err := LoadCloudConfig()
	if err != nil {
		return nil, err
	}
	records, err := cfg.newRecordStore(ctx)
	if err != nil {
		return nil, err
	}
	return NewResultsService(records), nil
}

// NewCloudSweeper assembles the sweeper for its scheduler-invoked function.
func NewCloudSweeper(ctx context.Context) (*SweeperService, error) {
	cfg, err := LoadCloudConfig()
	if err != nil {
		return nil, err
	}
	records, err := cfg.newRecordStore(ctx)
	if err != nil {
		return nil, err
	}
	trigger, err := cfg.newTrigger()
	if err != nil {
		return nil, err
	}
	return NewSweeperService(records, trigger, cfg.StaleAfter), nil
}
