package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/docflowlabs/docproc/internal/blob"
	"github.com/docflowlabs/docproc/internal/inference"
	"github.com/docflowlabs/docproc/internal/pipeline"
	"github.com/docflowlabs/docproc/internal/server"
	"github.com/docflowlabs/docproc/internal/services"
	"github.com/docflowlabs/docproc/internal/store"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the whole pipeline locally in one process",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: ":8080", Usage: "listen address"},
			&cli.StringFlag{Name: "data-dir", Value: "docproc-data", Usage: "directory for records and blobs"},
			&cli.IntFlag{Name: "workers", Value: 4, Usage: "stage worker pool size"},
			&cli.DurationFlag{Name: "stale-after", Value: services.DefaultStaleAfter, Usage: "age at which a non-terminal record is considered stalled"},
			&cli.DurationFlag{Name: "sweep-interval", Value: time.Minute, Usage: "how often stalled records are re-triggered"},
			&cli.StringFlag{Name: "model", Value: "", Usage: "chat model name", EnvVars: []string{"OPENAI_MODEL"}},
			&cli.StringFlag{Name: "model-base-url", Value: "", Usage: "OpenAI-compatible endpoint", EnvVars: []string{"OPENAI_BASE_URL"}},
			&cli.StringFlag{Name: "model-token", Value: "", Usage: "API token", EnvVars: []string{"OPENAI_API_KEY"}},
		},
		Action: serve,
	}
}

func serve(c *cli.Context) error {
	dataDir := c.String("data-dir")

	records, err := store.OpenBadgerStore(filepath.Join(dataDir, "records"), false)
	if err != nil {
		return err
	}
	defer records.Close()

	blobs, err := blob.NewFSStore(filepath.Join(dataDir, "blobs"))
	if err != nil {
		return err
	}

	model, err := inference.NewOpenAIModel(c.String("model-base-url"), c.String("model-token"), c.String("model"))
	if err != nil {
		return fmt.Errorf("failed to configure inference model: %w", err)
	}

	trigger, err := pipeline.NewPoolTrigger(c.Int("workers"))
	if err != nil {
		return err
	}
	defer trigger.Release()

	runner, err := pipeline.NewRunner(records, trigger,
		services.NewExtractStage(blobs, model),
		services.NewClassifyStage(model),
		services.NewSummarizeStage(model),
	)
	if err != nil {
		return err
	}
	trigger.Bind(runner)

	ingest := services.NewIngestService(records, blobs, trigger)
	results := services.NewResultsService(records)
	sweeper := services.NewSweeperService(records, trigger, c.Duration("stale-after"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runSweeper(ctx, sweeper, c.Duration("sweep-interval"))

	srv := server.New(c.String("addr"), ingest, results)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed.", "error", err)
		}
	}()

	slog.Info("Serving pipeline.", "addr", c.String("addr"), "dataDir", dataDir)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// runSweeper periodically re-fires stalled stage triggers until ctx ends.
func runSweeper(ctx context.Context, sweeper *services.SweeperService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := sweeper.Sweep(ctx); err != nil {
				slog.Error("Sweep failed.", "error", err)
			}
		}
	}
}
