package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/docflowlabs/docproc/internal/models"
)

func submitCommand() *cli.Command {
	return &cli.Command{
		Name:      "submit",
		Usage:     "submit one or more documents and poll until each finishes",
		ArgsUsage: "FILE...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "endpoint", Value: "http://localhost:8080", Usage: "pipeline API base URL"},
			&cli.DurationFlag{Name: "poll-interval", Value: 10 * time.Second, Usage: "delay between status polls"},
			&cli.IntFlag{Name: "poll-attempts", Value: 30, Usage: "maximum number of status polls per document"},
			&cli.BoolFlag{Name: "no-wait", Usage: "print the document id and exit without polling"},
		},
		Action: submit,
	}
}

// mediaTypeForFile maps a file extension to the pipeline's accepted media
// types. Unknown extensions are submitted as-is and rejected server-side.
func mediaTypeForFile(path string) models.MediaType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return models.MediaTypeJPEG
	case ".png":
		return models.MediaTypePNG
	case ".pdf":
		return models.MediaTypePDF
	}
	return ""
}

func submit(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one file must be given")
	}

	client := &http.Client{Timeout: 30 * time.Second}
	endpoint := strings.TrimSuffix(c.String("endpoint"), "/")

	eg, ctx := errgroup.WithContext(c.Context)
	eg.SetLimit(4)

	for _, path := range c.Args().Slice() {
		eg.Go(func() error {
			documentID, err := submitFile(ctx, client, endpoint, path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Printf("%s\t%s\n", path, documentID)
			if c.Bool("no-wait") {
				return nil
			}

			rec, err := pollDocument(ctx, client, endpoint, documentID, c.Duration("poll-interval"), c.Int("poll-attempts"))
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			out, _ := json.MarshalIndent(rec, "", "  ")
			fmt.Println(string(out))
			return nil
		})
	}
	return eg.Wait()
}

func submitFile(ctx context.Context, client *http.Client, endpoint, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	mediaType := mediaTypeForFile(path)
	if mediaType == "" {
		return "", fmt.Errorf("cannot determine media type, only .jpg, .png and .pdf are supported")
	}

	body, err := json.Marshal(models.SubmitRequest{
		FileName:          filepath.Base(path),
		FileContentBase64: base64.StdEncoding.EncodeToString(content),
		MediaType:         string(mediaType),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/documents", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return "", fmt.Errorf("submission rejected (%d): %s", resp.StatusCode, apiErr.Error)
	}

	var ack models.SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return "", err
	}
	return ack.DocumentID, nil
}

// pollDocument polls until the record reaches a terminal status or the
// attempts run out. A timed-out poll does not cancel anything
// server-side; the pipeline simply keeps running unobserved.
func pollDocument(ctx context.Context, client *http.Client, endpoint, documentID string, interval time.Duration, attempts int) (*models.DocumentRecord, error) {
	for i := 0; i < attempts; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}

		rec, err := fetchDocument(ctx, client, endpoint, documentID)
		if err != nil {
			slog.Warn("Status poll failed.", "documentId", documentID, "attempt", i+1, "error", err)
			continue
		}
		if rec.Status.Terminal() {
			return rec, nil
		}
		slog.Info("Still processing.", "documentId", documentID, "status", string(rec.Status), "attempt", i+1)
	}
	return nil, fmt.Errorf("document %s did not finish within %d polls", documentID, attempts)
}

func fetchDocument(ctx context.Context, client *http.Client, endpoint, documentID string) (*models.DocumentRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/documents/"+documentID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var rec models.DocumentRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
