// docproc is the development entry point: it serves the whole pipeline from
// one process (Badger records, filesystem blobs, an OpenAI-compatible model)
// and doubles as a client that submits documents and polls for results.
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	app := &cli.App{
		Name:  "docproc",
		Usage: "intelligent document processing pipeline",
		Commands: []*cli.Command{
			serveCommand(),
			submitCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Command failed.", "error", err)
		os.Exit(1)
	}
}
