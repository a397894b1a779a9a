// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/cebingest/ai"
	"github.com/poiesic/cebingest/core"
	"github.com/urfave/cli/v2"
)

const defaultDataDir = "data/ceb_processed"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "cebingest",
		Usage: "Chunk, embed and upload CEB practice guides for retrieval",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "Directory holding one sub-directory per category",
				Value: defaultDataDir,
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load credentials from this file (default: .env if present)",
			},
		},
		Before: func(c *cli.Context) error {
			if err := setupLogger(c); err != nil {
				return err
			}
			return loadEnv(c.String("env-file"))
		},
		Commands: []*cli.Command{
			{
				Name:   "extract",
				Usage:  "Extract and chunk the PDFs of a category into chunks.jsonl",
				Action: extractCommand,
				Flags: append(commonFlags(),
					&cli.StringFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "Directory of PDF files",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "pdf-engine",
						Usage: "Text extraction engine (pdftotext, docconv); docconv reports every chunk on page 1",
						Value: "pdftotext",
					},
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Target chunk size in tokens",
						Value: 1000,
					},
					&cli.IntFlag{
						Name:  "overlap",
						Usage: "Overlap between consecutive chunks in tokens",
						Value: 200,
					},
					&cli.IntFlag{
						Name:  "checkpoint-interval",
						Usage: "Save a checkpoint every N documents (0 disables)",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "resume-from",
						Usage: "Resume from this document index",
					},
					&cli.BoolFlag{
						Name:  "resume",
						Usage: "Resume from the latest checkpoint",
					},
				),
			},
			{
				Name:   "embed",
				Usage:  "Embed the chunks of a category into embeddings.jsonl",
				Action: embedCommand,
				Flags: append(append(commonFlags(), batchFlags(100, 100*time.Millisecond)...),
					embeddingFlags()...),
			},
			{
				Name:   "upload",
				Usage:  "Upsert the embeddings of a category into the vector store",
				Action: uploadCommand,
				Flags:  append(append(commonFlags(), batchFlags(100, 200*time.Millisecond)...), vectorStoreFlags()...),
			},
			{
				Name:      "search",
				Usage:     "Query the uploaded chunks of a category",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: append(append(append(commonFlags(), embeddingFlags()...), vectorStoreFlags()...),
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of results",
						Value:   5,
					},
					&cli.Float64Flag{
						Name:  "min-score",
						Usage: "Drop results scoring below this value",
					},
					&cli.Float64Flag{
						Name:  "verbatim-boost",
						Usage: "Score boost for results containing every query word",
					},
				),
			},
			{
				Name:   "status",
				Usage:  "Show record counts, checkpoints and recent runs of a category",
				Action: statusCommand,
				Flags:  commonFlags(),
			},
		},
	}
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "category",
			Aliases:  []string{"c"},
			Usage:    "Practice area, e.g. " + strings.Join(core.KnownCategories, ", "),
			Required: true,
		},
	}
}

func batchFlags(batchSize int, batchDelay time.Duration) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "batch-size",
			Usage: "Number of records sent in each service call",
			Value: batchSize,
		},
		&cli.IntFlag{
			Name:  "report-interval",
			Usage: "Report progress every N records",
			Value: 100,
		},
		&cli.IntFlag{
			Name:  "max-retries",
			Usage: "Maximum retry attempts for failed operations",
			Value: 3,
		},
		&cli.DurationFlag{
			Name:  "retry-delay",
			Usage: "Base delay for exponential backoff",
			Value: 1 * time.Second,
		},
		&cli.DurationFlag{
			Name:  "batch-delay",
			Usage: "Pause after every successful batch",
			Value: batchDelay,
		},
	}
}

func embeddingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "provider",
			Usage: "Embedding client (openai, langchain)",
			Value: "openai",
		},
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL",
			Value: "https://api.openai.com/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: ai.DefaultEmbeddingModel,
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "Embedding service API key",
			EnvVars: []string{"OPENAI_API_KEY"},
		},
		&cli.IntFlag{
			Name:  "dimensions",
			Usage: "Requested vector size (0 keeps the model default)",
		},
	}
}

func vectorStoreFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "upstash-url",
			Usage:   "Upstash Vector REST URL",
			EnvVars: []string{"UPSTASH_VECTOR_REST_URL"},
		},
		&cli.StringFlag{
			Name:    "upstash-token",
			Usage:   "Upstash Vector REST token",
			EnvVars: []string{"UPSTASH_VECTOR_REST_TOKEN"},
		},
	}
}

// loadEnv loads credentials from a dotenv file. Without an explicit path a
// missing .env is not an error.
func loadEnv(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
