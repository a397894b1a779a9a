package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/poiesic/cebingest"
	"github.com/poiesic/cebingest/ai"
	"github.com/poiesic/cebingest/ai/langchain"
	"github.com/poiesic/cebingest/ai/openai"
	"github.com/poiesic/cebingest/chunker"
	"github.com/poiesic/cebingest/core"
	"github.com/poiesic/cebingest/pdf"
	"github.com/poiesic/cebingest/pipeline"
	"github.com/poiesic/cebingest/report"
	"github.com/poiesic/cebingest/search"
	"github.com/poiesic/cebingest/vectorstore/upstash"
	"github.com/urfave/cli/v2"
)

func openWorkspace(c *cli.Context) (*cebingest.Workspace, error) {
	ws, err := cebingest.OpenWorkspace(c.String("data-dir"), c.String("category"))
	if err != nil {
		return nil, fmt.Errorf("failed to open workspace: %w", err)
	}
	return ws, nil
}

// pipelineConfig builds the stage configuration from the batch flags.
func pipelineConfig(c *cli.Context) (*pipeline.Config, error) {
	config := pipeline.DefaultConfig()
	config.BatchSize = c.Int("batch-size")
	config.ReportInterval = c.Int("report-interval")
	config.MaxRetries = c.Int("max-retries")
	config.RetryDelay = c.Duration("retry-delay")
	config.BatchDelay = c.Duration("batch-delay")
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func newEmbedder(c *cli.Context) (ai.Embedder, *ai.Config, error) {
	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithAPIKey(c.String("api-key")),
		ai.WithDimensions(c.Int("dimensions")),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	var (
		embedder ai.Embedder
		err      error
	)
	switch provider := strings.ToLower(c.String("provider")); provider {
	case "openai":
		embedder, err = openai.NewEmbedder(aiConfig)
	case "langchain":
		embedder, err = langchain.NewEmbedder(aiConfig)
	default:
		return nil, nil, fmt.Errorf("unknown embedding provider %q: must be one of openai, langchain", provider)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, aiConfig, nil
}

func newVectorStore(c *cli.Context) (*upstash.Client, error) {
	client, err := upstash.New(upstash.Config{
		URL:   c.String("upstash-url"),
		Token: c.String("upstash-token"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vector store client: %w", err)
	}
	return client, nil
}

func newPageExtractor(engine string) (pdf.PageExtractor, error) {
	switch strings.ToLower(engine) {
	case "pdftotext":
		if err := pdf.CheckAvailable(); err != nil {
			return nil, fmt.Errorf("%w\n%s", err, pdf.InstallInstructions())
		}
		return pdf.New(), nil
	case "docconv":
		return pdf.NewDocconv(), nil
	default:
		return nil, fmt.Errorf("unknown pdf engine %q: must be one of pdftotext, docconv", engine)
	}
}

// finish records a stage result and prints its summary. runErr is the
// error the stage returned alongside its partial result.
func finish(c *cli.Context, ws *cebingest.Workspace, result *pipeline.Result, runErr error, outputs ...report.Output) error {
	written, err := ws.Record(c.Context, result)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	fmt.Fprint(c.App.Writer, report.Summary(&result.Stats, append(outputs, written...)...))

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return fmt.Errorf("%s interrupted; re-run to continue: %w", result.Stats.Stage, runErr)
		}
		return fmt.Errorf("%s failed: %w", result.Stats.Stage, runErr)
	}
	return nil
}

func extractCommand(c *cli.Context) error {
	config := pipeline.DefaultConfig()
	config.CheckpointInterval = c.Int("checkpoint-interval")
	if err := config.Validate(); err != nil {
		return err
	}

	chunkConfig := chunker.DefaultConfig()
	chunkConfig.ChunkTokens = c.Int("chunk-size")
	chunkConfig.OverlapTokens = c.Int("overlap")
	chunks, err := chunker.New(chunkConfig)
	if err != nil {
		return err
	}

	pages, err := newPageExtractor(c.String("pdf-engine"))
	if err != nil {
		return err
	}

	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	checkpoints := ws.CheckpointManager(core.StageExtract, config.CheckpointInterval)
	resumeFrom := c.Int("resume-from")
	if c.Bool("resume") {
		latest, err := checkpoints.Latest(c.Context)
		if err != nil {
			return fmt.Errorf("failed to read checkpoint: %w", err)
		}
		if latest != nil {
			resumeFrom = latest.ProcessedCount
		}
	}

	stage, err := pipeline.NewExtractStage(ws.Category(), c.String("input"), ws.ChunksPath(),
		pages, chunks, checkpoints, config, pipeline.WithProgress(c.App.ErrWriter))
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.ErrWriter, "Input: %s\n", c.String("input"))
	fmt.Fprintf(c.App.ErrWriter, "Output: %s\n", ws.ChunksPath())
	if resumeFrom > 0 {
		fmt.Fprintf(c.App.ErrWriter, "Resuming from document %d\n", resumeFrom)
	}
	fmt.Fprintln(c.App.ErrWriter)

	result, err := stage.Run(c.Context, resumeFrom)
	if result == nil {
		return err
	}
	return finish(c, ws, result, err, report.Output{Label: "Chunks", Path: ws.ChunksPath()})
}

func embedCommand(c *cli.Context) error {
	config, err := pipelineConfig(c)
	if err != nil {
		return err
	}
	embedder, aiConfig, err := newEmbedder(c)
	if err != nil {
		return err
	}

	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	stage, err := pipeline.NewEmbedStage(ws.Category(), ws.ChunksPath(), ws.EmbeddingsPath(), embedder, config,
		pipeline.WithProgress(c.App.ErrWriter),
		pipeline.WithPricePerMillionTokens(aiConfig.PricePerMillionTokens))
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", aiConfig.EmbeddingHost)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", aiConfig.EmbeddingModel)
	fmt.Fprintln(c.App.ErrWriter)

	result, err := stage.Run(c.Context)
	if result == nil {
		return err
	}
	return finish(c, ws, result, err, report.Output{Label: "Embeddings", Path: ws.EmbeddingsPath()})
}

func uploadCommand(c *cli.Context) error {
	config, err := pipelineConfig(c)
	if err != nil {
		return err
	}
	store, err := newVectorStore(c)
	if err != nil {
		return err
	}

	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	stage, err := pipeline.NewUploadStage(ws.Category(), ws.EmbeddingsPath(), store, config,
		pipeline.WithProgress(c.App.ErrWriter))
	if err != nil {
		return err
	}

	result, err := stage.Run(c.Context)
	if result == nil {
		return err
	}
	if err := finish(c, ws, result, err); err != nil {
		return err
	}

	info, err := store.Info(c.Context)
	if err != nil {
		// The upload itself succeeded.
		fmt.Fprintf(c.App.ErrWriter, "Could not read index info: %v\n", err)
		return nil
	}
	ns := info.Namespaces[result.Stats.Namespace]
	fmt.Fprintf(c.App.Writer, "Index now holds %d vectors in %s (%d total, %d dimensions)\n",
		ns.VectorCount, result.Stats.Namespace, info.VectorCount, info.Dimension)
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("query is required")
	}
	category := c.String("category")
	if err := core.ValidateCategory(category); err != nil {
		return err
	}

	embedder, _, err := newEmbedder(c)
	if err != nil {
		return err
	}
	store, err := newVectorStore(c)
	if err != nil {
		return err
	}

	searcher, err := search.NewSearcher(embedder, store,
		search.WithMinScore(c.Float64("min-score")),
		search.WithVerbatimBoost(c.Float64("verbatim-boost")))
	if err != nil {
		return err
	}

	results, err := searcher.Search(c.Context, category, query, c.Int("top-k"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	printResults(c, results)
	return nil
}

func printResults(c *cli.Context, results []*search.Result) {
	w := c.App.Writer
	if len(results) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}
	for i, r := range results {
		fmt.Fprintf(w, "%d. [%.3f] %s (page %d)\n", i+1, r.Score, r.Citation, r.PageNumber)
		fmt.Fprintf(w, "   %s\n", r.ID)
		fmt.Fprintf(w, "   %s\n\n", snippet(r.Text, 240))
	}
}

func snippet(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

func statusCommand(c *cli.Context) error {
	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	status, err := ws.Status(c.Context)
	if err != nil {
		return err
	}
	printStatus(c, status)
	return nil
}

func printStatus(c *cli.Context, status *cebingest.Status) {
	w := c.App.Writer
	fmt.Fprintf(w, "Category: %s\n", status.Category)
	fmt.Fprintf(w, "Directory: %s\n", status.Dir)
	fmt.Fprintf(w, "Chunks: %d\n", status.Chunks)
	fmt.Fprintf(w, "Embeddings: %d (%d pending)\n", status.Embeddings, status.Pending())
	if cp := status.LatestCheckpoint; cp != nil {
		fmt.Fprintf(w, "Latest checkpoint: %d documents at %s\n", cp.ProcessedCount, cp.Timestamp.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Fprintln(w, "Latest checkpoint: none")
	}
	for _, stats := range status.LastLogged {
		fmt.Fprintf(w, "Last %s: %d ok, %d failed, %d skipped\n",
			stats.Stage, stats.Successful, stats.Failed, stats.Skipped)
	}
	if len(status.RecentRuns) == 0 {
		fmt.Fprintln(w, "Runs: none")
		return
	}
	fmt.Fprintln(w, "Recent runs:")
	for _, run := range status.RecentRuns {
		fmt.Fprintf(w, "  %s  %-7s %d ok, %d failed (%s)\n",
			run.StartTime.Format("2006-01-02 15:04"), run.Stage, run.Successful, run.Failed, run.RunID)
	}
}
