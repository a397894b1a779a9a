package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/poiesic/cebingest/chunker"
	"github.com/poiesic/cebingest/core"
	"github.com/poiesic/cebingest/pdf"
	"github.com/poiesic/cebingest/storage"
)

// ListDocuments returns the paths of the *.pdf files directly inside dir,
// sorted by filename.
func ListDocuments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputDirMissing, dir)
		}
		return nil, fmt.Errorf("read input directory: %w", err)
	}

	// os.ReadDir returns entries sorted by filename
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".pdf" {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDocuments, dir)
	}
	return paths, nil
}

// ExtractStage turns a directory of PDFs into the chunk store.
type ExtractStage struct {
	category    string
	inputDir    string
	chunksPath  string
	pages       pdf.PageExtractor
	chunker     *chunker.Chunker
	checkpoints *CheckpointManager
	config      *Config
	opts        stageOptions
}

// NewExtractStage creates an extraction stage. A nil chunker uses default
// chunking, a nil checkpoint manager disables checkpoints and a nil config
// uses DefaultConfig.
func NewExtractStage(category, inputDir, chunksPath string, pages pdf.PageExtractor, chunker *chunker.Chunker, checkpoints *CheckpointManager, config *Config, opts ...Option) (*ExtractStage, error) {
	if err := core.ValidateCategory(category); err != nil {
		return nil, err
	}
	if pages == nil {
		return nil, fmt.Errorf("%w: page extractor is required", ErrInvalidConfig)
	}
	config, err := resolveConfig(config)
	if err != nil {
		return nil, err
	}
	if chunker == nil {
		if chunker, err = newDefaultChunker(); err != nil {
			return nil, err
		}
	}

	return &ExtractStage{
		category:    category,
		inputDir:    inputDir,
		chunksPath:  chunksPath,
		pages:       pages,
		chunker:     chunker,
		checkpoints: checkpoints,
		config:      config,
		opts:        applyOptions(core.StageExtract, category, opts),
	}, nil
}

func newDefaultChunker() (*chunker.Chunker, error) {
	return chunker.New(nil)
}

// Run processes the documents from index resumeFrom onwards. Starting at 0
// replaces the chunk store. Resuming first removes any chunks of documents
// at index resumeFrom or later, then appends.
//
// A document that cannot be processed is recorded in the result and the
// run continues. Context cancellation stops the run after the current
// document and returns the partial result along with the context error.
func (s *ExtractStage) Run(ctx context.Context, resumeFrom int) (*Result, error) {
	docs, err := ListDocuments(s.inputDir)
	if err != nil {
		return nil, err
	}
	if resumeFrom < 0 || resumeFrom > len(docs) {
		return nil, fmt.Errorf("%w: %d not in [0, %d]", ErrInvalidResumeOffset, resumeFrom, len(docs))
	}

	logger := s.opts.logger
	mode := storage.ModeTruncate
	if resumeFrom > 0 {
		mode = storage.ModeAppend
		// Documents finished after the last checkpoint are already in the
		// store; drop them so reprocessing does not duplicate their chunks.
		removed, err := dropDocuments(s.chunksPath, docs[resumeFrom:])
		if err != nil {
			return nil, fmt.Errorf("reconcile chunk store: %w", err)
		}
		if removed > 0 {
			logger.Warn("removed chunks of documents past the resume offset",
				"chunks", removed, "resume_from", resumeFrom)
		}
	}
	out, err := storage.OpenLog[core.ChunkRecord](s.chunksPath, mode)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	res := newResult(core.StageExtract, s.category, s.opts.clock())
	res.Stats.TotalItems = len(docs)
	res.Stats.Skipped = resumeFrom

	cfg := s.chunker.Config()
	logger.Info("starting extraction",
		"documents", len(docs), "resume_from", resumeFrom,
		"chunk_chars", cfg.ChunkChars(), "overlap_chars", cfg.OverlapChars())

	tracker := NewProgressTracker(s.opts.progress, len(docs), 1, "docs")
	tracker.Start(resumeFrom)

	var runErr error
	for idx, path := range docs[resumeFrom:] {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		name := filepath.Base(path)
		records, pages, err := s.processDocument(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				runErr = ctx.Err()
				break
			}
			logger.Error("failed to process document", "file", name, "err", err)
			res.fail(name, err)
		} else {
			if err := out.AppendAll(records); err != nil {
				runErr = fmt.Errorf("write chunks of %s: %w", name, err)
				break
			}
			res.Stats.Successful++
			res.Stats.TotalChunks += len(records)
			res.Stats.TotalPages += pages
			logger.Debug("document processed", "file", name, "pages", pages, "chunks", len(records))
		}

		done := idx + 1
		tracker.Update(resumeFrom + done)
		if s.checkpoints != nil && s.checkpoints.Due(done) {
			if err := out.Sync(); err != nil {
				runErr = err
				break
			}
			if _, err := s.checkpoints.Save(ctx, resumeFrom+done, res.Stats); err != nil {
				logger.Warn("failed to save checkpoint", "processed", resumeFrom+done, "err", err)
			}
		}
	}
	tracker.Finish()

	if err := out.Sync(); err != nil && runErr == nil {
		runErr = err
	}
	res.Stats.Finish(s.opts.clock())

	logger.Info("extraction finished",
		"successful", res.Stats.Successful, "failed", res.Stats.Failed,
		"chunks", res.Stats.TotalChunks, "duration", res.Stats.Duration())
	return res, runErr
}

// dropDocuments removes every chunk of the given document paths from the
// chunk store. Returns the number of chunks removed.
func dropDocuments(chunksPath string, paths []string) (int, error) {
	pending := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		pending[filepath.Base(p)] = struct{}{}
	}
	return storage.Filter(chunksPath, func(r core.ChunkRecord) bool {
		_, redo := pending[r.SourceFile]
		return !redo
	})
}

// processDocument builds every chunk record of one PDF in memory.
// Returns the records and the number of pages with text.
func (s *ExtractStage) processDocument(ctx context.Context, path string) ([]core.ChunkRecord, int, error) {
	meta := core.ExtractMetadata(path)

	pages, err := s.pages.ExtractPages(ctx, path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to process %s: %w", meta.Filename, err)
	}
	if len(pages) == 0 {
		return nil, 0, fmt.Errorf("failed to process %s: %w", meta.Filename, pdf.ErrNoText)
	}

	stem := core.DocumentStem(meta.Filename)
	processed := s.opts.clock()

	var records []core.ChunkRecord
	for _, page := range pages {
		for frag := range s.chunker.Chunk(page.Text, page.Number) {
			index := len(records)
			records = append(records, core.ChunkRecord{
				ChunkID:       core.ChunkID(s.category, stem, index),
				SourceFile:    meta.Filename,
				Category:      s.category,
				Title:         meta.Title,
				Section:       meta.Section,
				Citation:      meta.Citation,
				PageNumber:    frag.PageNumber,
				ChunkIndex:    index,
				Text:          frag.Text,
				TokenCount:    frag.TokenCount,
				ContentHash:   core.ContentHash(frag.Text),
				ProcessedDate: processed,
			})
		}
	}

	for i := range records {
		records[i].TotalChunks = len(records)
		if err := core.ValidateChunkRecord(&records[i]); err != nil {
			return nil, 0, fmt.Errorf("failed to process %s: %w", meta.Filename, err)
		}
	}
	return records, len(pages), nil
}
