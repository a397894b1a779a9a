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

package core

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a content-derived 64 bit identifier.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// Identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// ContentHash returns IDFromContent as a fixed-width hex string, suitable for
// storing alongside a chunk so later stages can detect drift between stores.
func ContentHash(text string) string {
	return fmt.Sprintf("%016x", uint64(IDFromContent(text)))
}

// Stage names one of the three pipeline stages.
type Stage string

const (
	// StageExtract turns PDFs into chunk records.
	StageExtract Stage = "extract"
	// StageEmbed augments chunk records with vectors.
	StageEmbed Stage = "embed"
	// StageUpload pushes embedding records to the vector store.
	StageUpload Stage = "upload"
)

// DocumentRecord describes one source PDF. Its derived fields are
// denormalized into every chunk it produces.
type DocumentRecord struct {
	Filename string
	Title    string
	Section  string
	Citation string
}

// ChunkRecord is the atomic retrievable unit written to the chunk store.
type ChunkRecord struct {
	ChunkID       string    `json:"chunk_id"`
	SourceFile    string    `json:"source_file"`
	Category      string    `json:"category"`
	Title         string    `json:"title"`
	Section       string    `json:"section"`
	Citation      string    `json:"ceb_citation"`
	PageNumber    int       `json:"page_number"`
	ChunkIndex    int       `json:"chunk_index"`
	Text          string    `json:"text"`
	TokenCount    int       `json:"token_count"`
	TotalChunks   int       `json:"total_chunks"`
	ContentHash   string    `json:"content_hash,omitempty"`
	ProcessedDate time.Time `json:"processed_date"`
}

// EmbeddingRecord is a ChunkRecord plus its vector. The chunk fields are
// flattened into the same JSON object.
type EmbeddingRecord struct {
	ChunkRecord
	Embedding           []float32 `json:"embedding"`
	EmbeddingModel      string    `json:"embedding_model"`
	EmbeddingDimensions int       `json:"embedding_dimensions"`
}

// NewEmbeddingRecord augments chunk with vector.
func NewEmbeddingRecord(chunk ChunkRecord, vector []float32, model string) EmbeddingRecord {
	return EmbeddingRecord{
		ChunkRecord:         chunk,
		Embedding:           vector,
		EmbeddingModel:      model,
		EmbeddingDimensions: len(vector),
	}
}

// Failure records one item that a stage could not process.
type Failure struct {
	Item  string `json:"item"`
	Error string `json:"error"`
}

// NewFailure builds a Failure from an item identifier and its error.
func NewFailure(item string, err error) Failure {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Failure{Item: item, Error: msg}
}

// RunStatistics holds the counters of one stage invocation. Each stage run
// owns its own value and returns it when done.
type RunStatistics struct {
	RunID         string    `json:"run_id"`
	Stage         Stage     `json:"stage"`
	Category      string    `json:"category"`
	TotalItems    int       `json:"total_items"`
	Successful    int       `json:"successful"`
	Failed        int       `json:"failed"`
	Skipped       int       `json:"skipped"`
	TotalChunks   int       `json:"total_chunks,omitempty"`
	TotalPages    int       `json:"total_pages,omitempty"`
	TotalTokens   int       `json:"total_tokens,omitempty"`
	EstimatedCost float64   `json:"estimated_cost,omitempty"`
	Model         string    `json:"model,omitempty"`
	Namespace     string    `json:"namespace,omitempty"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
}

// Finish stamps the end time.
func (s *RunStatistics) Finish(at time.Time) {
	s.EndTime = at
}

// Duration returns the elapsed run time, or zero if the run has not finished.
func (s *RunStatistics) Duration() time.Duration {
	if s.EndTime.IsZero() || s.EndTime.Before(s.StartTime) {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// Attempted is the number of items this run tried to process.
func (s *RunStatistics) Attempted() int {
	return s.Successful + s.Failed
}

// SuccessRate returns successful items as a percentage of attempted items.
func (s *RunStatistics) SuccessRate() float64 {
	attempted := s.Attempted()
	if attempted == 0 {
		return 0
	}
	return float64(s.Successful) / float64(attempted) * 100
}

// CheckpointRecord is a periodically persisted progress marker.
type CheckpointRecord struct {
	Stage          Stage         `json:"stage"`
	Category       string        `json:"category"`
	ProcessedCount int           `json:"processed_count"`
	Stats          RunStatistics `json:"stats"`
	Timestamp      time.Time     `json:"timestamp"`
}
