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
	"fmt"
	"strings"
	"unicode/utf8"
)

// MinChunkChars is the shortest trimmed chunk text that is ever emitted.
const MinChunkChars = 100

// ValidateChunkRecord validates a ChunkRecord according to domain rules.
//
// Validation rules:
//   - ChunkID must not be empty
//   - Category must be a valid category name
//   - trimmed Text must be at least MinChunkChars characters
//   - ChunkIndex must lie in [0, TotalChunks)
func ValidateChunkRecord(record *ChunkRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidChunkRecord)
	}

	if record.ChunkID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunkRecord, ErrEmptyChunkID)
	}

	if err := ValidateCategory(record.Category); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidChunkRecord, err)
	}

	if n := utf8.RuneCountInString(strings.TrimSpace(record.Text)); n < MinChunkChars {
		return fmt.Errorf("%w: %w: %d characters", ErrInvalidChunkRecord, ErrChunkTooShort, n)
	}

	if record.ChunkIndex < 0 || record.ChunkIndex >= record.TotalChunks {
		return fmt.Errorf("%w: chunk index %d out of range for %d chunks",
			ErrInvalidChunkRecord, record.ChunkIndex, record.TotalChunks)
	}

	return nil
}

// ValidateEmbeddingRecord validates an EmbeddingRecord. The embedded chunk
// must be valid and the vector must be non-empty with matching dimensions.
func ValidateEmbeddingRecord(record *EmbeddingRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidEmbeddingRecord)
	}

	if err := ValidateChunkRecord(&record.ChunkRecord); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEmbeddingRecord, err)
	}

	if len(record.Embedding) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidEmbeddingRecord, ErrEmptyVector)
	}

	if record.EmbeddingDimensions != len(record.Embedding) {
		return fmt.Errorf("%w: %w: %d != %d", ErrInvalidEmbeddingRecord, ErrDimensionMismatch,
			record.EmbeddingDimensions, len(record.Embedding))
	}

	return nil
}
