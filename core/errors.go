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
	"errors"
	"fmt"
)

// Domain validation errors
var (
	// ErrInvalidChunkRecord indicates a ChunkRecord failed validation.
	ErrInvalidChunkRecord = errors.New("invalid chunk record")

	// ErrInvalidEmbeddingRecord indicates an EmbeddingRecord failed validation.
	ErrInvalidEmbeddingRecord = errors.New("invalid embedding record")

	// ErrInvalidCategory indicates a category name is empty or malformed.
	ErrInvalidCategory = errors.New("invalid category")

	// ErrEmptyChunkID indicates the chunk identifier is empty.
	ErrEmptyChunkID = errors.New("chunk id cannot be empty")

	// ErrChunkTooShort indicates chunk text is below the minimum viable length.
	ErrChunkTooShort = errors.New("chunk text is too short")

	// ErrEmptyVector indicates an embedding has no components.
	ErrEmptyVector = errors.New("embedding vector cannot be empty")

	// ErrDimensionMismatch indicates the recorded dimensionality differs from the vector length.
	ErrDimensionMismatch = errors.New("embedding dimensions do not match vector length")
)

// ErrPermanent marks a failure that retrying cannot fix, such as a rejected
// request or malformed input.
var ErrPermanent = errors.New("permanent failure")

// Permanent wraps err so that errors.Is(err, ErrPermanent) reports true.
// A nil err stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPermanent) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}
