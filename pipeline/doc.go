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

// Package pipeline runs the three ingestion stages over a category's
// record stores: extraction of PDFs into chunks, embedding of chunks, and
// upload of embedded chunks to a vector store.
//
// Stages run sequentially in a single goroutine. Each invocation owns the
// RunStatistics it returns. Progress survives interruption through the
// append-only stores: extraction resumes from a document offset, embedding
// resumes from the length of the embedding store, and upload is always
// re-run from the start because upserts are idempotent by chunk ID.
package pipeline
