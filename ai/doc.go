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

// Package ai provides abstractions for the embedding services used by the
// pipeline.
//
// The Embedder interface turns a batch of texts into vectors and reports
// the tokens the service billed for them. Vectors are returned in input
// order; implementations must reject responses they cannot map back to
// their inputs with ErrResultMismatch rather than guess.
//
// # Implementation Packages
//
//   - ai/openai: direct client for the OpenAI embeddings REST API
//   - ai/langchain: OpenAI-compatible servers through langchaingo
//   - ai/mock: test doubles for unit testing without external dependencies
//
// Public constructors (openai.NewEmbedder, langchain.NewEmbedder) return the
// ai.Embedder interface. mock.NewMockEmbedder returns the concrete type so
// tests can inspect recorded calls.
//
// # Errors
//
// Providers mark failures that a retry cannot fix with core.Permanent, for
// example a 400 response for an oversized input. Everything else is treated
// as transient by the pipeline's retry executor.
package ai
