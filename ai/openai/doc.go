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

// Package openai implements ai.Embedder against the OpenAI embeddings REST
// API, or any server that speaks the same protocol.
//
// Unlike the langchain provider it reads the usage block of every response,
// so token counts and cost estimates reflect what the service billed. The
// index of every returned embedding is checked, so a response that is
// truncated, padded or permuted is reported as ai.ErrResultMismatch.
//
// # Usage
//
//	config := ai.NewConfig(ai.WithAPIKey(os.Getenv("OPENAI_API_KEY")))
//	embedder, err := openai.NewEmbedder(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := embedder.EmbedTexts(ctx, []string{"first chunk", "second chunk"})
package openai
