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

// Package search queries the uploaded chunks of a category.
//
// The Searcher embeds the query text with the same model used for the
// corpus, asks the vector store for the nearest neighbours inside the
// category namespace and maps the stored metadata back to citations.
// Hits whose text contains every significant query word can be given a
// score boost.
package search
