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

// Package storage provides the persistence layer for cebingest.
//
// Two kinds of state live here:
//
//   - Record stores: append-only JSON-lines logs (Log) holding chunk and
//     embedding records. A store's line count is the pipeline's progress
//     count, so stores are only ever appended to or truncated as a whole.
//   - The run ledger: repository interfaces (CheckpointRepository,
//     RunRepository) for checkpoints, run statistics and failure listings,
//     implemented on BadgerDB by storage/badger and serialized with mus-go.
//
// # Durability
//
// Log.AppendAll writes all records in a single write call and Log.Sync
// flushes to stable storage. A crash can leave at most one torn trailing
// line; opening a log in ModeAppend trims it before writing, and the read
// helpers ignore it.
//
// # Constructor Return Type Pattern
//
// Repository constructors in storage/badger return concrete types that
// satisfy the interfaces declared here; callers depend on the interfaces.
package storage
