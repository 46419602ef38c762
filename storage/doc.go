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

// Package storage provides the storage abstraction layer for ghgrag.
//
// This package defines repository interfaces that decouple persistence from
// ingestion, indexing and querying. Two backends exist:
//
//   - storage/badger: embedded store for records, documents and index snapshots
//   - storage/pgvector: Postgres store for index snapshots
//
// # Generations
//
// Ingestion replaces the whole record set. Writers stage records and documents
// in a Generation, and readers keep seeing the previous generation until
// Commit. A failed ingestion calls Discard and leaves the stored data as it
// was.
//
//	gen, err := records.BeginGeneration(ctx)
//	if err != nil {
//	    return err
//	}
//	defer gen.Discard()
//	if err := gen.AddRecords(ctx, recs...); err != nil {
//	    return err
//	}
//	return gen.Commit(ctx)
//
// # Snapshots
//
// A built vector index is persisted as a Snapshot so that a restart can serve
// queries without calling the embedding service again.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
