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

package reembed

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/10JERRY01/GreehouseGasEmissionRAG/core"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/index"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/storage"
)

// Config holds configuration for the reembedding process.
type Config struct {
	// BatchSize is the number of documents read from storage at a time
	BatchSize int

	// ReportInterval is how often to report progress (number of documents)
	ReportInterval int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
	}
}

// Reembedder rebuilds an index from the documents in a repository.
type Reembedder struct {
	repo     storage.DocumentRepository
	index    *index.Index
	config   *Config
	progress io.Writer
	iterator *DocumentIterator
}

// NewReembedder creates a Reembedder. A nil config selects DefaultConfig.
func NewReembedder(repo storage.DocumentRepository, idx *index.Index, config *Config, progress io.Writer) *Reembedder {
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		repo:     repo,
		index:    idx,
		config:   config,
		progress: progress,
		iterator: NewDocumentIterator(repo, config.BatchSize),
	}
}

// Run loads every stored document and builds the index from them under the
// index's current model version. With no stored documents it does nothing.
func (r *Reembedder) Run(ctx context.Context) error {
	total, err := r.repo.CountDocuments(ctx)
	if err != nil {
		return fmt.Errorf("failed to count documents: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No documents found in storage (0 documents)\n")
		return nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d documents with %s (batch size: %d)\n",
		total, r.index.ModelVersion(), r.config.BatchSize)

	docs := make([]*core.Document, 0, total)
	err = r.iterator.ForEach(ctx, func(batch []*core.Document) error {
		docs = append(docs, batch...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to load documents: %w", err)
	}
	if len(docs) != total {
		return fmt.Errorf("%w: counted %d, read %d", ErrCountChanged, total, len(docs))
	}

	tracker := NewProgressTracker(r.progress, "documents", r.config.ReportInterval)
	if err := r.index.BuildWithProgress(ctx, docs, tracker); err != nil {
		fmt.Fprintln(r.progress)
		return fmt.Errorf("failed to rebuild index: %w", err)
	}

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Indexed %d documents in %v (%.1f documents/sec)\n",
		total, elapsed.Round(time.Millisecond), float64(total)/elapsed.Seconds())

	return nil
}

// NeedsReembed reports whether an index described by manifest was built with
// a different embedding model than modelVersion. A nil manifest means no
// index exists, which needs a build rather than a reembed.
func NeedsReembed(manifest *core.IndexManifest, modelVersion string) bool {
	return manifest != nil && manifest.ModelVersion != modelVersion
}
