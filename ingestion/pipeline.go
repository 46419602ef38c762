package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/10JERRY01/GreehouseGasEmissionRAG/core"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/schema"
	"github.com/panjf2000/ants/v2"
)

// Sink receives each chunk of accepted records in source order.
// Returning an error aborts the run.
type Sink func(ctx context.Context, records []*core.CanonicalRecord) error

// Pipeline reads emission tables and yields deduplicated canonical records.
// A Pipeline may run several inputs one after another; each run has its own
// duplicate key set.
type Pipeline struct {
	chunkSize     int
	keyFields     []string
	maxRejections int
	delimiter     rune
	pool          *ants.Pool
	logger        *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithChunkSize sets the number of rows read and converted at a time.
// Default is DefaultChunkSize.
func WithChunkSize(size int) Option {
	return func(p *Pipeline) error {
		if size <= 0 {
			return ErrInvalidChunkSize
		}
		p.chunkSize = size
		return nil
	}
}

// WithDuplicateKeyFields sets the logical fields that identify a record.
// Default is core.DefaultDuplicateKeyFields.
func WithDuplicateKeyFields(fields ...string) Option {
	return func(p *Pipeline) error {
		if len(fields) == 0 {
			return fmt.Errorf("%w: no fields given", ErrUnknownKeyField)
		}
		for _, f := range fields {
			if !core.IsKeyField(f) {
				return fmt.Errorf("%w: %q", ErrUnknownKeyField, f)
			}
		}
		p.keyFields = append([]string(nil), fields...)
		return nil
	}
}

// WithPoolSize sets the worker pool size for row conversion.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if p.pool != nil {
			p.pool.Release()
		}
		p.pool = pool
		return nil
	}
}

// WithMaxRejections caps the rejection and duplicate details kept in a Report.
func WithMaxRejections(n int) Option {
	return func(p *Pipeline) error {
		if n < 0 {
			n = 0
		}
		p.maxRejections = n
		return nil
	}
}

// WithDelimiter sets the field delimiter. Default is ','.
func WithDelimiter(r rune) Option {
	return func(p *Pipeline) error {
		p.delimiter = r
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(opts ...Option) (*Pipeline, error) {
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		chunkSize:     DefaultChunkSize,
		keyFields:     append([]string(nil), core.DefaultDuplicateKeyFields...),
		maxRejections: DefaultMaxRejections,
		delimiter:     ',',
		pool:          pool,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")
	return p, nil
}

// Run ingests r, handing every chunk of accepted records to sink.
// Schema, encoding, sink and context errors abort the run; the partial
// report is returned alongside the error.
func (p *Pipeline) Run(ctx context.Context, r io.Reader, sink Sink) (*Report, error) {
	reader, err := NewChunkReader(r, p.chunkSize, p.delimiter)
	if err != nil {
		return nil, err
	}

	mapping, err := schema.Normalize(reader.Header())
	if err != nil {
		p.logger.Error("header rejected", "err", err)
		return nil, err
	}

	report := newReport(p.maxRejections)
	report.SchemaYear = mapping.Year
	report.Columns = mapping.Columns()

	converter := &rowConverter{mapping: mapping}
	keys := newKeySet(p.keyFields)

	p.logger.Info("ingestion started", "schema_year", mapping.Year, "chunk_size", p.chunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		rows, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			p.logger.Error("input could not be decoded", "err", err, "rows", report.TotalRows)
			return report, err
		}

		accepted := make([]*core.CanonicalRecord, 0, len(rows))
		for _, c := range p.convertChunk(converter, rows) {
			if c.err != nil {
				report.reject(c.err)
				continue
			}
			if key, first, dup := keys.add(c.record); dup {
				report.duplicate(c.record.Row, first, key)
				continue
			}
			report.accept(c.record)
			accepted = append(accepted, c.record)
		}
		report.Chunks++

		p.logger.Debug("chunk processed",
			"chunk", report.Chunks,
			"rows", len(rows),
			"accepted", len(accepted),
			"distinct_keys", keys.len())

		if sink != nil && len(accepted) > 0 {
			if err := sink(ctx, accepted); err != nil {
				return report, fmt.Errorf("%w: %w", ErrSinkFailed, err)
			}
		}
	}

	p.logger.Info("ingestion finished",
		"rows", report.TotalRows,
		"accepted", report.Accepted,
		"rejected", report.Rejected,
		"duplicates", report.Duplicates,
		"margin_mismatches", report.MarginMismatches)

	return report, nil
}

// convertChunk converts rows on the worker pool. Results are positioned by
// row index, so the returned slice is in source order.
func (p *Pipeline) convertChunk(c *rowConverter, rows []RawRow) []conversion {
	results := make([]conversion, len(rows))
	var wg sync.WaitGroup
	for i := range rows {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			results[i] = c.convert(rows[i])
		}
		if err := p.pool.Submit(task); err != nil {
			task()
		}
	}
	wg.Wait()
	return results
}

// Collect ingests r and returns all accepted records in first-seen order.
func (p *Pipeline) Collect(ctx context.Context, r io.Reader) ([]*core.CanonicalRecord, *Report, error) {
	var records []*core.CanonicalRecord
	report, err := p.Run(ctx, r, func(_ context.Context, chunk []*core.CanonicalRecord) error {
		records = append(records, chunk...)
		return nil
	})
	if err != nil {
		return nil, report, err
	}
	return records, report, nil
}

// IngestFile opens path and runs it through the pipeline.
func (p *Pipeline) IngestFile(ctx context.Context, path string, sink Sink) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return p.Run(ctx, f, sink)
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
