package ingestion

import (
	"errors"
	"fmt"
	"strings"

	"github.com/10JERRY01/GreehouseGasEmissionRAG/core"
)

// DefaultMaxRejections caps the number of rejection and duplicate details kept
// in a Report. Counts are always exact.
const DefaultMaxRejections = 1000

// DuplicateRow records a row dropped because an earlier row had the same key.
type DuplicateRow struct {
	Row      int
	FirstRow int
	Key      string
}

// Report summarizes one ingestion run.
type Report struct {
	TotalRows        int
	Accepted         int
	Rejected         int
	Duplicates       int
	MarginMismatches int
	Chunks           int

	// SchemaYear is the NAICS revision year found in the header, 0 if none.
	SchemaYear int

	// Columns maps logical fields to the physical header names matched.
	Columns map[string]string

	Rejections    []*core.ValidationError
	DuplicateRows []DuplicateRow

	maxDetails int
}

func newReport(maxDetails int) *Report {
	return &Report{maxDetails: maxDetails}
}

func (r *Report) reject(err *core.ValidationError) {
	r.TotalRows++
	r.Rejected++
	if len(r.Rejections) < r.maxDetails {
		r.Rejections = append(r.Rejections, err)
	}
}

func (r *Report) duplicate(row, firstRow int, key string) {
	r.TotalRows++
	r.Duplicates++
	if len(r.DuplicateRows) < r.maxDetails {
		r.DuplicateRows = append(r.DuplicateRows, DuplicateRow{
			Row:      row,
			FirstRow: firstRow,
			Key:      strings.ReplaceAll(key, "\x1f", " | "),
		})
	}
}

func (r *Report) accept(record *core.CanonicalRecord) {
	r.TotalRows++
	r.Accepted++
	if record.MarginMismatch {
		r.MarginMismatches++
	}
}

// Balanced reports whether every row seen was accepted, rejected or dropped
// as a duplicate.
func (r *Report) Balanced() bool {
	return r.Accepted+r.Rejected+r.Duplicates == r.TotalRows
}

// Err joins the recorded row rejections, or returns nil when there were none.
func (r *Report) Err() error {
	if len(r.Rejections) == 0 {
		return nil
	}
	errs := make([]error, len(r.Rejections))
	for i, e := range r.Rejections {
		errs[i] = e
	}
	return errors.Join(errs...)
}

func (r *Report) String() string {
	return fmt.Sprintf("rows=%d accepted=%d rejected=%d duplicates=%d margin_mismatches=%d",
		r.TotalRows, r.Accepted, r.Rejected, r.Duplicates, r.MarginMismatches)
}
