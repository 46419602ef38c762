package ingestion

import (
	"encoding/csv"
	"errors"
	"io"
	"unicode/utf8"

	"github.com/10JERRY01/GreehouseGasEmissionRAG/core"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultChunkSize is the number of rows read per chunk.
const DefaultChunkSize = 5000

// RawRow is one undecoded data row and the line it started on.
type RawRow struct {
	Line  int
	Cells []string
}

// ChunkReader yields the data rows of a delimited file in chunks of at most
// chunkSize rows. A UTF-8 or UTF-16 byte order mark selects the decoding;
// without one the input must be UTF-8.
//
// A ChunkReader is single use. Restart by opening the input again.
type ChunkReader struct {
	csv       *csv.Reader
	header    []string
	chunkSize int
}

// NewChunkReader reads the header row and prepares chunked iteration.
func NewChunkReader(r io.Reader, chunkSize int, delimiter rune) (*ChunkReader, error) {
	if chunkSize <= 0 {
		return nil, ErrInvalidChunkSize
	}
	if delimiter == 0 {
		delimiter = ','
	}

	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(transform.Nop)))
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1 // short rows are reported per row, not per file
	cr.LazyQuotes = true    // a stray quote in a cell is data, e.g. 12" pipe

	reader := &ChunkReader{csv: cr, chunkSize: chunkSize}

	header, err := reader.read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &core.EncodingError{Err: ErrEmptyInput}
		}
		return nil, err
	}
	reader.header = header.Cells
	return reader, nil
}

// Header returns the header row.
func (r *ChunkReader) Header() []string {
	return r.header
}

// Next returns the next chunk of rows, or io.EOF once the input is exhausted.
// A decoding failure is returned as *core.EncodingError.
func (r *ChunkReader) Next() ([]RawRow, error) {
	rows := make([]RawRow, 0, r.chunkSize)
	for len(rows) < r.chunkSize {
		row, err := r.read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, io.EOF
	}
	return rows, nil
}

func (r *ChunkReader) read() (RawRow, error) {
	cells, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return RawRow{}, io.EOF
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return RawRow{}, &core.EncodingError{Line: parseErr.StartLine, Err: parseErr.Err}
		}
		return RawRow{}, &core.EncodingError{Err: err}
	}

	line, _ := r.csv.FieldPos(0)
	for _, c := range cells {
		if !utf8.ValidString(c) {
			return RawRow{}, &core.EncodingError{Line: line, Err: ErrInvalidUTF8}
		}
	}
	return RawRow{Line: line, Cells: cells}, nil
}
