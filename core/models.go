package core

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// fieldSeparator joins canonical fields before hashing. It cannot appear in
// decoded CSV cells that passed validation.
const fieldSeparator = "\x1f"

// Logical field names. They are the vocabulary used by duplicate_key_fields
// and by schema mapping.
const (
	FieldNAICSCode           = "naics_code"
	FieldNAICSTitle          = "naics_title"
	FieldSchemaYear          = "naics_schema_year"
	FieldGHG                 = "ghg_type"
	FieldUnit                = "unit"
	FieldFactorWithoutMargin = "factor_without_margin"
	FieldMargin              = "margin"
	FieldFactorWithMargin    = "factor_with_margin"
)

// DefaultDuplicateKeyFields identifies a record by industry, gas and unit.
var DefaultDuplicateKeyFields = []string{FieldNAICSCode, FieldGHG, FieldUnit}

// KeyFields lists every field that may participate in a duplicate key.
var KeyFields = []string{
	FieldNAICSCode,
	FieldNAICSTitle,
	FieldSchemaYear,
	FieldGHG,
	FieldUnit,
	FieldFactorWithoutMargin,
	FieldMargin,
	FieldFactorWithMargin,
}

// CanonicalRecord is one normalized emission factor row.
// Records are immutable once the ingestion pipeline emits them.
type CanonicalRecord struct {
	NAICSCode           string
	NAICSTitle          string
	SchemaYear          int // 0 when the header carried no year
	GHG                 string
	Unit                string
	FactorWithoutMargin float64
	Margin              float64
	FactorWithMargin    float64

	// MarginMismatch is set when FactorWithMargin disagrees with
	// FactorWithoutMargin+Margin beyond rounding. Values are kept as supplied.
	MarginMismatch bool

	// Row is the 1-based line of the source file the record came from.
	Row int
}

// FieldValue returns the string form of a logical field, used for keys and ids.
// Unknown fields return "" and false.
func (r *CanonicalRecord) FieldValue(field string) (string, bool) {
	switch field {
	case FieldNAICSCode:
		return r.NAICSCode, true
	case FieldNAICSTitle:
		return r.NAICSTitle, true
	case FieldSchemaYear:
		if r.SchemaYear == 0 {
			return "", true
		}
		return strconv.Itoa(r.SchemaYear), true
	case FieldGHG:
		return r.GHG, true
	case FieldUnit:
		return r.Unit, true
	case FieldFactorWithoutMargin:
		return FormatFactor(r.FactorWithoutMargin), true
	case FieldMargin:
		return FormatFactor(r.Margin), true
	case FieldFactorWithMargin:
		return FormatFactor(r.FactorWithMargin), true
	}
	return "", false
}

// IsKeyField reports whether name is a recognised logical field.
func IsKeyField(name string) bool {
	for _, f := range KeyFields {
		if f == name {
			return true
		}
	}
	return false
}

// FormatFactor renders a factor with the shortest exact representation.
func FormatFactor(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FoldKey trims, collapses internal whitespace and lower-cases s.
func FoldKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// DuplicateKey builds the folded identity tuple of a record from the given fields.
func DuplicateKey(r *CanonicalRecord, fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		v, _ := r.FieldValue(f)
		parts[i] = FoldKey(v)
	}
	return strings.Join(parts, fieldSeparator)
}

// DocumentID derives a stable identifier from all canonical fields of a record.
// Identical records always hash to the same id.
func DocumentID(r *CanonicalRecord) string {
	parts := make([]string, len(KeyFields))
	for i, f := range KeyFields {
		parts[i], _ = r.FieldValue(f)
	}
	h, _ := blake2b.New(16, nil) // 128 bits
	h.Write([]byte(strings.Join(parts, fieldSeparator)))
	return hex.EncodeToString(h.Sum(nil))
}

// DocumentMetadata carries enough of the originating record to answer a
// question without fetching the record again.
type DocumentMetadata struct {
	NAICSCode           string  `json:"naics_code"`
	NAICSTitle          string  `json:"naics_title"`
	SchemaYear          int     `json:"naics_schema_year,omitempty"`
	GHG                 string  `json:"ghg_type"`
	Unit                string  `json:"unit"`
	FactorWithoutMargin float64 `json:"factor_without_margin"`
	Margin              float64 `json:"margin"`
	FactorWithMargin    float64 `json:"factor_with_margin"`
	MarginMismatch      bool    `json:"margin_mismatch,omitempty"`
}

// Document is the retrievable text form of exactly one CanonicalRecord.
type Document struct {
	ID       string           `json:"id"`
	Text     string           `json:"text"`
	Metadata DocumentMetadata `json:"metadata"`
}

// SearchResult is a document paired with its cosine similarity to a query.
type SearchResult struct {
	Document *Document
	Score    float32
}

// IndexManifest describes a built vector index.
type IndexManifest struct {
	ModelVersion string    `json:"model_version"`
	Dimension    int       `json:"dimension"`
	Documents    int       `json:"documents"`
	BuiltAt      time.Time `json:"built_at"`
}

// IndexEntry pairs an embedding with the document it was computed from.
type IndexEntry struct {
	DocumentID string
	Vector     []float32
}

// GenerationUnavailableMarker replaces the answer text when the generation
// service could not produce one.
const GenerationUnavailableMarker = "[generation unavailable]"

// Answer is the result of a retrieval-augmented question.
type Answer struct {
	Question string
	Text     string
	Context  string
	Results  []*SearchResult

	// Dropped holds retrieved documents left out of Context because the
	// context budget was spent. Every score in Dropped is at most the lowest
	// score in Results.
	Dropped []*SearchResult

	// GenerationUnavailable is true when Results were retrieved but the
	// generation call failed or timed out. GenerationError holds the cause.
	GenerationUnavailable bool
	GenerationError       error

	// Fallback is true when Results came from lexical NAICS search instead of
	// the vector index.
	Fallback bool
}

// Retrieved returns every retrieved result in score order: Results followed
// by Dropped.
func (a *Answer) Retrieved() []*SearchResult {
	out := make([]*SearchResult, 0, len(a.Results)+len(a.Dropped))
	out = append(out, a.Results...)
	return append(out, a.Dropped...)
}

// Documents returns the supporting documents in result order.
func (a *Answer) Documents() []*Document {
	docs := make([]*Document, len(a.Results))
	for i, r := range a.Results {
		docs[i] = r.Document
	}
	return docs
}
