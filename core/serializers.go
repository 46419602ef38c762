package core

import (
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the persisted model types. Field order is the wire
// order; append new fields at the end.
var (
	CanonicalRecordMUS  mus.Serializer[CanonicalRecord]  = canonicalRecordMUS{}
	DocumentMetadataMUS mus.Serializer[DocumentMetadata] = documentMetadataMUS{}
	DocumentMUS         mus.Serializer[Document]         = documentMUS{}
	IndexManifestMUS    mus.Serializer[IndexManifest]    = indexManifestMUS{}
	VectorMUS           mus.Serializer[[]float32]        = vectorMUS{ord.NewSliceSer[float32](raw.Float32)}
)

// float32Size is the encoded size of one raw.Float32 element.
const float32Size = 4

// decoder threads an offset and the first error through a sequence of
// field reads.
type decoder struct {
	bs  []byte
	n   int
	err error
}

func read[T any](d *decoder, ser mus.Serializer[T]) (v T) {
	if d.err != nil {
		return
	}
	v, n, err := ser.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return
}

type canonicalRecordMUS struct{}

func (canonicalRecordMUS) Marshal(r CanonicalRecord, bs []byte) (n int) {
	n = ord.String.Marshal(r.NAICSCode, bs)
	n += ord.String.Marshal(r.NAICSTitle, bs[n:])
	n += varint.Int.Marshal(r.SchemaYear, bs[n:])
	n += ord.String.Marshal(r.GHG, bs[n:])
	n += ord.String.Marshal(r.Unit, bs[n:])
	n += raw.Float64.Marshal(r.FactorWithoutMargin, bs[n:])
	n += raw.Float64.Marshal(r.Margin, bs[n:])
	n += raw.Float64.Marshal(r.FactorWithMargin, bs[n:])
	n += ord.Bool.Marshal(r.MarginMismatch, bs[n:])
	n += varint.Int.Marshal(r.Row, bs[n:])
	return
}

func (canonicalRecordMUS) Unmarshal(bs []byte) (r CanonicalRecord, n int, err error) {
	d := &decoder{bs: bs}
	r.NAICSCode = read[string](d, ord.String)
	r.NAICSTitle = read[string](d, ord.String)
	r.SchemaYear = read[int](d, varint.Int)
	r.GHG = read[string](d, ord.String)
	r.Unit = read[string](d, ord.String)
	r.FactorWithoutMargin = read[float64](d, raw.Float64)
	r.Margin = read[float64](d, raw.Float64)
	r.FactorWithMargin = read[float64](d, raw.Float64)
	r.MarginMismatch = read[bool](d, ord.Bool)
	r.Row = read[int](d, varint.Int)
	return r, d.n, d.err
}

func (canonicalRecordMUS) Size(r CanonicalRecord) (size int) {
	size = ord.String.Size(r.NAICSCode)
	size += ord.String.Size(r.NAICSTitle)
	size += varint.Int.Size(r.SchemaYear)
	size += ord.String.Size(r.GHG)
	size += ord.String.Size(r.Unit)
	size += raw.Float64.Size(r.FactorWithoutMargin)
	size += raw.Float64.Size(r.Margin)
	size += raw.Float64.Size(r.FactorWithMargin)
	size += ord.Bool.Size(r.MarginMismatch)
	size += varint.Int.Size(r.Row)
	return
}

func (s canonicalRecordMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

type documentMetadataMUS struct{}

func (documentMetadataMUS) Marshal(m DocumentMetadata, bs []byte) (n int) {
	n = ord.String.Marshal(m.NAICSCode, bs)
	n += ord.String.Marshal(m.NAICSTitle, bs[n:])
	n += varint.Int.Marshal(m.SchemaYear, bs[n:])
	n += ord.String.Marshal(m.GHG, bs[n:])
	n += ord.String.Marshal(m.Unit, bs[n:])
	n += raw.Float64.Marshal(m.FactorWithoutMargin, bs[n:])
	n += raw.Float64.Marshal(m.Margin, bs[n:])
	n += raw.Float64.Marshal(m.FactorWithMargin, bs[n:])
	n += ord.Bool.Marshal(m.MarginMismatch, bs[n:])
	return
}

func (documentMetadataMUS) Unmarshal(bs []byte) (m DocumentMetadata, n int, err error) {
	d := &decoder{bs: bs}
	m.NAICSCode = read[string](d, ord.String)
	m.NAICSTitle = read[string](d, ord.String)
	m.SchemaYear = read[int](d, varint.Int)
	m.GHG = read[string](d, ord.String)
	m.Unit = read[string](d, ord.String)
	m.FactorWithoutMargin = read[float64](d, raw.Float64)
	m.Margin = read[float64](d, raw.Float64)
	m.FactorWithMargin = read[float64](d, raw.Float64)
	m.MarginMismatch = read[bool](d, ord.Bool)
	return m, d.n, d.err
}

func (documentMetadataMUS) Size(m DocumentMetadata) (size int) {
	size = ord.String.Size(m.NAICSCode)
	size += ord.String.Size(m.NAICSTitle)
	size += varint.Int.Size(m.SchemaYear)
	size += ord.String.Size(m.GHG)
	size += ord.String.Size(m.Unit)
	size += raw.Float64.Size(m.FactorWithoutMargin)
	size += raw.Float64.Size(m.Margin)
	size += raw.Float64.Size(m.FactorWithMargin)
	size += ord.Bool.Size(m.MarginMismatch)
	return
}

func (s documentMetadataMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

type documentMUS struct{}

func (documentMUS) Marshal(doc Document, bs []byte) (n int) {
	n = ord.String.Marshal(doc.ID, bs)
	n += ord.String.Marshal(doc.Text, bs[n:])
	n += DocumentMetadataMUS.Marshal(doc.Metadata, bs[n:])
	return
}

func (documentMUS) Unmarshal(bs []byte) (doc Document, n int, err error) {
	d := &decoder{bs: bs}
	doc.ID = read[string](d, ord.String)
	doc.Text = read[string](d, ord.String)
	doc.Metadata = read(d, DocumentMetadataMUS)
	return doc, d.n, d.err
}

func (documentMUS) Size(doc Document) (size int) {
	return ord.String.Size(doc.ID) + ord.String.Size(doc.Text) + DocumentMetadataMUS.Size(doc.Metadata)
}

func (s documentMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

// BuiltAt is stored with microsecond precision in UTC so the zero time
// survives a round trip.
type indexManifestMUS struct{}

func (indexManifestMUS) Marshal(m IndexManifest, bs []byte) (n int) {
	n = ord.String.Marshal(m.ModelVersion, bs)
	n += varint.Int.Marshal(m.Dimension, bs[n:])
	n += varint.Int.Marshal(m.Documents, bs[n:])
	n += raw.TimeUnixMicroUTC.Marshal(m.BuiltAt, bs[n:])
	return
}

func (indexManifestMUS) Unmarshal(bs []byte) (m IndexManifest, n int, err error) {
	d := &decoder{bs: bs}
	m.ModelVersion = read[string](d, ord.String)
	m.Dimension = read[int](d, varint.Int)
	m.Documents = read[int](d, varint.Int)
	m.BuiltAt = read[time.Time](d, raw.TimeUnixMicroUTC)
	return m, d.n, d.err
}

func (indexManifestMUS) Size(m IndexManifest) (size int) {
	size = ord.String.Size(m.ModelVersion)
	size += varint.Int.Size(m.Dimension)
	size += varint.Int.Size(m.Documents)
	size += raw.TimeUnixMicroUTC.Size(m.BuiltAt)
	return
}

func (s indexManifestMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

// vectorMUS checks the element count against the remaining input before
// allocating, so a corrupt length cannot force a huge allocation.
type vectorMUS struct {
	mus.Serializer[[]float32]
}

func (s vectorMUS) Unmarshal(bs []byte) (v []float32, n int, err error) {
	length, n, err := varint.PositiveInt.Unmarshal(bs)
	if err != nil {
		return
	}
	if length < 0 || length > (len(bs)-n)/float32Size {
		return nil, n, mus.ErrTooSmallByteSlice
	}
	return s.Serializer.Unmarshal(bs)
}

func (s vectorMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}
