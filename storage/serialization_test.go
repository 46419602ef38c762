package storage

import (
	"testing"
	"time"

	"github.com/10JERRY01/GreehouseGasEmissionRAG/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDocument() *core.Document {
	return &core.Document{
		ID:   "0f3c",
		Text: "NAICS 111110 — Soybean Farming",
		Metadata: core.DocumentMetadata{
			NAICSCode:        "111110",
			NAICSTitle:       "Soybean Farming",
			SchemaYear:       2017,
			GHG:              "CO2",
			Unit:             "kg/unit",
			FactorWithMargin: 0.42,
		},
	}
}

func TestEntryRoundTrip(t *testing.T) {
	doc := testDocument()
	vector := []float32{0.6, -0.8, 0}

	data, err := MarshalEntry(doc, vector)
	require.NoError(t, err)

	gotDoc, gotVector, err := UnmarshalEntry(data)
	require.NoError(t, err)
	assert.Equal(t, doc, gotDoc)
	assert.Equal(t, vector, gotVector)
}

func TestUnmarshalEntry_Invalid(t *testing.T) {
	valid, err := MarshalEntry(testDocument(), []float32{1, 2})
	require.NoError(t, err)

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"empty", []byte{}, ErrTruncatedData},
		{"length past end", []byte{0x7f, '{'}, ErrTruncatedData},
		{"ragged vector", valid[:len(valid)-1], ErrTruncatedData},
		{"trailing bytes", append(append([]byte{}, valid...), 0), ErrSerializationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := UnmarshalEntry(tt.data)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVectorRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		vector []float32
	}{
		{"empty", []float32{}},
		{"unit", []float32{0.6, 0.8}},
		{"negative and zero", []float32{-1, 0, 0.25}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UnmarshalVector(MarshalVector(tt.vector))
			require.NoError(t, err)
			assert.Equal(t, tt.vector, got)
		})
	}
}

func TestUnmarshalVector_Truncated(t *testing.T) {
	_, err := UnmarshalVector([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrTruncatedData)

	_, err = UnmarshalVector(nil)
	assert.ErrorIs(t, err, ErrTruncatedData)

	// A length far beyond the input is rejected before allocating.
	_, err = UnmarshalVector([]byte{0xff, 0xff, 0xff, 0xff, 0x0f})
	assert.ErrorIs(t, err, ErrTruncatedData)
}

func TestRecordPreservesFlags(t *testing.T) {
	record := &core.CanonicalRecord{
		NAICSCode:           "111110",
		NAICSTitle:          "Soybean Farming",
		GHG:                 "CO2",
		Unit:                "kg/unit",
		FactorWithoutMargin: 0.389,
		Margin:              0.031,
		FactorWithMargin:    0.5,
		MarginMismatch:      true,
		Row:                 7,
	}
	data, err := MarshalRecord(record)
	require.NoError(t, err)

	got, err := UnmarshalRecord(data)
	require.NoError(t, err)
	assert.Equal(t, record, got)

	_, err = UnmarshalRecord(data[:len(data)-2])
	assert.ErrorIs(t, err, ErrTruncatedData)

	_, err = UnmarshalRecord(append(data, 1))
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestManifestTime(t *testing.T) {
	built := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	data, err := MarshalManifest(&core.IndexManifest{ModelVersion: "m1", Dimension: 3, Documents: 2, BuiltAt: built})
	require.NoError(t, err)

	got, err := UnmarshalManifest(data)
	require.NoError(t, err)
	assert.True(t, built.Equal(got.BuiltAt))
	assert.Equal(t, "m1", got.ModelVersion)
	assert.Equal(t, 3, got.Dimension)
	assert.Equal(t, 2, got.Documents)

	data, err = MarshalManifest(&core.IndexManifest{ModelVersion: "m2"})
	require.NoError(t, err)
	got, err = UnmarshalManifest(data)
	require.NoError(t, err)
	assert.True(t, got.BuiltAt.IsZero())
}

func TestSnapshotValidate(t *testing.T) {
	doc := testDocument()
	tests := []struct {
		name    string
		snap    Snapshot
		wantErr error
	}{
		{
			name: "consistent",
			snap: Snapshot{
				Manifest:  core.IndexManifest{Dimension: 2, Documents: 1},
				Documents: []*core.Document{doc},
				Vectors:   [][]float32{{1, 0}},
			},
		},
		{
			name: "count mismatch",
			snap: Snapshot{
				Manifest:  core.IndexManifest{Dimension: 2, Documents: 2},
				Documents: []*core.Document{doc},
				Vectors:   [][]float32{{1, 0}},
			},
			wantErr: ErrTruncatedData,
		},
		{
			name: "missing vector",
			snap: Snapshot{
				Manifest:  core.IndexManifest{Dimension: 2, Documents: 1},
				Documents: []*core.Document{doc},
			},
			wantErr: ErrTruncatedData,
		},
		{
			name: "wrong dimension",
			snap: Snapshot{
				Manifest:  core.IndexManifest{Dimension: 3, Documents: 1},
				Documents: []*core.Document{doc},
				Vectors:   [][]float32{{1, 0}},
			},
			wantErr: ErrDimensionMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.snap.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
