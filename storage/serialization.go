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

package storage

import (
	"errors"
	"fmt"

	"github.com/10JERRY01/GreehouseGasEmissionRAG/core"
	"github.com/mus-format/mus-go"
)

// MarshalRecord serializes a CanonicalRecord to bytes.
func MarshalRecord(record *core.CanonicalRecord) ([]byte, error) {
	if record == nil {
		return nil, fmt.Errorf("%w: nil record", ErrSerializationFailed)
	}
	return marshal(core.CanonicalRecordMUS, *record), nil
}

// UnmarshalRecord deserializes a CanonicalRecord from bytes.
func UnmarshalRecord(data []byte) (*core.CanonicalRecord, error) {
	record, err := unmarshal(core.CanonicalRecordMUS, data)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", ErrSerializationFailed)
	}
	return marshal(core.DocumentMUS, *doc), nil
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	doc, err := unmarshal(core.DocumentMUS, data)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// MarshalManifest serializes an IndexManifest to bytes.
func MarshalManifest(manifest *core.IndexManifest) ([]byte, error) {
	if manifest == nil {
		return nil, fmt.Errorf("%w: nil manifest", ErrSerializationFailed)
	}
	return marshal(core.IndexManifestMUS, *manifest), nil
}

// UnmarshalManifest deserializes an IndexManifest from bytes.
func UnmarshalManifest(data []byte) (*core.IndexManifest, error) {
	manifest, err := unmarshal(core.IndexManifestMUS, data)
	if err != nil {
		return nil, err
	}
	return &manifest, nil
}

// MarshalVector encodes a vector as a length followed by raw float32 values.
func MarshalVector(vector []float32) []byte {
	return marshal(core.VectorMUS, vector)
}

// UnmarshalVector decodes a vector written by MarshalVector.
func UnmarshalVector(data []byte) ([]float32, error) {
	return unmarshal(core.VectorMUS, data)
}

// MarshalEntry encodes one snapshot entry: the document followed by its vector.
func MarshalEntry(doc *core.Document, vector []float32) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", ErrSerializationFailed)
	}
	buf := make([]byte, core.DocumentMUS.Size(*doc)+core.VectorMUS.Size(vector))
	n := core.DocumentMUS.Marshal(*doc, buf)
	core.VectorMUS.Marshal(vector, buf[n:])
	return buf, nil
}

// UnmarshalEntry decodes a snapshot entry written by MarshalEntry.
func UnmarshalEntry(data []byte) (*core.Document, []float32, error) {
	doc, n, err := core.DocumentMUS.Unmarshal(data)
	if err != nil {
		return nil, nil, decodeError(err)
	}
	vector, err := unmarshal(core.VectorMUS, data[n:])
	if err != nil {
		return nil, nil, err
	}
	return &doc, vector, nil
}

func marshal[T any](ser mus.Serializer[T], v T) []byte {
	buf := make([]byte, ser.Size(v))
	ser.Marshal(v, buf)
	return buf
}

// unmarshal decodes exactly one value; leftover bytes are an error.
func unmarshal[T any](ser mus.Serializer[T], data []byte) (T, error) {
	v, n, err := ser.Unmarshal(data)
	if err != nil {
		var zero T
		return zero, decodeError(err)
	}
	if n != len(data) {
		var zero T
		return zero, fmt.Errorf("%w: %d trailing bytes", ErrSerializationFailed, len(data)-n)
	}
	return v, nil
}

func decodeError(err error) error {
	if errors.Is(err, mus.ErrTooSmallByteSlice) {
		return fmt.Errorf("%w: %w", ErrTruncatedData, err)
	}
	return fmt.Errorf("%w: %w", ErrSerializationFailed, err)
}
