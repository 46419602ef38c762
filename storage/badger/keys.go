package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/10JERRY01/GreehouseGasEmissionRAG/storage"
)

// Key prefixes for different data types. Every prefix is followed by ':'
// so that no prefix matches another.
const (
	generationSeqKey      = "gen:seq"
	dataGenerationKey     = "gen:data"
	snapshotGenerationKey = "gen:snap"

	recordPrefix           = "rec"
	documentPrefix         = "doc"
	documentOrderPrefix    = "doco"
	snapshotManifestPrefix = "snapm"
	snapshotEntryPrefix    = "snape"
)

// makeGenerationPrefix returns prefix:gen: with gen in BigEndian order.
func makeGenerationPrefix(prefix string, gen uint64) []byte {
	buf := make([]byte, 0, len(prefix)+10)
	buf = append(buf, prefix...)
	buf = append(buf, ':')
	buf = binary.BigEndian.AppendUint64(buf, gen)
	return append(buf, ':')
}

// makePositionKey generates prefix:gen:pos. BigEndian keeps iteration in
// insertion order.
func makePositionKey(prefix string, gen uint64, pos uint64) []byte {
	return binary.BigEndian.AppendUint64(makeGenerationPrefix(prefix, gen), pos)
}

// makeDocumentKey generates doc:gen:id.
func makeDocumentKey(gen uint64, id string) []byte {
	return append(makeGenerationPrefix(documentPrefix, gen), id...)
}

// dataGenerationPrefixes lists every prefix owned by a data generation.
func dataGenerationPrefixes(gen uint64) [][]byte {
	return [][]byte{
		makeGenerationPrefix(recordPrefix, gen),
		makeGenerationPrefix(documentPrefix, gen),
		makeGenerationPrefix(documentOrderPrefix, gen),
	}
}

// snapshotGenerationPrefixes lists every prefix owned by a snapshot generation.
func snapshotGenerationPrefixes(gen uint64) [][]byte {
	return [][]byte{
		makeGenerationPrefix(snapshotManifestPrefix, gen),
		makeGenerationPrefix(snapshotEntryPrefix, gen),
	}
}

func encodeUint64(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

func decodeUint64(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("%w: expected 8 bytes, got %d", storage.ErrTruncatedData, len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}
