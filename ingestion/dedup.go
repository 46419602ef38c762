package ingestion

import "github.com/10JERRY01/GreehouseGasEmissionRAG/core"

// keySet remembers the first row of every duplicate key seen in a run.
type keySet struct {
	fields []string
	seen   map[string]int
}

func newKeySet(fields []string) *keySet {
	return &keySet{fields: fields, seen: make(map[string]int)}
}

// add records the key of r. If the key was already present it returns the
// first row that carried it and true.
func (s *keySet) add(r *core.CanonicalRecord) (string, int, bool) {
	key := core.DuplicateKey(r, s.fields)
	if first, ok := s.seen[key]; ok {
		return key, first, true
	}
	s.seen[key] = r.Row
	return key, 0, false
}

func (s *keySet) len() int {
	return len(s.seen)
}
