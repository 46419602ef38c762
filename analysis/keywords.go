package analysis

import (
	"slices"

	"github.com/10JERRY01/GreehouseGasEmissionRAG/core"
)

// Keywords ranks records by how many distinct question words appear in
// their NAICS code or title, and returns up to limit records that match at
// least one. Ties keep input order.
func Keywords(records []*core.CanonicalRecord, question string, limit int) []*core.CanonicalRecord {
	if limit <= 0 {
		return nil
	}
	queryWords := uniqueWords(tokenizeAndFilter(question))
	if len(queryWords) == 0 {
		return nil
	}

	type scored struct {
		record *core.CanonicalRecord
		hits   int
	}
	var hits []scored
	for _, r := range records {
		recordWords := make(map[string]bool)
		for _, w := range tokenizeAndFilter(r.NAICSCode + " " + r.NAICSTitle) {
			recordWords[w] = true
		}
		n := 0
		for _, w := range queryWords {
			if recordWords[w] {
				n++
			}
		}
		if n > 0 {
			hits = append(hits, scored{record: r, hits: n})
		}
	}

	slices.SortStableFunc(hits, func(a, b scored) int {
		return b.hits - a.hits
	})

	out := make([]*core.CanonicalRecord, 0, min(limit, len(hits)))
	for _, h := range hits[:min(limit, len(hits))] {
		out = append(out, h.record)
	}
	return out
}

func uniqueWords(words []string) []string {
	seen := make(map[string]bool, len(words))
	out := words[:0]
	for _, w := range words {
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}
