package analysis

import (
	"strings"

	"github.com/10JERRY01/GreehouseGasEmissionRAG/core"
)

// Match is one distinct industry found by SearchNAICS.
type Match struct {
	NAICSCode  string
	NAICSTitle string
}

// SearchNAICS returns the industries whose code or title contains term,
// ignoring case. Each (code, title) pair appears once, in first-seen order.
// A blank term matches nothing.
func SearchNAICS(records []*core.CanonicalRecord, term string) []Match {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil
	}

	var matches []Match
	seen := make(map[Match]struct{})
	for _, r := range records {
		if !strings.Contains(strings.ToLower(r.NAICSCode), term) &&
			!strings.Contains(strings.ToLower(r.NAICSTitle), term) {
			continue
		}
		m := Match{NAICSCode: r.NAICSCode, NAICSTitle: r.NAICSTitle}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		matches = append(matches, m)
	}
	return matches
}

// ByCode returns the records whose NAICS code equals code, in input order.
func ByCode(records []*core.CanonicalRecord, code string) []*core.CanonicalRecord {
	code = strings.TrimSpace(code)
	var out []*core.CanonicalRecord
	for _, r := range records {
		if r.NAICSCode == code {
			out = append(out, r)
		}
	}
	return out
}
