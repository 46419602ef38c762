package search

import (
	"strings"
	"unicode/utf8"

	"github.com/10JERRY01/GreehouseGasEmissionRAG/core"
)

const contextSeparator = "\n\n"

// BuildContext joins whole document texts in result order until the next
// one would push the total past budget characters. A document that does not
// fit is dropped, and so is everything after it, since results are sorted by
// score. It returns the context and the results it used.
func BuildContext(results []*core.SearchResult, budget int) (string, []*core.SearchResult) {
	var b strings.Builder
	used := 0
	var included []*core.SearchResult

	for _, r := range results {
		text := strings.TrimSpace(r.Document.Text)
		cost := utf8.RuneCountInString(text)
		if len(included) > 0 {
			cost += utf8.RuneCountInString(contextSeparator)
		}
		if used+cost > budget {
			break
		}
		if len(included) > 0 {
			b.WriteString(contextSeparator)
		}
		b.WriteString(text)
		used += cost
		included = append(included, r)
	}
	return b.String(), included
}
