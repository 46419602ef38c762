package ingestion

import (
	"fmt"
	"strings"

	"github.com/10JERRY01/GreehouseGasEmissionRAG/core"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/schema"
	"github.com/shopspring/decimal"
)

// conversion is the outcome of converting one RawRow.
type conversion struct {
	record *core.CanonicalRecord
	err    *core.ValidationError
}

// rowConverter turns raw rows into canonical records using a resolved header.
type rowConverter struct {
	mapping *schema.Mapping
}

func (c *rowConverter) convert(row RawRow) conversion {
	reject := func(field, reason string) conversion {
		return conversion{err: &core.ValidationError{Row: row.Line, Field: field, Reason: reason}}
	}

	text := make(map[string]string, len(schema.Fields()))
	for _, field := range schema.Fields() {
		idx, _ := c.mapping.Column(field)
		if idx >= len(row.Cells) {
			return reject(schema.Label(field), "missing value")
		}
		v := strings.TrimSpace(row.Cells[idx])
		if v == "" {
			return reject(schema.Label(field), "missing value")
		}
		text[field] = v
	}

	factors := make(map[string]decimal.Decimal, 3)
	for _, field := range []string{core.FieldFactorWithoutMargin, core.FieldMargin, core.FieldFactorWithMargin} {
		d, err := decimal.NewFromString(text[field])
		if err != nil {
			return reject(schema.Label(field), fmt.Sprintf("%q is not a number", text[field]))
		}
		factors[field] = d
	}

	without := factors[core.FieldFactorWithoutMargin]
	margin := factors[core.FieldMargin]
	with := factors[core.FieldFactorWithMargin]

	record := &core.CanonicalRecord{
		NAICSCode:           normalizeCode(text[core.FieldNAICSCode]),
		NAICSTitle:          strings.Join(strings.Fields(text[core.FieldNAICSTitle]), " "),
		SchemaYear:          c.mapping.Year,
		GHG:                 text[core.FieldGHG],
		Unit:                strings.Join(strings.Fields(text[core.FieldUnit]), " "),
		FactorWithoutMargin: without.InexactFloat64(),
		Margin:              margin.InexactFloat64(),
		FactorWithMargin:    with.InexactFloat64(),
		MarginMismatch:      core.MarginMismatch(without, margin, with),
		Row:                 row.Line,
	}
	if err := core.ValidateRecord(record); err != nil {
		return reject("", err.Error())
	}
	return conversion{record: record}
}

// normalizeCode strips the ".0" suffix left behind when a spreadsheet stored
// numeric NAICS codes as floats.
func normalizeCode(code string) string {
	if head, ok := strings.CutSuffix(code, ".0"); ok && head != "" && isDigits(head) {
		return head
	}
	return code
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
