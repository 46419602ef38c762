// Package document renders canonical emission records as retrievable text.
package document

import (
	"strconv"
	"strings"

	"github.com/10JERRY01/GreehouseGasEmissionRAG/core"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/schema"
)

// Build maps one record to one document. The text opens with a one line
// summary naming code, title, gas and factors, followed by the labelled
// column values, so questions phrased around any of them match.
func Build(r *core.CanonicalRecord) *core.Document {
	return &core.Document{
		ID:   core.DocumentID(r),
		Text: Text(r),
		Metadata: core.DocumentMetadata{
			NAICSCode:           r.NAICSCode,
			NAICSTitle:          r.NAICSTitle,
			SchemaYear:          r.SchemaYear,
			GHG:                 r.GHG,
			Unit:                r.Unit,
			FactorWithoutMargin: r.FactorWithoutMargin,
			Margin:              r.Margin,
			FactorWithMargin:    r.FactorWithMargin,
			MarginMismatch:      r.MarginMismatch,
		},
	}
}

// BuildAll builds documents for records, preserving order.
func BuildAll(records []*core.CanonicalRecord) []*core.Document {
	docs := make([]*core.Document, len(records))
	for i, r := range records {
		docs[i] = Build(r)
	}
	return docs
}

// Text returns the deterministic document text of a record.
func Text(r *core.CanonicalRecord) string {
	var b strings.Builder

	b.WriteString("NAICS ")
	b.WriteString(r.NAICSCode)
	b.WriteString(" — ")
	b.WriteString(r.NAICSTitle)
	if r.SchemaYear != 0 {
		b.WriteString(" (")
		b.WriteString(strconv.Itoa(r.SchemaYear))
		b.WriteString(" NAICS)")
	}
	b.WriteString("; GHG: ")
	b.WriteString(r.GHG)
	b.WriteString("; unit: ")
	b.WriteString(r.Unit)
	b.WriteString("; factor without margin: ")
	b.WriteString(core.FormatFactor(r.FactorWithoutMargin))
	b.WriteString("; margin: ")
	b.WriteString(core.FormatFactor(r.Margin))
	b.WriteString("; factor with margin: ")
	b.WriteString(core.FormatFactor(r.FactorWithMargin))
	b.WriteByte('\n')

	line := func(label, value string) {
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteByte('\n')
	}
	line("NAICS Code", r.NAICSCode)
	line("Title", r.NAICSTitle)
	line("GHG", r.GHG)
	line("Unit", r.Unit)
	line(schema.LabelFactorWithoutMargin, core.FormatFactor(r.FactorWithoutMargin))
	line(schema.LabelMargin, core.FormatFactor(r.Margin))
	line(schema.LabelFactorWithMargin, core.FormatFactor(r.FactorWithMargin))

	return strings.TrimSuffix(b.String(), "\n")
}
