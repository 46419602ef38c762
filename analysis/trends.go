package analysis

import (
	"slices"

	"github.com/10JERRY01/GreehouseGasEmissionRAG/core"
	"github.com/shopspring/decimal"
)

// Trends returns every record of the given NAICS code ordered by schema year
// ascending. Records of the same year keep their input order, and records
// without a year sort first.
func Trends(records []*core.CanonicalRecord, code string) []*core.CanonicalRecord {
	out := ByCode(records, code)
	slices.SortStableFunc(out, func(a, b *core.CanonicalRecord) int {
		return a.SchemaYear - b.SchemaYear
	})
	return out
}

// YearTrend is the mean of a code's factors within one schema year.
type YearTrend struct {
	Year                    int
	Records                 int
	MeanFactorWithoutMargin decimal.Decimal
	MeanMargin              decimal.Decimal
	MeanFactorWithMargin    decimal.Decimal
}

// TrendSummary averages the factors of code per schema year, year ascending.
func TrendSummary(records []*core.CanonicalRecord, code string) []YearTrend {
	var out []YearTrend
	var without, margin, with decimal.Decimal

	flush := func() {
		last := &out[len(out)-1]
		n := decimal.NewFromInt(int64(last.Records))
		last.MeanFactorWithoutMargin = without.Div(n)
		last.MeanMargin = margin.Div(n)
		last.MeanFactorWithMargin = with.Div(n)
	}

	for _, r := range Trends(records, code) {
		if len(out) == 0 || out[len(out)-1].Year != r.SchemaYear {
			if len(out) > 0 {
				flush()
			}
			out = append(out, YearTrend{Year: r.SchemaYear})
			without, margin, with = decimal.Zero, decimal.Zero, decimal.Zero
		}
		out[len(out)-1].Records++
		without = without.Add(decimal.NewFromFloat(r.FactorWithoutMargin))
		margin = margin.Add(decimal.NewFromFloat(r.Margin))
		with = with.Add(decimal.NewFromFloat(r.FactorWithMargin))
	}
	if len(out) > 0 {
		flush()
	}
	return out
}
