package analysis

import (
	"math"
	"slices"

	"github.com/10JERRY01/GreehouseGasEmissionRAG/core"
	"github.com/shopspring/decimal"
)

// FactorStats describes one numeric column across a record set.
type FactorStats struct {
	Field string
	Count int
	Min   float64
	Max   float64
	// Mean is accumulated in decimal so long columns do not drift.
	Mean decimal.Decimal
	// StdDev is the sample standard deviation, 0 for fewer than two values.
	StdDev float64
}

// Summary aggregates a record set.
type Summary struct {
	TotalRecords     int
	UniqueNAICS      int
	SchemaYears      []int
	GHGTypes         []string
	Factors          []FactorStats
	MarginMismatches int
}

// Factor returns the statistics of the named factor column.
func (s *Summary) Factor(field string) (FactorStats, bool) {
	for _, f := range s.Factors {
		if f.Field == field {
			return f, true
		}
	}
	return FactorStats{}, false
}

var factorFields = []struct {
	name  string
	value func(*core.CanonicalRecord) float64
}{
	{core.FieldFactorWithoutMargin, func(r *core.CanonicalRecord) float64 { return r.FactorWithoutMargin }},
	{core.FieldMargin, func(r *core.CanonicalRecord) float64 { return r.Margin }},
	{core.FieldFactorWithMargin, func(r *core.CanonicalRecord) float64 { return r.FactorWithMargin }},
}

// Summarize computes counts, distinct values and per-column factor
// statistics. An empty record set yields a zero summary with the factor
// columns present and Count 0.
func Summarize(records []*core.CanonicalRecord) *Summary {
	s := &Summary{TotalRecords: len(records)}

	codes := make(map[string]struct{})
	years := make(map[int]struct{})
	gases := make(map[string]struct{})
	for _, r := range records {
		codes[r.NAICSCode] = struct{}{}
		if r.SchemaYear != 0 {
			years[r.SchemaYear] = struct{}{}
		}
		gases[r.GHG] = struct{}{}
		if r.MarginMismatch {
			s.MarginMismatches++
		}
	}
	s.UniqueNAICS = len(codes)

	s.SchemaYears = make([]int, 0, len(years))
	for y := range years {
		s.SchemaYears = append(s.SchemaYears, y)
	}
	slices.Sort(s.SchemaYears)

	s.GHGTypes = make([]string, 0, len(gases))
	for g := range gases {
		s.GHGTypes = append(s.GHGTypes, g)
	}
	slices.Sort(s.GHGTypes)

	for _, f := range factorFields {
		values := make([]float64, len(records))
		for i, r := range records {
			values[i] = f.value(r)
		}
		stats := columnStats(values)
		stats.Field = f.name
		s.Factors = append(s.Factors, stats)
	}
	return s
}

func columnStats(values []float64) FactorStats {
	stats := FactorStats{Count: len(values), Mean: decimal.Zero}
	if len(values) == 0 {
		return stats
	}

	sum := decimal.Zero
	stats.Min, stats.Max = values[0], values[0]
	for _, v := range values {
		sum = sum.Add(decimal.NewFromFloat(v))
		stats.Min = math.Min(stats.Min, v)
		stats.Max = math.Max(stats.Max, v)
	}
	stats.Mean = sum.Div(decimal.NewFromInt(int64(len(values))))

	if len(values) > 1 {
		mean := stats.Mean.InexactFloat64()
		var sq float64
		for _, v := range values {
			sq += (v - mean) * (v - mean)
		}
		stats.StdDev = math.Sqrt(sq / float64(len(values)-1))
	}
	return stats
}
