package core

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// MarginTolerance is the largest accepted difference between the supplied
// factor with margins and the sum of its parts. Source tables publish three
// decimals, so each part may carry half a unit of rounding.
var MarginTolerance = decimal.New(1, -3)

// ValidateRecord validates a CanonicalRecord according to domain rules.
//
// Validation rules:
//   - NAICSCode, NAICSTitle, GHG and Unit must not be blank
//   - factor values must be finite
//   - SchemaYear is either unset (0) or a four digit year
//
// MarginMismatch is not an error; it is a flag.
func ValidateRecord(record *CanonicalRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}

	required := []struct {
		name, value string
	}{
		{FieldNAICSCode, record.NAICSCode},
		{FieldNAICSTitle, record.NAICSTitle},
		{FieldGHG, record.GHG},
		{FieldUnit, record.Unit},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s is empty", ErrInvalidRecord, f.name)
		}
	}

	for name, v := range map[string]float64{
		FieldFactorWithoutMargin: record.FactorWithoutMargin,
		FieldMargin:              record.Margin,
		FieldFactorWithMargin:    record.FactorWithMargin,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidRecord, name)
		}
	}

	if record.SchemaYear != 0 && (record.SchemaYear < 1000 || record.SchemaYear > 9999) {
		return fmt.Errorf("%w: schema year %d", ErrInvalidRecord, record.SchemaYear)
	}

	return nil
}

// MarginMismatch reports whether withMargin differs from withoutMargin+margin
// by more than MarginTolerance.
func MarginMismatch(withoutMargin, margin, withMargin decimal.Decimal) bool {
	diff := withMargin.Sub(withoutMargin.Add(margin)).Abs()
	return diff.GreaterThan(MarginTolerance)
}
