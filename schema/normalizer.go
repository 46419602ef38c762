package schema

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/10JERRY01/GreehouseGasEmissionRAG/core"
)

// Display labels for logical fields, used in error messages.
const (
	LabelNAICSCode           = "NAICS Code"
	LabelNAICSTitle          = "NAICS Title"
	LabelGHG                 = "GHG"
	LabelUnit                = "Unit"
	LabelFactorWithoutMargin = "Supply Chain Emission Factors without Margins"
	LabelMargin              = "Margins of Supply Chain Emission Factors"
	LabelFactorWithMargin    = "Supply Chain Emission Factors with Margins"
)

// rule maps one logical field to the physical names it accepts.
// match returns the embedded year (0 if none) and whether the name matched.
type rule struct {
	field string
	label string
	match func(name string) (int, bool)
}

func yearTagged(subject string) func(string) (int, bool) {
	re := regexp.MustCompile(`^(?:(\d{4})\s*)?naics\s*` + subject + `$`)
	return func(name string) (int, bool) {
		m := re.FindStringSubmatch(name)
		if m == nil {
			return 0, false
		}
		if m[1] == "" {
			return 0, true
		}
		year, _ := strconv.Atoi(m[1])
		return year, true
	}
}

func oneOf(names ...string) func(string) (int, bool) {
	return func(name string) (int, bool) {
		for _, n := range names {
			if name == n {
				return 0, true
			}
		}
		return 0, false
	}
}

var rules = []rule{
	{core.FieldNAICSCode, LabelNAICSCode, yearTagged("code")},
	{core.FieldNAICSTitle, LabelNAICSTitle, yearTagged("title")},
	{core.FieldGHG, LabelGHG, oneOf("ghg", "greenhouse gas")},
	{core.FieldUnit, LabelUnit, oneOf("unit", "units")},
	{core.FieldFactorWithoutMargin, LabelFactorWithoutMargin, oneOf(
		"supply chain emission factors without margins",
		"supply chain emission factor without margins",
		"supply chain emission factors without margin",
	)},
	{core.FieldMargin, LabelMargin, oneOf(
		"margins of supply chain emission factors",
		"margin of supply chain emission factors",
		"margins of supply chain emission factor",
	)},
	{core.FieldFactorWithMargin, LabelFactorWithMargin, oneOf(
		"supply chain emission factors with margins",
		"supply chain emission factor with margins",
		"supply chain emission factors with margin",
	)},
}

// Fields returns the logical fields every header must provide, in rule order.
func Fields() []string {
	fields := make([]string, len(rules))
	for i, r := range rules {
		fields[i] = r.field
	}
	return fields
}

// Label returns the display label of a logical field.
func Label(field string) string {
	for _, r := range rules {
		if r.field == field {
			return r.label
		}
	}
	return field
}

// normalizeName trims, case-folds and collapses internal whitespace.
func normalizeName(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Mapping is the resolved header: one column index per logical field.
type Mapping struct {
	// Year is the NAICS revision year embedded in the code/title column
	// names, or 0 when the header carries none.
	Year int

	// Width is the number of columns in the header.
	Width int

	columns map[string]int
	names   map[string]string
}

// Column returns the column index of a logical field.
func (m *Mapping) Column(field string) (int, bool) {
	i, ok := m.columns[field]
	return i, ok
}

// ColumnName returns the physical header name matched for a logical field.
func (m *Mapping) ColumnName(field string) string {
	return m.names[field]
}

// Columns returns logical field to physical name for every resolved field.
func (m *Mapping) Columns() map[string]string {
	out := make(map[string]string, len(m.names))
	for k, v := range m.names {
		out[k] = v
	}
	return out
}

// Normalize resolves a header row. It fails with *core.SchemaError naming each
// logical field that matched no column or more than one column, or when the
// NAICS code and title columns carry different years.
func Normalize(header []string) (*Mapping, error) {
	m := &Mapping{
		Width:   len(header),
		columns: make(map[string]int, len(rules)),
		names:   make(map[string]string, len(rules)),
	}
	years := make(map[string]int, 2)
	var missing, ambiguous []string

	for _, r := range rules {
		found := -1
		for i, raw := range header {
			year, ok := r.match(normalizeName(raw))
			if !ok {
				continue
			}
			if found >= 0 {
				found = -2
				break
			}
			found = i
			if year != 0 {
				years[r.field] = year
			}
		}
		switch found {
		case -1:
			missing = append(missing, r.label)
		case -2:
			ambiguous = append(ambiguous, r.label)
		default:
			m.columns[r.field] = found
			m.names[r.field] = strings.TrimSpace(strings.TrimPrefix(header[found], "\ufeff"))
		}
	}

	if len(missing) > 0 || len(ambiguous) > 0 {
		return nil, &core.SchemaError{Missing: missing, Ambiguous: ambiguous}
	}

	codeYear, titleYear := years[core.FieldNAICSCode], years[core.FieldNAICSTitle]
	if codeYear != 0 && titleYear != 0 && codeYear != titleYear {
		return nil, &core.SchemaError{
			Detail: "NAICS Code year " + strconv.Itoa(codeYear) + " does not match NAICS Title year " + strconv.Itoa(titleYear),
		}
	}
	m.Year = codeYear
	if m.Year == 0 {
		m.Year = titleYear
	}
	return m, nil
}
