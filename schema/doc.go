// Package schema maps the header row of an emission factor table onto the
// logical fields of a CanonicalRecord.
//
// NAICS code and title columns are tagged with the NAICS revision year in
// most published tables ("2017 NAICS Code", "2022 NAICS Title"). The year is
// recovered from whichever column matched and reported on the Mapping. The
// remaining columns are matched by name after trimming, case folding and
// collapsing internal whitespace.
//
// Matching is driven by a declarative rule table evaluated once per header.
// Normalize never guesses: a field is either resolved to exactly one column
// or reported by name in a *core.SchemaError.
package schema
