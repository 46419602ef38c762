package core

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidateRecord(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *CanonicalRecord)
		wantErr error
	}{
		{name: "valid record", mutate: func(r *CanonicalRecord) {}},
		{name: "unset year is valid", mutate: func(r *CanonicalRecord) { r.SchemaYear = 0 }},
		{name: "blank code", mutate: func(r *CanonicalRecord) { r.NAICSCode = "  " }, wantErr: ErrInvalidRecord},
		{name: "blank title", mutate: func(r *CanonicalRecord) { r.NAICSTitle = "" }, wantErr: ErrInvalidRecord},
		{name: "blank gas", mutate: func(r *CanonicalRecord) { r.GHG = "" }, wantErr: ErrInvalidRecord},
		{name: "blank unit", mutate: func(r *CanonicalRecord) { r.Unit = "" }, wantErr: ErrInvalidRecord},
		{name: "NaN factor", mutate: func(r *CanonicalRecord) { r.Margin = math.NaN() }, wantErr: ErrInvalidRecord},
		{name: "infinite factor", mutate: func(r *CanonicalRecord) { r.FactorWithMargin = math.Inf(1) }, wantErr: ErrInvalidRecord},
		{name: "short year", mutate: func(r *CanonicalRecord) { r.SchemaYear = 17 }, wantErr: ErrInvalidRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := soybean()
			tt.mutate(r)
			err := ValidateRecord(r)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}

	if !errors.Is(ValidateRecord(nil), ErrInvalidRecord) {
		t.Error("nil record should be invalid")
	}
}

func TestMarginMismatch(t *testing.T) {
	d := decimal.RequireFromString
	tests := []struct {
		without, margin, with string
		want                  bool
	}{
		{"0.389", "0.031", "0.420", false},
		{"0.389", "0.031", "0.421", false}, // rounding
		{"0.389", "0.031", "0.425", true},
		{"1.5", "0", "1.5", false},
		{"0", "0", "0.1", true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s+%s=%s", tt.without, tt.margin, tt.with), func(t *testing.T) {
			if got := MarginMismatch(d(tt.without), d(tt.margin), d(tt.with)); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTypedErrorsMatchSentinels(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
	}{
		{&SchemaError{Missing: []string{"GHG"}}, ErrSchema},
		{&EncodingError{Line: 3, Err: errors.New("bad utf-8")}, ErrEncoding},
		{&ValidationError{Row: 4, Field: "margin", Reason: "not a number"}, ErrValidation},
		{fmt.Errorf("wrapped: %w", &SchemaError{}), ErrSchema},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, tt.sentinel) {
			t.Errorf("%v should match %v", tt.err, tt.sentinel)
		}
	}
	if errors.Is(&ValidationError{}, ErrSchema) {
		t.Error("validation error must not match schema error")
	}
}
