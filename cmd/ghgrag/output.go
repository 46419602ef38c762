package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	ghgrag "github.com/10JERRY01/GreehouseGasEmissionRAG"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/analysis"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/core"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/ingestion"
	"github.com/fatih/color"
)

var (
	headerf  = color.New(color.FgCyan, color.Bold).FprintfFunc()
	successf = color.New(color.FgGreen).FprintfFunc()
	warnf    = color.New(color.FgYellow).FprintfFunc()
	errorf   = color.New(color.FgRed).FprintfFunc()
	dim      = color.New(color.Faint).SprintFunc()
)

func printReport(w io.Writer, r *ingestion.Report, maxRejections int) {
	headerf(w, "Ingestion report\n")
	if r.SchemaYear != 0 {
		fmt.Fprintf(w, "  NAICS schema year: %d\n", r.SchemaYear)
	}
	fmt.Fprintf(w, "  rows: %d  accepted: %d  rejected: %d  duplicates: %d\n",
		r.TotalRows, r.Accepted, r.Rejected, r.Duplicates)
	if r.MarginMismatches > 0 {
		warnf(w, "  %d records have factors that disagree with their margins\n", r.MarginMismatches)
	}
	for i, rej := range r.Rejections {
		if i >= maxRejections {
			fmt.Fprintln(w, dim(fmt.Sprintf("  ... %d more rejected rows", r.Rejected-maxRejections)))
			break
		}
		errorf(w, "  %v\n", rej)
	}
}

func printAnswer(w io.Writer, a *core.Answer, showContext bool) {
	if a.GenerationUnavailable {
		warnf(w, "%s %v\n", a.Text, a.GenerationError)
		fmt.Fprintln(w, "Retrieved records:")
	} else {
		fmt.Fprintln(w, a.Text)
		fmt.Fprintln(w)
	}

	if a.Fallback {
		warnf(w, "No semantically similar records; showing keyword matches.\n")
	}
	if len(a.Results) == 0 && len(a.Dropped) == 0 {
		warnf(w, "No supporting records.\n")
		return
	}
	if len(a.Results) > 0 {
		headerf(w, "Sources\n")
		printResults(w, a.Results)
	}
	if len(a.Dropped) > 0 {
		warnf(w, "Left out of the context budget:\n")
		printResults(w, a.Dropped)
	}

	if showContext {
		headerf(w, "\nContext\n")
		fmt.Fprintln(w, dim(a.Context))
	}
}

func printResults(w io.Writer, results []*core.SearchResult) {
	for i, r := range results {
		m := r.Document.Metadata
		fmt.Fprintf(w, "  %d. %s %s  %s  %s %s",
			i+1, m.NAICSCode, m.NAICSTitle, m.GHG, core.FormatFactor(m.FactorWithMargin), m.Unit)
		if r.Score != 0 {
			fmt.Fprint(w, dim(fmt.Sprintf("  (score %.3f)", r.Score)))
		}
		fmt.Fprintln(w)
	}
}

func printSummary(w io.Writer, s *analysis.Summary) {
	headerf(w, "Emission factor summary\n")
	fmt.Fprintf(w, "  records: %d\n", s.TotalRecords)
	fmt.Fprintf(w, "  unique NAICS codes: %d\n", s.UniqueNAICS)
	if len(s.SchemaYears) > 0 {
		years := make([]string, len(s.SchemaYears))
		for i, y := range s.SchemaYears {
			years[i] = fmt.Sprint(y)
		}
		fmt.Fprintf(w, "  schema years: %s\n", strings.Join(years, ", "))
	}
	if len(s.GHGTypes) > 0 {
		fmt.Fprintf(w, "  GHG types: %s\n", strings.Join(s.GHGTypes, ", "))
	}
	if s.MarginMismatches > 0 {
		warnf(w, "  margin mismatches: %d\n", s.MarginMismatches)
	}
	if s.TotalRecords == 0 {
		return
	}

	fmt.Fprintf(w, "\n  %-24s %8s %10s %10s %10s %10s\n", "column", "count", "min", "max", "mean", "std")
	for _, f := range s.Factors {
		fmt.Fprintf(w, "  %-24s %8d %10.3f %10.3f %10s %10.3f\n",
			f.Field, f.Count, f.Min, f.Max, f.Mean.StringFixed(3), f.StdDev)
	}
}

func printTrends(w io.Writer, code string, records []*core.CanonicalRecord, summary []analysis.YearTrend) {
	headerf(w, "NAICS %s %s\n", code, records[0].NAICSTitle)
	for _, r := range records {
		year := "n/a"
		if r.SchemaYear != 0 {
			year = fmt.Sprint(r.SchemaYear)
		}
		fmt.Fprintf(w, "  %s  %-10s %s (margin %s, without %s) %s\n", year, r.GHG,
			core.FormatFactor(r.FactorWithMargin), core.FormatFactor(r.Margin),
			core.FormatFactor(r.FactorWithoutMargin), r.Unit)
	}
	if len(summary) > 1 {
		headerf(w, "Mean factor with margins by year\n")
		for _, t := range summary {
			fmt.Fprintf(w, "  %d  %s  (%d records)\n", t.Year, t.MeanFactorWithMargin.StringFixed(3), t.Records)
		}
	}
}

func printStatus(w io.Writer, s *ghgrag.Status) {
	headerf(w, "Status\n")
	fmt.Fprintf(w, "  records: %d  documents: %d  snapshot store: %s\n", s.Records, s.Documents, s.Storage)
	fmt.Fprintf(w, "  embedding model: %s\n", s.ModelVersion)
	switch {
	case s.Ready:
		successf(w, "  index ready: %d documents, %d dimensions, built %s\n",
			s.Manifest.Documents, s.Manifest.Dimension, s.Manifest.BuiltAt.Local().Format(time.RFC822))
	case s.Stale != nil:
		warnf(w, "  index built with %s; run \"ghgrag reembed\"\n", s.Stale.ModelVersion)
	default:
		warnf(w, "  index not built; run \"ghgrag ingest <file.csv>\"\n")
	}
}
