package main

import (
	"errors"
	"fmt"

	ghgrag "github.com/10JERRY01/GreehouseGasEmissionRAG"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/core"
	"github.com/urfave/cli/v2"
)

func ingestCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("exactly one CSV file is required")
	}
	path := c.Args().First()

	sys, err := openSystem(c, nil,
		ghgrag.WithAutoReembed(false, nil),
		ghgrag.WithBuildProgress(newBarReporter(c.App.ErrWriter, "Embedding documents")))
	if err != nil {
		return err
	}
	defer sys.Close()

	report, err := sys.IngestFile(c.Context, path)
	if report != nil {
		printReport(c.App.Writer, report, c.Int("show-rejections"))
	}
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", path, err)
	}

	status, err := sys.Status(c.Context)
	if err != nil {
		return err
	}
	successf(c.App.Writer, "✓ Indexed %d documents with %s\n", status.Manifest.Documents, status.Manifest.ModelVersion)
	return nil
}

func askCommand(c *cli.Context) error {
	question, err := argText(c, "question")
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if k := c.Int("top-k"); k != 0 {
		cfg.Query.TopK = k
	}

	sys, err := openSystem(c, cfg, ghgrag.WithAutoReembed(true, c.App.ErrWriter))
	if err != nil {
		return err
	}
	defer sys.Close()

	answer, err := sys.Answer(c.Context, question)
	if errors.Is(err, core.ErrNotReady) {
		return fmt.Errorf("%w: run \"ghgrag ingest <file.csv>\" first", err)
	}
	if err != nil {
		return err
	}

	printAnswer(c.App.Writer, answer, c.Bool("show-context"))
	return nil
}

func relatedCommand(c *cli.Context) error {
	question, err := argText(c, "question")
	if err != nil {
		return err
	}

	sys, err := openSystem(c, nil, ghgrag.WithAutoReembed(true, c.App.ErrWriter))
	if err != nil {
		return err
	}
	defer sys.Close()

	results, err := sys.Related(c.Context, question, c.Int("k"))
	if err != nil {
		return err
	}
	if len(results) == 0 {
		warnf(c.App.Writer, "No related documents.\n")
		return nil
	}
	printResults(c.App.Writer, results)
	return nil
}

func summaryCommand(c *cli.Context) error {
	sys, err := openSystem(c, nil, ghgrag.WithAutoReembed(false, nil))
	if err != nil {
		return err
	}
	defer sys.Close()

	printSummary(c.App.Writer, sys.Summary())
	return nil
}

func searchCommand(c *cli.Context) error {
	term, err := argText(c, "search term")
	if err != nil {
		return err
	}

	sys, err := openSystem(c, nil, ghgrag.WithAutoReembed(false, nil))
	if err != nil {
		return err
	}
	defer sys.Close()

	matches := sys.SearchNAICS(term)
	if len(matches) == 0 {
		warnf(c.App.Writer, "No industries match %q.\n", term)
		return nil
	}
	headerf(c.App.Writer, "Found %d unique matches:\n", len(matches))
	for _, m := range matches {
		fmt.Fprintf(c.App.Writer, "  %s  %s\n", m.NAICSCode, m.NAICSTitle)
	}
	return nil
}

func trendsCommand(c *cli.Context) error {
	code, err := argText(c, "NAICS code")
	if err != nil {
		return err
	}

	sys, err := openSystem(c, nil, ghgrag.WithAutoReembed(false, nil))
	if err != nil {
		return err
	}
	defer sys.Close()

	records := sys.Trends(code)
	if len(records) == 0 {
		warnf(c.App.Writer, "No records for NAICS code %s.\n", code)
		return nil
	}
	printTrends(c.App.Writer, code, records, sys.TrendSummary(code))
	return nil
}

func reembedCommand(c *cli.Context) error {
	sys, err := openSystem(c, nil, ghgrag.WithAutoReembed(false, nil))
	if err != nil {
		return err
	}
	defer sys.Close()

	return sys.Reembed(c.Context, c.App.Writer)
}

func statusCommand(c *cli.Context) error {
	sys, err := openSystem(c, nil, ghgrag.WithAutoReembed(false, nil))
	if err != nil {
		return err
	}
	defer sys.Close()

	status, err := sys.Status(c.Context)
	if err != nil {
		return err
	}
	printStatus(c.App.Writer, status)
	return nil
}
