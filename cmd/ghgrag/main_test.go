package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

const factorsCSV = `2017 NAICS Code,2017 NAICS Title,GHG,Unit,Supply Chain Emission Factors without Margins,Margins of Supply Chain Emission Factors,Supply Chain Emission Factors with Margins
111110,Soybean Farming,All GHGs,"kg CO2e/2022 USD, purchaser price",0.389,0.031,0.42
111140,Wheat Farming,All GHGs,"kg CO2e/2022 USD, purchaser price",0.51,0.05,0.56
111150,,All GHGs,"kg CO2e/2022 USD, purchaser price",0.6,0.05,0.65
211120,Crude Petroleum Extraction,All GHGs,"kg CO2e/2022 USD, purchaser price",0.9,0.1,1.0
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"ghgrag", "--log-level", "error"}, args...))
	return out.String(), err
}

func writeFixtures(t *testing.T) (configPath, csvPath string) {
	t.Helper()
	dir := t.TempDir()

	configPath = filepath.Join(dir, "ghgrag.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
ai:
  provider: mock
index:
  retry_delay: 0s
storage:
  path: `+filepath.Join(dir, "data")+`
`), 0o600))

	csvPath = filepath.Join(dir, "factors.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(factorsCSV), 0o600))
	return configPath, csvPath
}

func findFlag[T cli.Flag](flags []cli.Flag, name string) T {
	var zero T
	for _, f := range flags {
		if typed, ok := f.(T); ok && f.Names()[0] == name {
			return typed
		}
	}
	return zero
}

func TestAppFlags(t *testing.T) {
	app := newApp()

	t.Run("log-level defaults to warn", func(t *testing.T) {
		f := findFlag[*cli.StringFlag](app.Flags, "log-level")
		require.NotNil(t, f)
		assert.Equal(t, "warn", f.Value)
	})

	t.Run("config has no default", func(t *testing.T) {
		f := findFlag[*cli.StringFlag](app.Flags, "config")
		require.NotNil(t, f)
		assert.Empty(t, f.Value)
	})

	t.Run("related k defaults to 3", func(t *testing.T) {
		cmd := app.Command("related")
		require.NotNil(t, cmd)
		f := findFlag[*cli.IntFlag](cmd.Flags, "k")
		require.NotNil(t, f)
		assert.Equal(t, 3, f.Value)
	})

	t.Run("every command is registered", func(t *testing.T) {
		for _, name := range []string{"ingest", "ask", "related", "summary", "search", "trends", "reembed", "status"} {
			assert.NotNil(t, app.Command(name), name)
		}
	})
}

func TestInvalidLogLevel(t *testing.T) {
	app := newApp()
	app.Writer = io.Discard
	app.ErrWriter = io.Discard
	err := app.Run([]string{"ghgrag", "--log-level", "loud", "status"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestCommands(t *testing.T) {
	configPath, csvPath := writeFixtures(t)

	out, err := run(t, "--config", configPath, "ask", "soybean")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghgrag ingest")
	assert.Empty(t, out)

	out, err = run(t, "--config", configPath, "ingest", csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "rows: 4  accepted: 3  rejected: 1  duplicates: 0")
	assert.Contains(t, out, "NAICS schema year: 2017")
	assert.Contains(t, out, "Indexed 3 documents with mock-bow-384")

	out, err = run(t, "--config", configPath, "ask", "What is the emission factor for soybean farming?")
	require.NoError(t, err)
	assert.Contains(t, out, "Based on the records: NAICS 111110")
	assert.Contains(t, out, "1. 111110 Soybean Farming")

	out, err = run(t, "--config", configPath, "related", "--k", "1", "crude", "petroleum")
	require.NoError(t, err)
	assert.Contains(t, out, "1. 211120 Crude Petroleum Extraction")
	assert.NotContains(t, out, "2.")

	out, err = run(t, "--config", configPath, "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "records: 3")
	assert.Contains(t, out, "unique NAICS codes: 3")
	assert.Contains(t, out, "schema years: 2017")

	out, err = run(t, "--config", configPath, "search", "farming")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 2 unique matches")
	assert.Contains(t, out, "111140  Wheat Farming")

	out, err = run(t, "--config", configPath, "trends", "211120")
	require.NoError(t, err)
	assert.Contains(t, out, "NAICS 211120 Crude Petroleum Extraction")
	assert.Contains(t, out, "2017  All GHGs")

	out, err = run(t, "--config", configPath, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "records: 3  documents: 3  snapshot store: badger")
	assert.Contains(t, out, "index ready: 3 documents, 384 dimensions")

	out, err = run(t, "--config", configPath, "reembed")
	require.NoError(t, err)
	assert.Contains(t, out, "Reembedding complete")
}

func TestCommandArguments(t *testing.T) {
	configPath, _ := writeFixtures(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"ingest needs a file", []string{"ingest"}, "exactly one CSV file"},
		{"ask needs a question", []string{"ask", "  "}, "question is required"},
		{"search needs a term", []string{"search"}, "search term is required"},
		{"trends needs a code", []string{"trends"}, "NAICS code is required"},
		{"missing file", []string{"ingest", "/nonexistent/factors.csv"}, "no such file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, append([]string{"--config", configPath}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
