// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	ghgrag "github.com/10JERRY01/GreehouseGasEmissionRAG"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/config"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "ghgrag",
		Usage: "Ask questions about supply chain greenhouse gas emission factors",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file (default: ./ghgrag.yaml or ~/.config/ghgrag/config.yaml)",
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Override storage.path, the BadgerDB directory",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Load an emission factor CSV and rebuild the index",
				ArgsUsage: "<file.csv>",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "show-rejections",
						Usage: "Print at most N rejected rows",
						Value: 10,
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Answer a question from the indexed emission factors",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Number of documents retrieved (1-20); 0 uses query.top_k",
					},
					&cli.BoolFlag{
						Name:  "show-context",
						Usage: "Print the context handed to the generator",
					},
				},
			},
			{
				Name:      "related",
				Usage:     "List indexed documents similar to a question",
				ArgsUsage: "<question>",
				Action:    relatedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "k",
						Usage: "Number of documents; 0 uses query.top_k",
						Value: 3,
					},
				},
			},
			{
				Name:   "summary",
				Usage:  "Summarize the ingested records",
				Action: summaryCommand,
			},
			{
				Name:      "search",
				Usage:     "Find NAICS industries by code or title",
				ArgsUsage: "<term>",
				Action:    searchCommand,
			},
			{
				Name:      "trends",
				Usage:     "Show a NAICS code's factors by schema year",
				ArgsUsage: "<naics-code>",
				Action:    trendsCommand,
			},
			{
				Name:   "reembed",
				Usage:  "Rebuild the index from stored documents with the configured embedding model",
				Action: reembedCommand,
			},
			{
				Name:   "status",
				Usage:  "Show storage and index status",
				Action: statusCommand,
			},
		},
	}
}

// loadConfig reads the configuration named by --config and applies --data.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if data := c.String("data"); data != "" {
		cfg.Storage.Path = data
	}
	return cfg, nil
}

func openSystem(c *cli.Context, cfg *config.Config, opts ...ghgrag.Option) (*ghgrag.System, error) {
	if cfg == nil {
		var err error
		if cfg, err = loadConfig(c); err != nil {
			return nil, err
		}
	}
	return ghgrag.Open(c.Context, cfg, opts...)
}

func argText(c *cli.Context, what string) (string, error) {
	text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if text == "" {
		return "", fmt.Errorf("%s is required", what)
	}
	return text, nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
