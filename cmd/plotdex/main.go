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
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/poiesic/plotdex"
	"github.com/poiesic/plotdex/config"
	"github.com/poiesic/plotdex/core"
	"github.com/poiesic/plotdex/ingestion"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(os.Stdout, os.Stderr)
	if err := app.RunContext(ctx, os.Args); err != nil {
		stop()
		log.Fatal(err)
	}
}

// newApp builds the command tree. clientOpts are passed to every client the
// commands create.
func newApp(stdout, stderr io.Writer, clientOpts ...plotdex.ClientOption) *cli.App {
	cmds := &commands{stdout: stdout, stderr: stderr, clientOpts: clientOpts}
	return &cli.App{
		Name:      "plotdex",
		Usage:     "Index movie plots into a multi-vector search collection",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a .env file",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "qdrant-url",
				Usage: "Qdrant gRPC endpoint, http(s)://host:port",
			},
			&cli.StringFlag{
				Name:  "collection",
				Usage: "Collection name",
			},
			&cli.StringFlag{
				Name:  "ledger",
				Usage: "Path to the run ledger directory",
			},
			&cli.StringFlag{
				Name:  "embed-backend",
				Usage: "Embedding backend (subprocess, openai)",
			},
			&cli.StringFlag{
				Name:  "embed-host",
				Usage: "Embedding service host URL for the openai backend",
			},
			&cli.StringFlag{
				Name:  "embed-model",
				Usage: "Embedding model name for the openai backend",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Embed a movie plots file and upload it to the collection",
				Action: cmds.ingest,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "source",
						Aliases: []string{"s"},
						Usage:   "Local path or s3://bucket/key of the CSV file (.gz, .zst, .lz4 accepted)",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of points per upsert",
					},
					&cli.IntFlag{
						Name:  "embed-batch-size",
						Usage: "Number of texts per embedding call, 0 for a single call",
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Number of upserts in flight",
					},
					&cli.Float64Flag{
						Name:  "rate-limit",
						Usage: "Maximum upserts per second, 0 for no limit",
					},
					&cli.DurationFlag{
						Name:  "embed-timeout",
						Usage: "Timeout for each embedding call",
					},
					&cli.BoolFlag{
						Name:  "resume",
						Usage: "Skip rows already committed by an earlier run (requires --ledger)",
					},
					&cli.BoolFlag{
						Name:  "progress",
						Usage: "Print upload progress",
						Value: true,
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Query the collection",
				ArgsUsage: "<query>",
				Action:    cmds.search,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of hits to return",
						Value:   5,
					},
				},
			},
			{
				Name:   "status",
				Usage:  "List the checkpoints stored in the run ledger",
				Action: cmds.status,
			},
			{
				Name:   "reset",
				Usage:  "Forget the committed rows recorded for the collection",
				Action: cmds.reset,
			},
		},
	}
}

type commands struct {
	stdout     io.Writer
	stderr     io.Writer
	clientOpts []plotdex.ClientOption
}

// loadConfig applies, in order: defaults, config file, .env and environment,
// then flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	if err := config.LoadDotEnv(c.String("env-file")); err != nil {
		return nil, err
	}
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	strs := map[string]*string{
		"qdrant-url":    &cfg.QdrantURL,
		"collection":    &cfg.Collection,
		"ledger":        &cfg.LedgerPath,
		"embed-backend": &cfg.Embedding.Backend,
		"embed-host":    &cfg.Embedding.Host,
		"embed-model":   &cfg.Embedding.Model,
		"source":        &cfg.Source,
	}
	for name, dst := range strs {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	ints := map[string]*int{
		"batch-size":       &cfg.Upload.BatchSize,
		"embed-batch-size": &cfg.Embedding.BatchSize,
		"concurrency":      &cfg.Upload.Concurrency,
	}
	for name, dst := range ints {
		if c.IsSet(name) {
			*dst = c.Int(name)
		}
	}
	if c.IsSet("rate-limit") {
		cfg.Upload.RateLimit = c.Float64("rate-limit")
	}
	if c.IsSet("embed-timeout") {
		cfg.Embedding.Timeout = c.Duration("embed-timeout")
	}
	if c.IsSet("resume") {
		cfg.Upload.Resume = c.Bool("resume")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cmds *commands) client(c *cli.Context) (*plotdex.Client, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return plotdex.NewClient(cfg, cmds.clientOpts...)
}

func (cmds *commands) ingest(c *cli.Context) error {
	client, err := cmds.client(c)
	if err != nil {
		return err
	}
	defer client.Close()

	cfg := client.Config()
	fmt.Fprintf(cmds.stderr, "Source: %s\n", cfg.Source)
	fmt.Fprintf(cmds.stderr, "Qdrant: %s\n", cfg.QdrantURL)
	fmt.Fprintf(cmds.stderr, "Collection: %s\n", cfg.Collection)
	fmt.Fprintf(cmds.stderr, "Embedding backend: %s\n", cfg.Embedding.Backend)
	fmt.Fprintln(cmds.stderr)

	var opts []ingestion.Option
	if c.Bool("progress") {
		opts = append(opts, ingestion.WithProgressWriter(cmds.stderr))
	}

	report, err := client.Ingest(c.Context, cfg.Source, opts...)
	if err != nil {
		printFailure(cmds.stderr, err)
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Fprintf(cmds.stdout, "Ingested %d points into %q in %s", report.Upload.Points, report.Collection,
		report.Elapsed.Round(time.Millisecond))
	if report.Upload.Skipped > 0 {
		fmt.Fprintf(cmds.stdout, " (%d rows already committed)", report.Upload.Skipped)
	}
	fmt.Fprintln(cmds.stdout)
	return nil
}

// printFailure names the failing stage and, for an upload failure, the row
// ranges that did reach the collection.
func printFailure(w io.Writer, err error) {
	var stageErr *core.StageError
	if errors.As(err, &stageErr) {
		fmt.Fprintf(w, "Failed during %s stage\n", stageErr.Stage)
	}
	var uploadErr *core.UploadError
	if errors.As(err, &uploadErr) {
		fmt.Fprintf(w, "Failed batch: rows [%d, %d)\n", uploadErr.Batch.Start, uploadErr.Batch.End)
		fmt.Fprintf(w, "Committed before failure: %s\n", core.FormatRanges(uploadErr.Committed))
	}
}

func (cmds *commands) search(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return errors.New("a query is required")
	}

	client, err := cmds.client(c)
	if err != nil {
		return err
	}
	defer client.Close()

	hits, err := client.Search(c.Context, query, c.Int("top-k"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if len(hits) == 0 {
		fmt.Fprintln(cmds.stdout, "No results")
		return nil
	}

	tw := tabwriter.NewWriter(cmds.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSCORE\tYEAR\tTITLE")
	for i, hit := range hits {
		fmt.Fprintf(tw, "%d\t%.4f\t%s\t%s\n", i+1, hit.Score, hit.Year, hit.Title)
	}
	return tw.Flush()
}

func (cmds *commands) status(c *cli.Context) error {
	client, err := cmds.client(c)
	if err != nil {
		return err
	}
	defer client.Close()

	checkpoints, err := client.Checkpoints(c.Context)
	if err != nil {
		return err
	}
	if len(checkpoints) == 0 {
		fmt.Fprintln(cmds.stdout, "No checkpoints")
		return nil
	}

	tw := tabwriter.NewWriter(cmds.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COLLECTION\tFINGERPRINT\tCOMMITTED\tROWS\tUPDATED")
	for _, cp := range checkpoints {
		updated := time.UnixMicro(cp.UpdatedAt).UTC().Format(time.RFC3339)
		fmt.Fprintf(tw, "%s\t%016x\t%d\t%d\t%s\n", cp.Collection, cp.Fingerprint, cp.Committed, cp.Rows, updated)
	}
	return tw.Flush()
}

func (cmds *commands) reset(c *cli.Context) error {
	client, err := cmds.client(c)
	if err != nil {
		return err
	}
	defer client.Close()

	removed, err := client.ResetLedger(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmds.stdout, "Removed %d checkpoint(s) for %q\n", removed, client.Config().Collection)
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
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

	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
