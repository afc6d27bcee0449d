package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/urfave/cli/v2"

	"github.com/jdholdren/newsroom/internal/app"
	"github.com/jdholdren/newsroom/internal/database"
	"github.com/jdholdren/newsroom/internal/logger"
	"github.com/jdholdren/newsroom/internal/migrations"
	"github.com/jdholdren/newsroom/internal/newsroom"
)

func ingestCmd() *cli.Command {
	return &cli.Command{
		Name:        "ingest",
		Usage:       "Run a single ingestion",
		Description: `Fetches every source, processes the items in this process and prints the run's report.`,
		Flags: []cli.Flag{
			databaseFlag(),
			registryFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the whole report as JSON",
			},
		},
		Action: func(ctx *cli.Context) error {
			var cfg app.Config
			if err := envconfig.Process(ctx.Context, &cfg); err != nil {
				return fmt.Errorf("error parsing config: %s", err)
			}
			cfg.Database = ctx.String("database")
			cfg.RegistryFile = ctx.String("registry")

			slog.SetDefault(logger.New(os.Stderr, cfg.LoggerFormat, cfg.LogLevel))

			dbx, err := database.Open(cfg.Database)
			if err != nil {
				return err
			}
			defer dbx.Close()
			if err := migrations.Run(dbx); err != nil {
				return err
			}

			deps, err := app.Build(cfg, dbx)
			if err != nil {
				return err
			}

			report, err := deps.Pipeline.Run(ctx.Context)
			if ctx.Bool("json") {
				enc := json.NewEncoder(ctx.App.Writer)
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(report); encErr != nil {
					return encErr
				}
			} else {
				printReport(ctx.App.Writer, report)
			}

			return err
		},
	}
}

func printReport(w io.Writer, r newsroom.Report) {
	fmt.Fprintf(w, "run %s took %s\n", r.ID, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(w, "  processed:      %d\n", r.Processed)
	fmt.Fprintf(w, "  stored:         %d\n", r.Stored)
	fmt.Fprintf(w, "  flagged:        %d\n", r.Flagged)
	fmt.Fprintf(w, "  duplicates:     %d\n", r.Duplicates)
	fmt.Fprintf(w, "  low relevance:  %d\n", r.LowRelevance)
	fmt.Fprintf(w, "  errors:         %d\n", r.Errors)
	fmt.Fprintf(w, "  fetch failures: %d\n", r.FetchFailures)
	for _, f := range r.Failures {
		fmt.Fprintf(w, "    %s: %s\n", f.Source, f.Error)
	}
}
