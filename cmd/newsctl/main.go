// newsctl runs the pipeline by hand and inspects its setup.
package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
	_ "golang.org/x/crypto/x509roots/fallback"
)

func main() {
	if err := rootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func rootApp() *cli.App {
	return &cli.App{
		Name:  "newsctl",
		Usage: "Run and inspect the newsroom ingestion pipeline",
		Description: `Runs single ingestions against the configured database and
		prints what the pipeline is set up with.

		Flags can generally be set via environment variables, e.g.:

		--database => DATABASE=newsroom.db
		--registry => REGISTRY_FILE=feeds.toml

		Everything else ingest needs comes from the same environment the
		api and worker read, ANTHROPIC_API_KEY included.
		`,
		Commands: []*cli.Command{
			ingestCmd(),
			sourcesCmd(),
			migrateCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func databaseFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "database",
		Usage:   "sqlite file or postgres:// url",
		EnvVars: []string{"DATABASE"},
		Value:   "newsroom.db",
	}
}

func registryFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "registry",
		Usage:   "TOML or YAML file listing the feeds, the built-in list when empty",
		EnvVars: []string{"REGISTRY_FILE"},
	}
}
