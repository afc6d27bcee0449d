package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/jdholdren/newsroom/internal/database"
	"github.com/jdholdren/newsroom/internal/migrations"
)

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:        "migrate",
		Usage:       "Run database migrations",
		Description: `Runs database migrations on the configured database. Will create a sqlite database if it does not exist.`,
		Flags: []cli.Flag{
			databaseFlag(),
		},
		Action: func(ctx *cli.Context) error {
			dbx, err := database.Open(ctx.String("database"))
			if err != nil {
				return err
			}
			defer dbx.Close()

			if err := migrations.Run(dbx); err != nil {
				return err
			}
			fmt.Fprintf(ctx.App.Writer, "Database migrated: %s\n", dbx.DriverName())

			return nil
		},
	}
}
