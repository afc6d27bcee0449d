package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/jdholdren/newsroom/internal/registry"
)

func sourcesCmd() *cli.Command {
	return &cli.Command{
		Name:  "sources",
		Usage: "List the feeds in the registry",
		Flags: []cli.Flag{
			registryFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the sources as JSON",
			},
		},
		Action: func(ctx *cli.Context) error {
			reg, err := registry.Load(ctx.String("registry"))
			if err != nil {
				return err
			}

			if ctx.Bool("json") {
				enc := json.NewEncoder(ctx.App.Writer)
				enc.SetIndent("", "  ")
				return enc.Encode(reg.Sources())
			}

			w := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPRIORITY\tCATEGORY\tURL")
			for _, src := range reg.Sources() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", src.Name, src.Priority, src.Category, src.URL)
			}
			return w.Flush()
		},
	}
}
