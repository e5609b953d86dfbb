package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/dyfi-induced-db/internal/adapter/geojson"
	"github.com/couchcryptid/dyfi-induced-db/internal/domain"
)

// skipInit replaces the root's config loading for commands that only read
// local files.
func skipInit(*cobra.Command, []string) error { return nil }

func newXYCmd(_ *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:               "xy <events.geojson>",
		Short:             "Convert an event file to lon/lat/size lines for plotting",
		Args:              cobra.ExactArgs(1),
		PersistentPreRunE: skipInit,
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := geojson.ReadFile(args[0])
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "-" {
				out, err := os.Create(output)
				if err != nil {
					return err
				}
				defer out.Close()
				w = out
			}

			n, err := domain.WriteXY(w, events)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d of %d events\n", n, len(events))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "events.xy", `Output file, "-" for stdout`)
	return cmd
}

func newCountCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:               "count <events.geojson>",
		Short:             "Sum the felt responses of an event file",
		Args:              cobra.ExactArgs(1),
		PersistentPreRunE: skipInit,
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := geojson.ReadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d events, %d felt responses\n", len(events), domain.TotalFelt(events))
			return nil
		},
	}
}
