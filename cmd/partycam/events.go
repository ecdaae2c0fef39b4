package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newEventsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "List the events you belong to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, b, err := root.load()
			if err != nil {
				return err
			}

			events, err := b.FetchEvents(cmd.Context())
			if err != nil {
				return err
			}

			now := time.Now()
			out := cmd.OutOrStdout()
			for _, e := range events {
				status := "open"
				if e.HasEnded(now) {
					status = "ended"
				}
				fmt.Fprintf(out, "%d\t%s\t%s\t%s\n", e.ID, e.Name, status, e.ThumbnailURL())
			}
			return nil
		},
	}
}
