package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jlyon1/party-camera-ios/backend"
	"github.com/jlyon1/party-camera-ios/feed"
	"github.com/spf13/cobra"
)

func newFeedCmd(root *rootOptions) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "feed [EVENT_ID]",
		Short: "List the photos in an event's feed",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, b, err := root.load()
			if err != nil {
				return err
			}

			eventID := cfg.EventID
			if len(args) == 1 {
				if eventID, err = strconv.Atoi(args[0]); err != nil {
					return fmt.Errorf("invalid event id %q", args[0])
				}
			}

			cache := feed.NewCache(b, logger)
			if err := cache.FetchEventFeed(cmd.Context(), eventID, refresh); err != nil {
				return err
			}
			f, _ := cache.Get(eventID)
			fetchedAt, _ := cache.FetchedAt(eventID)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "event %d: %d photos (fetched %s)\n", f.EventID, len(f.Images), fetchedAt.Local().Format(time.TimeOnly))
			for _, img := range f.Images {
				fmt.Fprintf(out, "%s  %s  %s\n", img.CreatedAt.Local().Format("2006-01-02 15:04:05"), img.FileName, assetURL(img.Assets))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "ignore any cached feed")
	return cmd
}

// assetURL prefers the thumbnail
func assetURL(assets []backend.ImageAsset) string {
	url := ""
	for _, a := range assets {
		if a.Size == backend.AssetSizeThumbnail {
			return a.URL
		}
		if url == "" {
			url = a.URL
		}
	}
	return url
}
