package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/jlyon1/party-camera-ios/config"
	"github.com/jlyon1/party-camera-ios/uploading"
	"github.com/spf13/cobra"
)

func newUploadCmd(root *rootOptions) *cobra.Command {
	var flushTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "upload FILE...",
		Short: "Upload existing image files to the event, in argument order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, b, err := root.load()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			outcomes := make(chan uploading.Outcome, len(args))
			uploader := uploading.NewUploader(
				b,
				uploading.NewQueue(),
				uploading.PolicyFromConfig(config.NewStaticSettingsProvider(*cfg)),
				uploading.UploaderOptions{
					ContentType:    cfg.ContentType,
					AttemptTimeout: cfg.UploadTimeout(),
					OnOutcome:      func(o uploading.Outcome) { outcomes <- o },
				},
				logger,
			)

			names := make(map[uint64]string, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", path, err)
				}
				entry := &uploading.Entry{
					EventID:     cfg.EventID,
					Data:        data,
					ContentType: contentTypeFor(path, cfg.ContentType),
				}
				uploader.Enqueue(entry)
				names[entry.Seq] = path
			}

			uploader.Start(cmd.Context())
			defer uploader.Stop()

			if !uploader.Drain(flushTimeout) {
				return fmt.Errorf("timed out with %d uploads pending", uploader.Pending())
			}

			failed := 0
			for range args {
				o := <-outcomes
				if o.Status == uploading.StatusUploaded {
					fmt.Fprintf(out, "%s -> %s\n", names[o.Entry.Seq], o.FileName)
					continue
				}
				failed++
				fmt.Fprintf(out, "%s: %s (%v)\n", names[o.Entry.Seq], o.Status, o.Err)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d uploads failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&flushTimeout, "timeout", 5*time.Minute, "how long to wait for all uploads")
	return cmd
}

// contentTypeFor guesses the MIME type from the file extension
func contentTypeFor(path, fallback string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		mediaType, _, err := mime.ParseMediaType(t)
		if err == nil {
			return mediaType
		}
	}
	return fallback
}
