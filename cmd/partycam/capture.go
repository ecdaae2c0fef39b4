package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/jlyon1/party-camera-ios/capture"
	"github.com/jlyon1/party-camera-ios/capture/gocvcam"
	"github.com/jlyon1/party-camera-ios/ccc/logging"
	"github.com/jlyon1/party-camera-ios/config"
	"github.com/jlyon1/party-camera-ios/pipeline"
	"github.com/jlyon1/party-camera-ios/state"
	"github.com/spf13/cobra"
)

func newCaptureCmd(root *rootOptions) *cobra.Command {
	var (
		count        int
		interval     time.Duration
		virtual      bool
		switchCamera bool
		flushTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Take photos and upload them to the event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, b, err := root.load()
			if err != nil {
				return err
			}
			if virtual {
				cfg.CameraBackend = config.CameraBackendVirtual
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			session := newSession(cfg, logger)
			if switchCamera {
				if err := session.SwitchDevice(); err != nil {
					return fmt.Errorf("failed to switch camera: %w", err)
				}
			}

			model := pipeline.NewFromConfig(config.NewStaticSettingsProvider(*cfg), session, b, logger)
			if err := model.Start(ctx); err != nil {
				return fmt.Errorf("failed to start capture: %w", err)
			}
			defer model.Stop()
			defer enterCameraView(ctx, model, logger)()

			if err := takePhotos(ctx, model, count, interval); err != nil {
				return err
			}
			waitForPhotos(ctx, model, uint64(count))

			if ctx.Err() != nil {
				logger.Info("Interrupted, skipping upload flush")
			} else if !model.Flush(flushTimeout) {
				logger.Warn("Stopping with uploads still pending", "pending", model.Stats().Pending)
			}

			s := model.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "event %d: %d taken, %d uploaded, %d abandoned, %d dropped\n",
				model.EventID(), s.Enqueued+s.Dropped, s.Uploaded, s.Abandoned, s.Dropped)
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 1, "number of photos to take")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "pause between photos")
	cmd.Flags().BoolVar(&virtual, "virtual", false, "use the synthetic camera")
	cmd.Flags().BoolVar(&switchCamera, "front", false, "start on the front camera")
	cmd.Flags().DurationVar(&flushTimeout, "flush-timeout", 2*time.Minute, "how long to wait for queued uploads before exiting")
	return cmd
}

// newSession picks the camera implementation named in cfg
func newSession(cfg *config.Config, logger logging.Logger) capture.Session {
	sessionOptions := capture.SessionOptions{FPS: cfg.PreviewFPS, Position: capture.PositionBack}

	if cfg.CameraBackend == config.CameraBackendVirtual {
		options := capture.DefaultVirtualOptions
		options.JPEGQuality = cfg.JPEGQuality
		session, _ := capture.NewVirtualSession(options, sessionOptions, logger)
		return session
	}

	device := gocvcam.NewDevice(cfg.CameraDevice, cfg.FrontCameraDevice, cfg.JPEGQuality, cfg.ThumbnailMaxEdge)
	return capture.NewSession(device, sessionOptions, logger)
}

// enterCameraView hides the tab bar for the duration of the capture and logs
// every visibility change. The returned func restores it.
func enterCameraView(ctx context.Context, model *pipeline.DataModel, logger logging.Logger) func() {
	visibility := state.NewTabBarVisibility()
	changes, unsubscribe := visibility.Changes()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for hidden := range changes {
			logger.Debug("Tab bar visibility changed", "hidden", hidden)
		}
	}()

	restore := model.EnterCameraView(state.WithTabBarVisibility(ctx, visibility))
	logger.Info("Camera view entered", "tabBarHidden", visibility.IsHidden())

	return func() {
		restore()
		unsubscribe()
		<-done
	}
}

func takePhotos(ctx context.Context, model *pipeline.DataModel, count int, interval time.Duration) error {
	for i := 0; i < count; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(interval):
			}
		}
		if err := model.TakePhoto(ctx); err != nil {
			return fmt.Errorf("failed to take photo %d: %w", i+1, err)
		}
	}
	return nil
}

// waitForPhotos blocks until count photos have left the camera, one way or the other
func waitForPhotos(ctx context.Context, model *pipeline.DataModel, count uint64) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		s := model.Stats()
		if s.Enqueued+s.Dropped >= count {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
