package main

import (
	"fmt"
	"os"

	"github.com/jlyon1/party-camera-ios/backend"
	"github.com/jlyon1/party-camera-ios/ccc/logging"
	"github.com/jlyon1/party-camera-ios/config"
	"github.com/spf13/cobra"
)

// rootOptions holds the persistent flags shared by every command
type rootOptions struct {
	configPath string
	backendURL string
	eventID    int
	logLevel   string
	testMode   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "partycam",
		Short: "Capture photos into a shared event feed",
		Long: `partycam takes photos with a local camera and uploads each one to an
event's feed through presigned upload urls. Photos are uploaded one at a
time, in the order they were taken, without holding up the camera.
`,
		SilenceUsage: true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "partycam.json", "config file (.json, .yaml or .yml)")
	flags.StringVar(&opts.backendURL, "backend-url", "", "backend base url (overrides config)")
	flags.IntVar(&opts.eventID, "event-id", 0, "event to upload into (overrides config)")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	flags.BoolVar(&opts.testMode, "test", false, "use an in-memory mock backend instead of the network")

	rootCmd.AddCommand(
		newCaptureCmd(opts),
		newUploadCmd(opts),
		newFeedCmd(opts),
		newEventsCmd(opts),
	)
	return rootCmd
}

// load reads the config file, applies flag overrides and builds the logger and backend
func (o *rootOptions) load() (*config.Config, logging.Logger, backend.Backend, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	cfg.Override(config.ConfigOverrides{
		BackendURL: &o.backendURL,
		EventID:    &o.eventID,
		LogLevel:   &o.logLevel,
	})
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var logger logging.Logger
	if cfg.LogPath != "" {
		logger = logging.CreateLogger(logging.LogLevel(cfg.LogLevel), cfg.LogPath, "partycam")
	} else {
		logger = logging.CreateConsoleLogger(logging.LogLevel(cfg.LogLevel), os.Stderr)
	}

	var b backend.Backend
	if o.testMode {
		logger.Info("Running in test mode with mock backend")
		mock := backend.NewMockBackend()
		mock.Events = []backend.Event{{ID: cfg.EventID, Name: "Test Event"}}
		mock.Feeds[cfg.EventID] = &backend.EventFeed{EventID: cfg.EventID}
		b = mock
	} else {
		b = backend.NewHTTPBackend(cfg.BackendURL, cfg.RequestTimeout(), logger)
	}

	return cfg, logger, b, nil
}
