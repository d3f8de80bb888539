package main

import (
	"fmt"

	"github.com/artpar/waterspout/bootstrap"
	"github.com/artpar/waterspout/demo"
	"github.com/spf13/cobra"
)

var (
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the server",
	Long: `Start the demo container.

Configuration comes from --config, or the file named by
WATERSPOUT_SETTINGS, or WATERSPOUT_* environment variables alone.

Environment variables:
  WATERSPOUT_ADDRESS        - Listen address (default: 127.0.0.1)
  WATERSPOUT_PORT           - Listen port (default: 8888)
  WATERSPOUT_COOKIE_SECRET  - Session cookie secret
  WATERSPOUT_LOG_LEVEL      - Log level: debug, info, warn, error
  WATERSPOUT_LOG_FORMAT     - Log format: json or console

Examples:
  waterspout serve
  waterspout serve --config /etc/waterspout.yaml
  waterspout serve --hot-reload=false`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "reload the config file on change or SIGHUP")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	a, err := bootstrap.New(cfg, demo.Setup)
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Hot reload only works with a config file
	if path := configPath(); hotReload && path != "" {
		if err := a.Watch(path); err != nil {
			a.Logger.Warn().Err(err).Msg("config hot reload disabled")
		}
	}

	// Run (blocks until shutdown)
	return a.Run()
}
