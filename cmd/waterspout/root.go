package main

import (
	"fmt"
	"os"

	"github.com/artpar/waterspout/config"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "waterspout",
	Short: "Compose web modules into one server",
	Long: `waterspout serves a container assembled from independently written
modules, each with its own routes, templates and template filters.

  waterspout serve     # Start the server
  waterspout routes    # Show the merged route table
  waterspout validate  # Validate configuration`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file path (default: $"+config.EnvVar+", then environment only)")
}

// loadConfig loads --config, falling back to the file named by the
// settings environment variable and then to the environment alone.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.Load(cfgFile)
	}
	return config.LoadWithFallback("")
}

// configPath returns the file the configuration came from, or "".
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return os.Getenv(config.EnvVar)
}
