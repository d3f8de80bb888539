package main

import (
	"fmt"

	"github.com/artpar/waterspout/app"
	"github.com/artpar/waterspout/demo"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration before deployment",
	Long: `Validate the configuration and build the demo container once.

Checks:
  - YAML syntax is valid and values are in range
  - Modules register without conflicts
  - Route patterns and template filters are valid

Examples:
  waterspout validate
  waterspout validate --config /etc/waterspout.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(out, "  %s Config valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Fprintf(out, "  %s Config valid\n", checkMark)
	fmt.Fprintf(out, "  %s Listen: %s\n", checkMark, cfg.Server.Addr())
	if cfg.App.CookieSecret == "" {
		fmt.Fprintf(out, "  %s cookie_secret not set, sessions will not survive a restart\n", warnMark)
	}

	c := app.New(cfg.AppSettings())
	if err := demo.Setup(c); err != nil {
		fmt.Fprintf(out, "  %s Modules registered\n", crossMark)
		return err
	}
	fmt.Fprintf(out, "  %s Modules registered: %d\n", checkMark, len(c.Modules()))

	srv, err := c.Build()
	if err != nil {
		fmt.Fprintf(out, "  %s Container builds\n", crossMark)
		return err
	}
	defer srv.Close()
	fmt.Fprintf(out, "  %s Container builds: %d routes\n", checkMark, len(srv.Routes()))

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Configuration is valid.")
	return nil
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
	warnMark  = "\033[33m!\033[0m"
)
