package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/artpar/waterspout/app"
	"github.com/artpar/waterspout/demo"
	"github.com/spf13/cobra"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Show the merged route table",
	Long: `Show every route of the demo container in registration order,
with its name and arguments.

Examples:
  waterspout routes
  waterspout routes --json`,
	RunE: runRoutes,
}

var routesJSON bool

func init() {
	rootCmd.AddCommand(routesCmd)

	routesCmd.Flags().BoolVar(&routesJSON, "json", false, "output as JSON")
}

type routeRow struct {
	Pattern string         `json:"pattern"`
	Name    string         `json:"name,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
}

func runRoutes(cmd *cobra.Command, args []string) error {
	c := app.New(app.Settings{})
	if err := demo.Setup(c); err != nil {
		return err
	}

	var rows []routeRow
	for _, r := range c.Routes() {
		rows = append(rows, routeRow{Pattern: r.Pattern, Name: r.Name, Args: r.Args})
	}

	out := cmd.OutOrStdout()
	if routesJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATTERN\tNAME\tARGS")
	for _, r := range rows {
		name := r.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Pattern, name, formatArgs(r.Args))
	}
	return w.Flush()
}

func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, args[k]))
	}
	return strings.Join(parts, ",")
}
