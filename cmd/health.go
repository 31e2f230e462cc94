package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/harborml/skiff/internal/output"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe the health of every configured provider",
	Long: `Run a health probe against each enabled provider and report the
outcome. Probes run under the configured timeout (health.timeout,
default 5s); a provider that hangs is reported as timed out, not waited
on.

Examples:
  skiff health
  skiff health --format table
  skiff health --format json
  skiff health --color never`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

func init() {
	healthCmd.Flags().String("color", "auto", "when to color status output (auto, always, never)")

	rootCmd.AddCommand(healthCmd)
}

func parseColorMode(s string) output.ColorMode {
	switch s {
	case "always":
		return output.ColorAlways
	case "never":
		return output.ColorNever
	default:
		return output.ColorAuto
	}
}

func runHealth(cmd *cobra.Command, args []string) error {
	colorStr, _ := cmd.Flags().GetString("color")

	o, err := newOrchestrator(newLogger())
	if err != nil {
		return err
	}
	defer o.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	results := o.CheckAll(ctx)
	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No providers enabled. Check ~/.skiff.yaml.")
		return nil
	}

	format := output.ParseFormat(viper.GetString("format"))
	if err := output.New(cmd.OutOrStdout(), format).WriteHealth(results, parseColorMode(colorStr)); err != nil {
		return err
	}

	unhealthy := 0
	for _, r := range results {
		if !r.IsHealthy {
			unhealthy++
		}
	}
	if unhealthy > 0 {
		return fmt.Errorf("%d of %d providers unhealthy", unhealthy, len(results))
	}
	return nil
}
