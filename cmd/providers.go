package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/harborml/skiff/internal/output"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured providers and their capabilities",
	Long: `List the providers built from configuration, in registration order,
with the capabilities each one advertises.

Examples:
  skiff providers
  skiff providers --format table
  skiff providers --format json`,
	Args: cobra.NoArgs,
	RunE: runProviders,
}

func init() {
	rootCmd.AddCommand(providersCmd)
}

func runProviders(cmd *cobra.Command, args []string) error {
	o, err := newOrchestrator(newLogger())
	if err != nil {
		return err
	}
	defer o.Close()

	reg := o.Registry()
	rows := output.ProviderRows(reg.IDs(), reg.Get)
	if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No providers enabled. Check ~/.skiff.yaml.")
		return nil
	}

	format := output.ParseFormat(viper.GetString("format"))
	return output.New(cmd.OutOrStdout(), format).WriteProviders(rows)
}
