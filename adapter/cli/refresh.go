package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Query the store and reconcile the licence",
	Long: `Connect to the store, fetch the purchase inventory and the product
prices, and reconcile the stored licence against them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireHandler()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if a.Session == nil {
			if a.Flavor.NeedsKeyEntry() {
				fmt.Fprintf(out, "The %s store has no in-app billing; nothing to refresh.\n", a.Flavor)
				return nil
			}
			fmt.Fprintln(out, "No store credentials configured; licence left unchanged.")
			return nil
		}

		ctx := cmd.Context()
		if err := a.Session.Start(ctx); err != nil {
			return fmt.Errorf("failed to connect to store: %w", err)
		}
		status, err := a.Handler.LicenceStatus(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Licence: %s\n", status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}
