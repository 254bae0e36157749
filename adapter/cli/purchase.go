package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/tally/internal/licensing/domain"
)

var purchaseReplace bool

var purchaseCmd = &cobra.Command{
	Use:   "purchase <package>",
	Short: "Launch a store purchase of a package",
	Long: `Launch the store purchase flow for a package. The result arrives
asynchronously as a purchase update and is applied by the worker.

With --replace the active subscription is switched to the new one.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireHandler()
		if err != nil {
			return err
		}
		pkg, err := domain.ParsePackage(args[0])
		if err != nil {
			return err
		}
		if a.Session == nil {
			return fmt.Errorf("%w: no store session configured", domain.ErrSessionNotReady)
		}
		ctx := cmd.Context()
		if err := a.Session.Start(ctx); err != nil {
			return fmt.Errorf("failed to connect to store: %w", err)
		}
		err = a.Handler.LaunchPurchase(ctx, pkg, purchaseReplace, a.Session)
		switch {
		case errors.Is(err, domain.ErrProductDetailsMissing):
			return fmt.Errorf("%w (run tally refresh first)", err)
		case err != nil:
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Purchase of %s launched.\n", pkg)
		return nil
	},
}

func init() {
	purchaseCmd.Flags().BoolVar(&purchaseReplace, "replace", false, "replace the active subscription")
	rootCmd.AddCommand(purchaseCmd)
}
