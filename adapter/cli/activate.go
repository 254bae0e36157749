package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/tally/internal/licensing/domain"
)

var activateCmd = &cobra.Command{
	Use:   "activate <key>",
	Short: "Unlock a tier with a signed licence key",
	Long: `Verify a licence key offline and unlock the tier it names.

Keys are only accepted by stores without in-app billing, and only when
TALLY_LICENCE_PUBLIC_KEY is configured.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireHandler()
		if err != nil {
			return err
		}
		status, err := a.Handler.ActivateKey(cmd.Context(), args[0])
		switch {
		case errors.Is(err, domain.ErrKeyEntryUnsupported):
			return fmt.Errorf("%w: buy through the %s store instead", err, a.Flavor)
		case err != nil:
			return fmt.Errorf("failed to activate licence: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Licence activated: %s\n", status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(activateCmd)
}
