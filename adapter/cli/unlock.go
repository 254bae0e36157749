package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var unlockLegacyCmd = &cobra.Command{
	Use:   "unlock-legacy",
	Short: "Grant the legacy contrib status to an unlicensed install",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireHandler()
		if err != nil {
			return err
		}
		changed, err := a.Handler.RegisterUnlockLegacy(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to register legacy unlock: %w", err)
		}
		if changed {
			fmt.Fprintln(cmd.OutOrStdout(), "Legacy licence granted.")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "A licence is already active; nothing changed.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(unlockLegacyCmd)
}
