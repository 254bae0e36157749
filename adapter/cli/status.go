package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/tally/internal/licensing/domain"
)

var errNotInitialized = errors.New("licence handler not available")

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active licence tier and add-ons",
	Long: `Show the stored licence record: the active tier, the raw status code,
the current subscription and the add-on features bought separately.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireHandler()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		snapshot, err := a.Handler.Snapshot(ctx)
		if err != nil {
			return fmt.Errorf("failed to read licence status: %w", err)
		}

		out := cmd.OutOrStdout()
		if statusJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(snapshot)
		}

		fmt.Fprintf(out, "Store:    %s\n", a.Flavor)
		fmt.Fprintf(out, "Licence:  %s\n", snapshot.LicenceStatus)
		fmt.Fprintf(out, "Code:     %s\n", snapshot.ContribStatus)
		if snapshot.InitialTimestamp > 0 {
			first := time.UnixMilli(snapshot.InitialTimestamp).UTC()
			fmt.Fprintf(out, "First:    %s\n", first.Format(time.RFC3339))
			if snapshot.ContribStatus.IsTemporary() {
				fmt.Fprintf(out, "Refund window ends %s\n", first.Add(domain.RefundWindow).Format(time.RFC3339))
			}
		}
		if snapshot.CurrentSubscription != "" {
			recurrence, err := a.Handler.ProLicenceRecurrence(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Subscription: %s (%s)\n", snapshot.CurrentSubscription, recurrence)
		}
		if snapshot.OrderID != "" {
			fmt.Fprintf(out, "Order:    %s\n", snapshot.OrderID)
		}
		if len(snapshot.AddOns) == 0 {
			fmt.Fprintln(out, "Add-ons:  none")
			return nil
		}
		fmt.Fprintln(out, "Add-ons:")
		for _, f := range snapshot.AddOns {
			fmt.Fprintf(out, "  - %s\n", f)
		}
		return nil
	},
}

var featureCmd = &cobra.Command{
	Use:   "feature <name>",
	Short: "Check whether an add-on feature is usable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireHandler()
		if err != nil {
			return err
		}
		feature, err := parseFeature(args[0])
		if err != nil {
			return err
		}
		enabled, err := a.Handler.IsFeatureEnabled(cmd.Context(), feature)
		if err != nil {
			return err
		}
		if enabled {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: enabled\n", feature)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: locked (requires %s or a separate purchase)\n",
				feature, feature.RequiredStatus())
		}
		return nil
	},
}

func parseFeature(name string) (domain.AddOnFeature, error) {
	for _, f := range domain.AddOnFeatures {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown feature %q", name)
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the record as JSON")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(featureCmd)
}
