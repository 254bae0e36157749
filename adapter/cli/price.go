package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/tally/internal/licensing/domain"
)

var priceCmd = &cobra.Command{
	Use:   "price <package>",
	Short: "Show the cached store price of a package",
	Long: `Show the display price of a package as last reported by the store.

Packages: Contrib, Upgrade, Extended, Professional_1, Professional_12,
Professional_Amazon. Users on EXTENDED are quoted the upgrade SKU.`,
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
		ctx := cmd.Context()
		sku, err := a.Handler.SkuForPackage(ctx, pkg)
		if err != nil {
			return err
		}
		price, ok, err := a.Handler.FormattedPrice(ctx, pkg)
		if err != nil {
			return fmt.Errorf("failed to read price: %w", err)
		}
		if !ok {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): no price cached\n", pkg, sku)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %s\n", pkg, sku, price)
		return nil
	},
}

var packagesCmd = &cobra.Command{
	Use:   "packages",
	Short: "List the packages sold in this store",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireHandler()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if !a.Flavor.UsesInAppPurchase() {
			fmt.Fprintf(out, "The %s store has no in-app billing. Unlock with: tally activate <key>\n", a.Flavor)
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PACKAGE\tSKU\tPRICE")
		for _, pkg := range storePackages(a.Flavor) {
			sku, err := a.Handler.SkuForPackage(ctx, pkg)
			if err != nil {
				return err
			}
			price, ok, err := a.Handler.FormattedPrice(ctx, pkg)
			if err != nil {
				return err
			}
			if !ok {
				price = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", pkg, sku, price)
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		if info, err := a.Handler.ProfessionalPriceShortInfo(ctx); err != nil {
			return err
		} else if info != "" {
			fmt.Fprintf(out, "\nProfessional: %s\n", info)
		}
		if pkg, ok, err := a.Handler.PackageForSwitch(ctx); err != nil {
			return err
		} else if ok {
			fmt.Fprintf(out, "Switch billing period with: tally purchase %s --replace\n", pkg)
		}
		return nil
	},
}

// storePackages lists the one-time packages followed by the professional
// offerings of the flavor.
func storePackages(flavor domain.Flavor) []domain.Package {
	pkgs := []domain.Package{domain.PackageContrib, domain.PackageUpgrade, domain.PackageExtended}
	return append(pkgs, flavor.ProPackages()...)
}

func init() {
	rootCmd.AddCommand(priceCmd)
	rootCmd.AddCommand(packagesCmd)
}
