package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics",
	Short: "Show recent licensing diagnostics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireHandler()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if a.Diagnostics == nil {
			fmt.Fprintln(out, "No diagnostics recorded.")
			return nil
		}
		reports := a.Diagnostics.Recent()
		if len(reports) == 0 {
			fmt.Fprintln(out, "No diagnostics recorded.")
			return nil
		}
		for _, r := range reports {
			fmt.Fprintf(out, "%s  %s", r.At.Format(time.RFC3339), r.Message)
			for i := 0; i+1 < len(r.Attrs); i += 2 {
				fmt.Fprintf(out, " %v=%v", r.Attrs[i], r.Attrs[i+1])
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(diagnosticsCmd)
}
