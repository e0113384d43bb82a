package commands

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/specagent/pkg/billing"
)

var billingCmd = &cobra.Command{
	Use:   "billing",
	Short: "Print the billing decision for a run result",
	Long: `Evaluate the billing rules for a run status and validated record count.

Examples:
  specagent billing --status completed --validated-count 12
  specagent billing --status completed_with_failures --validated-count 0`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		count, _ := cmd.Flags().GetInt("validated-count")

		d := billing.Decide(billing.Summary{Status: status, ValidatedCount: count})
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	},
}

func init() {
	rootCmd.AddCommand(billingCmd)

	billingCmd.Flags().String("status", "", "run status: completed, completed_with_failures, failed")
	billingCmd.Flags().Int("validated-count", 0, "number of validated records")
	_ = billingCmd.MarkFlagRequired("status")
}
