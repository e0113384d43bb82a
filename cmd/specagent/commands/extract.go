package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/specagent/internal/logger"
	"github.com/jmylchreest/specagent/internal/output"
	"github.com/jmylchreest/specagent/pkg/agent"
	"github.com/jmylchreest/specagent/pkg/billing"
)

// errRunFailed marks a run that finished in the failed state. The result has
// already been written, so main only needs the exit code.
var errRunFailed = errors.New("extraction run failed")

var extractCmd = &cobra.Command{
	Use:   "extract <document>",
	Short: "Extract constraint records from a document",
	Long: `Run the extraction agent over a UTF-8 text document.

The result is written in the chosen format. The command exits non-zero
when the run fails (unreadable document, aborted run); a run that only
discarded some records still succeeds.

Examples:
  specagent extract gb50016.txt
  specagent extract gb50016.txt --format jsonl -o records.jsonl
  specagent extract gb50016.txt --goals goals.yaml --retry-ceiling 2`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	PreRun: func(cmd *cobra.Command, args []string) {
		bindAgentFlags(cmd.Flags())
	},
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	flags := extractCmd.Flags()
	addAgentFlags(flags)

	// Output settings
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "json", "output format: json, jsonl, yaml")
	flags.Bool("compact", false, "disable pretty-printing for json output")
	flags.Bool("billing", false, "log the billing decision for the run")
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Debug("extract command starting", "document", args[0])

	formatStr, _ := cmd.Flags().GetString("format")
	format, err := output.ParseFormat(formatStr)
	if err != nil {
		return err
	}

	opts, err := agentOptions()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return err
	}

	a, err := agent.New(agent.File(args[0]), opts...)
	if err != nil {
		logger.Error("failed to initialize agent", "error", err)
		return err
	}

	// Setup output
	outFile := os.Stdout
	if outPath, _ := cmd.Flags().GetString("output"); outPath != "" {
		f, err := os.Create(outPath) //#nosec G304 -- CLI tool writes to user-specified output file
		if err != nil {
			logger.Error("failed to create output file", "path", outPath, "error", err)
			return err
		}
		defer func() { _ = f.Close() }()
		outFile = f
	}

	compact, _ := cmd.Flags().GetBool("compact")
	writer, err := output.NewWriter(outFile, format, output.WithPretty(!compact))
	if err != nil {
		return err
	}
	defer func() { _ = writer.Close() }()

	out, err := a.Run(ctx)
	if err != nil {
		logger.Error("agent run failed", "error", err)
		return err
	}

	if err := writer.Write(out); err != nil {
		logger.Error("failed to write output", "error", err)
		return err
	}

	logInfo("%s: %d validated, %d discarded", out.Status, len(out.ValidatedItems), out.FailedItemsCount)
	logger.Debug("run trace", "events", len(a.Trace()))

	if want, _ := cmd.Flags().GetBool("billing"); want {
		d := billing.Decide(billing.Summary{Status: out.BillingStatus(), ValidatedCount: len(out.ValidatedItems)})
		logger.Info("billing decision", "billable", d.Billable, "reason", d.Reason, "unit", d.Unit)
	}

	if !out.Succeeded() {
		return errRunFailed
	}
	return nil
}
