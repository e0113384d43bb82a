// Package commands implements the CLI commands for specagent.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/specagent/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "specagent",
	Short: "LLM-driven extraction of engineering constraints from regulatory documents",
	Long: `Specagent reads a regulatory or technical document, asks an LLM to pull
out engineering constraints for each extraction goal, validates every
record against the constraint schema, and repairs invalid records before
giving up on them.

Examples:
  # Extract constraints from a code document
  specagent extract gb50016.txt

  # Use a specific endpoint and model
  specagent extract gb50016.txt --base-url https://api.openai.com/v1 \
      -m gpt-4o-mini -p openai

  # Allow three repair attempts and record an audit trail
  specagent extract gb50016.txt --retry-ceiling 3 --trace-file run.jsonl

  # Serve the extraction API
  AGENT_API_KEY=secret specagent serve --addr :8000`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogger()
	},
}

// traceFile is the open audit trail, if any.
var traceFile *os.File

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.specagent.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress progress output")
	rootCmd.PersistentFlags().Bool("log-json", false, "log as JSON")
	rootCmd.PersistentFlags().String("trace-file", "", "append every log record to this file as JSON lines")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("log_json", rootCmd.PersistentFlags().Lookup("log-json"))
	_ = viper.BindPFlag("trace_file", rootCmd.PersistentFlags().Lookup("trace-file"))
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".specagent")
		viper.SetConfigType("yaml")
	}

	// Environment variables
	viper.SetEnvPrefix("SPECAGENT")
	viper.AutomaticEnv()

	_ = viper.BindEnv("agent_api_key", "AGENT_API_KEY", "SPECAGENT_AGENT_API_KEY")

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()
}

func initLogger() error {
	opts := logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
		JSON:  viper.GetBool("log_json"),
	}

	if path := viper.GetString("trace_file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //#nosec G304 -- CLI tool writes to user-specified file
		if err != nil {
			return fmt.Errorf("open trace file: %w", err)
		}
		traceFile = f
		opts.TraceFile = f
	}

	logger.Init(opts)
	return nil
}

// Execute runs the root command.
func Execute() error {
	defer func() {
		if traceFile != nil {
			_ = traceFile.Close()
		}
	}()
	return rootCmd.Execute()
}

// logInfo prints an info message to stderr (unless quiet mode).
func logInfo(format string, args ...any) {
	if !viper.GetBool("quiet") {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
