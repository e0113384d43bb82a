package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/specagent/internal/logger"
	"github.com/jmylchreest/specagent/internal/metrics"
	"github.com/jmylchreest/specagent/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the extraction API over HTTP",
	Long: `Serve POST /v1/extract, GET /health, GET /version, and GET /metrics.

Callers authenticate with the X-API-Key header, which must match
AGENT_API_KEY. Each request may override the LLM endpoint with
llm_base_url, llm_model_name, and llm_api_key.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	PreRun: func(cmd *cobra.Command, args []string) {
		bindAgentFlags(cmd.Flags())
		_ = viper.BindPFlag("addr", cmd.Flags().Lookup("addr"))
		_ = viper.BindPFlag("agent_api_key", cmd.Flags().Lookup("agent-api-key"))
		_ = viper.BindPFlag("run_timeout", cmd.Flags().Lookup("run-timeout"))
	},
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	addAgentFlags(flags)
	flags.String("addr", ":8000", "listen address")
	flags.String("agent-api-key", "", "key callers must send in X-API-Key (or use AGENT_API_KEY)")
	flags.Duration("run-timeout", 0, "max duration of one extraction request (0=unlimited)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()
	opts, err := agentOptions(m)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return err
	}

	apiKey := viper.GetString("agent_api_key")
	if apiKey == "" {
		logger.Warn("AGENT_API_KEY is not set; /v1/ routes will refuse requests")
	}

	srv := server.New(server.Config{
		Addr:         viper.GetString("addr"),
		APIKey:       apiKey,
		AgentOptions: opts,
		RunTimeout:   viper.GetDuration("run_timeout"),
		Metrics:      m,
	})
	return srv.ListenAndServe(ctx)
}
