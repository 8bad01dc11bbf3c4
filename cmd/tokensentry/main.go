package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tokensentry/tokensentry/internal/application"
)

const (
	appName = "tokensentry"
	version = "v0.4.1"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	configureLogging("info", "auto")

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Token risk scanner for holder concentration and authority audit",
		Version: version,
		Long: `TokenSentry scores SPL token rug risk from supply concentration,
liquidity depth, and mint authority posture.

Scan one mint directly, batch a watchlist from a file, or run the HTTP
service exposing scans, report history, Prometheus metrics, and a
websocket stream of finished reports.`,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to the YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level override (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().CountP("verbose", "v", "Raise log verbosity (-v debug, -vv trace)")

	scanCmd := &cobra.Command{
		Use:   "scan [mint]",
		Short: "Build a risk report for one mint or a watchlist file",
		Long:  "Fetches supply, holder, metadata, and liquidity facts, scores them, and prints the risk report.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScan,
	}
	scanCmd.Flags().Bool("json", false, "Emit reports as JSON instead of text")
	scanCmd.Flags().Int("top-n", 0, "Override the top-N holder window of the scoring policy")
	scanCmd.Flags().Duration("timeout", 2*time.Minute, "Overall deadline for the command")
	scanCmd.Flags().String("file", "", "Scan every mint listed in this file, one per line")
	scanCmd.Flags().String("progress", "auto", "Batch progress output (auto|plain|off)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scanning HTTP service",
		Long:  "Serves scan, report history, health, Prometheus metrics, and websocket streaming endpoints.",
		RunE:  runServe,
	}
	serveCmd.Flags().String("addr", "", "Listen address as host:port (overrides config and HTTP_PORT)")

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Probe the configured fact sources",
		Long:  "Fires one real fetch per source and reports latency and failures for each.",
		RunE:  runHealth,
	}
	healthCmd.Flags().Bool("json", false, "Emit the probe results as JSON")
	healthCmd.Flags().Duration("timeout", 15*time.Second, "Deadline for all probes together")
	healthCmd.Flags().String("mint", probeMint, "Mint used for the probe calls")

	policyCmd := &cobra.Command{
		Use:   "policy",
		Short: "Print the active scoring policy",
		Long:  "Renders the effective risk policy after config and policy file resolution.",
		RunE:  runPolicy,
	}

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(policyCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// configureLogging sets the global logger. Console format needs an
// interactive terminal unless forced; everything else emits JSON.
func configureLogging(level, format string) {
	useConsole := format == "console" ||
		(format == "auto" && term.IsTerminal(int(os.Stderr.Fd())))
	if useConsole {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	applyLogLevel(level)
}

func applyLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		log.Warn().Str("level", level).Msg("unknown log level, keeping current")
		return
	}
	zerolog.SetGlobalLevel(lvl)
}

// loadConfig resolves the config file plus the shared logging flags.
// --log-level beats the file; -v beats both.
func loadConfig(cmd *cobra.Command) (*application.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	config, err := application.Load(path)
	if err != nil {
		return nil, err
	}

	level := config.Log.Level
	if override, _ := cmd.Flags().GetString("log-level"); override != "" {
		level = override
	}
	if verbosity, _ := cmd.Flags().GetCount("verbose"); verbosity == 1 {
		level = "debug"
	} else if verbosity > 1 {
		level = "trace"
	}
	configureLogging(level, config.Log.Format)
	return config, nil
}

func runPolicy(cmd *cobra.Command, args []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	policy, err := config.RiskPolicy()
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), policy.Describe())
	return nil
}
