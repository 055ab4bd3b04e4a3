package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/voicebridge/voicerag/cmd/voicerag/internal/config"
)

var (
	// Global flags
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "voicerag",
	Short: "Realtime voice gateway with knowledge-base grounding",
	Long: `voicerag - A gateway between realtime voice clients and an upstream
conversational model service.

The gateway relays the realtime WebSocket protocol in both directions,
enforces server-side session policy (instructions, voice, tool list), and
executes knowledge-base tools on behalf of the model so that credentials
and retrieval stay server-side.

Configuration comes from a YAML file (--config) with VOICERAG_* environment
variables taking precedence.

Examples:
  # Populate the knowledge base from a directory of text files
  voicerag ingest --dir ./corpus

  # Run the gateway
  VOICERAG_API_KEY=... voicerag serve --config voicerag.yaml

  # Watch a live session's event stream
  voicerag tap --url ws://localhost:8765/realtime --jq .type`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func initLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// loadConfig loads the configuration honoring the --config flag.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}
