package commands

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/voicebridge/voicerag/pkg/gateway"
	"github.com/voicebridge/voicerag/pkg/rag"
	"github.com/voicebridge/voicerag/pkg/relay"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the realtime gateway",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateServe(); err != nil {
		return err
	}
	logger := slog.Default()

	var embedder rag.Embedder
	if cfg.EmbedAPIKey != "" {
		embOpts := []rag.EmbedderOption{}
		if cfg.EmbedModel != "" {
			embOpts = append(embOpts, rag.WithEmbedModel(cfg.EmbedModel))
		}
		if cfg.EmbedBaseURL != "" {
			embOpts = append(embOpts, rag.WithEmbedBaseURL(cfg.EmbedBaseURL))
		}
		embedder, err = rag.NewOpenAIEmbedder(cfg.EmbedAPIKey, embOpts...)
		if err != nil {
			return err
		}
	} else {
		logger.Info("no embed key configured, using keyword search")
	}

	index, err := rag.OpenIndex(rag.IndexOptions{
		Dir:      cfg.IndexDir,
		Embedder: embedder,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer index.Close()
	logger.Info("knowledge base opened", "dir", cfg.IndexDir, "documents", index.Len())

	tools := relay.NewRegistry()
	rag.AttachTools(tools, index)

	var answerer gateway.Answerer
	if cfg.ChatAPIKey != "" && cfg.ChatModel != "" {
		answerer, err = gateway.NewChatAnswerer(cfg.ChatAPIKey, cfg.ChatModel, cfg.ChatBaseURL)
		if err != nil {
			return err
		}
	}

	gw := gateway.New(gateway.Options{
		Relay: relay.SessionConfig{
			Endpoint:     cfg.Endpoint,
			Deployment:   cfg.Deployment,
			APIVersion:   cfg.APIVersion,
			APIKey:       cfg.APIKey,
			Instructions: cfg.Instructions,
			Voice:        cfg.Voice,
		},
		Tools:     tools,
		Index:     index,
		Answerer:  answerer,
		StaticDir: cfg.StaticDir,
		Logger:    logger,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return gw.Serve(ctx, cfg.ListenAddr)
}
