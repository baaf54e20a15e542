package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/clipsight/clipsight/internal/api"
	"github.com/clipsight/clipsight/internal/broker"
	"github.com/clipsight/clipsight/internal/composer"
	"github.com/clipsight/clipsight/internal/config"
	"github.com/clipsight/clipsight/internal/ingest"
	"github.com/clipsight/clipsight/internal/llm"
	"github.com/clipsight/clipsight/internal/pipeline"
	"github.com/clipsight/clipsight/internal/retrieval"
	"github.com/clipsight/clipsight/internal/storage"
	"github.com/clipsight/clipsight/internal/store"
	"github.com/clipsight/clipsight/internal/synthesis"
)

const drainTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the clipsight HTTP service (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "clipsight version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if cfg.MCP.SSEURL == "" {
		return fmt.Errorf("missing required config: tool provider URL. Set it via environment variable CLIPSIGHT_MCP_SSE_URL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open the vector index database.
	db, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// State store over the local filesystem.
	objects, err := store.NewFSStore(filepath.Join(cfg.Storage.DataDir, "objects"))
	if err != nil {
		return fmt.Errorf("opening object store: %w", err)
	}
	stateStore := store.New(objects)

	// Model client and pipeline components.
	llmClient := llm.New(cfg.OpenAI.APIKey, cfg.OpenAI.ChatModel, cfg.OpenAI.EmbedModel)
	embedder := retrieval.NewEmbedder(llmClient)
	vectorStore := retrieval.NewSQLiteStore(db.SQL())
	retriever := retrieval.NewRetriever(embedder, vectorStore, logger)
	assembler := composer.NewAssembler(cfg.Retrieval.MaxContextTokens)

	dialer := &broker.MCPDialer{
		URL:           cfg.MCP.SSEURL,
		ClientName:    "clipsight",
		ClientVersion: version,
	}
	toolBroker := broker.New(dialer, []broker.Selector{
		&broker.LLMSelector{Client: llmClient},
		&broker.RuleSelector{},
	}, logger)

	synthesizer := synthesis.New(llmClient, logger)

	orchestrator := pipeline.New(
		stateStore,
		retriever,
		assembler,
		toolBroker,
		synthesizer,
		cfg.Retrieval.TopK,
		pipelineTimeouts(cfg.Pipeline, logger),
		logger,
	)

	indexer := ingest.NewIndexer(stateStore, embedder, vectorStore, logger)

	handler := api.NewHandler(api.Deps{
		Store:        stateStore,
		Orchestrator: orchestrator,
		Indexer:      indexer,
		VideoBaseURL: cfg.Server.VideoBaseURL,
		Logger:       logger,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "clipsight listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Stop accepting requests, then let in-flight answer runs finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if !orchestrator.Drain(drainTimeout) {
		logger.Warn("shutdown abandoned in-flight runs", slog.Duration("waited", drainTimeout))
	}
	return nil
}

// pipelineTimeouts parses the configured duration strings, falling back
// to the stage defaults on empty or invalid values.
func pipelineTimeouts(cfg config.PipelineConfig, logger *slog.Logger) pipeline.Timeouts {
	parse := func(name, raw string) time.Duration {
		if raw == "" {
			return 0
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			logger.Warn("invalid stage timeout, using default",
				slog.String("stage", name), slog.String("value", raw))
			return 0
		}
		return d
	}
	return pipeline.Timeouts{
		Retrieve:   parse("retrieve", cfg.RetrieveTimeout),
		Broker:     parse("broker", cfg.BrokerTimeout),
		Synthesize: parse("synthesize", cfg.SynthesizeTimeout),
	}
}
