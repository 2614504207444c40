package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/quilldocs/quill/internal/answer"
	"github.com/quilldocs/quill/internal/api"
	"github.com/quilldocs/quill/internal/chunker"
	"github.com/quilldocs/quill/internal/config"
	"github.com/quilldocs/quill/internal/conversation"
	"github.com/quilldocs/quill/internal/engine"
	"github.com/quilldocs/quill/internal/loader"
	"github.com/quilldocs/quill/internal/ollama"
	"github.com/quilldocs/quill/internal/pipeline"
	"github.com/quilldocs/quill/internal/retrieval"
	"github.com/quilldocs/quill/internal/storage"
)

// conversationCap bounds stored turns per conversation to keep memory flat
// on long-running sessions. Only the last HistoryTurns are injected anyway.
const conversationCap = 100

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the quill server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func logLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "quill version %s\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.Log.Level)})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Check Ollama readiness, pulling missing models.
	eng := engine.NewOllamaEngine(cfg.Ollama.BaseURL, engine.GenerationSettings{
		Temperature: cfg.Ollama.Temperature,
		MaxTokens:   cfg.Ollama.MaxTokens,
	})
	if err := ollama.EnsureReady(ctx, eng.Client(), cfg.Ollama.ChatModel, cfg.Ollama.EmbedModel, os.Stderr); err != nil {
		return err
	}

	// Select the vector store backend.
	var vectorStore retrieval.VectorStore
	switch cfg.Storage.Type {
	case "qdrant":
		qs, err := retrieval.NewQdrantStore(cfg.Storage.QdrantAddr, cfg.Storage.Collection)
		if err != nil {
			return fmt.Errorf("connecting to qdrant: %w", err)
		}
		defer qs.Close()
		vectorStore = qs
		slog.Info("using qdrant vector store", "addr", cfg.Storage.QdrantAddr, "collection", cfg.Storage.Collection)
	default:
		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
			}
		}()
		vectorStore = retrieval.NewSQLiteStore(store.DB())
		slog.Info("using sqlite vector store", "data_dir", cfg.Storage.DataDir)
	}

	// Build the Q&A pipeline.
	embedder := retrieval.NewEmbedder(eng, cfg.Ollama.EmbedModel)
	retriever := retrieval.NewRetriever(embedder, vectorStore, float32(cfg.Retrieval.MinScore))
	synthesizer := answer.NewSynthesizer(eng, cfg.Ollama.ChatModel, answer.Thresholds{
		MinScore:    float32(cfg.Retrieval.MinScore),
		StrongScore: float32(cfg.Retrieval.StrongScore),
	})
	tracker := conversation.NewTracker(conversationCap)
	svc := pipeline.NewService(
		loader.DefaultRegistry(),
		chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap),
		embedder,
		vectorStore,
		retriever,
		synthesizer,
		tracker,
		cfg.Retrieval.TopK,
		cfg.Retrieval.HistoryTurns,
	)

	handler := api.NewHandler(api.Deps{Pipeline: svc, Version: version})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Pipeline: svc,
		Searcher: retriever,
		Version:  version,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "quill listening on %s\n", addr)
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

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
