package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/cosmicworks/cosmo/internal/agent"
	"github.com/cosmicworks/cosmo/internal/embedder"
	"github.com/cosmicworks/cosmo/internal/logging"
	"github.com/cosmicworks/cosmo/internal/provider"
	"github.com/cosmicworks/cosmo/internal/rag"
	"github.com/cosmicworks/cosmo/internal/server"
	"github.com/cosmicworks/cosmo/internal/tracing"
)

// NewServeCmd constructs the `cosmo serve` command, which starts the HTTP
// API that fronts the agent pool and the session store.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Cosmo HTTP API",
		Long: `Start the Cosmo HTTP API on localhost.

The server exposes POST /ai for conversation turns and GET /session/*
for browsing stored conversations. One agent is pooled per active session,
so consecutive turns of the same conversation reuse warm state.

Examples:
  cosmo serve
  cosmo serve --port 9090
  MODEL_PROVIDER=azure cosmo serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			backend := getEnvOrDefault("MODEL_PROVIDER", "ollama")
			log.Info("serve starting", slog.String("provider", backend))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			log.Info("provider initialised", slog.String("provider", backend))

			if err := embedder.Validate(log); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("serve: failed to initialise embedder: %w", err)
			}

			index, err := openVectorIndex(ctx)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() { _ = index.Close() }()

			catalogStore, err := openCatalog()
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() { _ = catalogStore.Close() }()

			sessionStore, err := openSessionStore()
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() { _ = sessionStore.Close() }()

			retriever, err := rag.NewProductRetriever(emb, index, catalogStore, nil)
			if err != nil {
				return fmt.Errorf("serve: failed to create retriever: %w", err)
			}

			agentTools := buildTools(catalogStore, retriever)

			pool := agent.NewPool(func(ctx context.Context, sessionID string) (*agent.CosmoAgent, error) {
				return agent.New(ctx, &agent.Config{
					ChatModel: chatModel,
					Tools:     agentTools,
					Sessions:  sessionStore,
					SessionID: sessionID,
				})
			}, 0)

			pingers := []server.Pinger{
				server.NewLLMPinger(chatModel, backend),
				server.NewQdrantPinger(index.Client()),
				server.NewStorePinger("sessions", sessionStore.Ping),
				server.NewStorePinger("catalog", catalogStore.Ping),
			}

			srv, err := server.New(pool, sessionStore, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("COSMO_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
