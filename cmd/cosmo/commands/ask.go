package commands

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cosmicworks/cosmo/internal/agent"
	"github.com/cosmicworks/cosmo/internal/embedder"
	"github.com/cosmicworks/cosmo/internal/provider"
	"github.com/cosmicworks/cosmo/internal/rag"
)

// NewAskCmd constructs the `cosmo ask` command, which runs a single
// conversation turn and prints the assistant's answer to stdout.
func NewAskCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask Cosmo a question about the store",
		Long: `Ask the Cosmo agent a natural language question about Cosmic Works
products, customers, or sales orders.

Each invocation is one turn of a persisted conversation. Pass --session to
continue an earlier conversation; without it a fresh session is created and
its id printed, so a follow-up question can pick up where this one left off.

Examples:
  cosmo ask "what mountain bikes do you sell under $1000?"
  cosmo ask --session 8f14e45f "do you have that in red?"
  cosmo ask "what is in sales order 06FE91D2-B5B0-471F-BA33-FB0AC5B67B04?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := slog.Default()

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("ask: failed to initialise model provider: %w", err)
			}

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("ask: failed to initialise embedder: %w", err)
			}

			index, err := openVectorIndex(ctx)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer func() { _ = index.Close() }()

			catalogStore, err := openCatalog()
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer func() { _ = catalogStore.Close() }()

			sessionStore, err := openSessionStore()
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer func() { _ = sessionStore.Close() }()

			retriever, err := rag.NewProductRetriever(emb, index, catalogStore, nil)
			if err != nil {
				return fmt.Errorf("ask: failed to create retriever: %w", err)
			}

			fresh := sessionID == ""
			if fresh {
				sessionID = uuid.NewString()
			}

			cosmo, err := agent.New(ctx, &agent.Config{
				ChatModel: chatModel,
				Tools:     buildTools(catalogStore, retriever),
				Sessions:  sessionStore,
				SessionID: sessionID,
			})
			if err != nil {
				return fmt.Errorf("ask: failed to initialise agent: %w", err)
			}

			answer, err := cosmo.Run(ctx, args[0])
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Println(answer)
			if fresh {
				log.Info("session created", slog.String("session_id", sessionID),
					slog.String("hint", "pass --session to continue this conversation"))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session id to continue (default: start a new session)")

	return cmd
}
