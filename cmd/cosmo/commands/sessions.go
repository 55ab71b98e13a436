package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cosmicworks/cosmo/internal/session"
)

// NewSessionsCmd constructs the `cosmo sessions` command group for browsing
// persisted conversations from the terminal.
func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Browse stored conversation sessions",
	}

	cmd.AddCommand(newSessionsListCmd(), newSessionsShowCmd())

	return cmd
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all stored sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSessionStore()
			if err != nil {
				return fmt.Errorf("sessions list: %w", err)
			}
			defer func() { _ = store.Close() }()

			summaries, err := store.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("sessions list: %w", err)
			}

			if len(summaries) == 0 {
				fmt.Println("no sessions stored")
				return nil
			}
			for _, s := range summaries {
				fmt.Printf("%s\t%s\n", s.ID, s.Title)
			}
			return nil
		},
	}
}

func newSessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [session-id]",
		Short: "Print the full message history of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSessionStore()
			if err != nil {
				return fmt.Errorf("sessions show: %w", err)
			}
			defer func() { _ = store.Close() }()

			sess, err := store.Load(cmd.Context(), args[0])
			if errors.Is(err, session.ErrNotFound) {
				return fmt.Errorf("sessions show: no session with id %s", args[0])
			}
			if err != nil {
				return fmt.Errorf("sessions show: %w", err)
			}

			fmt.Printf("%s (%s)\n\n", sess.Title, sess.ID)
			for _, msg := range sess.History {
				fmt.Printf("[%s] %s\n\n", msg.Role, msg.Content)
			}
			return nil
		},
	}
}
