package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/store"
)

func newSessionsCmd(opts *options) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			sessions, err := st.Sessions().List(limit)
			if err != nil {
				return fmt.Errorf("failed to list sessions: %w", err)
			}
			return writeSessions(cmd.OutOrStdout(), sessions)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum sessions to show (0 for all)")
	return cmd
}

func writeSessions(out io.Writer, sessions []*store.Session) error {
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions recorded.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tDURATION\tOPEN\tCLOSED\tTHUMB RULE")
	fmt.Fprintln(w, "--\t-------\t--------\t----\t------\t----------")

	for _, s := range sessions {
		duration := "running"
		if s.EndedAt != nil {
			duration = s.Duration().Round(time.Second).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			s.ID, s.StartedAt.Local().Format("2006-01-02 15:04"), duration, s.OpenCount, s.ClosedCount, s.ThumbRule)
	}
	return w.Flush()
}

func newEventsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "events <session-id>",
		Short: "Print a session's transitions as log lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if _, err := uuid.Parse(id); err != nil {
				return fmt.Errorf("invalid session id %q: %w", id, err)
			}

			st, err := opts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if _, err := st.Sessions().GetByID(id); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("session %s not found", id)
				}
				return err
			}

			events, err := st.Events().ListBySession(id)
			if err != nil {
				return fmt.Errorf("failed to list events: %w", err)
			}
			writeEvents(cmd.OutOrStdout(), events)
			return nil
		},
	}
}

// writeEvents prints one "2006-01-02 15:04:05: Hand Open" line per event.
func writeEvents(out io.Writer, events []*store.Event) {
	for _, e := range events {
		fmt.Fprintln(out, e.String())
	}
}
