package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// SessionList prints all sessions, oldest first.
func (r *Runner) SessionList(ctx context.Context, cmd *cli.Command) error {
	if err := r.openDatabase(); err != nil {
		return err
	}

	sessions, err := r.sessions.List()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(sessions, cmd.Bool("pretty"))
	}

	if len(sessions) == 0 {
		r.writePlain("No sessions yet. Run 'setlist generate' first.\n")
		return nil
	}

	r.writePlainHeader("Sessions")
	for _, session := range sessions {
		r.writePlain("%s  %s  %s\n",
			session.ID, session.CreatedAt.Format("2006-01-02 15:04"), session.Prompt)
	}

	return nil
}

// SessionHistory prints the snapshot history of one session.
func (r *Runner) SessionHistory(ctx context.Context, cmd *cli.Command) error {
	if err := r.openDatabase(); err != nil {
		return err
	}

	session, err := r.sessions.Get(cmd.Args().First())
	if err != nil {
		return err
	}

	snapshots, err := r.playlists.ListBySession(session.ID)
	if err != nil {
		return err
	}

	r.writePlainHeader(fmt.Sprintf("Snapshots for %q", session.Prompt))
	for i, snapshot := range snapshots {
		line := fmt.Sprintf("%d. %s  target %d", i+1, snapshot.ID, snapshot.Target)
		if snapshot.Shortfall > 0 {
			line += fmt.Sprintf("  (short %d)", snapshot.Shortfall)
		}
		r.writePlain("%s\n", line)
	}

	return nil
}

// SessionDelete soft-deletes a session.
func (r *Runner) SessionDelete(ctx context.Context, cmd *cli.Command) error {
	if err := r.openDatabase(); err != nil {
		return err
	}

	id := cmd.Args().First()
	if err := r.sessions.Delete(id); err != nil {
		return err
	}

	r.writePlain("deleted session %s\n", id)
	return nil
}

func sessionCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "Manage generation sessions",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List all sessions",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
					&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print JSON output"},
				},
				Action: r.SessionList,
			},
			{
				Name:      "history",
				Usage:     "Show a session's snapshot history",
				ArgsUsage: "<session-id>",
				Action:    r.SessionHistory,
			},
			{
				Name:      "delete",
				Usage:     "Delete a session",
				ArgsUsage: "<session-id>",
				Action:    r.SessionDelete,
			},
		},
	}
}
