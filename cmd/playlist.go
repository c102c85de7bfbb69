package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/setlist/internal/formatter"
	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/shared"
	"github.com/desertthunder/setlist/internal/tasks"
	"github.com/urfave/cli/v3"
)

// loadSession resolves the working session: --session when given, otherwise
// the most recent one. The current snapshot and blacklist come with it.
func (r *Runner) loadSession(cmd *cli.Command) (*models.Session, *models.AssembledPlaylist, models.Blacklist, error) {
	if err := r.openDatabase(); err != nil {
		return nil, nil, nil, err
	}

	var session *models.Session
	var err error
	if id := cmd.String("session"); id != "" {
		session, err = r.sessions.Get(id)
	} else {
		session, err = r.sessions.Latest()
	}
	if err != nil {
		return nil, nil, nil, err
	}

	playlist, err := r.playlists.Latest(session.ID)
	if err != nil {
		return nil, nil, nil, err
	}

	bl, err := r.sessions.Blacklist(session.ID)
	if err != nil {
		return nil, nil, nil, err
	}

	return session, playlist, bl, nil
}

// PlaylistShow prints the session's current snapshot.
func (r *Runner) PlaylistShow(ctx context.Context, cmd *cli.Command) error {
	_, playlist, _, err := r.loadSession(cmd)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlist, cmd.Bool("pretty"))
	}

	r.writePlain("%s\n", formatter.RenderPlaylist(playlist))
	return nil
}

// PlaylistAdd extends the current playlist by n tracks.
func (r *Runner) PlaylistAdd(ctx context.Context, cmd *cli.Command) error {
	n := cmd.Int("n")

	session, playlist, bl, err := r.loadSession(cmd)
	if err != nil {
		return err
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		r.watchProgress(progressCh)
		close(done)
	}()

	updated, err := r.engine.AddMore(ctx, progressCh, playlist, bl, session.Intent, n)
	close(progressCh)
	<-done

	if err != nil {
		return err
	}

	if err := r.playlists.Create(session.ID, updated); err != nil {
		return fmt.Errorf("failed to save playlist: %w", err)
	}

	r.writePlain("%s\n", formatter.RenderPlaylist(updated))
	return nil
}

// PlaylistRemove drops a track, blacklists it for the session and backfills.
func (r *Runner) PlaylistRemove(ctx context.Context, cmd *cli.Command) error {
	trackID := cmd.Args().First()
	if trackID == "" {
		return fmt.Errorf("%w: a track id is required", shared.ErrMissingArgument)
	}

	session, playlist, bl, err := r.loadSession(cmd)
	if err != nil {
		return err
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		r.watchProgress(progressCh)
		close(done)
	}()

	updated, err := r.engine.Remove(ctx, progressCh, playlist, bl, session.Intent, trackID)
	close(progressCh)
	<-done

	if err != nil {
		return err
	}

	if err := r.sessions.AppendBlacklist(session.ID, trackID); err != nil {
		return fmt.Errorf("failed to record removal: %w", err)
	}
	if err := r.playlists.Create(session.ID, updated); err != nil {
		return fmt.Errorf("failed to save playlist: %w", err)
	}

	r.writePlain("%s\n", formatter.RenderPlaylist(updated))
	return nil
}

// PlaylistRefine filters the current playlist and backfills the removals.
func (r *Runner) PlaylistRefine(ctx context.Context, cmd *cli.Command) error {
	filters := tasks.RefineFilters{
		Genres:    cmd.StringSlice("genre"),
		MinYear:   cmd.Int("min-year"),
		MaxYear:   cmd.Int("max-year"),
		Mood:      cmd.String("mood"),
		MinEnergy: cmd.Float("min-energy"),
		MaxEnergy: cmd.Float("max-energy"),
		Tempo: models.TempoRange{
			MinBPM: cmd.Int("min-bpm"),
			MaxBPM: cmd.Int("max-bpm"),
		},
	}

	session, playlist, bl, err := r.loadSession(cmd)
	if err != nil {
		return err
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		r.watchProgress(progressCh)
		close(done)
	}()

	updated, result, err := r.engine.Refine(ctx, progressCh, playlist, bl, session.Intent, filters)
	close(progressCh)
	<-done

	if err != nil {
		return err
	}

	session.Intent = refineIntent(session.Intent, filters)
	if err := r.sessions.Update(session); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if err := r.playlists.Create(session.ID, updated); err != nil {
		return fmt.Errorf("failed to save playlist: %w", err)
	}

	r.writePlain("%s\n", formatter.RenderPlaylist(updated))
	if msg := formatter.RenderUnapplied(result.Unapplied); msg != "" {
		r.writePlain("%s\n", msg)
	}

	return nil
}

// PlaylistExport writes the current snapshot in the requested format.
func (r *Runner) PlaylistExport(ctx context.Context, cmd *cli.Command) error {
	_, playlist, _, err := r.loadSession(cmd)
	if err != nil {
		return err
	}
	return r.export(cmd, playlist)
}

// refineIntent narrows the stored intent so later mutations honor the
// applied filters.
func refineIntent(in models.Intent, filters tasks.RefineFilters) models.Intent {
	out := in.Clone()
	if len(filters.Genres) > 0 {
		out.Genres = append([]string{}, filters.Genres...)
	}
	if filters.MinYear > 0 {
		out.Era.MinYear = filters.MinYear
	}
	if filters.MaxYear > 0 {
		out.Era.MaxYear = filters.MaxYear
	}
	return out
}

func playlistCommand(r *Runner) *cli.Command {
	sessionFlag := &cli.StringFlag{
		Name:    "session",
		Aliases: []string{"s"},
		Usage:   "Session ID (defaults to the most recent session)",
	}

	return &cli.Command{
		Name:  "playlist",
		Usage: "Inspect and mutate the assembled playlist",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the current playlist",
				Flags: []cli.Flag{
					sessionFlag,
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
					&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print JSON output"},
				},
				Action: r.PlaylistShow,
			},
			{
				Name:  "add",
				Usage: "Add more tracks matching the session's intent",
				Flags: []cli.Flag{
					sessionFlag,
					&cli.IntFlag{
						Name:  "n",
						Usage: "Number of tracks to add",
						Value: 10,
					},
				},
				Action: r.PlaylistAdd,
			},
			{
				Name:      "remove",
				Usage:     "Remove a track and backfill its slot",
				ArgsUsage: "<track-id>",
				Flags:     []cli.Flag{sessionFlag},
				Action:    r.PlaylistRemove,
			},
			{
				Name:  "refine",
				Usage: "Filter the playlist and backfill what was removed",
				Flags: []cli.Flag{
					sessionFlag,
					&cli.StringSliceFlag{Name: "genre", Usage: "Keep only these genres"},
					&cli.IntFlag{Name: "min-year", Usage: "Keep tracks released on or after this year"},
					&cli.IntFlag{Name: "max-year", Usage: "Keep tracks released on or before this year"},
					&cli.StringFlag{Name: "mood", Usage: "Desired mood (best effort)"},
					&cli.FloatFlag{Name: "min-energy", Usage: "Minimum energy 0-1 (best effort)"},
					&cli.FloatFlag{Name: "max-energy", Usage: "Maximum energy 0-1 (best effort)"},
					&cli.IntFlag{Name: "min-bpm", Usage: "Minimum tempo in BPM (best effort)"},
					&cli.IntFlag{Name: "max-bpm", Usage: "Maximum tempo in BPM (best effort)"},
				},
				Action: r.PlaylistRefine,
			},
			{
				Name:  "export",
				Usage: "Export the current playlist",
				Flags: []cli.Flag{
					sessionFlag,
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format (csv, markdown, text, json)",
						Value:   "text",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Export file or directory base path",
					},
				},
				Action: r.PlaylistExport,
			},
		},
	}
}
