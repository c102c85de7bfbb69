package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/setlist/internal/formatter"
	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/shared"
	"github.com/desertthunder/setlist/internal/tasks"
	"github.com/urfave/cli/v3"
)

// GenerateRun turns a prompt into an assembled playlist and stores the
// session with its first snapshot.
func (r *Runner) GenerateRun(ctx context.Context, cmd *cli.Command) error {
	prompt := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if prompt == "" {
		return fmt.Errorf("%w: a prompt is required", shared.ErrEmptyPrompt)
	}
	count := cmd.Int("count")

	r.logger.Info("starting generation", "prompt", prompt, "count", count)
	r.writePlain("Generating playlist...\n\n")

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		r.watchProgress(progressCh)
		close(done)
	}()

	result, err := r.engine.Generate(ctx, progressCh, prompt, count, nil)
	close(progressCh)
	<-done

	if err != nil {
		return err
	}

	if err := r.openDatabase(); err != nil {
		return err
	}

	session := models.NewSession(prompt, result.Intent, result.Plan)
	if err := r.sessions.Create(session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	if err := r.playlists.Create(session.ID, result.Playlist); err != nil {
		return fmt.Errorf("failed to save playlist: %w", err)
	}

	if cmd.Bool("show-plan") {
		r.writePlain("\n%s\n", formatter.RenderPlan(result.Plan))
	}

	r.writePlain("\n%s\n", formatter.RenderPlaylist(result.Playlist))
	r.writePlain("session: %s\n", session.ID)

	return r.export(cmd, result.Playlist)
}

// export writes the playlist in the requested format, if any.
func (r *Runner) export(cmd *cli.Command, playlist *models.AssembledPlaylist) error {
	format := cmd.String("format")
	output := cmd.String("output")
	if format == "" {
		return nil
	}

	switch format {
	case "csv":
		result, err := formatter.WriteCSVExport(playlist, output)
		if err != nil {
			return err
		}
		r.writePlain("exported: %s, %s\n", result.TracksFile, result.MetadataFile)
	case "markdown", "md":
		file, err := formatter.WriteMarkdownExport(playlist, output)
		if err != nil {
			return err
		}
		r.writePlain("exported: %s\n", file)
	case "text", "txt":
		file, err := formatter.WriteTextExport(playlist, output)
		if err != nil {
			return err
		}
		r.writePlain("exported: %s\n", file)
	case "json":
		return r.writeJSON(playlist, true)
	default:
		return fmt.Errorf("%w: unknown format '%s' (csv, markdown, text, json)", shared.ErrInvalidFlag, format)
	}

	return nil
}

func generateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "generate",
		Usage:     "Generate a playlist from a natural language prompt",
		ArgsUsage: "<prompt>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "Number of tracks (defaults to the prompt's own target, then 50)",
			},
			&cli.BoolFlag{
				Name:  "show-plan",
				Usage: "Print the execution plan before the playlist",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Export format (csv, markdown, text, json)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Export file or directory base path",
			},
		},
		Action: r.GenerateRun,
	}
}
