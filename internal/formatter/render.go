package formatter

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/shared"
)

var styles = newPalette("#7D56F4", "#04B575", "#FFA500", "#626262")

// struct palette is a simple stylesheet built with named [lipgloss.Style] fields
type palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	warn  lipgloss.Style
	dim   lipgloss.Style
}

func newPalette(t, s, w, d string) *palette {
	return &palette{
		title: newBold(t).MarginBottom(1),
		ok:    newBold(s),
		warn:  newStyle(w),
		dim:   newEm(d),
	}
}

func newStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func newBold(fg string) lipgloss.Style {
	return newStyle(fg).Bold(true)
}

func newEm(fg string) lipgloss.Style {
	return newStyle(fg).Italic(true)
}

// RenderPlaylist renders an assembled playlist as a styled track listing
// with the relaxation log appended when constraints were loosened.
func RenderPlaylist(playlist *models.AssembledPlaylist) string {
	var b strings.Builder

	b.WriteString(styles.title.Render(playlist.Name))
	b.WriteString("\n")

	for i, track := range playlist.Tracks {
		line := fmt.Sprintf("%3d. %s - %s", i+1, strings.Join(track.Artists, ", "), track.Title)
		if track.Duration > 0 {
			line += styles.dim.Render(fmt.Sprintf(" [%s]", shared.FormatDuration(track.Duration)))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	summary := fmt.Sprintf("%d tracks, %d artists", len(playlist.Tracks), len(playlist.ArtistDistribution))
	if playlist.Shortfall > 0 {
		summary += styles.warn.Render(fmt.Sprintf(" (%d short of %d)", playlist.Shortfall, playlist.Target))
	}
	b.WriteString(styles.dim.Render(summary))
	b.WriteString("\n")

	if len(playlist.Relaxations) > 0 {
		b.WriteString("\n")
		b.WriteString(RenderRelaxations(playlist.Relaxations))
	}

	return b.String()
}

// RenderPlan renders an execution plan's reasoning and tool calls.
func RenderPlan(plan models.ExecutionPlan) string {
	var b strings.Builder

	b.WriteString(styles.title.Render("Execution plan"))
	b.WriteString("\n")

	for _, thought := range plan.Thinking {
		b.WriteString(styles.dim.Render("# " + thought))
		b.WriteString("\n")
	}

	for i, call := range plan.Calls {
		b.WriteString(fmt.Sprintf("%d. %s", i+1, styles.ok.Render(string(call.Tool))))
		if call.Reason != "" {
			b.WriteString(styles.dim.Render(" " + call.Reason))
		}
		b.WriteString("\n")
	}

	b.WriteString(styles.dim.Render(fmt.Sprintf("target: %d tracks", plan.TotalTarget)))
	b.WriteString("\n")

	return b.String()
}

// RenderRelaxations renders the constraint relaxation log, one step per line.
func RenderRelaxations(steps []models.RelaxationStep) string {
	var b strings.Builder

	b.WriteString(styles.warn.Render("Relaxed constraints:"))
	b.WriteString("\n")
	for _, step := range steps {
		b.WriteString(fmt.Sprintf("  %s: %s -> %s %s\n",
			step.Constraint, step.OldValue, step.NewValue,
			styles.dim.Render(fmt.Sprintf("(yield %d -> %d)", step.YieldBefore, step.YieldAfter))))
	}

	return b.String()
}

// RenderUnapplied renders filters that could not be evaluated against the
// available track metadata.
func RenderUnapplied(unapplied []string) string {
	if len(unapplied) == 0 {
		return ""
	}
	return styles.warn.Render(fmt.Sprintf("Not applied (no supporting track data): %s", strings.Join(unapplied, ", ")))
}
