// package tasks implements the playlist assembly pipeline.
//
// The core abstraction is AssemblyEngine, which orchestrates intent parsing,
// execution planning, multi-source collection with constraint relaxation, and
// final assembly, plus the incremental mutations against a live playlist.
// Operations emit progress updates via channels for non-blocking status
// reporting to CLI/UI layers.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/setlist/internal/intent"
	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/planner"
	"github.com/desertthunder/setlist/internal/services"
	"github.com/desertthunder/setlist/internal/shared"
)

// GenerateResult contains everything a full pipeline run produced.
type GenerateResult struct {
	Intent   models.Intent             // Parsed, possibly generator-merged intent
	Plan     models.ExecutionPlan      // Repaired execution plan that was run
	Playlist *models.AssembledPlaylist // Final assembled playlist
}

// AssemblyEngine defines the operations of the playlist assembly pipeline.
type AssemblyEngine interface {
	// Generate runs the full pipeline: parse the prompt, plan retrieval,
	// collect candidates with relaxation, and assemble the final list.
	Generate(ctx context.Context, progress chan<- ProgressUpdate, prompt string, count int, bl models.Blacklist) (*GenerateResult, error)

	// AddMore grows an assembled playlist by n tracks under the same intent.
	AddMore(ctx context.Context, progress chan<- ProgressUpdate, current *models.AssembledPlaylist, bl models.Blacklist, in models.Intent, n int) (*models.AssembledPlaylist, error)

	// Remove blacklists a track and backfills the resulting deficit.
	Remove(ctx context.Context, progress chan<- ProgressUpdate, current *models.AssembledPlaylist, bl models.Blacklist, in models.Intent, trackID string) (*models.AssembledPlaylist, error)

	// Refine filters an assembled playlist and backfills what the filters removed.
	Refine(ctx context.Context, progress chan<- ProgressUpdate, current *models.AssembledPlaylist, bl models.Blacklist, in models.Intent, filters RefineFilters) (*models.AssembledPlaylist, *RefineResult, error)
}

// PlaylistEngine implements AssemblyEngine. Each request owns its own
// intent, candidate set and options, so no locking is needed; the session
// blacklist is read-modify-written by the caller under single-writer
// discipline.
type PlaylistEngine struct {
	parser    *intent.Parser
	planner   *planner.Planner
	relaxer   *Relaxer
	assembler *Assembler
	mutator   *Mutator
	logger    *log.Logger
}

var _ AssemblyEngine = (*PlaylistEngine)(nil)

// EngineOptions tune a PlaylistEngine.
type EngineOptions struct {
	Overshoot       float64 // collection padding factor, defaults to [OvershootFactor]
	SearchRateLimit float64 // catalog requests per second
}

// NewPlaylistEngine wires the pipeline stages around the given capability
// services. The generator may be nil, which downgrades intent parsing to
// heuristics and disables generated plans (the default plan runs instead).
func NewPlaylistEngine(catalog services.Catalog, generator services.Generator, logger *log.Logger, opts EngineOptions) *PlaylistEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	collector := NewCollector(catalog, generator, logger, opts.SearchRateLimit)
	relaxer := NewRelaxer(collector, opts.Overshoot, logger)
	assembler := NewAssembler(logger)

	return &PlaylistEngine{
		parser:    intent.NewParser(generator, logger),
		planner:   planner.NewPlanner(generator, logger),
		relaxer:   relaxer,
		assembler: assembler,
		mutator:   NewMutator(relaxer, assembler, logger),
		logger:    logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}

// Generate runs the full assembly pipeline for one prompt.
func (e *PlaylistEngine) Generate(ctx context.Context, progress chan<- ProgressUpdate, prompt string, count int, bl models.Blacklist) (*GenerateResult, error) {
	sendProgress(progress, parsingUpdate())

	in, err := e.parser.Parse(ctx, prompt, count)
	if err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	plan, err := e.planner.Plan(ctx, in, in.TargetTracks)
	if err != nil {
		if !errors.Is(err, shared.ErrPlanRejected) {
			return nil, err
		}
		e.logger.Warn("generated plan rejected, using default plan", "err", err)
		plan = planner.DefaultPlan(in.TargetTracks)
	}
	sendProgress(progress, planningUpdate(plan))

	opts := DefaultCollectOptions()
	if bl != nil {
		opts.Blacklist = bl
	}

	collected, steps := e.relaxer.Collect(ctx, progress, plan, in, opts, plan.TotalTarget)
	sendProgress(progress, assemblingUpdate(len(collected)))

	playlist := e.assembler.Assemble(collected, plan.TotalTarget, diversityOptions(plan))
	playlist.Name = playlistName(prompt, in)
	playlist.Relaxations = steps

	return &GenerateResult{Intent: in, Plan: plan, Playlist: playlist}, nil
}

// AddMore grows the playlist; see [Mutator.AddMore].
func (e *PlaylistEngine) AddMore(ctx context.Context, progress chan<- ProgressUpdate, current *models.AssembledPlaylist, bl models.Blacklist, in models.Intent, n int) (*models.AssembledPlaylist, error) {
	return e.mutator.AddMore(ctx, progress, current, bl, in, n)
}

// Remove drops a track and backfills; see [Mutator.Remove].
func (e *PlaylistEngine) Remove(ctx context.Context, progress chan<- ProgressUpdate, current *models.AssembledPlaylist, bl models.Blacklist, in models.Intent, trackID string) (*models.AssembledPlaylist, error) {
	return e.mutator.Remove(ctx, progress, current, bl, in, trackID)
}

// Refine filters and backfills; see [Mutator.Refine].
func (e *PlaylistEngine) Refine(ctx context.Context, progress chan<- ProgressUpdate, current *models.AssembledPlaylist, bl models.Blacklist, in models.Intent, filters RefineFilters) (*models.AssembledPlaylist, *RefineResult, error) {
	return e.mutator.Refine(ctx, progress, current, bl, in, filters)
}

// diversityOptions reads the assembler settings from the plan's trailing
// diversity-adjustment call.
func diversityOptions(plan models.ExecutionPlan) AssembleOptions {
	opts := AssembleOptions{Shuffle: true, AvoidConsecutive: true}
	if len(plan.Calls) == 0 {
		return opts
	}
	last := plan.Calls[len(plan.Calls)-1]
	if last.Tool != models.ToolDiversity {
		return opts
	}
	opts.Shuffle = last.BoolParam("shuffle", true)
	opts.AvoidConsecutive = last.BoolParam("avoid_consecutive_same_artist", true)
	opts.Seed = int64(last.IntParam("seed", 0))
	return opts
}

// playlistName derives a display name from the prompt or festival reference.
func playlistName(prompt string, in models.Intent) string {
	if in.Festival != nil {
		return fmt.Sprintf("%s %d", in.Festival.Name, in.Festival.Year)
	}
	name := strings.TrimSpace(prompt)
	if len(name) > 48 {
		name = strings.TrimSpace(name[:48]) + "..."
	}
	return name
}
