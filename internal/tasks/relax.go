package tasks

import (
	"context"
	"fmt"
	"math"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/shared"
)

// OvershootFactor pads the collection target so dedup and diversity losses
// during assembly still leave a full playlist.
const OvershootFactor = 1.3

// bpmWidenStep is how far each side of the tempo window moves per relaxation.
const bpmWidenStep = 20

// relaxation is one entry of the fixed priority order. apply loosens the
// intent or options in place and reports the old and new values; it returns
// false when the constraint is not active, in which case the step is skipped
// without a collection pass.
type relaxation struct {
	name  string
	apply func(in *models.Intent, opts *CollectOptions) (oldValue, newValue string, ok bool)
}

// relaxOrder fixes which constraints degrade first under scarcity: the BPM
// window widens before language strictness drops, language before the
// exact-artist requirement, and festival-year pinning goes last because it
// changes which edition of an event the list represents.
var relaxOrder = []relaxation{
	{
		name: "bpm_window",
		apply: func(in *models.Intent, _ *CollectOptions) (string, string, bool) {
			if in.Tempo.IsZero() {
				return "", "", false
			}
			old := fmt.Sprintf("%d-%d", in.Tempo.MinBPM, in.Tempo.MaxBPM)
			in.Tempo.MinBPM = max(0, in.Tempo.MinBPM-bpmWidenStep)
			in.Tempo.MaxBPM += bpmWidenStep
			in.Rules.MinBPM, in.Rules.MaxBPM = in.Tempo.MinBPM, in.Tempo.MaxBPM
			return old, fmt.Sprintf("%d-%d", in.Tempo.MinBPM, in.Tempo.MaxBPM), true
		},
	},
	{
		name: "strict_language",
		apply: func(in *models.Intent, _ *CollectOptions) (string, string, bool) {
			if !in.StrictLanguage {
				return "", "", false
			}
			in.StrictLanguage = false
			return "strict", "preferred", true
		},
	},
	{
		name: "exact_artist_match",
		apply: func(_ *models.Intent, opts *CollectOptions) (string, string, bool) {
			if !opts.ExactArtistMatch {
				return "", "", false
			}
			opts.ExactArtistMatch = false
			return "exact", "fuzzy", true
		},
	},
	{
		name: "festival_year",
		apply: func(in *models.Intent, opts *CollectOptions) (string, string, bool) {
			if in.Festival == nil || !opts.PinFestivalYear {
				return "", "", false
			}
			opts.PinFestivalYear = false
			year := fmt.Sprintf("%d", in.Festival.Year)
			return year, year + "±1", true
		},
	},
}

// Relaxer wraps the Collector, re-running collection with progressively
// looser constraints until the padded target is met or nothing is left to
// loosen. It is strictly sequential: each decision depends on the cumulative
// yield of the previous pass.
type Relaxer struct {
	collector *Collector
	overshoot float64
	logger    *log.Logger
}

// NewRelaxer constructs a Relaxer. A non-positive overshoot falls back to
// [OvershootFactor].
func NewRelaxer(collector *Collector, overshoot float64, logger *log.Logger) *Relaxer {
	if overshoot <= 0 {
		overshoot = OvershootFactor
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Relaxer{collector: collector, overshoot: overshoot, logger: logger}
}

// Collect gathers candidates for the plan, relaxing constraints in priority
// order while the padded target is unmet. Batches across passes are unioned
// by canonical ID, so yield never decreases. The returned log records every
// relaxation taken, in order.
func (r *Relaxer) Collect(ctx context.Context, progress chan<- ProgressUpdate, plan models.ExecutionPlan, in models.Intent, opts CollectOptions, target int) ([]models.CandidateTrack, []models.RelaxationStep) {
	padded := int(math.Ceil(float64(target) * r.overshoot))

	working := in.Clone()
	seen := map[string]struct{}{}
	collected := []models.CandidateTrack{}

	merge := func(batch []models.CandidateTrack) {
		for _, t := range batch {
			if _, dup := seen[t.ID]; dup {
				continue
			}
			seen[t.ID] = struct{}{}
			collected = append(collected, t)
		}
	}

	merge(r.collector.Collect(ctx, progress, plan, working, opts))

	steps := []models.RelaxationStep{}
	for _, rx := range relaxOrder {
		if len(collected) >= padded {
			break
		}
		if err := ctx.Err(); err != nil {
			break
		}

		oldValue, newValue, ok := rx.apply(&working, &opts)
		if !ok {
			continue
		}

		before := len(collected)
		merge(r.collector.Collect(ctx, progress, plan, working, opts))

		step := models.RelaxationStep{
			Constraint:  rx.name,
			OldValue:    oldValue,
			NewValue:    newValue,
			YieldBefore: before,
			YieldAfter:  len(collected),
		}
		steps = append(steps, step)
		r.logger.Warn("relaxed constraint to increase yield",
			"constraint", rx.name, "before", before, "after", len(collected))
		sendProgress(progress, relaxingUpdate(step))
	}

	if len(collected) < padded {
		r.logger.Warn("relaxation order exhausted, proceeding with partial supply",
			"collected", len(collected), "padded_target", padded)
	}

	return collected, steps
}
