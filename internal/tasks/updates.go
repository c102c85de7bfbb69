package tasks

import (
	"fmt"

	"github.com/desertthunder/setlist/internal/models"
)

// ProgressUpdate represents a progress event during a pipeline run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Pipeline phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Pipeline phase enumeration
type Phase int

const (
	ParseIntent Phase = iota
	PlanExecution
	CollectTracks
	RelaxConstraints
	AssemblePlaylist
	MutatePlaylist
)

func (p Phase) String() string {
	switch p {
	case ParseIntent:
		return "parse_intent"
	case PlanExecution:
		return "plan_execution"
	case CollectTracks:
		return "collect_tracks"
	case RelaxConstraints:
		return "relax_constraints"
	case AssemblePlaylist:
		return "assemble_playlist"
	case MutatePlaylist:
		return "mutate_playlist"
	default:
		return ""
	}
}

func parsingUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   ParseIntent,
		Step:    1,
		Total:   1,
		Message: "Reading the request...",
	}
}

func planningUpdate(plan models.ExecutionPlan) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PlanExecution,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Planned %d retrieval steps", len(plan.Calls)),
		Data:    plan,
	}
}

func collectingUpdate(step, total int, tool models.Tool) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CollectTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Collecting candidates (%s)...", tool),
	}
}

func relaxingUpdate(step models.RelaxationStep) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RelaxConstraints,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Loosened %s to find more tracks", step.Constraint),
		Data:    step,
	}
}

func assemblingUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AssemblePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Assembling playlist from %d candidates...", count),
	}
}

func mutatingUpdate(op string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MutatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Applying %s to the playlist...", op),
	}
}
