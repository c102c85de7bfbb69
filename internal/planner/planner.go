// package planner derives bounded execution plans from structured intents
//
// A generative service proposes the plan; [Repair] then enforces the closed
// tool vocabulary, the call bound, and the trailing diversity-adjustment step.
// Repair is mandatory and idempotent, so repairing an already-valid plan is a
// no-op.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/services"
	"github.com/desertthunder/setlist/internal/shared"
)

// MaxPlanCalls bounds the number of tool calls any plan may carry.
const MaxPlanCalls = 6

const plannerSystemPrompt = "You plan how to assemble a playlist from a structured intent. " +
	"Respond with ONLY a JSON object holding `thinking` (short rationale strings for the user), " +
	"`execution_plan` (an ordered array of calls, each with `tool`, `params`, `reason`) and " +
	"`total_target`. Valid tools: artist-catalog-lookup, collaboration-lookup, " +
	"similar-style-lookup, creative-generation, catalog-search, diversity-adjustment. " +
	"Use at most 6 calls and finish with diversity-adjustment."

// Planner asks the generator for an execution plan and repairs it.
type Planner struct {
	generator services.Generator
	logger    *log.Logger
}

// NewPlanner constructs a Planner.
func NewPlanner(generator services.Generator, logger *log.Logger) *Planner {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Planner{generator: generator, logger: logger}
}

// Plan produces a repaired ExecutionPlan for the intent. When the generator
// yields nothing usable, Plan returns [shared.ErrPlanRejected]; it never
// hands back an empty plan.
func (p *Planner) Plan(ctx context.Context, in models.Intent, target int) (models.ExecutionPlan, error) {
	if target <= 0 {
		return models.ExecutionPlan{}, fmt.Errorf("%w: %d", shared.ErrInvalidTarget, target)
	}
	if p.generator == nil {
		return models.ExecutionPlan{}, fmt.Errorf("%w: no generator configured", shared.ErrPlanRejected)
	}

	prompt, err := planPrompt(in, target)
	if err != nil {
		return models.ExecutionPlan{}, err
	}

	var plan models.ExecutionPlan
	if err := services.GenerateJSON(ctx, p.generator, plannerSystemPrompt, prompt, &plan); err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("%w: %v", shared.ErrPlanRejected, err)
	}

	return p.Repair(plan, target), nil
}

// planPrompt renders the intent as the user message for the planning call.
func planPrompt(in models.Intent, target int) (string, error) {
	encoded, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("failed to encode intent: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Assemble a playlist of %d tracks for this intent:\n%s\n", target, encoded)
	if in.Festival != nil {
		fmt.Fprintf(&b, "The request references the event %q (%d); prefer catalog-search over its query variants.\n",
			in.Festival.Name, in.Festival.Year)
	}
	return b.String(), nil
}

// Repair applies the mandatory plan fixes in order: drop unknown tools,
// synthesize missing thinking, replace an empty call list with the default
// creative-generation step, force the total target, bound the call count, and
// guarantee the final call is diversity-adjustment.
func (p *Planner) Repair(plan models.ExecutionPlan, target int) models.ExecutionPlan {
	out := models.ExecutionPlan{
		Thinking:    append([]string{}, plan.Thinking...),
		TotalTarget: plan.TotalTarget,
	}

	for _, call := range plan.Calls {
		if !call.Tool.Valid() {
			p.logger.Warn("dropping unknown tool from plan", "tool", string(call.Tool))
			continue
		}
		if call.Params == nil {
			call.Params = map[string]any{}
		}
		out.Calls = append(out.Calls, call)
	}

	if len(out.Thinking) == 0 {
		out.Thinking = []string{
			"Analyzing the request to pick the best retrieval strategy.",
			"Balancing the final list for variety before delivering it.",
		}
	}

	if out.TotalTarget <= 0 {
		out.TotalTarget = target
	}

	if len(out.Calls) == 0 {
		out.Calls = []models.ToolCall{defaultCreativeCall(out.TotalTarget)}
	}

	if out.Calls[len(out.Calls)-1].Tool != models.ToolDiversity {
		if len(out.Calls) >= MaxPlanCalls {
			out.Calls = out.Calls[:MaxPlanCalls-1]
		}
		out.Calls = append(out.Calls, diversityCall(out.TotalTarget))
		out.Thinking = append(out.Thinking, "Finishing with a diversity pass so no artist dominates the list.")
	}

	if len(out.Calls) > MaxPlanCalls {
		trimmed := out.Calls[:MaxPlanCalls-1]
		out.Calls = append(trimmed, out.Calls[len(out.Calls)-1])
	}

	return out
}

// DefaultPlan is the minimal fallback used when a generated plan is rejected:
// creative generation of the whole target followed by the diversity pass.
func DefaultPlan(target int) models.ExecutionPlan {
	return models.ExecutionPlan{
		Thinking: []string{
			"Generating the playlist directly from the request.",
			"Balancing the final list for variety before delivering it.",
		},
		Calls: []models.ToolCall{
			defaultCreativeCall(target),
			diversityCall(target),
		},
		TotalTarget: target,
	}
}

func defaultCreativeCall(target int) models.ToolCall {
	return models.ToolCall{
		Tool:   models.ToolCreative,
		Params: map[string]any{"count": target},
		Reason: "Generate candidates straight from the request.",
	}
}

func diversityCall(target int) models.ToolCall {
	return models.ToolCall{
		Tool: models.ToolDiversity,
		Params: map[string]any{
			"shuffle":                       true,
			"avoid_consecutive_same_artist": true,
			"total_target":                  target,
		},
		Reason: "Deduplicate and balance artists across the final list.",
	}
}
