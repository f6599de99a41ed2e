package workflow

import (
	"context"
	"fmt"
)

// Plan is an ordered sequence of tool-step names with a cursor pointing at
// the next unexecuted step. Names may repeat: the same tool can run several
// times within one plan, e.g. when screening multiple candidates.
type Plan struct {
	Steps  []string `json:"steps"`
	Cursor int      `json:"cursor"`
}

// NewPlan creates a plan positioned at its first step.
func NewPlan(steps []string) *Plan {
	return &Plan{Steps: steps}
}

// Done reports whether every step has been executed.
func (p *Plan) Done() bool {
	return p.Cursor >= len(p.Steps)
}

// Current returns the name of the next unexecuted step.
func (p *Plan) Current() (string, bool) {
	if p.Done() {
		return "", false
	}
	return p.Steps[p.Cursor], true
}

// StepResult is the normalized outcome of executing one step. Results are
// append-only: later steps read but never mutate earlier results.
type StepResult struct {
	StepIndex int                    `json:"step_index"`
	ToolName  string                 `json:"tool_name"`
	Payload   map[string]interface{} `json:"payload"`
	IsError   bool                   `json:"is_error"`
}

// Key returns the provenance key a result is stored under.
func (r StepResult) Key() string {
	return fmt.Sprintf("step_%d_%s", r.StepIndex, r.ToolName)
}

// RejectionState tracks consecutive review rejections for the current
// planning attempt chain. It resets whenever a plan is genuinely approved.
type RejectionState struct {
	Count    int    `json:"count"`
	Feedback string `json:"feedback"`
}

// TerminalStatus is the final disposition of a workflow.
type TerminalStatus string

const (
	TerminalNone       TerminalStatus = ""
	TerminalCompleted  TerminalStatus = "completed"
	TerminalNeedsInput TerminalStatus = "needs_input"
	TerminalOutOfScope TerminalStatus = "out_of_scope"
	// TerminalForced marks a workflow that completed only because the
	// rejection ceiling forced plan approval.
	TerminalForced TerminalStatus = "forced"
)

// State is the aggregate threaded through every stage of one workflow
// instance. It is exclusively owned by that instance; concurrent requests
// each get their own State.
type State struct {
	OriginalRequest string         `json:"original_request"`
	Plan            *Plan          `json:"plan,omitempty"`
	Results         []StepResult   `json:"results"`
	Rejection       RejectionState `json:"rejection"`
	Terminal        TerminalStatus `json:"terminal"`

	// ReviewFeedback holds the feedback attached to the approval that let
	// the plan through, including the auto-approval annotation when the
	// rejection ceiling forced it.
	ReviewFeedback string `json:"review_feedback,omitempty"`

	// Question and Reason carry the planner's termination signals for the
	// needs-input and out-of-scope outcomes.
	Question string `json:"question,omitempty"`
	Reason   string `json:"reason,omitempty"`

	// DiscardedPlans records rejected plans for audit only; a rejected plan
	// is replaced wholesale, never merged into its successor.
	DiscardedPlans [][]string `json:"discarded_plans,omitempty"`

	// Report is the final user-facing text.
	Report string `json:"report,omitempty"`
}

// NewState creates the state for a fresh workflow instance.
func NewState(request string) *State {
	return &State{OriginalRequest: request}
}

// PlanStatus is the planner's decision discriminant.
type PlanStatus string

const (
	PlanReady      PlanStatus = "ready"
	PlanNeedsInput PlanStatus = "need_context"
	PlanOutOfScope PlanStatus = "out_of_scope"
)

// PlanDecision is the outcome of one planning call.
type PlanDecision struct {
	Status   PlanStatus `json:"status"`
	Steps    []string   `json:"plan,omitempty"`
	Question string     `json:"question,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}

// Planner converts the request (and, on replanning, the prior rejection
// feedback) into a plan or a termination signal. Implementations map their
// own transport or parse failures to an out-of-scope decision, so Propose
// carries no error return.
type Planner interface {
	Propose(ctx context.Context, request, feedback string) PlanDecision
}

// Review is the reviewer's verdict on a plan.
type Review struct {
	Approved bool   `json:"approved"`
	Feedback string `json:"feedback"`
}

// Reviewer evaluates a plan for ordering and feasibility. It is purely
// evaluative: no side effects on results or the plan cursor.
// Implementations default to approval when their decision transport fails.
type Reviewer interface {
	Review(ctx context.Context, steps []string) Review
}

// Reporter synthesizes the final report from the aggregated state. A
// failing reporter is not fatal; the orchestrator falls back to the
// deterministic assembler.
type Reporter interface {
	Compose(ctx context.Context, st *State) (string, error)
}
