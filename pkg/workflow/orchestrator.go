package workflow

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Phase identifies a stage of the orchestrator state machine.
type Phase string

const (
	PhasePlanning  Phase = "planning"
	PhaseReviewing Phase = "reviewing"
	PhaseExecuting Phase = "executing"
	PhaseReporting Phase = "reporting"
	PhaseTerminal  Phase = "terminal"
)

// DefaultRejectionCeiling is the number of consecutive review rejections
// tolerated before a plan is force-approved.
const DefaultRejectionCeiling = 3

// Hook observes phase transitions, e.g. to stream progress to clients.
type Hook func(phase Phase, st *State)

// Orchestrator is the top-level state machine tying planner, reviewer,
// runner, and report assembly together. One orchestrator may serve many
// concurrent workflows: each Run call owns its own State, and the only
// shared pieces are the stateless collaborators and the read-only tool
// registry.
type Orchestrator struct {
	planner  Planner
	reviewer Reviewer
	runner   *Runner
	reporter Reporter
	ceiling  int
	hook     Hook
	logger   zerolog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRejectionCeiling overrides the forced-approval ceiling.
func WithRejectionCeiling(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.ceiling = n
		}
	}
}

// WithReporter sets the report synthesizer. Without one, or when it fails,
// the deterministic fallback assembler formats the report.
func WithReporter(rep Reporter) Option {
	return func(o *Orchestrator) { o.reporter = rep }
}

// WithHook sets the phase-transition observer.
func WithHook(h Hook) Option {
	return func(o *Orchestrator) { o.hook = h }
}

// New creates an orchestrator.
func New(planner Planner, reviewer Reviewer, runner *Runner, logger zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		planner:  planner,
		reviewer: reviewer,
		runner:   runner,
		ceiling:  DefaultRejectionCeiling,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run drives one workflow from request to terminal state. It never returns
// an error: planning failures, review failures, and step failures are all
// absorbed into the state, and the workflow always reaches one of the
// terminal statuses.
func (o *Orchestrator) Run(ctx context.Context, request string) *State {
	st := NewState(request)
	phase := PhasePlanning
	forced := false

	for phase != PhaseTerminal {
		o.emit(phase, st)

		switch phase {
		case PhasePlanning:
			phase = o.plan(ctx, st)

		case PhaseReviewing:
			phase, forced = o.review(ctx, st, forced)

		case PhaseExecuting:
			if st.Plan.Done() {
				phase = PhaseReporting
				continue
			}
			o.runner.Step(ctx, st)

		case PhaseReporting:
			st.Report = o.composeReport(ctx, st)
			if forced {
				st.Terminal = TerminalForced
			} else {
				st.Terminal = TerminalCompleted
			}
			phase = PhaseTerminal
		}
	}

	o.emit(PhaseTerminal, st)
	o.logger.Info().
		Str("terminal", string(st.Terminal)).
		Int("results", len(st.Results)).
		Msg("Workflow finished")
	return st
}

// plan invokes the planner, threading prior rejection feedback on replans.
// A rejected plan is fully discarded in favor of the new one and retained
// only for audit.
func (o *Orchestrator) plan(ctx context.Context, st *State) Phase {
	decision := o.planner.Propose(ctx, st.OriginalRequest, st.Rejection.Feedback)

	switch decision.Status {
	case PlanReady:
		if st.Plan != nil {
			st.DiscardedPlans = append(st.DiscardedPlans, st.Plan.Steps)
		}
		st.Plan = NewPlan(decision.Steps)
		o.logger.Info().Strs("plan", decision.Steps).Msg("Plan proposed")
		return PhaseReviewing

	case PlanNeedsInput:
		st.Question = decision.Question
		st.Report = decision.Question
		st.Terminal = TerminalNeedsInput
		return PhaseTerminal

	default:
		st.Reason = decision.Reason
		st.Report = fmt.Sprintf("This request is outside the system's current capabilities. %s", decision.Reason)
		st.Terminal = TerminalOutOfScope
		return PhaseTerminal
	}
}

// review applies the approve/reject control loop with the bounded-retry
// safeguard. Once the ceiling is reached the plan is force-approved without
// consulting the reviewer again; the system must never loop indefinitely
// between planning and review.
func (o *Orchestrator) review(ctx context.Context, st *State, forced bool) (Phase, bool) {
	if st.Rejection.Count >= o.ceiling {
		st.ReviewFeedback = fmt.Sprintf(
			"auto-approved after %d rejections. Previous feedback: %s",
			st.Rejection.Count, st.Rejection.Feedback,
		)
		o.logger.Warn().
			Int("rejections", st.Rejection.Count).
			Msg("Rejection ceiling reached, forcing plan approval")
		return PhaseExecuting, true
	}

	review := o.reviewer.Review(ctx, st.Plan.Steps)
	if review.Approved {
		st.Rejection.Count = 0
		st.ReviewFeedback = review.Feedback
		return PhaseExecuting, forced
	}

	st.Rejection.Count++
	st.Rejection.Feedback = review.Feedback
	o.logger.Info().
		Int("rejections", st.Rejection.Count).
		Str("feedback", review.Feedback).
		Msg("Plan rejected, replanning")
	return PhasePlanning, forced
}

// composeReport always succeeds structurally: a failing reporter falls
// back to the deterministic assembler.
func (o *Orchestrator) composeReport(ctx context.Context, st *State) string {
	if o.reporter != nil {
		text, err := o.reporter.Compose(ctx, st)
		if err == nil && text != "" {
			return text
		}
		if err != nil {
			o.logger.Warn().Err(err).Msg("Reporter failed, using fallback assembler")
		}
	}
	return FallbackReport(st)
}

func (o *Orchestrator) emit(phase Phase, st *State) {
	if o.hook != nil {
		o.hook(phase, st)
	}
}
