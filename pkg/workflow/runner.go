package workflow

import (
	"context"
	"fmt"

	"github.com/harun/mofflow/pkg/toolexec"
	"github.com/rs/zerolog"
)

// Runner advances a plan one step at a time: resolve arguments, execute,
// append the result, move the cursor. The cursor advances even when a step
// fails, so a single failing step can never stall the workflow; retry at
// the plan level belongs to the review/replan loop, not here.
type Runner struct {
	resolver *Resolver
	executor *toolexec.Executor
	logger   zerolog.Logger
}

// NewRunner creates a runner over the given executor and its registry.
func NewRunner(executor *toolexec.Executor, logger zerolog.Logger) *Runner {
	return &Runner{
		resolver: NewResolver(executor.Registry()),
		executor: executor,
		logger:   logger,
	}
}

// Resolver exposes the runner's argument resolver.
func (r *Runner) Resolver() *Resolver {
	return r.resolver
}

// Step executes the step under the plan cursor and advances the cursor by
// exactly one. A no-op once the plan is done.
func (r *Runner) Step(ctx context.Context, st *State) {
	name, ok := st.Plan.Current()
	if !ok {
		return
	}
	idx := st.Plan.Cursor

	var result toolexec.Result
	if _, known := r.executor.Registry().Get(name); !known {
		// Unknown tools never reach the transport.
		result = toolexec.ErrorResult(name, fmt.Sprintf("unknown tool: %s", name))
	} else if args, err := r.resolver.Resolve(name, st.OriginalRequest, st.Results); err != nil {
		result = toolexec.ErrorResult(name, err.Error())
	} else {
		result = r.executor.Execute(ctx, name, args)
	}

	step := StepResult{
		StepIndex: idx,
		ToolName:  name,
		Payload:   result.Payload,
		IsError:   result.IsError,
	}
	st.Results = append(st.Results, step)
	st.Plan.Cursor++

	r.logger.Info().
		Str("step", step.Key()).
		Bool("is_error", step.IsError).
		Int("cursor", st.Plan.Cursor).
		Int("steps", len(st.Plan.Steps)).
		Msg("Step executed")
}

// Run drives the plan to completion. It always terminates: the cursor
// reaches len(steps) in exactly len(steps) calls regardless of step
// success or failure.
func (r *Runner) Run(ctx context.Context, st *State) {
	for !st.Plan.Done() {
		r.Step(ctx, st)
	}
}
