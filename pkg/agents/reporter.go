package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/harun/mofflow/pkg/llm"
	"github.com/harun/mofflow/pkg/workflow"
	"github.com/rs/zerolog"
)

const reporterSystemPrompt = `You are a scientific reporter synthesizing computational chemistry results for Metal-Organic Framework (MOF) workflows.

Create a clear, well-formatted Markdown report that:
1. Directly answers the original user request.
2. Summarizes the workflow that was actually executed (tools and order).
3. Presents key numerical results with proper units (eV for energy, A for distances, eV/A for forces).
4. Cites file paths for all structures used.
5. Interprets results rather than just listing raw numbers.

When individual steps errored, say so plainly and report what did succeed.`

// Reporter implements workflow.Reporter over a language-model provider.
type Reporter struct {
	provider llm.Provider
	model    string
	logger   zerolog.Logger
}

// NewReporter creates a report-synthesis agent.
func NewReporter(provider llm.Provider, model string, logger zerolog.Logger) *Reporter {
	return &Reporter{
		provider: provider,
		model:    model,
		logger:   logger,
	}
}

// Compose generates the final Markdown report. Errors propagate to the
// orchestrator, which falls back to the deterministic assembler.
func (r *Reporter) Compose(ctx context.Context, st *workflow.State) (string, error) {
	if len(st.Results) == 0 {
		return "No results to report - workflow did not complete successfully.", nil
	}

	var plan strings.Builder
	if st.Plan != nil {
		for i, step := range st.Plan.Steps {
			fmt.Fprintf(&plan, "%d. %s\n", i+1, step)
		}
	}

	prompt := fmt.Sprintf(
		"ORIGINAL REQUEST:\n%s\n\nEXECUTED PLAN (tool sequence):\n%s\nTOOL OUTPUTS (structured data to base your report on):\n%s",
		st.OriginalRequest, plan.String(), workflow.FormatResults(st.Results),
	)

	resp, err := r.provider.Complete(ctx, llm.Request{
		Model:        r.model,
		SystemPrompt: reporterSystemPrompt,
		Prompt:       prompt,
		MaxTokens:    2048,
	})
	if err != nil {
		return "", fmt.Errorf("report synthesis failed: %w", err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("report synthesis returned empty output")
	}

	return resp.Content, nil
}
