package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harun/mofflow/pkg/llm"
	"github.com/harun/mofflow/pkg/toolexec"
	"github.com/harun/mofflow/pkg/workflow"
	"github.com/rs/zerolog"
)

const supervisorSystemPrompt = `You are a scientific supervisor reviewing computational chemistry workflow plans.

Available tools:
%s

Rules:
1. Structure search or a direct file reference must happen BEFORE optimization or energy calculation
2. Optimization must happen BEFORE energy calculation if both are in the plan
3. Reject plans that request unavailable tools
4. Reject plans that are out of scope (e.g., synthesis, experimental work)

Respond with a JSON object in this exact format:
{"approved": true or false, "feedback": "explanation of your decision"}`

// Supervisor implements workflow.Reviewer over a language-model provider.
// It is purely evaluative: ordering and feasibility only, no side effects
// on the plan or results.
type Supervisor struct {
	provider llm.Provider
	model    string
	registry *toolexec.Registry
	logger   zerolog.Logger
}

// NewSupervisor creates a review agent.
func NewSupervisor(provider llm.Provider, model string, registry *toolexec.Registry, logger zerolog.Logger) *Supervisor {
	return &Supervisor{
		provider: provider,
		model:    model,
		registry: registry,
		logger:   logger,
	}
}

type reviewResponse struct {
	Approved bool   `json:"approved"`
	Feedback string `json:"feedback"`
}

// Review evaluates a plan. Plans naming tools outside the registry are
// rejected without a model call. A malformed or unavailable model response
// defaults to approval with explanatory feedback, trading strictness for
// liveness in this control path.
func (s *Supervisor) Review(ctx context.Context, steps []string) workflow.Review {
	if len(steps) == 0 {
		return workflow.Review{Approved: false, Feedback: "No plan provided for review."}
	}

	for _, step := range steps {
		if _, known := s.registry.Get(step); !known {
			return workflow.Review{
				Approved: false,
				Feedback: fmt.Sprintf("Plan names a tool that is not available: %s", step),
			}
		}
	}

	resp, err := s.provider.Complete(ctx, llm.Request{
		Model:        s.model,
		SystemPrompt: fmt.Sprintf(supervisorSystemPrompt, s.toolCatalog()),
		Prompt:       fmt.Sprintf("Review the plan: %v", steps),
		MaxTokens:    512,
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Review call failed, defaulting to approved")
		return defaultApprove(fmt.Sprintf("review unavailable (%v)", err))
	}

	raw, err := llm.ExtractJSON(resp.Content)
	if err != nil {
		s.logger.Warn().Str("content", resp.Content).Msg("Review output not parseable, defaulting to approved")
		return defaultApprove("could not parse review")
	}

	var parsed reviewResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return defaultApprove("could not parse review")
	}

	return workflow.Review{Approved: parsed.Approved, Feedback: parsed.Feedback}
}

func (s *Supervisor) toolCatalog() string {
	var b strings.Builder
	for _, name := range s.registry.Names() {
		def, _ := s.registry.Get(name)
		fmt.Fprintf(&b, "- %s: %s\n", name, def.Description)
	}
	return b.String()
}

func defaultApprove(reason string) workflow.Review {
	return workflow.Review{
		Approved: true,
		Feedback: fmt.Sprintf("%s, defaulting to approved.", reason),
	}
}
