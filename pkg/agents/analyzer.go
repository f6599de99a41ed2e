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

const analyzerSystemPrompt = `You are a computational chemistry assistant specializing in Metal-Organic Frameworks (MOFs).

Your job is to:
1. Check if the user request is IN SCOPE (structure retrieval, geometry optimization, and static energy/force evaluation are supported)
2. Check if you have all necessary CONTEXT to proceed
3. Generate a STEP-BY-STEP PLAN using available tools

INSTRUCTIONS:
- If the request is OUT OF SCOPE, politely explain what you cannot do
- If you are missing context (e.g., the user asks for an energy but provides no structure), ask for it
- If ready to proceed, output a plan as a JSON list of tool names

OUTPUT FORMAT when ready to plan:
` + "```json" + `
{"status": "ready", "plan": ["tool_name_1", "tool_name_2"]}
` + "```" + `

OUTPUT FORMAT when you need more information:
` + "```json" + `
{"status": "need_context", "question": "What information do you need from the user?"}
` + "```" + `

OUTPUT FORMAT when out of scope:
` + "```json" + `
{"status": "out_of_scope", "reason": "Why this is not supported"}
` + "```" + `

Available tools:
%s`

// Analyzer implements workflow.Planner over a language-model provider. It
// converts a natural-language request (plus, on replanning, the prior
// rejection feedback) into a plan or a termination signal.
type Analyzer struct {
	provider llm.Provider
	model    string
	registry *toolexec.Registry
	logger   zerolog.Logger
}

// NewAnalyzer creates a planning agent.
func NewAnalyzer(provider llm.Provider, model string, registry *toolexec.Registry, logger zerolog.Logger) *Analyzer {
	return &Analyzer{
		provider: provider,
		model:    model,
		registry: registry,
		logger:   logger,
	}
}

type planResponse struct {
	Status   string   `json:"status"`
	Plan     []string `json:"plan"`
	Question string   `json:"question"`
	Reason   string   `json:"reason"`
}

// Propose asks the model for a plan. Transport and parse failures map to
// an out-of-scope decision carrying the raw error text; they never surface
// as Go errors to the orchestrator.
func (a *Analyzer) Propose(ctx context.Context, request, feedback string) workflow.PlanDecision {
	prompt := request
	if feedback != "" {
		prompt = fmt.Sprintf("%s\n\nA previous plan for this request was rejected by review with this feedback:\n%s\n\nProduce a corrected plan.", request, feedback)
	}

	resp, err := a.provider.Complete(ctx, llm.Request{
		Model:        a.model,
		SystemPrompt: fmt.Sprintf(analyzerSystemPrompt, a.toolCatalog()),
		Prompt:       prompt,
		MaxTokens:    1024,
	})
	if err != nil {
		a.logger.Error().Err(err).Msg("Planning call failed")
		return outOfScope(fmt.Sprintf("planning failed: %v", err))
	}

	raw, err := llm.ExtractJSON(resp.Content)
	if err != nil {
		a.logger.Error().Err(err).Str("content", resp.Content).Msg("Planner output not parseable")
		return outOfScope(fmt.Sprintf("planning failed: %v", err))
	}

	var parsed planResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return outOfScope(fmt.Sprintf("planning failed: %v", err))
	}

	switch parsed.Status {
	case string(workflow.PlanReady):
		if len(parsed.Plan) == 0 {
			return outOfScope("planner returned an empty plan")
		}
		return workflow.PlanDecision{Status: workflow.PlanReady, Steps: parsed.Plan}

	case string(workflow.PlanNeedsInput):
		question := parsed.Question
		if question == "" {
			question = "I need more information to proceed."
		}
		return workflow.PlanDecision{Status: workflow.PlanNeedsInput, Question: question}

	case string(workflow.PlanOutOfScope):
		return outOfScope(parsed.Reason)

	default:
		return outOfScope(fmt.Sprintf("planner returned unrecognized status %q", parsed.Status))
	}
}

func (a *Analyzer) toolCatalog() string {
	var b strings.Builder
	for _, name := range a.registry.Names() {
		def, _ := a.registry.Get(name)
		fmt.Fprintf(&b, "- %s: %s\n", name, def.Description)
	}
	return b.String()
}

func outOfScope(reason string) workflow.PlanDecision {
	return workflow.PlanDecision{Status: workflow.PlanOutOfScope, Reason: reason}
}
