package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFallbackReport_NoResults(t *testing.T) {
	st := NewState("find a copper MOF")

	report := FallbackReport(st)

	assert.Equal(t, "No results to report - workflow did not complete successfully.", report)
}

func TestFallbackReport_FormatsResults(t *testing.T) {
	st := NewState("find a copper MOF")
	st.Plan = NewPlan([]string{"search_mof_db"})
	st.Results = []StepResult{
		{StepIndex: 0, ToolName: "search_mof_db", Payload: map[string]interface{}{
			"mof_name": "HKUST-1",
			"formula":  "Cu3(BTC)2",
		}},
	}

	report := FallbackReport(st)

	assert.Contains(t, report, "find a copper MOF")
	assert.Contains(t, report, "1. search_mof_db")
	assert.Contains(t, report, "step_0_search_mof_db")
	assert.Contains(t, report, "HKUST-1")
	assert.NotContains(t, report, "errored")
}

func TestFallbackReport_NotesErroredSteps(t *testing.T) {
	st := NewState("req")
	st.Plan = NewPlan([]string{"search_mof_db", "optimize_structure_ase"})
	st.Results = []StepResult{
		{StepIndex: 0, ToolName: "search_mof_db", Payload: map[string]interface{}{"mof_name": "MOF-5"}},
		{StepIndex: 1, ToolName: "optimize_structure_ase", IsError: true, Payload: map[string]interface{}{
			"error": "optimizer crashed",
		}},
	}

	report := FallbackReport(st)

	assert.Contains(t, report, "1 of 2 steps errored")
}

func TestFallbackReport_IncludesForcedApprovalFeedback(t *testing.T) {
	st := NewState("req")
	st.Results = []StepResult{
		{StepIndex: 0, ToolName: "search_mof_db", Payload: map[string]interface{}{"mof_name": "UiO-66"}},
	}
	st.ReviewFeedback = "auto-approved after 3 rejections. Previous feedback: ordering"

	report := FallbackReport(st)

	assert.Contains(t, report, "auto-approved after 3 rejections")
}
