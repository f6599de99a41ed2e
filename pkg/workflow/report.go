package workflow

import (
	"fmt"
	"sort"
	"strings"
)

// FallbackReport formats the aggregated outputs without any external call.
// It distinguishes a workflow whose plan never produced results from one
// whose results include individual step errors.
func FallbackReport(st *State) string {
	if len(st.Results) == 0 {
		return "No results to report - workflow did not complete successfully."
	}

	var b strings.Builder
	b.WriteString("# Workflow Report\n\n")
	fmt.Fprintf(&b, "**Request:** %s\n\n", st.OriginalRequest)

	if st.Plan != nil {
		b.WriteString("## Executed Plan\n\n")
		for i, step := range st.Plan.Steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, step)
		}
		b.WriteString("\n")
	}

	errored := 0
	b.WriteString("## Results\n")
	for _, res := range st.Results {
		fmt.Fprintf(&b, "\n### %s\n", res.Key())
		if res.IsError {
			errored++
		}
		for _, key := range sortedKeys(res.Payload) {
			fmt.Fprintf(&b, "- %s: %v\n", key, res.Payload[key])
		}
	}

	if errored > 0 {
		fmt.Fprintf(&b, "\n**Note:** %d of %d steps errored; the workflow did not complete successfully.\n", errored, len(st.Results))
	}
	if st.ReviewFeedback != "" {
		fmt.Fprintf(&b, "\n**Review:** %s\n", st.ReviewFeedback)
	}

	return b.String()
}

// FormatResults renders results as readable text for report prompts.
func FormatResults(results []StepResult) string {
	var b strings.Builder
	for _, res := range results {
		fmt.Fprintf(&b, "\n### %s\n", res.Key())
		for _, key := range sortedKeys(res.Payload) {
			fmt.Fprintf(&b, "- %s: %v\n", key, res.Payload[key])
		}
	}
	return b.String()
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
