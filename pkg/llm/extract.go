package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var jsonFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ExtractJSON pulls a JSON object out of model output. Real model output is
// inconsistent about wrapping, so extraction is layered with a defined
// precedence: a markdown-fenced block first, then the outermost braced
// region, then the whole body. A final best-effort repair pass handles
// near-JSON (trailing commas, single quotes) before giving up.
func ExtractJSON(content string) (json.RawMessage, error) {
	if m := jsonFenceRe.FindStringSubmatch(content); m != nil {
		if raw, ok := validObject(m[1]); ok {
			return raw, nil
		}
	}

	if braced := outerBraces(content); braced != "" {
		if raw, ok := validObject(braced); ok {
			return raw, nil
		}
	}

	if raw, ok := validObject(content); ok {
		return raw, nil
	}

	candidate := outerBraces(content)
	if candidate == "" {
		candidate = content
	}
	if repaired, err := jsonrepair.JSONRepair(candidate); err == nil {
		if raw, ok := validObject(repaired); ok {
			return raw, nil
		}
	}

	return nil, fmt.Errorf("no JSON object found in model output")
}

// outerBraces returns the substring from the first '{' to the last '}'.
func outerBraces(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func validObject(s string) (json.RawMessage, bool) {
	s = strings.TrimSpace(s)
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, false
	}
	return json.RawMessage(s), true
}
