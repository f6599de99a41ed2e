package toolexec

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// NormalizePayload converts an arbitrary tool return value into the flat
// key/value payload carried by a step result.
//
// Text payloads get layered parsing because the tool transport does not
// guarantee pure JSON: first strip a fenced code block and parse the body,
// then try the raw text as JSON, and if both fail pass the text through
// unparsed as the payload's sole value.
func NormalizePayload(v interface{}) map[string]interface{} {
	switch t := v.(type) {
	case nil:
		return map[string]interface{}{}
	case map[string]interface{}:
		return t
	case string:
		return parseTextPayload(t)
	case []byte:
		return parseTextPayload(string(t))
	case json.RawMessage:
		return parseTextPayload(string(t))
	default:
		return map[string]interface{}{"result": t}
	}
}

func parseTextPayload(text string) map[string]interface{} {
	if m := fencedBlockRe.FindStringSubmatch(text); m != nil {
		if obj, ok := tryParseObject(m[1]); ok {
			return obj
		}
	}
	if obj, ok := tryParseObject(text); ok {
		return obj
	}
	return map[string]interface{}{"text": text}
}

func tryParseObject(s string) (map[string]interface{}, bool) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &obj); err != nil {
		return nil, false
	}
	return obj, true
}
