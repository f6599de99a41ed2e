package workflow

import (
	"errors"
	"fmt"

	"github.com/harun/mofflow/pkg/toolexec"
)

// ErrMissingDependency signals that a step structurally requires an input
// artifact no prior result can provide.
var ErrMissingDependency = errors.New("missing dependency")

// Artifact fields threaded between steps. A structure may appear under a
// raw field (as retrieved) or a processed field (after optimization).
const (
	FieldStructurePath = "cif_filepath"
	FieldOptimizedPath = "optimized_cif_filepath"
)

// Resolver derives the argument set for a step from the tool's input
// contract and the accumulated outputs of prior steps. It is a pure
// function of its inputs: re-resolving against the same results always
// yields the same arguments.
type Resolver struct {
	registry *toolexec.Registry
}

// NewResolver creates a resolver over the shared tool registry.
func NewResolver(registry *toolexec.Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Resolve computes the arguments for the named tool. Steps sourced from
// the request use the original request text verbatim and ignore prior
// results; steps that require a structure scan prior results for one.
func (r *Resolver) Resolve(toolName, originalRequest string, results []StepResult) (map[string]interface{}, error) {
	def, ok := r.registry.Get(toolName)
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", toolName)
	}

	switch def.Source {
	case toolexec.SourceRequest:
		return map[string]interface{}{def.ArgKey: originalRequest}, nil

	case toolexec.SourceStructure:
		path := findStructurePath(results, def.PreferOptimized)
		if path == "" {
			return nil, fmt.Errorf("%w: no structure file found in previous outputs for %s", ErrMissingDependency, toolName)
		}
		return map[string]interface{}{def.ArgKey: path}, nil

	default:
		return map[string]interface{}{}, nil
	}
}

// findStructurePath scans results in execution order. Error results are
// never a source of an artifact value.
//
// When the tool prefers an optimized structure, resolution is two-pass:
// the most recent optimized path wins across all results, and only if none
// exists does the most recent raw path apply. Otherwise the most recent
// result exposing either field wins, with the optimized field taking
// precedence within a single payload.
func findStructurePath(results []StepResult, preferOptimized bool) string {
	var optimized, raw, latest string

	for _, res := range results {
		if res.IsError {
			continue
		}
		if v, ok := stringField(res.Payload, FieldOptimizedPath); ok {
			optimized = v
			latest = v
			continue
		}
		if v, ok := stringField(res.Payload, FieldStructurePath); ok {
			raw = v
			latest = v
		}
	}

	if preferOptimized {
		if optimized != "" {
			return optimized
		}
		return raw
	}
	return latest
}

func stringField(payload map[string]interface{}, key string) (string, bool) {
	if payload == nil {
		return "", false
	}
	v, ok := payload[key].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
