package toolexec

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
)

// ArgSource tells the argument resolver where a tool's input comes from.
type ArgSource string

const (
	// SourceRequest means the argument is the original user request text.
	SourceRequest ArgSource = "request"
	// SourceStructure means the argument is a structure file path produced
	// by an earlier step.
	SourceStructure ArgSource = "structure"
)

// Handler is the function signature for tool execution. The returned value
// may be a map, a JSON string (optionally fenced), or any other value; the
// executor normalizes it into a flat payload.
type Handler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// Definition describes a tool and its input contract.
type Definition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Schema      map[string]interface{} `json:"schema,omitempty"` // JSON Schema for the arguments
	Source      ArgSource              `json:"source"`
	ArgKey      string                 `json:"arg_key"` // name of the tool's single input argument
	// PreferOptimized marks tools that should run on an optimized structure
	// when one exists, falling back to a raw one otherwise.
	PreferOptimized bool    `json:"prefer_optimized,omitempty"`
	Handler         Handler `json:"-"`
}

// Registry maps tool names to their definitions. It is populated once at
// startup and shared read-only across all workflow instances.
type Registry struct {
	mu      sync.RWMutex
	defs    map[string]*Definition
	schemas map[string]*gojsonschema.Schema
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		defs:    make(map[string]*Definition),
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// Register adds a tool definition. The argument schema, when present, is
// compiled once here so Execute only pays for validation.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %s has no handler", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("tool already registered: %s", def.Name)
	}

	if def.Schema != nil {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(def.Schema))
		if err != nil {
			return fmt.Errorf("invalid schema for tool %s: %w", def.Name, err)
		}
		r.schemas[def.Name] = schema
	}

	r.defs[def.Name] = &def
	return nil
}

// Get returns the definition for a tool name.
func (r *Registry) Get(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) schema(name string) *gojsonschema.Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.schemas[name]
}

// Result is the normalized outcome of one tool invocation. When IsError is
// true the payload carries only the error message and the tool name, never
// partial success data.
type Result struct {
	Payload map[string]interface{} `json:"payload"`
	IsError bool                   `json:"is_error"`
}

// ErrorResult builds the normalized error payload shape.
func ErrorResult(tool, msg string) Result {
	return Result{
		IsError: true,
		Payload: map[string]interface{}{
			"error":     msg,
			"tool_name": tool,
		},
	}
}

// Executor invokes one tool at a time. It holds no state across calls;
// side effects are confined to the tool bindings themselves.
type Executor struct {
	registry *Registry
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewExecutor creates an executor over the given registry. Every call is
// bounded by the timeout so an unresponsive tool can never hang a workflow.
func NewExecutor(registry *Registry, timeout time.Duration, logger zerolog.Logger) *Executor {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Executor{
		registry: registry,
		timeout:  timeout,
		logger:   logger,
	}
}

// Registry exposes the executor's tool registry.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Execute runs a single tool invocation and normalizes the outcome.
// Domain errors, transport failures, timeouts, and handler panics all come
// back as error results; Execute never returns a Go error.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]interface{}) Result {
	def, ok := e.registry.Get(name)
	if !ok {
		return ErrorResult(name, fmt.Sprintf("unknown tool: %s", name))
	}

	if schema := e.registry.schema(name); schema != nil {
		validation, err := schema.Validate(gojsonschema.NewGoLoader(args))
		if err != nil {
			return ErrorResult(name, fmt.Sprintf("argument validation failed: %v", err))
		}
		if !validation.Valid() {
			return ErrorResult(name, fmt.Sprintf("invalid arguments: %v", validation.Errors()))
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	raw, err := e.invoke(callCtx, def, args)
	if err != nil {
		e.logger.Warn().
			Err(err).
			Str("tool", name).
			Dur("duration", time.Since(start)).
			Msg("Tool call failed")
		return ErrorResult(name, err.Error())
	}

	payload := NormalizePayload(raw)

	// Some tools report domain errors inside an otherwise successful
	// response body. Surface them as error results so downstream steps
	// never pick up artifacts from a failed call.
	if msg, found := payload["error"]; found {
		e.logger.Warn().
			Str("tool", name).
			Interface("error", msg).
			Msg("Tool reported domain error")
		return Result{IsError: true, Payload: withToolName(payload, name)}
	}

	e.logger.Debug().
		Str("tool", name).
		Dur("duration", time.Since(start)).
		Msg("Tool call completed")

	return Result{Payload: payload}
}

// invoke calls the handler, converting a panic into an ordinary error so
// no failure mode escapes the result envelope.
func (e *Executor) invoke(ctx context.Context, def *Definition, args map[string]interface{}) (raw interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			raw = nil
			err = fmt.Errorf("tool %s panicked: %v", def.Name, r)
		}
	}()
	return def.Handler(ctx, args)
}

func withToolName(payload map[string]interface{}, name string) map[string]interface{} {
	if _, ok := payload["tool_name"]; !ok {
		payload["tool_name"] = name
	}
	return payload
}
