package workflow

import (
	"context"
	"testing"

	"github.com/harun/mofflow/pkg/toolexec"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *toolexec.Registry {
	t.Helper()
	registry := toolexec.NewRegistry()

	handler := func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return args, nil
	}

	require.NoError(t, registry.Register(toolexec.Definition{
		Name:    "search_mof_db",
		Source:  toolexec.SourceRequest,
		ArgKey:  "query_string",
		Handler: handler,
	}))
	require.NoError(t, registry.Register(toolexec.Definition{
		Name:    "optimize_structure_ase",
		Source:  toolexec.SourceStructure,
		ArgKey:  "cif_filepath",
		Handler: handler,
	}))
	require.NoError(t, registry.Register(toolexec.Definition{
		Name:            "calculate_energy_force",
		Source:          toolexec.SourceStructure,
		ArgKey:          "cif_filepath",
		PreferOptimized: true,
		Handler:         handler,
	}))
	return registry
}

func TestResolver_RequestSource(t *testing.T) {
	r := NewResolver(testRegistry(t))

	args, err := r.Resolve("search_mof_db", "find a copper MOF", nil)

	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"query_string": "find a copper MOF"}, args)
}

func TestResolver_RequestSourceIgnoresResults(t *testing.T) {
	r := NewResolver(testRegistry(t))
	results := []StepResult{
		{StepIndex: 0, ToolName: "optimize_structure_ase", Payload: map[string]interface{}{
			FieldOptimizedPath: "/tmp/x_optimized.cif",
		}},
	}

	args, err := r.Resolve("search_mof_db", "original request", results)

	require.NoError(t, err)
	assert.Equal(t, "original request", args["query_string"])
}

func TestResolver_StructureFromPriorStep(t *testing.T) {
	r := NewResolver(testRegistry(t))
	results := []StepResult{
		{StepIndex: 0, ToolName: "search_mof_db", Payload: map[string]interface{}{
			FieldStructurePath: "/tmp/HKUST-1.cif",
		}},
	}

	args, err := r.Resolve("optimize_structure_ase", "req", results)

	require.NoError(t, err)
	assert.Equal(t, "/tmp/HKUST-1.cif", args["cif_filepath"])
}

func TestResolver_PrefersOptimizedAcrossResults(t *testing.T) {
	r := NewResolver(testRegistry(t))
	results := []StepResult{
		{StepIndex: 0, ToolName: "optimize_structure_ase", Payload: map[string]interface{}{
			FieldOptimizedPath: "/tmp/HKUST-1_optimized.cif",
		}},
		{StepIndex: 1, ToolName: "search_mof_db", Payload: map[string]interface{}{
			FieldStructurePath: "/tmp/MOF-5.cif",
		}},
	}

	args, err := r.Resolve("calculate_energy_force", "req", results)

	require.NoError(t, err)
	assert.Equal(t, "/tmp/HKUST-1_optimized.cif", args["cif_filepath"])
}

func TestResolver_PrefersOptimizedInNaturalOrder(t *testing.T) {
	r := NewResolver(testRegistry(t))
	results := []StepResult{
		{StepIndex: 0, ToolName: "search_mof_db", Payload: map[string]interface{}{
			FieldStructurePath: "/tmp/HKUST-1.cif",
		}},
		{StepIndex: 1, ToolName: "optimize_structure_ase", Payload: map[string]interface{}{
			FieldOptimizedPath: "/tmp/HKUST-1_optimized.cif",
		}},
	}

	args, err := r.Resolve("calculate_energy_force", "req", results)

	require.NoError(t, err)
	assert.Equal(t, "/tmp/HKUST-1_optimized.cif", args["cif_filepath"])
}

func TestResolver_FallsBackToRawWhenNoOptimized(t *testing.T) {
	r := NewResolver(testRegistry(t))
	results := []StepResult{
		{StepIndex: 0, ToolName: "search_mof_db", Payload: map[string]interface{}{
			FieldStructurePath: "/tmp/UiO-66.cif",
		}},
	}

	args, err := r.Resolve("calculate_energy_force", "req", results)

	require.NoError(t, err)
	assert.Equal(t, "/tmp/UiO-66.cif", args["cif_filepath"])
}

func TestResolver_SkipsErrorResults(t *testing.T) {
	r := NewResolver(testRegistry(t))
	results := []StepResult{
		{StepIndex: 0, ToolName: "search_mof_db", Payload: map[string]interface{}{
			FieldStructurePath: "/tmp/good.cif",
		}},
		{StepIndex: 1, ToolName: "optimize_structure_ase", IsError: true, Payload: map[string]interface{}{
			"error":            "optimizer crashed",
			FieldOptimizedPath: "/tmp/partial_optimized.cif",
		}},
	}

	args, err := r.Resolve("calculate_energy_force", "req", results)

	require.NoError(t, err)
	assert.Equal(t, "/tmp/good.cif", args["cif_filepath"])
}

func TestResolver_MissingDependency(t *testing.T) {
	r := NewResolver(testRegistry(t))

	_, err := r.Resolve("optimize_structure_ase", "req", nil)

	assert.ErrorIs(t, err, ErrMissingDependency)
}

func TestResolver_UnknownTool(t *testing.T) {
	r := NewResolver(testRegistry(t))

	_, err := r.Resolve("teleport", "req", nil)

	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissingDependency)
}

func TestResolver_Deterministic(t *testing.T) {
	r := NewResolver(testRegistry(t))
	results := []StepResult{
		{StepIndex: 0, ToolName: "search_mof_db", Payload: map[string]interface{}{
			FieldStructurePath: "/tmp/a.cif",
		}},
	}

	first, err := r.Resolve("optimize_structure_ase", "req", results)
	require.NoError(t, err)
	second, err := r.Resolve("optimize_structure_ase", "req", results)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func nopLogger() zerolog.Logger {
	return zerolog.Nop()
}
