package cli

import (
	"fmt"
	"time"

	"github.com/harun/mofflow/internal/config"
	"github.com/harun/mofflow/internal/logger"
	"github.com/harun/mofflow/pkg/agents"
	"github.com/harun/mofflow/pkg/llm"
	"github.com/harun/mofflow/pkg/mofdb"
	"github.com/harun/mofflow/pkg/toolexec"
	"github.com/harun/mofflow/pkg/workflow"
)

// runtime bundles everything a workflow needs: the configured agents, the
// tool bindings, and the handles that must be closed on shutdown.
type runtime struct {
	cfg     *config.Config
	log     *logger.Logger
	library *mofdb.Library
	tools   *toolexec.MCPClient
	orch    *workflow.Orchestrator
}

// newRuntime loads configuration and wires the full workflow stack. The
// orchestrator options let callers attach their own hooks (the gateway
// adds its phase broadcaster here).
func newRuntime(opts ...workflow.Option) (*runtime, error) {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return nil, err
	}
	zl := log.Zerolog()

	library, err := mofdb.NewLibrary(cfg.DataDir, zl)
	if err != nil {
		log.Close()
		return nil, err
	}

	registry := toolexec.NewRegistry()
	if err := mofdb.RegisterSearchTool(registry, library); err != nil {
		log.Close()
		return nil, err
	}

	var tools *toolexec.MCPClient
	if cfg.ToolServer.Command != "" {
		tools = toolexec.NewMCPClient(
			cfg.ToolServer.Command,
			cfg.ToolServer.Args,
			time.Duration(cfg.ToolServer.TimeoutSeconds)*time.Second,
			zl,
		)
		if err := registerRemoteTools(registry, tools); err != nil {
			log.Close()
			return nil, err
		}
	} else {
		zl.Warn().Msg("No tool server configured, structure tools are unavailable")
	}

	provider, err := llm.NewProvider(cfg.AI.Provider, cfg.AI.APIKey)
	if err != nil {
		log.Close()
		return nil, err
	}

	reporterModel := cfg.AI.ReporterModel
	if reporterModel == "" {
		reporterModel = cfg.AI.Model
	}

	executor := toolexec.NewExecutor(registry, time.Duration(cfg.Workflow.StepTimeoutSeconds)*time.Second, zl)
	runner := workflow.NewRunner(executor, zl)

	analyzer := agents.NewAnalyzer(provider, cfg.AI.Model, registry, zl)
	supervisor := agents.NewSupervisor(provider, cfg.AI.Model, registry, zl)
	reporter := agents.NewReporter(provider, reporterModel, zl)

	orchOpts := append([]workflow.Option{
		workflow.WithRejectionCeiling(cfg.Workflow.RejectionCeiling),
		workflow.WithReporter(reporter),
	}, opts...)

	orch := workflow.New(analyzer, supervisor, runner, zl, orchOpts...)

	return &runtime{
		cfg:     cfg,
		log:     log,
		library: library,
		tools:   tools,
		orch:    orch,
	}, nil
}

// registerRemoteTools binds the computational chemistry tools served over
// the tool server transport. Argument resolution metadata lives on the
// definitions: optimize consumes any structure path from earlier steps,
// the energy calculation prefers an optimized one.
func registerRemoteTools(registry *toolexec.Registry, tools *toolexec.MCPClient) error {
	defs := []toolexec.Definition{
		{
			Name:        "optimize_structure_ase",
			Description: "Optimize a MOF structure geometry with ASE and return the optimized CIF path",
			Schema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"cif_filepath": map[string]interface{}{"type": "string"},
				},
				"required": []interface{}{"cif_filepath"},
			},
			Source:  toolexec.SourceStructure,
			ArgKey:  "cif_filepath",
			Handler: tools.Handler("optimize_structure_ase"),
		},
		{
			Name:        "calculate_energy_force",
			Description: "Calculate the potential energy and max force of a MOF structure",
			Schema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"cif_filepath": map[string]interface{}{"type": "string"},
				},
				"required": []interface{}{"cif_filepath"},
			},
			Source:          toolexec.SourceStructure,
			ArgKey:          "cif_filepath",
			PreferOptimized: true,
			Handler:         tools.Handler("calculate_energy_force"),
		},
	}

	for _, def := range defs {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the runtime's resources in reverse acquisition order.
func (rt *runtime) Close() {
	if rt.tools != nil {
		_ = rt.tools.Close()
	}
	if rt.library != nil {
		_ = rt.library.Close()
	}
	if rt.log != nil {
		_ = rt.log.Close()
	}
}
