// Package config defines and loads the mofflow configuration.
package config

import (
	"fmt"
)

// Config is the main mofflow configuration.
type Config struct {
	DataDir    string           `json:"data_dir" mapstructure:"data_dir"`
	Logging    LoggingConfig    `json:"logging" mapstructure:"logging"`
	AI         AIConfig         `json:"ai" mapstructure:"ai"`
	Workflow   WorkflowConfig   `json:"workflow" mapstructure:"workflow"`
	ToolServer ToolServerConfig `json:"tool_server" mapstructure:"tool_server"`
	Gateway    GatewayConfig    `json:"gateway" mapstructure:"gateway"`
	Store      StoreConfig      `json:"store" mapstructure:"store"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// AIConfig holds language-model provider settings for the decision calls.
type AIConfig struct {
	Provider       string  `json:"provider" mapstructure:"provider"` // anthropic, openai
	APIKey         string  `json:"api_key" mapstructure:"api_key"`
	Model          string  `json:"model" mapstructure:"model"`
	ReporterModel  string  `json:"reporter_model" mapstructure:"reporter_model"`
	Temperature    float64 `json:"temperature" mapstructure:"temperature"`
	TimeoutSeconds int     `json:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// WorkflowConfig holds control-loop settings.
type WorkflowConfig struct {
	RejectionCeiling   int `json:"rejection_ceiling" mapstructure:"rejection_ceiling"`
	StepTimeoutSeconds int `json:"step_timeout_seconds" mapstructure:"step_timeout_seconds"`
}

// ToolServerConfig describes the external tool server process.
type ToolServerConfig struct {
	Command        string   `json:"command" mapstructure:"command"`
	Args           []string `json:"args" mapstructure:"args"`
	TimeoutSeconds int      `json:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// GatewayConfig holds HTTP front-door settings.
type GatewayConfig struct {
	Port         int    `json:"port" mapstructure:"port"`
	SharedSecret string `json:"shared_secret" mapstructure:"shared_secret"`
}

// StoreConfig holds run-archive settings.
type StoreConfig struct {
	Path            string `json:"path" mapstructure:"path"`
	RetentionDays   int    `json:"retention_days" mapstructure:"retention_days"`
	RetentionCron   string `json:"retention_cron" mapstructure:"retention_cron"`
	ArchiveDisabled bool   `json:"archive_disabled" mapstructure:"archive_disabled"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Pretty:  true,
		},
		AI: AIConfig{
			Provider:       "anthropic",
			Model:          "claude-3-5-sonnet-20241022",
			TimeoutSeconds: 120,
		},
		Workflow: WorkflowConfig{
			RejectionCeiling:   3,
			StepTimeoutSeconds: 120,
		},
		ToolServer: ToolServerConfig{
			TimeoutSeconds: 120,
		},
		Gateway: GatewayConfig{
			Port: 8000,
		},
		Store: StoreConfig{
			RetentionDays: 30,
			RetentionCron: "0 3 * * *",
		},
	}
}

// Validate checks the configuration for problems.
func (c *Config) Validate() error {
	if c.AI.APIKey == "" {
		return fmt.Errorf("ai.api_key is required (or set MOFFLOW_AI_API_KEY)")
	}
	switch c.AI.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("unsupported ai.provider: %s", c.AI.Provider)
	}
	if c.AI.Model == "" {
		return fmt.Errorf("ai.model is required")
	}
	if c.Workflow.RejectionCeiling <= 0 {
		return fmt.Errorf("workflow.rejection_ceiling must be positive")
	}
	if c.Gateway.Port <= 0 {
		return fmt.Errorf("gateway.port must be positive")
	}
	return nil
}
