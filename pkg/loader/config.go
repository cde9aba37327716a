package loader

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/starforge/starforge/pkg/buildtype"
	"github.com/starforge/starforge/pkg/telemetry"
)

// ToolConfig is the on-disk configuration file (.forge.yaml).
type ToolConfig struct {
	LogLevel  string `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error fatal"`
	LogFormat string `yaml:"log_format" validate:"omitempty,oneof=console json"`

	MetricsEnabled bool   `yaml:"metrics_enabled"`
	MetricsListen  string `yaml:"metrics_listen" validate:"required_with=MetricsEnabled"`

	TracingEnabled bool   `yaml:"tracing_enabled"`
	TraceExporter  string `yaml:"trace_exporter" validate:"omitempty,oneof=otlp stdout none"`
	TraceEndpoint  string `yaml:"trace_endpoint"`

	EvalTimeout       time.Duration `yaml:"eval_timeout" validate:"min=0"`
	MaxExecutionSteps uint64        `yaml:"max_execution_steps"`

	// Rules declares extra rule kinds as attribute name to type name
	// mappings, e.g. srcs: list(label). Declared kinds are added to the
	// defaults; redeclaring a default kind replaces it.
	Rules map[string]map[string]string `yaml:"rules"`
}

// DefaultToolConfig returns the configuration used when no file is present.
func DefaultToolConfig() *ToolConfig {
	return &ToolConfig{
		LogLevel:      "info",
		LogFormat:     "console",
		MetricsListen: ":9090",
		TraceExporter: "stdout",
		EvalTimeout:   30 * time.Second,
	}
}

// LoadToolConfig reads and validates the configuration file at path.
func LoadToolConfig(path string) (*ToolConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultToolConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return cfg, nil
}

// Schemas resolves the configured rule declarations into loader schemas,
// layered over the defaults.
func (c *ToolConfig) Schemas() (map[string]Schema, error) {
	schemas := DefaultSchemas()
	for kind, attrs := range c.Rules {
		schema := make(Schema, len(attrs))
		for attr, typeName := range attrs {
			typ, ok := buildtype.Lookup(typeName)
			if !ok {
				return nil, fmt.Errorf("rule '%s': attribute '%s' has unknown type '%s'", kind, attr, typeName)
			}
			schema[attr] = typ
		}
		schemas[kind] = schema
	}
	return schemas, nil
}

// LoaderOptions converts the file configuration into loader options.
func (c *ToolConfig) LoaderOptions() (Options, error) {
	schemas, err := c.Schemas()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Timeout:           c.EvalTimeout,
		MaxExecutionSteps: c.MaxExecutionSteps,
		Schemas:           schemas,
	}, nil
}

// TelemetryConfig converts the file configuration into a telemetry config.
func (c *ToolConfig) TelemetryConfig(serviceVersion string) *telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = serviceVersion
	if c.LogLevel != "" {
		cfg.Logging.Level = c.LogLevel
	}
	if c.LogFormat != "" {
		cfg.Logging.Format = c.LogFormat
	}
	cfg.Metrics.Enabled = c.MetricsEnabled
	if c.MetricsListen != "" {
		cfg.Metrics.ListenAddress = c.MetricsListen
	}
	cfg.Tracing.Enabled = c.TracingEnabled
	if c.TraceExporter != "" {
		cfg.Tracing.Exporter = c.TraceExporter
	}
	cfg.Tracing.Endpoint = c.TraceEndpoint
	return cfg
}
