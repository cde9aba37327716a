package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starforge/starforge/pkg/buildtype"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".forge.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadToolConfig(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
log_format: json
metrics_enabled: true
metrics_listen: ":9191"
eval_timeout: 5s
max_execution_steps: 100000
rules:
  docs:
    srcs: list(label)
    index: label
    keywords: list(string)
`)

	cfg, err := LoadToolConfig(path)
	if err != nil {
		t.Fatalf("LoadToolConfig() error: %v", err)
	}

	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Errorf("logging config = %s/%s", cfg.LogLevel, cfg.LogFormat)
	}
	if !cfg.MetricsEnabled || cfg.MetricsListen != ":9191" {
		t.Errorf("metrics config = %v/%s", cfg.MetricsEnabled, cfg.MetricsListen)
	}
	if cfg.EvalTimeout != 5*time.Second {
		t.Errorf("EvalTimeout = %v, want 5s", cfg.EvalTimeout)
	}

	schemas, err := cfg.Schemas()
	if err != nil {
		t.Fatalf("Schemas() error: %v", err)
	}
	docs, ok := schemas["docs"]
	if !ok {
		t.Fatal("declared 'docs' kind missing from schemas")
	}
	if docs["srcs"] != buildtype.LabelList {
		t.Errorf("docs.srcs = %v, want list(label)", docs["srcs"])
	}
	if docs["index"] != buildtype.Label {
		t.Errorf("docs.index = %v, want label", docs["index"])
	}
	if _, ok := schemas["filegroup"]; !ok {
		t.Error("default kinds should survive alongside declared ones")
	}
}

func TestLoadToolConfigDefaultsApply(t *testing.T) {
	path := writeConfig(t, `log_level: warn`)

	cfg, err := LoadToolConfig(path)
	if err != nil {
		t.Fatalf("LoadToolConfig() error: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %s, want warn", cfg.LogLevel)
	}
	if cfg.EvalTimeout != 30*time.Second {
		t.Errorf("EvalTimeout = %v, want default 30s", cfg.EvalTimeout)
	}
	if cfg.TraceExporter != "stdout" {
		t.Errorf("TraceExporter = %s, want default stdout", cfg.TraceExporter)
	}
}

func TestLoadToolConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "bad yaml",
			content: "log_level: [unterminated",
			wantErr: "failed to parse",
		},
		{
			name:    "bad log level",
			content: "log_level: loud",
			wantErr: "invalid config",
		},
		{
			name:    "bad trace exporter",
			content: "trace_exporter: zipkin",
			wantErr: "invalid config",
		},
		{
			name:    "negative eval timeout",
			content: "eval_timeout: -1s",
			wantErr: "invalid config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := LoadToolConfig(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("LoadToolConfig() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSchemasUnknownType(t *testing.T) {
	cfg := DefaultToolConfig()
	cfg.Rules = map[string]map[string]string{
		"docs": {"srcs": "list(labels)"},
	}
	_, err := cfg.Schemas()
	if err == nil || !strings.Contains(err.Error(), "unknown type 'list(labels)'") {
		t.Fatalf("Schemas() = %v, want unknown type error", err)
	}
}

func TestLoaderOptionsFromConfig(t *testing.T) {
	cfg := DefaultToolConfig()
	cfg.EvalTimeout = 2 * time.Second
	cfg.MaxExecutionSteps = 500

	opts, err := cfg.LoaderOptions()
	if err != nil {
		t.Fatalf("LoaderOptions() error: %v", err)
	}
	if opts.Timeout != 2*time.Second || opts.MaxExecutionSteps != 500 {
		t.Errorf("opts = %+v", opts)
	}
	if opts.Schemas == nil {
		t.Error("LoaderOptions() should resolve schemas")
	}
}

func TestTelemetryConfigFromToolConfig(t *testing.T) {
	cfg := DefaultToolConfig()
	cfg.LogLevel = "debug"
	cfg.MetricsEnabled = true
	cfg.MetricsListen = ":9999"
	cfg.TracingEnabled = true
	cfg.TraceExporter = "otlp"
	cfg.TraceEndpoint = "collector:4317"

	tcfg := cfg.TelemetryConfig("1.2.3")
	if tcfg.ServiceVersion != "1.2.3" {
		t.Errorf("ServiceVersion = %s", tcfg.ServiceVersion)
	}
	if tcfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %s", tcfg.Logging.Level)
	}
	if !tcfg.Metrics.Enabled || tcfg.Metrics.ListenAddress != ":9999" {
		t.Errorf("metrics = %+v", tcfg.Metrics)
	}
	if !tcfg.Tracing.Enabled || tcfg.Tracing.Exporter != "otlp" || tcfg.Tracing.Endpoint != "collector:4317" {
		t.Errorf("tracing = %+v", tcfg.Tracing)
	}
	if err := tcfg.Validate(); err != nil {
		t.Errorf("converted config failed validation: %v", err)
	}
}
