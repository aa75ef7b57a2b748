package config

import (
	"time"

	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/models"
)

// Config represents a bit-width optimization campaign configuration
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	LogFormat string          `yaml:"log_format"` // json or text
	Source    Source          `yaml:"source"`
	Scenario  models.Scenario `yaml:"scenario"`
	Search    Search          `yaml:"search"`
	Oracle    Oracle          `yaml:"oracle"`
	Remote    *Remote         `yaml:"remote,omitempty"`
	Output    Output          `yaml:"output"`
	Journal   Journal         `yaml:"journal"`
	Server    Server          `yaml:"server"`
}

// Source describes where the tunable declarations come from
type Source struct {
	Header         string   `yaml:"header"`
	ReservedPrefix string   `yaml:"reserved_prefix"`
	Includes       []string `yaml:"includes,omitempty"` // include lines of the rendered header
}

// WidthSpec is a (total, integer) pair in YAML form
type WidthSpec struct {
	Total   int `yaml:"total"`
	Integer int `yaml:"integer"`
}

// Width converts the YAML pair into a model width
func (w WidthSpec) Width() models.Width {
	return models.Width{Total: w.Total, Integer: w.Integer}
}

// Search holds the policy knobs of the search engine
type Search struct {
	Threshold    float64    `yaml:"threshold"`
	Acceptance   string     `yaml:"acceptance"` // absolute or baseline_delta
	CoarseStep   int        `yaml:"coarse_step"`
	FineStep     int        `yaml:"fine_step"`
	IntegerStep  int        `yaml:"integer_step"`
	FloorInteger int        `yaml:"floor_integer"`
	Margin       int        `yaml:"margin"`
	Order        string     `yaml:"order"`        // declaration, reverse_declaration, width_ascending, width_descending
	ContextMode  string     `yaml:"context_mode"` // cumulative or isolated
	IntegerMode  string     `yaml:"integer_mode"` // keep_fraction or keep_total
	InitialWidth *WidthSpec `yaml:"initial_width,omitempty"`
}

// Oracle configures the local build-and-simulate oracle
type Oracle struct {
	Kind            string     `yaml:"kind"` // toolchain or remote
	Workdir         string     `yaml:"workdir"`
	TypesHeader     string     `yaml:"types_header"`            // overwritten with each candidate
	DesignHeader    string     `yaml:"design_header,omitempty"` // patched with scenario constants
	Constants       []Constant `yaml:"constants,omitempty"`
	Command         []string   `yaml:"command"`                   // argv; each element is a text/template
	ScriptTemplate  string     `yaml:"script_template,omitempty"` // path to a text/template file
	LogDir          string     `yaml:"log_dir"`
	KeepLogs        bool       `yaml:"keep_logs"`
	Timeout         string     `yaml:"timeout"` // e.g., "10m"
	MetricPatterns  []string   `yaml:"metric_patterns,omitempty"`
	DiagnosticLines int        `yaml:"diagnostic_lines"`
}

// Constant maps a scenario field onto a `static const int NAME = value;` line
type Constant struct {
	Name   string `yaml:"name"`
	Source string `yaml:"source"` // size, complexity, log2_complexity
}

// Remote configures the gRPC oracle client
type Remote struct {
	Addr             string `yaml:"addr"`
	MaxRetries       int    `yaml:"max_retries"`
	Backoff          string `yaml:"backoff"`    // constant, exponential, jitter
	BaseDelay        string `yaml:"base_delay"` // e.g., "2s"
	BreakerThreshold int    `yaml:"breaker_threshold"`
	BreakerCooldown  string `yaml:"breaker_cooldown"`
}

// Output configures where results are written
type Output struct {
	Dir          string `yaml:"dir"`
	RecordFile   string `yaml:"record_file,omitempty"`
	HeaderFile   string `yaml:"header_file,omitempty"`
	HeaderPrefix string `yaml:"header_prefix"`
}

// Journal configures the attempt journal backend
type Journal struct {
	Backend string `yaml:"backend"` // memory or sqlite
	Path    string `yaml:"path,omitempty"`
}

// Server configures the optional network listeners
type Server struct {
	HTTPAddr string `yaml:"http_addr,omitempty"`
	GRPCAddr string `yaml:"grpc_addr,omitempty"`
}

// GetTimeout parses the per-call oracle timeout
func (o *Oracle) GetTimeout() (time.Duration, error) {
	return time.ParseDuration(o.Timeout)
}

// GetBaseDelay parses the remote retry base delay
func (r *Remote) GetBaseDelay() (time.Duration, error) {
	return time.ParseDuration(r.BaseDelay)
}

// GetBreakerCooldown parses how long an open circuit stays open
func (r *Remote) GetBreakerCooldown() (time.Duration, error) {
	return time.ParseDuration(r.BreakerCooldown)
}
