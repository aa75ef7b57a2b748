package oracle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/GoSim-25-26J-441/bitwidth-core/internal/registry"
	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/logger"
	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/models"
	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/utils"
)

// DefaultScriptTemplate drives a C simulation of the design
const DefaultScriptTemplate = `open_project -reset bitwidth_opt_{{.Label}}
add_files MHGD_accel_hw.cpp
{{if .DesignHeader}}add_files {{.DesignHeader}}
{{end}}add_files {{.TypesHeader}}
add_files -tb main_hw.cpp
set_top MHGD_detect_accel_hw
open_solution -reset "solution1"
set_part {xczu7ev-ffvc1156-2-e}
create_clock -period 10
csim_design -ldflags "-lm"
exit
`

// compile and tool error markers in build output
var buildErrorMarkers = []string{"error:", "ERROR: ["}

// Constant binds a `static const int NAME = value;` line to a scenario field
type Constant struct {
	Name   string
	Source string // size, complexity, log2_complexity
}

// Value resolves the constant for a scenario
func (c Constant) Value(s models.Scenario) (int, error) {
	switch c.Source {
	case "size":
		return s.Size, nil
	case "complexity":
		return s.Complexity, nil
	case "log2_complexity":
		return utils.Log2Int(s.Complexity), nil
	default:
		return 0, fmt.Errorf("unknown constant source %q for %s", c.Source, c.Name)
	}
}

// ToolchainConfig configures a ToolchainOracle
type ToolchainConfig struct {
	Workdir         string
	TypesHeader     string
	DesignHeader    string
	Constants       []Constant
	Command         []string // argv, each element a text/template
	ScriptTemplate  string   // template text; empty uses DefaultScriptTemplate
	LogDir          string   // relative paths are resolved against Workdir
	KeepLogs        bool
	Timeout         time.Duration
	DiagnosticLines int
}

// scriptData is the data available to script and command templates
type scriptData struct {
	Label        string
	Script       string
	LogFile      string
	Workdir      string
	TypesHeader  string
	DesignHeader string
	Scenario     models.Scenario
}

// ToolchainOracle materializes candidates into the shared build files, runs
// the external build-and-simulate command and extracts the metric.
type ToolchainOracle struct {
	cfg       ToolchainConfig
	logDir    string
	renderer  *registry.Renderer
	workspace *Workspace
	parser    *MetricParser
	script    *template.Template
	argv      []*template.Template
}

// NewToolchainOracle validates the configuration and compiles the templates
func NewToolchainOracle(cfg ToolchainConfig, renderer *registry.Renderer, parser *MetricParser) (*ToolchainOracle, error) {
	if len(cfg.Command) == 0 {
		return nil, fmt.Errorf("toolchain command is required")
	}
	if cfg.TypesHeader == "" {
		return nil, fmt.Errorf("types header is required")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %v", cfg.Timeout)
	}
	if cfg.DiagnosticLines <= 0 {
		cfg.DiagnosticLines = DefaultDiagnosticLines
	}
	if cfg.Workdir == "" {
		cfg.Workdir = "."
	}
	if renderer == nil {
		renderer = registry.NewRenderer(nil)
	}
	if parser == nil {
		var err error
		if parser, err = NewMetricParser(nil); err != nil {
			return nil, err
		}
	}

	text := cfg.ScriptTemplate
	if text == "" {
		text = DefaultScriptTemplate
	}
	script, err := template.New("script").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse script template: %w", err)
	}

	argv := make([]*template.Template, len(cfg.Command))
	for i, arg := range cfg.Command {
		argv[i], err = template.New(fmt.Sprintf("arg%d", i)).Option("missingkey=error").Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse command argument %q: %w", arg, err)
		}
	}

	logDir := cfg.LogDir
	if logDir == "" {
		logDir = "logfiles"
	}
	if !filepath.IsAbs(logDir) {
		logDir = filepath.Join(cfg.Workdir, logDir)
	}

	return &ToolchainOracle{
		cfg:       cfg,
		logDir:    logDir,
		renderer:  renderer,
		workspace: NewWorkspace(cfg.Workdir),
		parser:    parser,
		script:    script,
		argv:      argv,
	}, nil
}

// Workspace exposes the shared build files owned by the oracle
func (o *ToolchainOracle) Workspace() *Workspace {
	return o.workspace
}

// Evaluate runs one build-and-simulate cycle for the candidate
func (o *ToolchainOracle) Evaluate(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	label := utils.SanitizeLabel(req.Label)
	if label == "" {
		label = utils.CallLabel("eval")
	}

	if err := os.MkdirAll(o.logDir, 0755); err != nil {
		return Response{}, fmt.Errorf("failed to create log dir: %w", err)
	}
	data := scriptData{
		Label:        label,
		Script:       filepath.Join(o.logDir, "run_hls_"+label+".tcl"),
		LogFile:      filepath.Join(o.logDir, "build_"+label+".log"),
		Workdir:      o.cfg.Workdir,
		TypesHeader:  o.cfg.TypesHeader,
		DesignHeader: o.cfg.DesignHeader,
		Scenario:     req.Scenario,
	}
	for _, p := range []string{data.Script, data.LogFile} {
		if !o.inLogDir(p) {
			return Response{}, fmt.Errorf("call artifact %s escapes log dir %s", p, o.logDir)
		}
	}
	if err := o.writeScript(data); err != nil {
		return Response{}, err
	}
	argv, err := o.expandCommand(data)
	if err != nil {
		return Response{}, err
	}

	edits := []Edit{{Path: o.cfg.TypesHeader, Content: o.renderer.Render(req.Candidate)}}
	if o.cfg.DesignHeader != "" && len(o.cfg.Constants) > 0 {
		edits = append(edits, Edit{
			Path:  o.cfg.DesignHeader,
			Patch: func(orig []byte) ([]byte, error) { return PatchConstants(orig, o.cfg.Constants, req.Scenario) },
		})
	}

	var resp Response
	err = o.workspace.Do(ctx, edits, func(ctx context.Context) error {
		var runErr error
		resp, runErr = o.run(ctx, argv, data)
		return runErr
	})
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

func (o *ToolchainOracle) inLogDir(path string) bool {
	rel, err := filepath.Rel(o.logDir, path)
	if err != nil {
		return false
	}
	return filepath.Dir(rel) == "." && rel != "." && rel != ".."
}

func (o *ToolchainOracle) writeScript(data scriptData) error {
	var buf bytes.Buffer
	if err := o.script.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to render script: %w", err)
	}
	if err := os.WriteFile(data.Script, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write script: %w", err)
	}
	return nil
}

func (o *ToolchainOracle) expandCommand(data scriptData) ([]string, error) {
	argv := make([]string, len(o.argv))
	for i, t := range o.argv {
		var buf bytes.Buffer
		if err := t.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("failed to render command: %w", err)
		}
		argv[i] = buf.String()
	}
	return argv, nil
}

// run executes the command under the call timeout and classifies the result
func (o *ToolchainOracle) run(ctx context.Context, argv []string, data scriptData) (Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(callCtx, argv[0], argv[1:]...)
	cmd.Dir = o.cfg.Workdir
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if err := os.WriteFile(data.LogFile, out.Bytes(), 0644); err != nil {
		logger.Warn("failed to write build log", "file", data.LogFile, "error", err)
	}

	// user cancellation is not an evaluation outcome
	if ctx.Err() != nil {
		return Response{}, ctx.Err()
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return Response{Failure: NewFailure(models.FailureTimeout,
			fmt.Sprintf("%s exceeded %v after %s\n%s", argv[0], o.cfg.Timeout, utils.FormatDuration(elapsed), tail(out.String(), o.cfg.DiagnosticLines)),
			o.cfg.DiagnosticLines)}, nil
	}

	output := out.Bytes()
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			// the command never started
			return Response{Failure: NewFailure(models.FailureBuild, runErr.Error(), o.cfg.DiagnosticLines)}, nil
		}
		if diag, ok := buildErrors(output, o.cfg.DiagnosticLines); ok {
			return Response{Failure: NewFailure(models.FailureBuild, diag, o.cfg.DiagnosticLines)}, nil
		}
		return Response{Failure: NewFailure(models.FailureRuntime,
			fmt.Sprintf("%s: %v\n%s", argv[0], runErr, tail(out.String(), o.cfg.DiagnosticLines)),
			o.cfg.DiagnosticLines)}, nil
	}

	if v, ok := o.parser.Parse(output); ok {
		return Response{Metric: v}, nil
	}
	// some tools exit zero after a failed compile
	if diag, ok := buildErrors(output, o.cfg.DiagnosticLines); ok {
		return Response{Failure: NewFailure(models.FailureBuild, diag, o.cfg.DiagnosticLines)}, nil
	}
	return Response{Failure: NewFailure(models.FailureMetricUnavailable,
		"no metric in output\n"+tail(out.String(), o.cfg.DiagnosticLines),
		o.cfg.DiagnosticLines)}, nil
}

// RemoveLogs deletes the scripts and build logs of calls whose label starts
// with prefix. It is a no-op when logs are kept.
func (o *ToolchainOracle) RemoveLogs(prefix string) (int, error) {
	if o.cfg.KeepLogs {
		return 0, nil
	}
	removed := 0
	var errs []error
	for _, pattern := range []string{"run_hls_" + prefix + "_*.tcl", "build_" + prefix + "_*.log"} {
		matches, err := filepath.Glob(filepath.Join(o.logDir, pattern))
		if err != nil {
			return removed, err
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil {
				errs = append(errs, err)
				continue
			}
			removed++
		}
	}
	return removed, errors.Join(errs...)
}

// PatchConstants rewrites `static const int NAME = value;` lines for every
// constant. Constants missing from the source are left out with a warning.
func PatchConstants(src []byte, constants []Constant, s models.Scenario) ([]byte, error) {
	out := src
	for _, c := range constants {
		v, err := c.Value(s)
		if err != nil {
			return nil, err
		}
		re := regexp.MustCompile(`(static\s+const\s+int\s+` + regexp.QuoteMeta(c.Name) + `\s*=\s*)-?\d+(\s*;)`)
		if !re.Match(out) {
			logger.Warn("constant not found in design header", "constant", c.Name)
			continue
		}
		out = re.ReplaceAll(out, []byte("${1}"+strconv.Itoa(v)+"${2}"))
	}
	return out, nil
}

// buildErrors collects the lines that carry compile error markers
func buildErrors(output []byte, maxLines int) (string, bool) {
	var lines []string
	for _, line := range strings.Split(string(output), "\n") {
		for _, marker := range buildErrorMarkers {
			if strings.Contains(line, marker) {
				lines = append(lines, strings.TrimSpace(line))
				break
			}
		}
		if len(lines) == maxLines {
			break
		}
	}
	return strings.Join(lines, "\n"), len(lines) > 0
}

// tail returns the last n non-blank lines of s
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	kept := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			kept = append(kept, lines[i])
		}
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return strings.Join(kept, "\n")
}
