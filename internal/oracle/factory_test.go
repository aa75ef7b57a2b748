package oracle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/config"
)

func TestToolchainFromConfig(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "run.tcl.tmpl")
	if err := os.WriteFile(tmpl, []byte("open_project {{.Label}}\n"), 0o644); err != nil {
		t.Fatalf("failed to write template: %v", err)
	}

	cfg := config.Default()
	cfg.Oracle.Workdir = dir
	cfg.Oracle.ScriptTemplate = tmpl
	o, err := ToolchainFromConfig(cfg)
	if err != nil {
		t.Fatalf("ToolchainFromConfig failed: %v", err)
	}
	if o.Workspace().Root() != dir {
		t.Errorf("expected workspace %s, got %s", dir, o.Workspace().Root())
	}
	if o.logDir != filepath.Join(dir, "logfiles") {
		t.Errorf("unexpected log dir %s", o.logDir)
	}

	cfg.Oracle.ScriptTemplate = filepath.Join(dir, "missing.tmpl")
	if _, err := ToolchainFromConfig(cfg); err == nil {
		t.Error("expected error for a missing script template")
	}

	cfg.Oracle.ScriptTemplate = ""
	cfg.Oracle.MetricPatterns = []string{`no group`}
	if _, err := ToolchainFromConfig(cfg); err == nil {
		t.Error("expected error for a metric pattern without a capture group")
	}
}

func TestRemoteFromConfig(t *testing.T) {
	cfg := config.Default()
	if _, err := RemoteFromConfig(cfg); err == nil {
		t.Fatal("expected error without a remote section")
	}

	cfg.Remote = &config.Remote{Addr: "passthrough:///oracle", MaxRetries: 2, Backoff: "constant", BaseDelay: "10ms",
		BreakerThreshold: 3, BreakerCooldown: "1m"}
	r, err := RemoteFromConfig(cfg)
	if err != nil {
		t.Fatalf("RemoteFromConfig failed: %v", err)
	}
	if r.opts.MaxRetries != 2 {
		t.Errorf("expected 2 retries, got %d", r.opts.MaxRetries)
	}
	if r.opts.Breaker == nil || r.opts.Breaker.failureThreshold != 3 {
		t.Errorf("expected a breaker opening after 3 failures, got %+v", r.opts.Breaker)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	cfg.Remote.BaseDelay = "soon"
	if _, err := RemoteFromConfig(cfg); err == nil {
		t.Error("expected error for an invalid base delay")
	}
}
