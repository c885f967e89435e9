package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	serveradapter "github.com/hylla/civitas/internal/adapters/server"
	servercommon "github.com/hylla/civitas/internal/adapters/server/common"
	"github.com/hylla/civitas/internal/config"
)

// TestMain sets deterministic environment defaults for CLI tests.
func TestMain(m *testing.M) {
	_ = os.Setenv("CIVITAS_DEV_MODE", "false")
	_ = os.Unsetenv("CIVITAS_DB_PATH")
	_ = os.Unsetenv("CIVITAS_CONFIG")
	_ = os.Unsetenv("CIVITAS_APP_NAME")
	os.Exit(m.Run())
}

// withClock pins the CLI clock for one test.
func withClock(t *testing.T, now time.Time) {
	t.Helper()
	orig := clock
	clock = func() time.Time { return now }
	t.Cleanup(func() { clock = orig })
}

// runArgs runs the command tree and returns captured stdout.
func runArgs(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out strings.Builder
	err := run(context.Background(), args, &out, io.Discard)
	return out.String(), err
}

// storeFlags points one invocation at an isolated database and config.
func storeFlags(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	return []string{"--db", filepath.Join(dir, "data", "civitas.db"), "--config", filepath.Join(dir, "config.toml")}
}

// TestRunVersion verifies behavior for the covered scenario.
func TestRunVersion(t *testing.T) {
	out, err := runArgs(t, "version")
	if err != nil {
		t.Fatalf("run(version) error = %v", err)
	}
	if !strings.Contains(out, "civitas dev") {
		t.Fatalf("expected version output, got %q", out)
	}
}

// TestRunPaths verifies path resolution output.
func TestRunPaths(t *testing.T) {
	out, err := runArgs(t, "--app", "civitas-test", "paths")
	if err != nil {
		t.Fatalf("run(paths) error = %v", err)
	}
	for _, want := range []string{"app: civitas-test", "dev_mode: false", "config: ", "db: ", "log: "} {
		if !strings.Contains(out, want) {
			t.Fatalf("paths output missing %q:\n%s", want, out)
		}
	}
}

// TestRunUnknownCommand verifies unknown subcommands fail.
func TestRunUnknownCommand(t *testing.T) {
	if _, err := runArgs(t, "frobnicate"); err == nil {
		t.Fatal("expected unknown command error")
	}
}

// TestRunSeedEscalateReport verifies the offline command flows against one database.
func TestRunSeedEscalateReport(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	withClock(t, start)
	flags := storeFlags(t)

	out, err := runArgs(t, append(flags, "seed")...)
	if err != nil {
		t.Fatalf("run(seed) error = %v", err)
	}
	if !strings.Contains(out, "seeded Central Municipality: 5 districts, 5 users, 4 requests") {
		t.Fatalf("unexpected seed output %q", out)
	}

	out, err = runArgs(t, append(flags, "seed")...)
	if err != nil {
		t.Fatalf("run(seed) second error = %v", err)
	}
	if !strings.Contains(out, "already seeded") {
		t.Fatalf("expected idempotent seed, got %q", out)
	}

	out, err = runArgs(t, append(flags, "escalate")...)
	if err != nil {
		t.Fatalf("run(escalate) error = %v", err)
	}
	if !strings.Contains(out, "examined 4 open requests: 0 escalated") {
		t.Fatalf("unexpected fresh sweep output %q", out)
	}

	withClock(t, start.Add(13*time.Hour))
	out, err = runArgs(t, append(flags, "escalate")...)
	if err != nil {
		t.Fatalf("run(escalate) later error = %v", err)
	}
	if !strings.Contains(out, "1 escalated") {
		t.Fatalf("expected one escalation after 13h, got %q", out)
	}

	out, err = runArgs(t, append(flags, "report", "--actor", "usr-admin")...)
	if err != nil {
		t.Fatalf("run(report) error = %v", err)
	}
	if !strings.Contains(out, "Municipal Admin") || !strings.Contains(out, "no closed requests yet") {
		t.Fatalf("unexpected report output %q", out)
	}

	if _, err := runArgs(t, append(flags, "report", "--actor", "usr-nobody")...); err == nil {
		t.Fatal("expected unknown actor error")
	}
}

// TestRunSeedFromFile verifies custom seed documents.
func TestRunSeedFromFile(t *testing.T) {
	flags := storeFlags(t)
	seedPath := filepath.Join(t.TempDir(), "seed.json")
	doc := `{
  "version": "civitas.seed.v1",
  "municipality": {"id": "mun-x", "name": "Harbor Town"},
  "districts": [{"key": "dock", "id": "dst-dock", "name": "Dockside"}],
  "users": [{"id": "usr-x", "email": "x@harbor.example", "name": "Harbor Admin", "role": "municipal_admin"}]
}`
	if err := os.WriteFile(seedPath, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	out, err := runArgs(t, append(flags, "seed", "--file", seedPath)...)
	if err != nil {
		t.Fatalf("run(seed --file) error = %v", err)
	}
	if !strings.Contains(out, "seeded Harbor Town: 1 districts, 1 users, 0 requests") {
		t.Fatalf("unexpected seed output %q", out)
	}
}

// TestRunReportRequiresActor verifies the required actor flag.
func TestRunReportRequiresActor(t *testing.T) {
	if _, err := runArgs(t, append(storeFlags(t), "report")...); err == nil {
		t.Fatal("expected missing --actor error")
	}
}

// TestRunServeWiresDependencies verifies serve composes config, adapters, and metrics.
func TestRunServeWiresDependencies(t *testing.T) {
	orig := serveCommandRunner
	t.Cleanup(func() { serveCommandRunner = orig })

	var (
		gotCfg  serveradapter.Config
		gotDeps serveradapter.Dependencies
	)
	serveCommandRunner = func(_ context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
		gotCfg = cfg
		gotDeps = deps
		return nil
	}

	flags := storeFlags(t)
	cfgPath := flags[3]
	if err := os.WriteFile(cfgPath, []byte("[server]\napi_endpoint = \"/api/v2\"\n\n[escalation]\nsweep_interval = \"0\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := runArgs(t, append(flags, "serve", "--http", "127.0.0.1:9999")...); err != nil {
		t.Fatalf("run(serve) error = %v", err)
	}
	if gotCfg.HTTPBind != "127.0.0.1:9999" {
		t.Fatalf("http bind = %q, want flag override", gotCfg.HTTPBind)
	}
	if gotCfg.APIEndpoint != "/api/v2" || gotCfg.MCPEndpoint != "/mcp" {
		t.Fatalf("unexpected endpoints %#v", gotCfg)
	}
	if gotCfg.ServerName != "civitas" || gotCfg.ServerVersion != "dev" {
		t.Fatalf("unexpected server identity %#v", gotCfg)
	}
	if gotDeps.Public == nil || gotDeps.Admin == nil || gotDeps.Metrics == nil {
		t.Fatalf("expected wired dependencies, got %#v", gotDeps)
	}
}

// TestRunServeWithoutMetrics verifies the metrics toggle.
func TestRunServeWithoutMetrics(t *testing.T) {
	orig := serveCommandRunner
	t.Cleanup(func() { serveCommandRunner = orig })
	var gotDeps serveradapter.Dependencies
	serveCommandRunner = func(_ context.Context, _ serveradapter.Config, deps serveradapter.Dependencies) error {
		gotDeps = deps
		return nil
	}
	flags := storeFlags(t)
	if err := os.WriteFile(flags[3], []byte("[server]\nenable_metrics = false\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := runArgs(t, append(flags, "serve")...); err != nil {
		t.Fatalf("run(serve) error = %v", err)
	}
	if gotDeps.Metrics != nil {
		t.Fatalf("expected metrics disabled, got %#v", gotDeps.Metrics)
	}
}

// TestRunRejectsInvalidConfig verifies config validation errors surface.
func TestRunRejectsInvalidConfig(t *testing.T) {
	flags := storeFlags(t)
	if err := os.WriteFile(flags[3], []byte("[logging]\nlevel = \"chatty\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	_, err := runArgs(t, append(flags, "escalate")...)
	if err == nil || !strings.Contains(err.Error(), "load config") {
		t.Fatalf("expected config load error, got %v", err)
	}
}

// TestNewRuntimeLoggerDevFile verifies the dev-mode logfmt sink.
func TestNewRuntimeLoggerDevFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "civitas.log")
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	logger, err := newRuntimeLogger(io.Discard, "civitas", true, config.LoggingConfig{Level: "info", DevFile: true}, logPath, func() time.Time { return now })
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	logger.Info("hello", "k", "v")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	want := filepath.Join(filepath.Dir(logPath), "civitas-20260301.log")
	if logger.DevLogPath() != want {
		t.Fatalf("DevLogPath() = %q, want %q", logger.DevLogPath(), want)
	}
	content, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(content), "msg=hello") || !strings.Contains(string(content), "k=v") {
		t.Fatalf("unexpected log content %q", content)
	}
}

// TestNewRuntimeLoggerConsoleOnly verifies the file sink stays off outside dev mode.
func TestNewRuntimeLoggerConsoleOnly(t *testing.T) {
	var buf strings.Builder
	logger, err := newRuntimeLogger(&buf, "civitas", false, config.LoggingConfig{Level: "warn", DevFile: true}, filepath.Join(t.TempDir(), "x.log"), nil)
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	logger.Info("quiet")
	logger.Warn("loud")
	if logger.DevLogPath() != "" {
		t.Fatalf("unexpected dev log %q", logger.DevLogPath())
	}
	if strings.Contains(buf.String(), "quiet") || !strings.Contains(buf.String(), "loud") {
		t.Fatalf("unexpected console output %q", buf.String())
	}
	if _, err := newRuntimeLogger(io.Discard, "civitas", false, config.LoggingConfig{Level: "nope"}, "", nil); err == nil {
		t.Fatal("expected invalid level error")
	}
}

// TestRenderComplianceReport verifies table rendering of category buckets.
func TestRenderComplianceReport(t *testing.T) {
	out := renderComplianceReport("Olaya District Admin", servercommon.ComplianceView{
		Closed: 3,
		Met:    2,
		Rate:   67,
		ByCategory: []servercommon.ComplianceBucketView{
			{Category: "water", Total: 2, Met: 2, Rate: 100},
			{Category: "roads", Total: 1, Breached: 1, Rate: 0},
		},
	})
	for _, want := range []string{"Olaya District Admin", "3 closed, 2 within deadline", "Category", "water", "roads", "100%"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}

// TestRunEscalationLoopDisabled verifies a zero interval returns immediately.
func TestRunEscalationLoopDisabled(t *testing.T) {
	done := make(chan struct{})
	go func() {
		runEscalationLoop(context.Background(), nil, 0, nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runEscalationLoop did not return for zero interval")
	}
}
