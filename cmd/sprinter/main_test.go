package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/evanschultz/sprinter/internal/config"
	"github.com/evanschultz/sprinter/internal/tui"
)

// TestMain sets deterministic environment defaults for CLI tests.
func TestMain(m *testing.M) {
	_ = os.Setenv("SPRINTER_DEV_MODE", "false")
	_ = os.Unsetenv("SPRINTER_CONFIG")
	_ = os.Unsetenv("SPRINTER_DB_PATH")
	os.Exit(m.Run())
}

const testRoster = `
sprint: sprint-9
working_days: 5
sprinters:
  - id: ada
    name: Ada
    capacity: 10
  - id: bo
    name: Bo
    capacity: 5
`

// fakeProgram records the model it was given instead of driving a terminal.
type fakeProgram struct {
	model tea.Model
	runs  *int
}

// Run returns the model unchanged.
func (p fakeProgram) Run() (tea.Model, error) {
	*p.runs++
	return p.model, nil
}

// testEnv isolates config, database and roster files in a temp dir.
type testEnv struct {
	dir    string
	config string
	db     string
	roster string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		dir:    dir,
		config: filepath.Join(dir, "config.toml"),
		db:     filepath.Join(dir, "data", "sprinter.db"),
		roster: filepath.Join(dir, "roster.yaml"),
	}
	if err := os.WriteFile(env.config, []byte("[logging]\nlevel = \"warn\"\n\n[database]\npath = \""+filepath.ToSlash(env.db)+"\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile(config) error = %v", err)
	}
	if err := os.WriteFile(env.roster, []byte(testRoster), 0o644); err != nil {
		t.Fatalf("WriteFile(roster) error = %v", err)
	}
	return env
}

// run executes one CLI invocation against the environment.
func (e testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCommand(strings.NewReader(""), &stdout, &stderr)
	root.SetArgs(append([]string{"--dev=false", "--config", e.config, "--db", e.db}, args...))
	err := root.ExecuteContext(context.Background())
	return stdout.String(), err
}

// mustRun executes one CLI invocation and fails the test on error.
func (e testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("%v error = %v", args, err)
	}
	return out
}

// addedID extracts the task id from `task add` output.
func addedID(t *testing.T, out string) string {
	t.Helper()
	fields := strings.Fields(out)
	if len(fields) < 2 || fields[0] != "added" {
		t.Fatalf("unexpected task add output %q", out)
	}
	return fields[1]
}

// TestPathsCommand verifies resolved locations are printed.
func TestPathsCommand(t *testing.T) {
	env := newTestEnv(t)
	out := env.mustRun(t, "paths")
	for _, want := range []string{"app: sprinter", "dev_mode: false", "config: " + env.config, "db: " + env.db, "roster: "} {
		if !strings.Contains(out, want) {
			t.Fatalf("paths output missing %q:\n%s", want, out)
		}
	}
}

// TestSprintLifecycle verifies init, task edits, auto-assign, exports and drop against sqlite.
func TestSprintLifecycle(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "init", env.roster)
	if !strings.Contains(out, "sprint sprint-9 started: 2 sprinters, 15 SP suggested, 42 SP target") {
		t.Fatalf("unexpected init output:\n%s", out)
	}

	env.mustRun(t, "task", "add", "Wire", "login", "-p", "5", "--priority", "high")
	fixID := addedID(t, env.mustRun(t, "task", "add", "Fix flaky test", "-p", "8"))
	env.mustRun(t, "task", "add", "Docs pass", "-p", "3", "--priority", "low")
	if _, err := env.run(t, "task", "add", "Too big", "-p", "40"); err == nil {
		t.Fatal("expected story point bounds error")
	}

	out = env.mustRun(t, "auto-assign")
	if !strings.Contains(out, "assigned 2 tasks; 1 left in backlog") {
		t.Fatalf("unexpected auto-assign output:\n%s", out)
	}

	out = env.mustRun(t, "task", "list", "--backlog")
	if !strings.Contains(out, "Fix flaky test") || strings.Contains(out, "Wire login") {
		t.Fatalf("unexpected backlog listing:\n%s", out)
	}

	out = env.mustRun(t, "capacity", "set", "bo", "--suggested", "8")
	if !strings.Contains(out, "capacity for bo: 8 suggested, 21 target") {
		t.Fatalf("unexpected capacity set output %q", out)
	}
	out = env.mustRun(t, "task", "assign", fixID, "bo")
	if !strings.Contains(out, "to bo") {
		t.Fatalf("unexpected assign output %q", out)
	}
	out = env.mustRun(t, "capacity")
	if !strings.Contains(out, "Bo (over)") || !strings.Contains(out, "Team") {
		t.Fatalf("expected Bo over capacity:\n%s", out)
	}

	out = env.mustRun(t, "export", "tasks.csv")
	if !strings.HasPrefix(out, "ID,Title,Story Points") || !strings.Contains(out, "Wire login") {
		t.Fatalf("unexpected tasks csv:\n%s", out)
	}
	snapshotPath := filepath.Join(env.dir, "snap.json")
	env.mustRun(t, "export", "snapshot.json", "--out", snapshotPath)
	if _, err := os.Stat(snapshotPath); err != nil {
		t.Fatalf("expected snapshot file, stat error %v", err)
	}
	if _, err := env.run(t, "export", "slides.pptx"); err == nil {
		t.Fatal("expected unsupported export format error")
	}

	env.mustRun(t, "task", "rm", fixID)
	out = env.mustRun(t, "restore", snapshotPath)
	if !strings.Contains(out, "restored sprint sprint-9") {
		t.Fatalf("unexpected restore output %q", out)
	}
	out = env.mustRun(t, "task", "list", "--holder", "bo")
	if !strings.Contains(out, "Fix flaky test") {
		t.Fatalf("expected restored task back with bo:\n%s", out)
	}

	out = env.mustRun(t, "sprints")
	if !strings.Contains(out, "sprint-9") {
		t.Fatalf("unexpected sprints output:\n%s", out)
	}
	env.mustRun(t, "drop", "sprint-9")
	if _, err := env.run(t, "capacity"); err == nil || !strings.Contains(err.Error(), "sprinter init") {
		t.Fatalf("expected missing sprint error, got %v", err)
	}
	if _, err := env.run(t, "drop", "sprint-9"); err == nil {
		t.Fatal("expected dropping a missing sprint to fail")
	}
}

// TestInitExampleWritesFiles verifies --example writes a roster and a default config once.
func TestInitExampleWritesFiles(t *testing.T) {
	env := newTestEnv(t)
	if err := os.Remove(env.config); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	rosterPath := filepath.Join(env.dir, "example", "roster.yaml")
	out := env.mustRun(t, "init", "--example", rosterPath)
	if !strings.Contains(out, "wrote roster") || !strings.Contains(out, "wrote config") {
		t.Fatalf("unexpected example output %q", out)
	}
	if _, err := env.run(t, "init", "--example", rosterPath); err == nil {
		t.Fatal("expected existing roster to be protected without --force")
	}
	env.mustRun(t, "init", "--example", "--force", rosterPath)

	out = env.mustRun(t, "init", rosterPath)
	if !strings.Contains(out, "sprint sprint-1 started") {
		t.Fatalf("expected example roster to start a sprint:\n%s", out)
	}
}

// TestBoardCommandRunsProgram verifies the board command hands a tui model to the program.
func TestBoardCommandRunsProgram(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "init", env.roster)

	runs := 0
	var got tea.Model
	original := programFactory
	programFactory = func(m tea.Model) program {
		got = m
		return fakeProgram{model: m, runs: &runs}
	}
	t.Cleanup(func() { programFactory = original })

	env.mustRun(t, "board")
	if runs != 1 {
		t.Fatalf("expected one program run, got %d", runs)
	}
	if _, ok := got.(tui.Model); !ok {
		t.Fatalf("expected tui.Model, got %T", got)
	}
}

// TestImportWithoutSource verifies import fails cleanly when no url is configured.
func TestImportWithoutSource(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "init", env.roster)
	_, err := env.run(t, "import", "list-1")
	if err == nil || !strings.Contains(err.Error(), "no task source configured") {
		t.Fatalf("expected missing source error, got %v", err)
	}
}

// TestDevLogFilePath verifies relative dirs land under the workspace root.
func TestDevLogFilePath(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module x\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if got := workspaceRootFrom(nested); got != root {
		t.Fatalf("workspaceRootFrom() = %q, want %q", got, root)
	}
	if got := logFileStem(" my app/dev "); got != "my-app-dev" {
		t.Fatalf("logFileStem() = %q", got)
	}
	if got := logFileStem(" / "); got != "sprinter" {
		t.Fatalf("logFileStem() fallback = %q", got)
	}

	day := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	fallback := filepath.Join(root, "logs")
	got, err := logFilePath("", fallback, "sprinter-dev", day)
	if err != nil {
		t.Fatalf("logFilePath() error = %v", err)
	}
	if want := filepath.Join(fallback, "sprinter-dev-20260304.log"); got != want {
		t.Fatalf("logFilePath() = %q, want %q", got, want)
	}
}

// TestRuntimeLoggerDevFile verifies dev runs write logfmt lines to the daily file and muting spares it.
func TestRuntimeLoggerDevFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	cfg := config.LoggingConfig{Level: "info", DevFile: config.DevFileConfig{Enabled: true, Dir: dir}}
	now := func() time.Time { return time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC) }
	logger, err := newRuntimeLogger(&console, logTarget{appName: "sprinter", devMode: true}, cfg, now)
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	logger.Mute("console")
	logger.Info("sprint started", "sprint_id", "s-1")
	logger.Debug("hidden below level")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if console.Len() != 0 {
		t.Fatalf("expected muted console, got %q", console.String())
	}
	content, err := os.ReadFile(logger.FilePath())
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(content), "sprint_id=s-1") || strings.Contains(string(content), "hidden") {
		t.Fatalf("unexpected dev log content %q", content)
	}
}
