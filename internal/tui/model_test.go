package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/evanschultz/sprinter/internal/app"
	"github.com/evanschultz/sprinter/internal/domain"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// newTestService starts a two-person sprint with three backlog tasks.
func newTestService(t *testing.T) *app.Service {
	t.Helper()
	next := 0
	ids := func() string {
		next++
		return fmt.Sprintf("t%d", next)
	}
	svc := app.NewService(nil, ids, func() time.Time { return testNow }, app.ServiceConfig{})
	ctx := context.Background()
	if _, err := svc.StartSprint(ctx, app.SprintSetup{
		SprintID: "s1",
		Roster:   []domain.Sprinter{{ID: "a", Name: "Ada"}, {ID: "b", Name: "Bo"}},
		Capacity: map[string]domain.CapacityEntry{
			"a": {SuggestedStoryPoints: 5, TargetStoryPointsPerPerson: 8},
			"b": {SuggestedStoryPoints: 3, TargetStoryPointsPerPerson: 8},
		},
	}); err != nil {
		t.Fatalf("StartSprint() error = %v", err)
	}
	inputs := []app.AddTaskInput{
		{Title: "Wire login", StoryPoints: 5, Priority: domain.PriorityHigh},
		{Title: "Fix flaky test", StoryPoints: 2, Priority: domain.PriorityMedium},
		{Title: "Docs pass", StoryPoints: 1, Priority: domain.PriorityLow},
	}
	for _, in := range inputs {
		if _, err := svc.AddTask(ctx, in); err != nil {
			t.Fatalf("AddTask(%q) error = %v", in.Title, err)
		}
	}
	return svc
}

func applyMsg(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	updated, cmd := m.Update(msg)
	out, ok := updated.(Model)
	if !ok {
		t.Fatalf("expected Model, got %T", updated)
	}
	return applyCmd(t, out, cmd)
}

func applyCmd(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	out := m
	currentCmd := cmd
	for i := 0; i < 6 && currentCmd != nil; i++ {
		msg := currentCmd()
		updated, nextCmd := out.Update(msg)
		casted, ok := updated.(Model)
		if !ok {
			t.Fatalf("expected Model, got %T", updated)
		}
		out = casted
		currentCmd = nextCmd
	}
	return out
}

func keyRune(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

// loadReadyModel runs Init and a window size message.
func loadReadyModel(t *testing.T, m Model) Model {
	t.Helper()
	m = applyCmd(t, m, m.Init())
	return applyMsg(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
}

// TestModelLoadsBoard verifies the initial load builds lanes with the backlog first.
func TestModelLoadsBoard(t *testing.T) {
	m := loadReadyModel(t, NewModel(newTestService(t)))
	if m.err != nil {
		t.Fatalf("unexpected load error %v", m.err)
	}
	if len(m.lanes) != 3 || !m.lanes[0].Backlog() {
		t.Fatalf("unexpected lanes %#v", m.lanes)
	}
	if m.status != "ready" {
		t.Fatalf("unexpected status %q", m.status)
	}
	task, ok := m.selectedTask()
	if !ok || task.Title != "Wire login" {
		t.Fatalf("expected high priority task selected, got %#v", task)
	}
	view := m.boardView()
	for _, want := range []string{"sprint s1", "Backlog", "Ada", "Bo", "Wire login", "never saved"} {
		if !strings.Contains(view, want) {
			t.Fatalf("board view missing %q:\n%s", want, view)
		}
	}
}

// TestModelNavigation verifies lane and task cursor bounds.
func TestModelNavigation(t *testing.T) {
	m := loadReadyModel(t, NewModel(newTestService(t)))
	m = applyMsg(t, m, keyRune('k'))
	if m.task != 0 {
		t.Fatalf("expected task cursor to stay at top, got %d", m.task)
	}
	m = applyMsg(t, m, keyRune('j'))
	m = applyMsg(t, m, keyRune('j'))
	m = applyMsg(t, m, keyRune('j'))
	if m.task != 2 {
		t.Fatalf("expected task cursor at last backlog task, got %d", m.task)
	}
	m = applyMsg(t, m, keyRune('l'))
	if m.lane != 1 || m.task != 0 {
		t.Fatalf("expected first holder lane, got lane=%d task=%d", m.lane, m.task)
	}
	m = applyMsg(t, m, keyRune('l'))
	m = applyMsg(t, m, keyRune('l'))
	if m.lane != 2 {
		t.Fatalf("expected last lane, got %d", m.lane)
	}
	m = applyMsg(t, m, keyRune('h'))
	if m.lane != 1 {
		t.Fatalf("expected lane 1 after moving left, got %d", m.lane)
	}
}

// TestModelMoveTask verifies [ ] and b reassign the selected task and keep focus on it.
func TestModelMoveTask(t *testing.T) {
	svc := newTestService(t)
	m := loadReadyModel(t, NewModel(svc))

	m = applyMsg(t, m, keyRune(']'))
	if m.lane != 1 {
		t.Fatalf("expected cursor to follow task into lane 1, got %d", m.lane)
	}
	task, ok := m.selectedTask()
	if !ok || task.AssignedTo != "a" {
		t.Fatalf("expected task assigned to a, got %#v", task)
	}
	if !strings.Contains(m.status, "Ada") {
		t.Fatalf("unexpected status %q", m.status)
	}

	m = applyMsg(t, m, keyRune(']'))
	if task, _ := m.selectedTask(); task.AssignedTo != "b" || m.lane != 2 {
		t.Fatalf("expected task with b in lane 2, got %#v lane=%d", task, m.lane)
	}
	m = applyMsg(t, m, keyRune(']'))
	if m.lane != 2 {
		t.Fatalf("expected move past last lane to be ignored, got lane %d", m.lane)
	}

	m = applyMsg(t, m, keyRune('b'))
	if m.lane != 0 {
		t.Fatalf("expected task back in backlog lane, got %d", m.lane)
	}
	backlog, err := svc.ListTasks(context.Background(), "")
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(backlog) != 3 {
		t.Fatalf("expected 3 backlog tasks, got %d", len(backlog))
	}
}

// TestModelAutoAssignAndDelete verifies the service mutations behind a and d.
func TestModelAutoAssignAndDelete(t *testing.T) {
	svc := newTestService(t)
	m := loadReadyModel(t, NewModel(svc))

	m = applyMsg(t, m, keyRune('a'))
	if !strings.HasPrefix(m.status, "auto-assigned") {
		t.Fatalf("unexpected status %q", m.status)
	}
	board, err := svc.Board(context.Background())
	if err != nil {
		t.Fatalf("Board() error = %v", err)
	}
	if board.Team.TotalAssigned == 0 {
		t.Fatal("expected auto-assign to place tasks")
	}

	m = applyMsg(t, m, keyRune('l'))
	task, ok := m.selectedTask()
	if !ok {
		t.Fatal("expected an assigned task in the first holder lane")
	}
	m = applyMsg(t, m, keyRune('d'))
	if _, err := svc.GetTask(context.Background(), task.ID); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("GetTask() error = %v, want ErrNotFound", err)
	}
	if !strings.Contains(m.status, "deleted") {
		t.Fatalf("unexpected status %q", m.status)
	}
}

// TestModelCopyTasks verifies y copies the tasks CSV through the clipboard hook.
func TestModelCopyTasks(t *testing.T) {
	var copied string
	m := loadReadyModel(t, NewModel(newTestService(t), WithClipboard(func(s string) error {
		copied = s
		return nil
	})))
	m = applyMsg(t, m, keyRune('y'))
	if !strings.HasPrefix(copied, "ID,Title,Story Points") || !strings.Contains(copied, "Wire login") {
		t.Fatalf("unexpected clipboard content %q", copied)
	}
	if m.status != "copied tasks csv" {
		t.Fatalf("unexpected status %q", m.status)
	}

	m = NewModel(newTestService(t), WithClipboard(func(string) error { return errors.New("no display") }))
	m = loadReadyModel(t, m)
	m = applyMsg(t, m, keyRune('y'))
	if !strings.Contains(m.status, "no display") {
		t.Fatalf("expected clipboard error in status, got %q", m.status)
	}
}

// TestModelSave verifies s persists through the service.
func TestModelSave(t *testing.T) {
	m := loadReadyModel(t, NewModel(newTestService(t)))
	m = applyMsg(t, m, keyRune('s'))
	if m.status != "saved" {
		t.Fatalf("unexpected status %q", m.status)
	}
}

// TestModelNoSprint verifies the error view and retry path without an active sprint.
func TestModelNoSprint(t *testing.T) {
	svc := app.NewService(nil, nil, func() time.Time { return testNow }, app.ServiceConfig{})
	m := loadReadyModel(t, NewModel(svc))
	if !errors.Is(m.err, app.ErrNoSprint) {
		t.Fatalf("expected ErrNoSprint, got %v", m.err)
	}
	if !strings.Contains(m.errorView(), "sprinter init") {
		t.Fatalf("unexpected error view %q", m.errorView())
	}
	m = applyMsg(t, m, keyRune(']'))
	if !errors.Is(m.err, app.ErrNoSprint) {
		t.Fatal("expected board keys ignored while in error state")
	}
	m = applyMsg(t, m, keyRune('r'))
	if !errors.Is(m.err, app.ErrNoSprint) {
		t.Fatalf("expected retry to reload and fail again, got %v", m.err)
	}
	_, cmd := m.Update(keyRune('q'))
	if cmd == nil {
		t.Fatal("expected quit cmd")
	}
}

// TestModelHelpToggle verifies ? expands the help view.
func TestModelHelpToggle(t *testing.T) {
	m := loadReadyModel(t, NewModel(newTestService(t)))
	m = applyMsg(t, m, keyRune('?'))
	if !m.help.ShowAll {
		t.Fatal("expected full help")
	}
	if !strings.Contains(m.boardView(), "copy tasks csv") {
		t.Fatal("expected full help to list copy binding")
	}
	m = applyMsg(t, m, keyRune('?'))
	if m.help.ShowAll {
		t.Fatal("expected short help")
	}
}

// TestFitLines verifies padding and truncation.
func TestFitLines(t *testing.T) {
	if got := fitLines("a\nb\nc", 2); got != "a\n…" {
		t.Fatalf("fitLines truncate = %q", got)
	}
	if got := fitLines("a", 3); got != "a\n\n" {
		t.Fatalf("fitLines pad = %q", got)
	}
	if got := fitLines("a", 0); got != "" {
		t.Fatalf("fitLines zero = %q", got)
	}
}
