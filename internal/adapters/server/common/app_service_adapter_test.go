package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/evanschultz/sprinter/internal/app"
	"github.com/evanschultz/sprinter/internal/domain"
)

// newTestAdapter builds an adapter over an in-memory service with an active sprint.
func newTestAdapter(t *testing.T) *AppServiceAdapter {
	t.Helper()
	n := 0
	svc := app.NewService(nil, func() string {
		n++
		return fmt.Sprintf("task-%d", n)
	}, func() time.Time {
		return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	}, app.ServiceConfig{})
	_, err := svc.StartSprint(context.Background(), app.SprintSetup{
		SprintID: "s1",
		Roster:   []domain.Sprinter{{ID: "a", Name: "Ada"}, {ID: "b", Name: "Bo"}},
		Capacity: map[string]domain.CapacityEntry{
			"a": {SuggestedStoryPoints: 5, TargetStoryPointsPerPerson: 8},
			"b": {SuggestedStoryPoints: 3, TargetStoryPointsPerPerson: 8},
		},
	})
	if err != nil {
		t.Fatalf("StartSprint() error = %v", err)
	}
	return NewAppServiceAdapter(svc)
}

// TestAppServiceAdapterTaskFlow verifies behavior for the covered scenario.
func TestAppServiceAdapterTaskFlow(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()

	task, err := adapter.AddTask(ctx, AddTaskRequest{Title: " Login ", StoryPoints: 3, Priority: "HIGH"})
	if err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	if task.ID != "task-1" || task.Title != "Login" || task.Priority != "high" || task.AssignedTo != nil {
		t.Fatalf("unexpected task %#v", task)
	}
	title := "Login page"
	task, err = adapter.UpdateTask(ctx, task.ID, UpdateTaskRequest{Title: &title})
	if err != nil || task.Title != title {
		t.Fatalf("UpdateTask() = %#v, %v", task, err)
	}
	task, err = adapter.AssignTask(ctx, AssignTaskRequest{TaskID: task.ID, HolderID: "b"})
	if err != nil || task.AssignedTo == nil || *task.AssignedTo != "b" {
		t.Fatalf("AssignTask() = %#v, %v", task, err)
	}
	report, err := adapter.Capacity(ctx)
	if err != nil {
		t.Fatalf("Capacity() error = %v", err)
	}
	if report.Holders[1].Assigned != 3 || report.Holders[1].RealUtilization != 100 || report.Team.TotalAssigned != 3 {
		t.Fatalf("unexpected capacity %#v", report)
	}
	report, err = adapter.SetCapacity(ctx, SetCapacityRequest{HolderID: "b", Suggested: 2, Target: 8})
	if err != nil || !report.Holders[1].OverCapacity {
		t.Fatalf("SetCapacity() = %#v, %v", report, err)
	}
	tasks, err := adapter.ListTasks(ctx, "b")
	if err != nil || len(tasks) != 1 {
		t.Fatalf("ListTasks() = %#v, %v", tasks, err)
	}
	if err := adapter.RemoveTask(ctx, task.ID); err != nil {
		t.Fatalf("RemoveTask() error = %v", err)
	}
	if _, err := adapter.GetTask(ctx, task.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// TestAppServiceAdapterAutoAssign verifies behavior for the covered scenario.
func TestAppServiceAdapterAutoAssign(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()
	for _, sp := range []int{3, 2, 2} {
		if _, err := adapter.AddTask(ctx, AddTaskRequest{Title: "t", StoryPoints: sp}); err != nil {
			t.Fatalf("AddTask() error = %v", err)
		}
	}
	result, err := adapter.AutoAssign(ctx)
	if err != nil {
		t.Fatalf("AutoAssign() error = %v", err)
	}
	if result.Assigned != 3 || len(result.Board.Backlog) != 0 {
		t.Fatalf("unexpected auto assign result %#v", result)
	}
	if result.Board.Team.TotalAssigned != 7 {
		t.Fatalf("expected 7 assigned SP, got %d", result.Board.Team.TotalAssigned)
	}
}

// TestAppServiceAdapterErrorMapping verifies behavior for the covered scenario.
func TestAppServiceAdapterErrorMapping(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()
	cases := []struct {
		name string
		run  func() error
		want error
	}{
		{"bad priority", func() error {
			_, err := adapter.AddTask(ctx, AddTaskRequest{Title: "x", StoryPoints: 1, Priority: "urgent"})
			return err
		}, ErrInvalidRequest},
		{"bad points", func() error {
			_, err := adapter.AddTask(ctx, AddTaskRequest{Title: "x", StoryPoints: 99})
			return err
		}, ErrInvalidRequest},
		{"empty patch", func() error {
			_, err := adapter.UpdateTask(ctx, "task-1", UpdateTaskRequest{})
			return err
		}, ErrInvalidRequest},
		{"missing task", func() error {
			_, err := adapter.AssignTask(ctx, AssignTaskRequest{TaskID: "nope", HolderID: "a"})
			return err
		}, ErrNotFound},
		{"unknown holder", func() error {
			_, err := adapter.ListTasks(ctx, "ghost")
			return err
		}, ErrUnknownHolder},
		{"no source", func() error {
			_, err := adapter.ImportTasks(ctx, ImportTasksRequest{ListID: "l1"})
			return err
		}, ErrImportFailed},
		{"bad export", func() error {
			_, err := adapter.Export(ctx, "board.png")
			return err
		}, ErrInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.run(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	var empty *AppServiceAdapter
	if _, err := empty.Board(ctx); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	idle := NewAppServiceAdapter(app.NewService(nil, nil, nil, app.ServiceConfig{}))
	if _, err := idle.Board(ctx); !errors.Is(err, ErrNoSprint) {
		t.Fatalf("expected ErrNoSprint, got %v", err)
	}
}

// TestAppServiceAdapterExports verifies behavior for the covered scenario.
func TestAppServiceAdapterExports(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()
	if _, err := adapter.AddTask(ctx, AddTaskRequest{Title: "Docs", StoryPoints: 2}); err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	wants := map[string]string{
		ExportTasksCSV:     "task-1,Docs,2,medium,Unassigned,Backlog",
		ExportCapacityCSV:  "Sprinter,Suggested SP",
		ExportBoardText:    "sprint s1",
		ExportReport:       "# Sprint s1",
		ExportSnapshotJSON: `"sprint_id": "s1"`,
	}
	for _, format := range ExportFormats() {
		out, err := adapter.Export(ctx, format)
		if err != nil {
			t.Fatalf("Export(%s) error = %v", format, err)
		}
		if out.ContentType == "" || !strings.Contains(string(out.Body), wants[format]) {
			t.Fatalf("Export(%s) = %q (%s)", format, out.Body, out.ContentType)
		}
	}

	out, _ := adapter.Export(ctx, ExportSnapshotJSON)
	var snap app.Snapshot
	if err := json.Unmarshal(out.Body, &snap); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	board, err := adapter.Restore(ctx, snap)
	if err != nil || len(board.Backlog) != 1 {
		t.Fatalf("Restore() = %#v, %v", board, err)
	}
}
