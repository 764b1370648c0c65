package app

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/evanschultz/sprinter/internal/domain"
)

var testNow = time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)

func testRoster() domain.Roster {
	return domain.Roster{{ID: "a", Name: "Ada"}, {ID: "b", Name: "Bo"}}
}

func mustAdd(t *testing.T, store *TaskStore, id, title string, sp int, priority domain.Priority) domain.Task {
	t.Helper()
	task, err := store.Add(domain.TaskInput{ID: id, Title: title, StoryPoints: sp, Priority: priority}, testNow)
	if err != nil {
		t.Fatalf("Add(%s) error = %v", id, err)
	}
	return task
}

func taskIDs(tasks []domain.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, task.ID)
	}
	return out
}

// TestTaskStoreAddValidation verifies behavior for the covered scenario.
func TestTaskStoreAddValidation(t *testing.T) {
	store := NewTaskStore(testRoster(), domain.DefaultStoryPointBounds())
	cases := []domain.TaskInput{
		{ID: "t1", Title: "", StoryPoints: 3},
		{ID: "t1", Title: "x", StoryPoints: 0},
		{ID: "t1", Title: "x", StoryPoints: 22},
		{ID: "t1", Title: "x", StoryPoints: 3, Priority: "someday"},
	}
	for _, in := range cases {
		if _, err := store.Add(in, testNow); !errors.Is(err, ErrValidation) {
			t.Fatalf("Add(%#v) expected ErrValidation, got %v", in, err)
		}
	}
	if store.Len() != 0 {
		t.Fatalf("expected no tasks after rejected adds, got %d", store.Len())
	}

	task := mustAdd(t, store, "t1", "Ship it", 5, "")
	if task.Priority != domain.PriorityMedium || task.Assigned() {
		t.Fatalf("unexpected new task %#v", task)
	}
	if _, err := store.Add(domain.TaskInput{ID: "t1", Title: "again", StoryPoints: 1}, testNow); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected duplicate id to fail validation, got %v", err)
	}
}

// TestTaskStoreAssignRejectsUnknownHolder verifies behavior for the covered scenario.
func TestTaskStoreAssignRejectsUnknownHolder(t *testing.T) {
	store := NewTaskStore(testRoster(), domain.DefaultStoryPointBounds())
	mustAdd(t, store, "t1", "Task", 3, domain.PriorityHigh)

	if _, err := store.Assign("t1", "a", testNow); err != nil {
		t.Fatalf("Assign(a) error = %v", err)
	}
	if _, err := store.Assign("t1", "ghost", testNow); !errors.Is(err, ErrUnknownHolder) {
		t.Fatalf("expected ErrUnknownHolder, got %v", err)
	}
	got, _ := store.Get("t1")
	if got.AssignedTo != "a" {
		t.Fatalf("expected prior assignment to survive, got %q", got.AssignedTo)
	}
	if _, err := store.Assign("missing", "a", testNow); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Assign("t1", "", testNow); err != nil {
		t.Fatalf("Assign(backlog) error = %v", err)
	}
	if got, _ := store.Get("t1"); got.Assigned() {
		t.Fatalf("expected task back in backlog, got %q", got.AssignedTo)
	}
}

// TestTaskStoreListByAssignmentOrdering verifies behavior for the covered scenario.
func TestTaskStoreListByAssignmentOrdering(t *testing.T) {
	store := NewTaskStore(testRoster(), domain.DefaultStoryPointBounds())
	mustAdd(t, store, "l1", "low one", 1, domain.PriorityLow)
	mustAdd(t, store, "h1", "high one", 1, domain.PriorityHigh)
	mustAdd(t, store, "m1", "medium one", 1, domain.PriorityMedium)
	mustAdd(t, store, "h2", "high two", 1, domain.PriorityHigh)
	mustAdd(t, store, "a-low", "a low", 2, domain.PriorityLow)
	mustAdd(t, store, "a-high", "a high", 2, domain.PriorityHigh)
	for _, id := range []string{"a-low", "a-high"} {
		if _, err := store.Assign(id, "a", testNow); err != nil {
			t.Fatalf("Assign(%s) error = %v", id, err)
		}
	}

	if got, want := taskIDs(store.ListByAssignment("")), []string{"h1", "h2", "m1", "l1"}; !slices.Equal(got, want) {
		t.Fatalf("backlog = %v, want %v", got, want)
	}
	if got, want := taskIDs(store.ListByAssignment("a")), []string{"a-low", "a-high"}; !slices.Equal(got, want) {
		t.Fatalf("holder list = %v, want insertion order %v", got, want)
	}
	if got := store.ListByAssignment("b"); len(got) != 0 {
		t.Fatalf("expected empty list for b, got %v", taskIDs(got))
	}
}

// TestTaskStoreUpdateAndRemove verifies behavior for the covered scenario.
func TestTaskStoreUpdateAndRemove(t *testing.T) {
	store := NewTaskStore(testRoster(), domain.DefaultStoryPointBounds())
	mustAdd(t, store, "t1", "Task", 3, domain.PriorityLow)
	if _, err := store.Assign("t1", "b", testNow); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}

	sp := 8
	updated, err := store.Update("t1", domain.TaskPatch{StoryPoints: &sp}, testNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.StoryPoints != 8 || updated.AssignedTo != "b" || updated.Title != "Task" {
		t.Fatalf("unexpected updated task %#v", updated)
	}
	empty := ""
	if _, err := store.Update("t1", domain.TaskPatch{Title: &empty}, testNow); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if got, _ := store.Get("t1"); got.Title != "Task" {
		t.Fatalf("expected title untouched, got %q", got.Title)
	}
	if _, err := store.Update("nope", domain.TaskPatch{StoryPoints: &sp}, testNow); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := store.Remove("t1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if store.Has("t1") || len(store.ListByAssignment("b")) != 0 {
		t.Fatal("expected assigned task to be removed")
	}
	if _, err := store.Remove("t1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second remove, got %v", err)
	}
}

// TestTaskStoreInsertIsAllOrNothing verifies behavior for the covered scenario.
func TestTaskStoreInsertIsAllOrNothing(t *testing.T) {
	store := NewTaskStore(testRoster(), domain.DefaultStoryPointBounds())
	good := domain.Task{ID: "x1", Title: "ok", StoryPoints: 2, Priority: domain.PriorityLow, CreatedAt: testNow}
	bad := domain.Task{ID: "x2", Title: "bad holder", StoryPoints: 2, Priority: domain.PriorityLow, AssignedTo: "zed", CreatedAt: testNow}
	if err := store.Insert(good, bad); !errors.Is(err, ErrUnknownHolder) {
		t.Fatalf("expected ErrUnknownHolder, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store after failed insert, got %d", store.Len())
	}
	if err := store.Insert(good, good); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected duplicate insert to fail, got %v", err)
	}
	if err := store.Insert(good); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
}
