package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/evanschultz/sprinter/internal/domain"
	"pgregory.net/rapid"
)

// TestSnapshotRoundTripProperty checks that restoring a snapshot reproduces it exactly.
func TestSnapshotRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		session := newEngineSession(t, map[string]int{
			"a": rapid.IntRange(0, 21).Draw(rt, "cap_a"),
			"b": rapid.IntRange(0, 21).Draw(rt, "cap_b"),
		})
		n := rapid.IntRange(0, 10).Draw(rt, "tasks")
		for i := range n {
			created := testNow.Add(time.Duration(i) * time.Minute)
			task, err := session.Store().Add(domain.TaskInput{
				ID:          fmt.Sprintf("t%d", i),
				Title:       rapid.StringMatching(`[A-Za-z][A-Za-z ]{0,20}[a-z]`).Draw(rt, "title"),
				StoryPoints: rapid.IntRange(1, 21).Draw(rt, "sp"),
				Priority:    rapid.SampledFrom(domain.Priorities()).Draw(rt, "priority"),
			}, created)
			if err != nil {
				rt.Fatalf("Add() error = %v", err)
			}
			holder := rapid.SampledFrom([]string{"", "a", "b"}).Draw(rt, "holder")
			if _, err := session.ManualAssign(task.ID, holder, created); err != nil {
				rt.Fatalf("ManualAssign() error = %v", err)
			}
		}

		snap := session.Snapshot(testNow)
		raw, err := json.Marshal(snap)
		if err != nil {
			rt.Fatalf("Marshal() error = %v", err)
		}
		var decoded Snapshot
		if err := json.Unmarshal(raw, &decoded); err != nil {
			rt.Fatalf("Unmarshal() error = %v", err)
		}
		restored, err := SessionFromSnapshot(decoded, domain.DefaultStoryPointBounds())
		if err != nil {
			rt.Fatalf("SessionFromSnapshot() error = %v", err)
		}
		again := restored.Snapshot(testNow)
		if !reflect.DeepEqual(snap, again) {
			rt.Fatalf("round trip mismatch:\n%#v\n%#v", snap, again)
		}
		before, after := session.Board(), restored.Board()
		before.SavedAt, after.SavedAt = time.Time{}, time.Time{}
		if !reflect.DeepEqual(before, after) {
			rt.Fatal("restored board differs")
		}
	})
}

// TestSnapshotBacklogSerializesNull verifies behavior for the covered scenario.
func TestSnapshotBacklogSerializesNull(t *testing.T) {
	session := newEngineSession(t, map[string]int{"a": 5})
	mustAdd(t, session.Store(), "t1", "backlog", 2, domain.PriorityLow)
	raw, err := json.Marshal(session.Snapshot(testNow))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(raw), `"assigned_to":null`) {
		t.Fatalf("expected null assigned_to in %s", raw)
	}
	if !strings.Contains(string(raw), `"version":"`+SnapshotVersion+`"`) {
		t.Fatalf("expected version in %s", raw)
	}
}

// TestSnapshotValidateRejectsBadData verifies behavior for the covered scenario.
func TestSnapshotValidateRejectsBadData(t *testing.T) {
	ghost := "ghost"
	base := func() Snapshot {
		return Snapshot{
			Version:  SnapshotVersion,
			SprintID: "s1",
			Roster:   []SnapshotSprinter{{ID: "a", Name: "Ada"}},
			Capacity: map[string]SnapshotCapacity{"a": {SuggestedStoryPoints: 5}},
			Tasks: []SnapshotTask{
				{ID: "t1", Title: "ok", StoryPoints: 3, Priority: domain.PriorityHigh, CreatedAt: testNow},
			},
		}
	}
	cases := map[string]func(*Snapshot){
		"version":        func(s *Snapshot) { s.Version = "sprinter.snapshot.v9" },
		"sprint id":      func(s *Snapshot) { s.SprintID = " " },
		"duplicate":      func(s *Snapshot) { s.Roster = append(s.Roster, SnapshotSprinter{ID: "a"}) },
		"capacity owner": func(s *Snapshot) { s.Capacity["zz"] = SnapshotCapacity{} },
		"negative":       func(s *Snapshot) { s.Capacity["a"] = SnapshotCapacity{SuggestedStoryPoints: -2} },
		"title":          func(s *Snapshot) { s.Tasks[0].Title = "" },
		"priority":       func(s *Snapshot) { s.Tasks[0].Priority = "urgent" },
		"holder":         func(s *Snapshot) { s.Tasks[0].AssignedTo = &ghost },
		"created":        func(s *Snapshot) { s.Tasks[0].CreatedAt = time.Time{} },
		"dup task":       func(s *Snapshot) { s.Tasks = append(s.Tasks, s.Tasks[0]) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			snap := base()
			mutate(&snap)
			if err := snap.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
			if _, err := SessionFromSnapshot(snap, domain.DefaultStoryPointBounds()); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
	good := base()
	if err := good.Validate(); err != nil {
		t.Fatalf("Validate(base) error = %v", err)
	}
}

// TestServiceRestoreKeepsSessionOnError verifies behavior for the covered scenario.
func TestServiceRestoreKeepsSessionOnError(t *testing.T) {
	svc := newTestService(t, nil, ServiceConfig{})
	ctx := t.Context()
	if _, err := svc.AddTask(ctx, AddTaskInput{Title: "keep", StoryPoints: 1}); err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	if _, err := svc.Restore(ctx, Snapshot{SprintID: ""}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	board, _ := svc.Board(ctx)
	if board.SprintID != "sprint-42" || board.TaskCount() != 1 {
		t.Fatalf("expected original session to survive, got %#v", board)
	}

	snap, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	snap.SprintID = "sprint-43"
	board, err = svc.Restore(ctx, snap)
	if err != nil || board.SprintID != "sprint-43" || board.TaskCount() != 1 {
		t.Fatalf("Restore() = %#v, %v", board, err)
	}
}
