package app

import (
	"bytes"
	"strings"
	"testing"

	"github.com/evanschultz/sprinter/internal/domain"
)

func exportBoard(t *testing.T) Board {
	t.Helper()
	session := newEngineSession(t, map[string]int{"a": 5, "b": 3})
	store := session.Store()
	mustAdd(t, store, "T1", "Login, SSO", 3, domain.PriorityHigh)
	mustAdd(t, store, "T2", "Docs", 2, domain.PriorityMedium)
	mustAdd(t, store, "T3", "Refactor", 4, domain.PriorityLow)
	if _, err := session.AutoAssign(testNow); err != nil {
		t.Fatalf("AutoAssign() error = %v", err)
	}
	return session.Board()
}

// TestWriteTasksCSV verifies behavior for the covered scenario.
func TestWriteTasksCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTasksCSV(&buf, exportBoard(t)); err != nil {
		t.Fatalf("WriteTasksCSV() error = %v", err)
	}
	want := strings.Join([]string{
		"ID,Title,Story Points,Priority,Assignee,Status",
		`T1,"Login, SSO",3,high,Ada,Assigned`,
		"T2,Docs,2,medium,Bo,Assigned",
		"T3,Refactor,4,low,Unassigned,Backlog",
		"",
	}, "\n")
	if buf.String() != want {
		t.Fatalf("unexpected csv:\n%s\nwant:\n%s", buf.String(), want)
	}
}

// TestWriteCapacityCSV verifies behavior for the covered scenario.
func TestWriteCapacityCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCapacityCSV(&buf, exportBoard(t)); err != nil {
		t.Fatalf("WriteCapacityCSV() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, two holders and team row, got %v", lines)
	}
	if lines[1] != "Ada,5,21,3,2,60,14" {
		t.Fatalf("unexpected holder row %q", lines[1])
	}
	if lines[3] != "Team,8,42,5,3,63,12" {
		t.Fatalf("unexpected team row %q", lines[3])
	}
}

// TestMarkdownReport verifies behavior for the covered scenario.
func TestMarkdownReport(t *testing.T) {
	report := MarkdownReport(exportBoard(t))
	for _, want := range []string{"# Sprint s1", "## Capacity", "| Ada | 3 | 5 | 21 | 60 | 14 |", "## Backlog", "- **Refactor** (4 SP, low)"} {
		if !strings.Contains(report, want) {
			t.Fatalf("expected %q in report:\n%s", want, report)
		}
	}
}

// TestMarkdownReportEscapesTitles verifies markup in task titles renders literally.
func TestMarkdownReportEscapesTitles(t *testing.T) {
	session := newEngineSession(t, map[string]int{"a": 5})
	mustAdd(t, session.Store(), "T1", "**urgent** | fix [auth]_flow", 3, domain.PriorityHigh)
	report := MarkdownReport(session.Board())
	want := `- **\*\*urgent\*\* \| fix \[auth\]\_flow** (3 SP, high)`
	if !strings.Contains(report, want) {
		t.Fatalf("expected %q in report:\n%s", want, report)
	}
}
