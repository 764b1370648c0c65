package app

import (
	"context"
	"time"
)

// SnapshotRepository persists sprint snapshots.
type SnapshotRepository interface {
	SaveSnapshot(context.Context, Snapshot) error
	LoadSnapshot(context.Context, string) (Snapshot, error)
	LatestSnapshot(context.Context) (Snapshot, error)
	ListSprints(context.Context) ([]SprintSummary, error)
	DeleteSprint(context.Context, string) error
}

// SprintSummary describes one stored sprint without its tasks.
type SprintSummary struct {
	SprintID    string
	SavedAt     time.Time
	RosterSize  int
	TaskCount   int
	Assigned    int
	StoryPoints int
}

// ImportRecord is one task row returned by an external task source.
type ImportRecord struct {
	ID          string
	Title       string
	StoryPoints int
	Priority    string
	Description string
}

// TaskSource fetches task records for a list identifier.
type TaskSource interface {
	FetchTasks(ctx context.Context, listID string) ([]ImportRecord, error)
}

// Logger is the structured logger the service reports through.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

// Recorder receives operational measurements from the service.
type Recorder interface {
	ObserveMutation(operation string, err error)
	ObserveAutoAssign(assigned int)
	ObservePersist(err error)
	ObserveBoard(backlog int, team TeamView)
}

// TeamView is the subset of team capacity published to recorders.
type TeamView struct {
	TotalSuggested    int
	TotalAssigned     int
	RealUtilization   int
	TargetUtilization int
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type nopRecorder struct{}

func (nopRecorder) ObserveMutation(string, error) {}
func (nopRecorder) ObserveAutoAssign(int)         {}
func (nopRecorder) ObservePersist(error)          {}
func (nopRecorder) ObserveBoard(int, TeamView)    {}
