// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"
	"time"

	"github.com/evanschultz/sprinter/internal/app"
)

// ErrInvalidRequest reports malformed transport input or rejected values.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrUnknownHolder reports a sprinter id outside the sprint roster.
var ErrUnknownHolder = errors.New("unknown sprinter")

// ErrImportFailed reports a failed task import.
var ErrImportFailed = errors.New("import failed")

// ErrNoSprint reports that no sprint is active yet.
var ErrNoSprint = errors.New("no active sprint")

// ErrUnavailable reports a missing backing service.
var ErrUnavailable = errors.New("service unavailable")

// Export formats served by the export surfaces.
const (
	ExportTasksCSV     = "tasks.csv"
	ExportCapacityCSV  = "capacity.csv"
	ExportBoardText    = "board.txt"
	ExportReport       = "report.md"
	ExportSnapshotJSON = "snapshot.json"
)

var exportFormats = []string{ExportTasksCSV, ExportCapacityCSV, ExportBoardText, ExportReport, ExportSnapshotJSON}

// ExportFormats returns every supported export format name.
func ExportFormats() []string {
	return append([]string(nil), exportFormats...)
}

// Task is the transport form of one task.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	StoryPoints int       `json:"story_points"`
	Priority    string    `json:"priority"`
	AssignedTo  *string   `json:"assigned_to"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HolderCapacity is one sprinter's capacity row.
type HolderCapacity struct {
	SprinterID        string `json:"sprinter_id"`
	Name              string `json:"name"`
	Suggested         int    `json:"suggested_story_points"`
	Target            int    `json:"target_story_points"`
	Assigned          int    `json:"assigned_story_points"`
	Remaining         int    `json:"remaining_story_points"`
	RealUtilization   int    `json:"real_utilization"`
	TargetUtilization int    `json:"target_utilization"`
	OverCapacity      bool   `json:"over_capacity"`
}

// TeamCapacity aggregates capacity across the roster.
type TeamCapacity struct {
	TotalSuggested    int `json:"total_suggested_story_points"`
	TotalTarget       int `json:"total_target_story_points"`
	TotalAssigned     int `json:"total_assigned_story_points"`
	Remaining         int `json:"remaining_story_points"`
	RealUtilization   int `json:"real_utilization"`
	TargetUtilization int `json:"target_utilization"`
}

// CapacityReport lists per-holder and team capacity.
type CapacityReport struct {
	SprintID string           `json:"sprint_id"`
	Holders  []HolderCapacity `json:"holders"`
	Team     TeamCapacity     `json:"team"`
}

// Column is one sprinter's board column.
type Column struct {
	Capacity HolderCapacity `json:"capacity"`
	Tasks    []Task         `json:"tasks"`
}

// Board is the full sprint view.
type Board struct {
	SprintID string       `json:"sprint_id"`
	SavedAt  *time.Time   `json:"saved_at,omitempty"`
	Backlog  []Task       `json:"backlog"`
	Columns  []Column     `json:"columns"`
	Team     TeamCapacity `json:"team"`
}

// AddTaskRequest captures input for a new backlog task.
type AddTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	StoryPoints int    `json:"story_points"`
	Priority    string `json:"priority,omitempty"`
}

// UpdateTaskRequest captures a partial task update; nil fields are left unchanged.
type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	StoryPoints *int    `json:"story_points,omitempty"`
	Priority    *string `json:"priority,omitempty"`
}

// AssignTaskRequest moves a task; an empty HolderID returns it to the backlog.
type AssignTaskRequest struct {
	TaskID   string `json:"task_id"`
	HolderID string `json:"holder_id"`
}

// AutoAssignResult reports an auto-assign pass.
type AutoAssignResult struct {
	Assigned int   `json:"assigned"`
	Board    Board `json:"board"`
}

// SetCapacityRequest replaces one sprinter's budget.
type SetCapacityRequest struct {
	HolderID  string `json:"holder_id"`
	Suggested int    `json:"suggested_story_points"`
	Target    int    `json:"target_story_points"`
}

// ImportTasksRequest names the external list to import.
type ImportTasksRequest struct {
	ListID string `json:"list_id"`
}

// ImportTasksResult reports imported and skipped tasks.
type ImportTasksResult struct {
	ListID   string   `json:"list_id"`
	Imported []Task   `json:"imported"`
	Skipped  []string `json:"skipped"`
}

// SprintSummary describes one stored sprint.
type SprintSummary struct {
	SprintID    string    `json:"sprint_id"`
	SavedAt     time.Time `json:"saved_at"`
	RosterSize  int       `json:"roster_size"`
	TaskCount   int       `json:"task_count"`
	Assigned    int       `json:"assigned"`
	StoryPoints int       `json:"story_points"`
}

// Export is one rendered export document.
type Export struct {
	Format      string
	ContentType string
	Body        []byte
}

// Planner is the transport-facing sprint planning surface.
type Planner interface {
	Board(context.Context) (Board, error)
	ListTasks(ctx context.Context, holderID string) ([]Task, error)
	GetTask(ctx context.Context, taskID string) (Task, error)
	AddTask(context.Context, AddTaskRequest) (Task, error)
	UpdateTask(ctx context.Context, taskID string, req UpdateTaskRequest) (Task, error)
	RemoveTask(ctx context.Context, taskID string) error
	AssignTask(context.Context, AssignTaskRequest) (Task, error)
	AutoAssign(context.Context) (AutoAssignResult, error)
	Capacity(context.Context) (CapacityReport, error)
	SetCapacity(context.Context, SetCapacityRequest) (CapacityReport, error)
	ImportTasks(context.Context, ImportTasksRequest) (ImportTasksResult, error)
	Snapshot(context.Context) (app.Snapshot, error)
	Restore(context.Context, app.Snapshot) (Board, error)
	ListSprints(context.Context) ([]SprintSummary, error)
	Export(ctx context.Context, format string) (Export, error)
}
