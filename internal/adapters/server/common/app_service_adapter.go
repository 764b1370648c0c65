package common

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/evanschultz/sprinter/internal/adapters/render"
	"github.com/evanschultz/sprinter/internal/app"
	"github.com/evanschultz/sprinter/internal/domain"
)

// AppServiceAdapter maps transport contracts onto app.Service.
type AppServiceAdapter struct {
	service *app.Service
}

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

// Board returns the active sprint board.
func (a *AppServiceAdapter) Board(ctx context.Context) (Board, error) {
	if err := a.ready(); err != nil {
		return Board{}, err
	}
	board, err := a.service.Board(ctx)
	if err != nil {
		return Board{}, mapAppError("board", err)
	}
	return mapBoard(board), nil
}

// ListTasks lists the backlog (empty holderID) or one sprinter's tasks.
func (a *AppServiceAdapter) ListTasks(ctx context.Context, holderID string) ([]Task, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	tasks, err := a.service.ListTasks(ctx, holderID)
	if err != nil {
		return nil, mapAppError("list tasks", err)
	}
	return mapTasks(tasks), nil
}

// GetTask returns one task.
func (a *AppServiceAdapter) GetTask(ctx context.Context, taskID string) (Task, error) {
	if err := a.ready(); err != nil {
		return Task{}, err
	}
	task, err := a.service.GetTask(ctx, strings.TrimSpace(taskID))
	if err != nil {
		return Task{}, mapAppError("get task", err)
	}
	return mapTask(task), nil
}

// AddTask creates one backlog task.
func (a *AppServiceAdapter) AddTask(ctx context.Context, in AddTaskRequest) (Task, error) {
	if err := a.ready(); err != nil {
		return Task{}, err
	}
	priority, err := domain.ParsePriority(in.Priority)
	if err != nil {
		return Task{}, fmt.Errorf("add task: %w", errors.Join(ErrInvalidRequest, err))
	}
	task, err := a.service.AddTask(ctx, app.AddTaskInput{
		Title:       in.Title,
		StoryPoints: in.StoryPoints,
		Priority:    priority,
		Description: in.Description,
	})
	if err != nil {
		return Task{}, mapAppError("add task", err)
	}
	return mapTask(task), nil
}

// UpdateTask applies a partial update.
func (a *AppServiceAdapter) UpdateTask(ctx context.Context, taskID string, in UpdateTaskRequest) (Task, error) {
	if err := a.ready(); err != nil {
		return Task{}, err
	}
	patch := domain.TaskPatch{
		Title:       in.Title,
		Description: in.Description,
		StoryPoints: in.StoryPoints,
	}
	if in.Priority != nil {
		priority, err := domain.ParsePriority(*in.Priority)
		if err != nil {
			return Task{}, fmt.Errorf("update task: %w", errors.Join(ErrInvalidRequest, err))
		}
		patch.Priority = &priority
	}
	if patch.Empty() {
		return Task{}, fmt.Errorf("update task: no fields to update: %w", ErrInvalidRequest)
	}
	task, err := a.service.UpdateTask(ctx, strings.TrimSpace(taskID), patch)
	if err != nil {
		return Task{}, mapAppError("update task", err)
	}
	return mapTask(task), nil
}

// RemoveTask deletes one task.
func (a *AppServiceAdapter) RemoveTask(ctx context.Context, taskID string) error {
	if err := a.ready(); err != nil {
		return err
	}
	return mapAppError("remove task", a.service.RemoveTask(ctx, strings.TrimSpace(taskID)))
}

// AssignTask moves one task to a sprinter or the backlog.
func (a *AppServiceAdapter) AssignTask(ctx context.Context, in AssignTaskRequest) (Task, error) {
	if err := a.ready(); err != nil {
		return Task{}, err
	}
	taskID := strings.TrimSpace(in.TaskID)
	if taskID == "" {
		return Task{}, fmt.Errorf("assign task: task_id is required: %w", ErrInvalidRequest)
	}
	task, err := a.service.Assign(ctx, taskID, strings.TrimSpace(in.HolderID))
	if err != nil {
		return Task{}, mapAppError("assign task", err)
	}
	return mapTask(task), nil
}

// AutoAssign runs one auto-assign pass and returns the resulting board.
func (a *AppServiceAdapter) AutoAssign(ctx context.Context) (AutoAssignResult, error) {
	if err := a.ready(); err != nil {
		return AutoAssignResult{}, err
	}
	count, err := a.service.AutoAssign(ctx)
	if err != nil {
		return AutoAssignResult{}, mapAppError("auto assign", err)
	}
	board, err := a.Board(ctx)
	if err != nil {
		return AutoAssignResult{}, err
	}
	return AutoAssignResult{Assigned: count, Board: board}, nil
}

// Capacity returns per-holder and team capacity.
func (a *AppServiceAdapter) Capacity(ctx context.Context) (CapacityReport, error) {
	if err := a.ready(); err != nil {
		return CapacityReport{}, err
	}
	board, err := a.service.Board(ctx)
	if err != nil {
		return CapacityReport{}, mapAppError("capacity", err)
	}
	return mapCapacityReport(board), nil
}

// SetCapacity replaces one sprinter's budget.
func (a *AppServiceAdapter) SetCapacity(ctx context.Context, in SetCapacityRequest) (CapacityReport, error) {
	if err := a.ready(); err != nil {
		return CapacityReport{}, err
	}
	err := a.service.SetCapacity(ctx, strings.TrimSpace(in.HolderID), domain.CapacityEntry{
		SuggestedStoryPoints:       in.Suggested,
		TargetStoryPointsPerPerson: in.Target,
	})
	if err != nil {
		return CapacityReport{}, mapAppError("set capacity", err)
	}
	return a.Capacity(ctx)
}

// ImportTasks imports tasks from the configured source.
func (a *AppServiceAdapter) ImportTasks(ctx context.Context, in ImportTasksRequest) (ImportTasksResult, error) {
	if err := a.ready(); err != nil {
		return ImportTasksResult{}, err
	}
	result, err := a.service.ImportTasks(ctx, in.ListID)
	if err != nil {
		return ImportTasksResult{}, mapAppError("import tasks", err)
	}
	skipped := result.Skipped
	if skipped == nil {
		skipped = []string{}
	}
	return ImportTasksResult{
		ListID:   result.ListID,
		Imported: mapTasks(result.Imported),
		Skipped:  skipped,
	}, nil
}

// Snapshot returns the active sprint snapshot.
func (a *AppServiceAdapter) Snapshot(ctx context.Context) (app.Snapshot, error) {
	if err := a.ready(); err != nil {
		return app.Snapshot{}, err
	}
	snap, err := a.service.Snapshot(ctx)
	if err != nil {
		return app.Snapshot{}, mapAppError("snapshot", err)
	}
	return snap, nil
}

// Restore replaces the active sprint with snap.
func (a *AppServiceAdapter) Restore(ctx context.Context, snap app.Snapshot) (Board, error) {
	if err := a.ready(); err != nil {
		return Board{}, err
	}
	board, err := a.service.Restore(ctx, snap)
	if err != nil {
		return Board{}, mapAppError("restore", err)
	}
	return mapBoard(board), nil
}

// ListSprints lists stored sprints, newest first.
func (a *AppServiceAdapter) ListSprints(ctx context.Context) ([]SprintSummary, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	sprints, err := a.service.ListSprints(ctx)
	if err != nil {
		return nil, mapAppError("list sprints", err)
	}
	out := make([]SprintSummary, 0, len(sprints))
	for _, s := range sprints {
		out = append(out, SprintSummary{
			SprintID:    s.SprintID,
			SavedAt:     s.SavedAt,
			RosterSize:  s.RosterSize,
			TaskCount:   s.TaskCount,
			Assigned:    s.Assigned,
			StoryPoints: s.StoryPoints,
		})
	}
	return out, nil
}

// Export renders the active sprint in one of ExportFormats.
func (a *AppServiceAdapter) Export(ctx context.Context, format string) (Export, error) {
	if err := a.ready(); err != nil {
		return Export{}, err
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if !slices.Contains(exportFormats, format) {
		return Export{}, fmt.Errorf("export: unsupported format %q: %w", format, ErrInvalidRequest)
	}
	if format == ExportSnapshotJSON {
		snap, err := a.Snapshot(ctx)
		if err != nil {
			return Export{}, err
		}
		body, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return Export{}, fmt.Errorf("export: encode snapshot: %w", err)
		}
		return Export{Format: format, ContentType: "application/json", Body: append(body, '\n')}, nil
	}

	board, err := a.service.Board(ctx)
	if err != nil {
		return Export{}, mapAppError("export", err)
	}
	return RenderExport(board, format)
}

// RenderExport renders a board-derived export. Snapshot exports are not handled here.
func RenderExport(board app.Board, format string) (Export, error) {
	var buf bytes.Buffer
	out := Export{Format: format}
	switch format {
	case ExportTasksCSV:
		out.ContentType = "text/csv; charset=utf-8"
		if err := app.WriteTasksCSV(&buf, board); err != nil {
			return Export{}, fmt.Errorf("export tasks: %w", err)
		}
	case ExportCapacityCSV:
		out.ContentType = "text/csv; charset=utf-8"
		if err := app.WriteCapacityCSV(&buf, board); err != nil {
			return Export{}, fmt.Errorf("export capacity: %w", err)
		}
	case ExportBoardText:
		out.ContentType = "text/plain; charset=utf-8"
		buf.WriteString(render.Board(board, render.BoardOptions{Plain: true}))
		buf.WriteByte('\n')
	case ExportReport:
		out.ContentType = "text/markdown; charset=utf-8"
		buf.WriteString(app.MarkdownReport(board))
	default:
		return Export{}, fmt.Errorf("export: unsupported format %q: %w", format, ErrInvalidRequest)
	}
	out.Body = buf.Bytes()
	return out, nil
}

// ready reports whether the adapter has a backing service.
func (a *AppServiceAdapter) ready() error {
	if a == nil || a.service == nil {
		return fmt.Errorf("app service adapter is not configured: %w", ErrUnavailable)
	}
	return nil
}

// mapBoard converts an app board into its transport form.
func mapBoard(board app.Board) Board {
	out := Board{
		SprintID: board.SprintID,
		Backlog:  mapTasks(board.Backlog),
		Columns:  make([]Column, 0, len(board.Columns)),
		Team:     mapTeam(board.Team),
	}
	if !board.SavedAt.IsZero() {
		savedAt := board.SavedAt
		out.SavedAt = &savedAt
	}
	for _, col := range board.Columns {
		out.Columns = append(out.Columns, Column{
			Capacity: mapHolder(col.Capacity),
			Tasks:    mapTasks(col.Tasks),
		})
	}
	return out
}

func mapCapacityReport(board app.Board) CapacityReport {
	out := CapacityReport{
		SprintID: board.SprintID,
		Holders:  make([]HolderCapacity, 0, len(board.Columns)),
		Team:     mapTeam(board.Team),
	}
	for _, col := range board.Columns {
		out.Holders = append(out.Holders, mapHolder(col.Capacity))
	}
	return out
}

func mapHolder(c domain.HolderCapacity) HolderCapacity {
	return HolderCapacity{
		SprinterID:        c.Sprinter.ID,
		Name:              c.Sprinter.Name,
		Suggested:         c.Suggested,
		Target:            c.Target,
		Assigned:          c.Assigned,
		Remaining:         c.Remaining,
		RealUtilization:   c.RealUtilization,
		TargetUtilization: c.TargetUtilization,
		OverCapacity:      c.OverCapacity,
	}
}

func mapTeam(t domain.TeamCapacity) TeamCapacity {
	return TeamCapacity{
		TotalSuggested:    t.TotalSuggested,
		TotalTarget:       t.TotalTarget,
		TotalAssigned:     t.TotalAssigned,
		Remaining:         t.Remaining,
		RealUtilization:   t.RealUtilization,
		TargetUtilization: t.TargetUtilization,
	}
}

func mapTasks(tasks []domain.Task) []Task {
	out := make([]Task, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, mapTask(task))
	}
	return out
}

func mapTask(task domain.Task) Task {
	out := Task{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		StoryPoints: task.StoryPoints,
		Priority:    string(task.Priority),
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
	if task.Assigned() {
		holder := task.AssignedTo
		out.AssignedTo = &holder
	}
	return out
}

// mapAppError maps app errors into transport sentinels while keeping the cause.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, app.ErrNoSprint):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNoSprint, err))
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrUnknownHolder):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrUnknownHolder, err))
	case errors.Is(err, app.ErrImport):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrImportFailed, err))
	case errors.Is(err, app.ErrValidation):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
