package domain

import (
	"slices"
	"strings"
	"time"
)

// Priority ranks a task for backlog ordering and auto-assignment.
type Priority string

// PriorityHigh and related constants enumerate supported priorities.
const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

var validPriorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// Rank returns the sort rank for the priority; lower ranks come first.
// Unknown priorities sort after low.
func (p Priority) Rank() int {
	if idx := slices.Index(validPriorities, p); idx >= 0 {
		return idx
	}
	return len(validPriorities)
}

// ParsePriority normalizes raw text into a priority. Empty input yields the medium default.
func ParsePriority(raw string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(raw)))
	if p == "" {
		return PriorityMedium, nil
	}
	if !slices.Contains(validPriorities, p) {
		return "", ErrInvalidPriority
	}
	return p, nil
}

// Priorities returns the supported priorities in rank order.
func Priorities() []Priority {
	return slices.Clone(validPriorities)
}

// StoryPointBounds is the inclusive story point range accepted for tasks.
type StoryPointBounds struct {
	Min int
	Max int
}

// DefaultStoryPointBounds returns the 1..21 range used when none is configured.
func DefaultStoryPointBounds() StoryPointBounds {
	return StoryPointBounds{Min: 1, Max: 21}
}

// Contains reports whether sp lies within the bounds.
func (b StoryPointBounds) Contains(sp int) bool {
	return sp >= b.Min && sp <= b.Max
}

// Task is one unit of sprint work.
type Task struct {
	ID          string
	Title       string
	Description string
	StoryPoints int
	Priority    Priority
	// AssignedTo holds a roster member id, or "" while the task sits in the backlog.
	AssignedTo  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskInput holds input values for task construction.
type TaskInput struct {
	ID          string
	Title       string
	Description string
	StoryPoints int
	Priority    Priority
}

// NewTask validates input and returns an unassigned task.
func NewTask(in TaskInput, bounds StoryPointBounds, now time.Time) (Task, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	if in.ID == "" {
		return Task{}, ErrInvalidID
	}
	if in.Title == "" {
		return Task{}, ErrInvalidTitle
	}
	if !bounds.Contains(in.StoryPoints) {
		return Task{}, ErrInvalidStoryPoints
	}
	priority, err := ParsePriority(string(in.Priority))
	if err != nil {
		return Task{}, err
	}

	return Task{
		ID:          in.ID,
		Title:       in.Title,
		Description: in.Description,
		StoryPoints: in.StoryPoints,
		Priority:    priority,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}, nil
}

// Assigned reports whether the task sits in a holder column.
func (t Task) Assigned() bool {
	return t.AssignedTo != ""
}

// AssignTo moves the task to holderID, or to the backlog when holderID is empty.
// Roster membership is checked by the caller.
func (t *Task) AssignTo(holderID string, now time.Time) {
	t.AssignedTo = strings.TrimSpace(holderID)
	t.UpdatedAt = now.UTC()
}

// TaskPatch describes a partial task update. Nil fields are left unchanged.
type TaskPatch struct {
	Title       *string
	Description *string
	StoryPoints *int
	Priority    *Priority
}

// Empty reports whether the patch touches no field.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.StoryPoints == nil && p.Priority == nil
}

// Apply validates the patch against t and returns the patched copy. On error t is returned unchanged.
func (p TaskPatch) Apply(t Task, bounds StoryPointBounds, now time.Time) (Task, error) {
	out := t
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return t, ErrInvalidTitle
		}
		out.Title = title
	}
	if p.Description != nil {
		out.Description = strings.TrimSpace(*p.Description)
	}
	if p.StoryPoints != nil {
		if !bounds.Contains(*p.StoryPoints) {
			return t, ErrInvalidStoryPoints
		}
		out.StoryPoints = *p.StoryPoints
	}
	if p.Priority != nil {
		priority, err := ParsePriority(string(*p.Priority))
		if err != nil {
			return t, err
		}
		out.Priority = priority
	}
	out.UpdatedAt = now.UTC()
	return out, nil
}

// SortByPriority stable-sorts tasks by priority rank, keeping insertion order within a rank.
func SortByPriority(tasks []Task) {
	slices.SortStableFunc(tasks, func(a, b Task) int {
		return a.Priority.Rank() - b.Priority.Rank()
	})
}
