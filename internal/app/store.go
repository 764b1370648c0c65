package app

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/evanschultz/sprinter/internal/domain"
)

// TaskStore owns the ordered task list of one sprint and enforces that every
// assignment names a roster member. It is not safe for concurrent use.
type TaskStore struct {
	tasks  []domain.Task
	roster domain.Roster
	bounds domain.StoryPointBounds
}

// NewTaskStore constructs an empty store bound to roster.
func NewTaskStore(roster domain.Roster, bounds domain.StoryPointBounds) *TaskStore {
	return &TaskStore{
		roster: slices.Clone(roster),
		bounds: bounds,
	}
}

// Add validates in and appends a new unassigned task.
func (s *TaskStore) Add(in domain.TaskInput, now time.Time) (domain.Task, error) {
	task, err := domain.NewTask(in, s.bounds, now)
	if err != nil {
		return domain.Task{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if s.index(task.ID) >= 0 {
		return domain.Task{}, fmt.Errorf("%w: duplicate task id %q", ErrValidation, task.ID)
	}
	s.tasks = append(s.tasks, task)
	return task, nil
}

// Insert appends already-built tasks. Every task is checked before any is
// stored, so a failure leaves the store unchanged.
func (s *TaskStore) Insert(tasks ...domain.Task) error {
	seen := map[string]struct{}{}
	for _, task := range tasks {
		if strings.TrimSpace(task.ID) == "" {
			return fmt.Errorf("%w: %w", ErrValidation, domain.ErrInvalidID)
		}
		if strings.TrimSpace(task.Title) == "" {
			return fmt.Errorf("%w: task %q: %w", ErrValidation, task.ID, domain.ErrInvalidTitle)
		}
		if !s.bounds.Contains(task.StoryPoints) {
			return fmt.Errorf("%w: task %q: %w", ErrValidation, task.ID, domain.ErrInvalidStoryPoints)
		}
		if !slices.Contains(domain.Priorities(), task.Priority) {
			return fmt.Errorf("%w: task %q: %w", ErrValidation, task.ID, domain.ErrInvalidPriority)
		}
		if task.Assigned() && !s.roster.Contains(task.AssignedTo) {
			return fmt.Errorf("%w: task %q: %q", ErrUnknownHolder, task.ID, task.AssignedTo)
		}
		if _, dup := seen[task.ID]; dup || s.index(task.ID) >= 0 {
			return fmt.Errorf("%w: duplicate task id %q", ErrValidation, task.ID)
		}
		seen[task.ID] = struct{}{}
	}
	s.tasks = append(s.tasks, tasks...)
	return nil
}

// Remove deletes the task with id regardless of its assignment.
func (s *TaskStore) Remove(id string) (domain.Task, error) {
	idx := s.index(id)
	if idx < 0 {
		return domain.Task{}, fmt.Errorf("task %q: %w", id, ErrNotFound)
	}
	removed := s.tasks[idx]
	s.tasks = slices.Delete(s.tasks, idx, idx+1)
	return removed, nil
}

// Update applies patch to the task with id.
func (s *TaskStore) Update(id string, patch domain.TaskPatch, now time.Time) (domain.Task, error) {
	idx := s.index(id)
	if idx < 0 {
		return domain.Task{}, fmt.Errorf("task %q: %w", id, ErrNotFound)
	}
	updated, err := patch.Apply(s.tasks[idx], s.bounds, now)
	if err != nil {
		return domain.Task{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	s.tasks[idx] = updated
	return updated, nil
}

// Assign moves the task to holderID, or to the backlog when holderID is empty.
// It is the only way a task's assignment changes.
func (s *TaskStore) Assign(id, holderID string, now time.Time) (domain.Task, error) {
	holderID = strings.TrimSpace(holderID)
	idx := s.index(id)
	if idx < 0 {
		return domain.Task{}, fmt.Errorf("task %q: %w", id, ErrNotFound)
	}
	if holderID != "" && !s.roster.Contains(holderID) {
		return domain.Task{}, fmt.Errorf("%w: %q", ErrUnknownHolder, holderID)
	}
	s.tasks[idx].AssignTo(holderID, now)
	return s.tasks[idx], nil
}

// Get returns the task with id.
func (s *TaskStore) Get(id string) (domain.Task, error) {
	idx := s.index(id)
	if idx < 0 {
		return domain.Task{}, fmt.Errorf("task %q: %w", id, ErrNotFound)
	}
	return s.tasks[idx], nil
}

// Has reports whether a task with id exists.
func (s *TaskStore) Has(id string) bool {
	return s.index(id) >= 0
}

// All returns every task in insertion order.
func (s *TaskStore) All() []domain.Task {
	return slices.Clone(s.tasks)
}

// Len returns the number of stored tasks.
func (s *TaskStore) Len() int {
	return len(s.tasks)
}

// ListByAssignment returns the backlog (holderID == "") ordered by priority
// with insertion order kept within a priority, or one holder's tasks in
// insertion order.
func (s *TaskStore) ListByAssignment(holderID string) []domain.Task {
	holderID = strings.TrimSpace(holderID)
	out := make([]domain.Task, 0)
	for _, task := range s.tasks {
		if task.AssignedTo == holderID {
			out = append(out, task)
		}
	}
	if holderID == "" {
		domain.SortByPriority(out)
	}
	return out
}

// Roster returns the roster the store validates assignments against.
func (s *TaskStore) Roster() domain.Roster {
	return slices.Clone(s.roster)
}

func (s *TaskStore) index(id string) int {
	id = strings.TrimSpace(id)
	return slices.IndexFunc(s.tasks, func(t domain.Task) bool { return t.ID == id })
}
