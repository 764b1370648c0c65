package app

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/evanschultz/sprinter/internal/domain"
)

// SnapshotVersion defines a package constant value.
const SnapshotVersion = "sprinter.snapshot.v1"

// Snapshot is the serializable form of a sprint session.
type Snapshot struct {
	Version  string                      `json:"version"`
	SprintID string                      `json:"sprint_id"`
	SavedAt  time.Time                   `json:"saved_at"`
	Roster   []SnapshotSprinter          `json:"roster"`
	Capacity map[string]SnapshotCapacity `json:"capacity"`
	Tasks    []SnapshotTask              `json:"tasks"`
}

// SnapshotSprinter represents snapshot roster data used by this package.
type SnapshotSprinter struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SnapshotCapacity represents snapshot capacity data used by this package.
type SnapshotCapacity struct {
	SuggestedStoryPoints       int `json:"suggested_story_points"`
	TargetStoryPointsPerPerson int `json:"target_story_points_per_person"`
}

// SnapshotTask represents snapshot task data used by this package.
type SnapshotTask struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	StoryPoints int             `json:"story_points"`
	Priority    domain.Priority `json:"priority"`
	// AssignedTo is null for backlog tasks.
	AssignedTo *string   `json:"assigned_to"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Snapshot captures the session state. savedAt stamps the snapshot.
func (s *Session) Snapshot(savedAt time.Time) Snapshot {
	snap := Snapshot{
		Version:  SnapshotVersion,
		SprintID: s.SprintID,
		SavedAt:  savedAt.UTC(),
		Roster:   make([]SnapshotSprinter, 0, len(s.roster)),
		Capacity: make(map[string]SnapshotCapacity, len(s.capacity)),
		Tasks:    make([]SnapshotTask, 0, s.store.Len()),
	}
	for _, member := range s.roster {
		snap.Roster = append(snap.Roster, SnapshotSprinter{ID: member.ID, Name: member.Name})
	}
	for id, entry := range s.capacity {
		snap.Capacity[id] = SnapshotCapacity{
			SuggestedStoryPoints:       entry.SuggestedStoryPoints,
			TargetStoryPointsPerPerson: entry.TargetStoryPointsPerPerson,
		}
	}
	for _, task := range s.store.All() {
		snap.Tasks = append(snap.Tasks, snapshotTaskFromDomain(task))
	}
	return snap
}

// SessionFromSnapshot rebuilds a session. The snapshot is validated first and
// no session is returned on error.
func SessionFromSnapshot(snap Snapshot, bounds domain.StoryPointBounds) (*Session, error) {
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	setup := SprintSetup{
		SprintID: snap.SprintID,
		Roster:   make([]domain.Sprinter, 0, len(snap.Roster)),
		Capacity: make(map[string]domain.CapacityEntry, len(snap.Capacity)),
	}
	for _, member := range snap.Roster {
		setup.Roster = append(setup.Roster, domain.Sprinter{ID: member.ID, Name: member.Name})
	}
	for id, entry := range snap.Capacity {
		setup.Capacity[id] = domain.CapacityEntry{
			SuggestedStoryPoints:       entry.SuggestedStoryPoints,
			TargetStoryPointsPerPerson: entry.TargetStoryPointsPerPerson,
		}
	}
	session, err := NewSession(setup, bounds)
	if err != nil {
		return nil, err
	}
	tasks := make([]domain.Task, 0, len(snap.Tasks))
	for _, task := range snap.Tasks {
		tasks = append(tasks, task.toDomain())
	}
	if err := session.store.Insert(tasks...); err != nil {
		return nil, err
	}
	session.SavedAt = snap.SavedAt.UTC()
	return session, nil
}

// Validate checks snapshot structure without applying story point bounds.
func (s *Snapshot) Validate() error {
	if s.Version != "" && s.Version != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version: %q", s.Version)
	}
	if strings.TrimSpace(s.SprintID) == "" {
		return fmt.Errorf("sprint_id is required")
	}

	rosterIDs := map[string]struct{}{}
	for i, member := range s.Roster {
		if strings.TrimSpace(member.ID) == "" {
			return fmt.Errorf("roster[%d].id is required", i)
		}
		if _, exists := rosterIDs[member.ID]; exists {
			return fmt.Errorf("duplicate sprinter id: %q", member.ID)
		}
		rosterIDs[member.ID] = struct{}{}
	}
	for id, entry := range s.Capacity {
		if _, ok := rosterIDs[id]; !ok {
			return fmt.Errorf("capacity[%q] references unknown sprinter", id)
		}
		if entry.SuggestedStoryPoints < 0 || entry.TargetStoryPointsPerPerson < 0 {
			return fmt.Errorf("capacity[%q] must be >= 0", id)
		}
	}

	taskIDs := map[string]struct{}{}
	for i, task := range s.Tasks {
		if strings.TrimSpace(task.ID) == "" {
			return fmt.Errorf("tasks[%d].id is required", i)
		}
		if strings.TrimSpace(task.Title) == "" {
			return fmt.Errorf("tasks[%d].title is required", i)
		}
		if task.StoryPoints <= 0 {
			return fmt.Errorf("tasks[%d].story_points must be positive", i)
		}
		if !slices.Contains(domain.Priorities(), task.Priority) {
			return fmt.Errorf("tasks[%d].priority %q is invalid", i, task.Priority)
		}
		if task.AssignedTo != nil {
			if _, ok := rosterIDs[*task.AssignedTo]; !ok {
				return fmt.Errorf("tasks[%d].assigned_to references unknown sprinter %q", i, *task.AssignedTo)
			}
		}
		if task.CreatedAt.IsZero() {
			return fmt.Errorf("tasks[%d].created_at is required", i)
		}
		if _, exists := taskIDs[task.ID]; exists {
			return fmt.Errorf("duplicate task id: %q", task.ID)
		}
		taskIDs[task.ID] = struct{}{}
	}
	return nil
}

func snapshotTaskFromDomain(t domain.Task) SnapshotTask {
	out := SnapshotTask{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		StoryPoints: t.StoryPoints,
		Priority:    t.Priority,
		CreatedAt:   t.CreatedAt.UTC(),
		UpdatedAt:   t.UpdatedAt.UTC(),
	}
	if t.Assigned() {
		holder := t.AssignedTo
		out.AssignedTo = &holder
	}
	return out
}

func (t SnapshotTask) toDomain() domain.Task {
	out := domain.Task{
		ID:          strings.TrimSpace(t.ID),
		Title:       strings.TrimSpace(t.Title),
		Description: t.Description,
		StoryPoints: t.StoryPoints,
		Priority:    t.Priority,
		CreatedAt:   t.CreatedAt.UTC(),
		UpdatedAt:   t.UpdatedAt.UTC(),
	}
	if out.UpdatedAt.IsZero() {
		out.UpdatedAt = out.CreatedAt
	}
	if t.AssignedTo != nil {
		out.AssignedTo = *t.AssignedTo
	}
	return out
}
