package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/evanschultz/sprinter/internal/domain"
)

// DefaultImportPrefix namespaces ids of imported tasks.
const DefaultImportPrefix = "trello-"

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	Bounds       domain.StoryPointBounds
	ImportPrefix string
	Source       TaskSource
	Logger       Logger
	Recorder     Recorder
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service is the single entry point for sprint mutations and queries. It owns
// the active session and serializes every call so mutations apply in the order
// they arrive. Persistence is best-effort: a failed save is logged and retried
// by the next save or autosave tick, and never fails the mutation.
type Service struct {
	mu sync.Mutex

	repo         SnapshotRepository
	idGen        IDGenerator
	clock        Clock
	bounds       domain.StoryPointBounds
	importPrefix string
	source       TaskSource
	log          Logger
	recorder     Recorder

	session *Session
	dirty   bool
}

// NewService constructs a new value for this package.
func NewService(repo SnapshotRepository, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.Bounds == (domain.StoryPointBounds{}) {
		cfg.Bounds = domain.DefaultStoryPointBounds()
	}
	if cfg.ImportPrefix == "" {
		cfg.ImportPrefix = DefaultImportPrefix
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	return &Service{
		repo:         repo,
		idGen:        idGen,
		clock:        clock,
		bounds:       cfg.Bounds,
		importPrefix: cfg.ImportPrefix,
		source:       cfg.Source,
		log:          cfg.Logger,
		recorder:     cfg.Recorder,
	}
}

// Bounds returns the story point range the service validates against.
func (s *Service) Bounds() domain.StoryPointBounds {
	return s.bounds
}

// StartSprint replaces the active session with a new empty sprint and persists it.
func (s *Service) StartSprint(ctx context.Context, setup SprintSetup) (Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := NewSession(setup, s.bounds)
	if err != nil {
		s.recorder.ObserveMutation("start_sprint", err)
		return Board{}, err
	}
	s.session = session
	s.recorder.ObserveMutation("start_sprint", nil)
	s.log.Info("sprint started", "sprint_id", session.SprintID, "roster", len(session.roster))
	s.persistLocked(ctx)
	return s.boardLocked(), nil
}

// LoadLatest activates the most recently saved sprint.
func (s *Service) LoadLatest(ctx context.Context) error {
	if s.repo == nil {
		return ErrNoSprint
	}
	snap, err := s.repo.LatestSnapshot(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNoSprint
		}
		return err
	}
	return s.activate(snap)
}

// LoadSprint activates a stored sprint by id.
func (s *Service) LoadSprint(ctx context.Context, sprintID string) error {
	if s.repo == nil {
		return ErrNoSprint
	}
	snap, err := s.repo.LoadSnapshot(ctx, strings.TrimSpace(sprintID))
	if err != nil {
		return err
	}
	return s.activate(snap)
}

func (s *Service) activate(snap Snapshot) error {
	session, err := SessionFromSnapshot(snap, s.bounds)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
	s.dirty = false
	s.log.Info("sprint loaded", "sprint_id", session.SprintID, "tasks", session.store.Len())
	return nil
}

// ListSprints lists stored sprints.
func (s *Service) ListSprints(ctx context.Context) ([]SprintSummary, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.ListSprints(ctx)
}

// DeleteSprint removes a stored sprint. Deleting the active sprint discards the session.
func (s *Service) DeleteSprint(ctx context.Context, sprintID string) error {
	sprintID = strings.TrimSpace(sprintID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.repo != nil {
		if err := s.repo.DeleteSprint(ctx, sprintID); err != nil {
			return err
		}
	}
	if s.session != nil && s.session.SprintID == sprintID {
		s.session = nil
		s.dirty = false
	}
	s.log.Info("sprint deleted", "sprint_id", sprintID)
	return nil
}

// AddTaskInput holds input values for add task operations.
type AddTaskInput struct {
	Title       string
	StoryPoints int
	Priority    domain.Priority
	Description string
}

// AddTask validates and appends a new backlog task.
func (s *Service) AddTask(ctx context.Context, in AddTaskInput) (domain.Task, error) {
	return mutate(ctx, s, "add_task", func(session *Session, now time.Time) (domain.Task, error) {
		return session.store.Add(domain.TaskInput{
			ID:          s.idGen(),
			Title:       in.Title,
			Description: in.Description,
			StoryPoints: in.StoryPoints,
			Priority:    in.Priority,
		}, now)
	})
}

// UpdateTask applies a partial update to a task.
func (s *Service) UpdateTask(ctx context.Context, taskID string, patch domain.TaskPatch) (domain.Task, error) {
	return mutate(ctx, s, "update_task", func(session *Session, now time.Time) (domain.Task, error) {
		return session.store.Update(taskID, patch, now)
	})
}

// RemoveTask deletes a task from the sprint.
func (s *Service) RemoveTask(ctx context.Context, taskID string) error {
	_, err := mutate(ctx, s, "remove_task", func(session *Session, _ time.Time) (domain.Task, error) {
		return session.store.Remove(taskID)
	})
	return err
}

// Assign moves a task to holderID, or to the backlog when holderID is empty.
// No capacity check is applied.
func (s *Service) Assign(ctx context.Context, taskID, holderID string) (domain.Task, error) {
	return mutate(ctx, s, "assign", func(session *Session, now time.Time) (domain.Task, error) {
		return session.ManualAssign(taskID, holderID, now)
	})
}

// AutoAssign distributes backlog tasks by priority and remaining capacity.
func (s *Service) AutoAssign(ctx context.Context) (int, error) {
	count, err := mutate(ctx, s, "auto_assign", func(session *Session, now time.Time) (int, error) {
		return session.AutoAssign(now)
	})
	if err == nil {
		s.recorder.ObserveAutoAssign(count)
	}
	return count, err
}

// SetCapacity replaces one holder's budget.
func (s *Service) SetCapacity(ctx context.Context, holderID string, entry domain.CapacityEntry) error {
	_, err := mutate(ctx, s, "set_capacity", func(session *Session, _ time.Time) (struct{}, error) {
		return struct{}{}, session.SetCapacity(holderID, entry)
	})
	return err
}

// ListTasks returns the backlog (holderID == "") or one holder's tasks.
func (s *Service) ListTasks(_ context.Context, holderID string) ([]domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, ErrNoSprint
	}
	holderID = strings.TrimSpace(holderID)
	if holderID != "" && !s.session.roster.Contains(holderID) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownHolder, holderID)
	}
	return s.session.store.ListByAssignment(holderID), nil
}

// GetTask returns one task.
func (s *Service) GetTask(_ context.Context, taskID string) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return domain.Task{}, ErrNoSprint
	}
	return s.session.store.Get(taskID)
}

// Board returns the current sprint board.
func (s *Service) Board(_ context.Context) (Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return Board{}, ErrNoSprint
	}
	return s.boardLocked(), nil
}

// Snapshot captures the active sprint.
func (s *Service) Snapshot(_ context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return Snapshot{}, ErrNoSprint
	}
	return s.session.Snapshot(s.clock()), nil
}

// Restore replaces the active session with snap and persists it. On error the
// active session is untouched.
func (s *Service) Restore(ctx context.Context, snap Snapshot) (Board, error) {
	session, err := SessionFromSnapshot(snap, s.bounds)
	if err != nil {
		s.recorder.ObserveMutation("restore", err)
		return Board{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
	s.recorder.ObserveMutation("restore", nil)
	s.log.Info("sprint restored", "sprint_id", session.SprintID, "tasks", session.store.Len())
	s.persistLocked(ctx)
	return s.boardLocked(), nil
}

// Save persists the active sprint now and reports the failure, if any.
func (s *Service) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return ErrNoSprint
	}
	return s.saveLocked(ctx)
}

// Dirty reports whether the last save attempt failed or changes are pending.
func (s *Service) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// mutate runs fn against the active session under the service lock, then
// persists best-effort and records the outcome.
func mutate[T any](ctx context.Context, s *Service, operation string, fn func(*Session, time.Time) (T, error)) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	if s.session == nil {
		s.recorder.ObserveMutation(operation, ErrNoSprint)
		return zero, ErrNoSprint
	}
	out, err := fn(s.session, s.clock())
	s.recorder.ObserveMutation(operation, err)
	if err != nil {
		s.log.Debug("mutation rejected", "operation", operation, "err", err)
		return zero, err
	}
	s.log.Debug("mutation applied", "operation", operation, "sprint_id", s.session.SprintID)
	s.observeBoardLocked()
	s.persistLocked(ctx)
	return out, nil
}

func (s *Service) boardLocked() Board {
	board := s.session.Board()
	s.recordBoard(len(board.Backlog), board.Team)
	return board
}

// observeBoardLocked reports team gauges after a mutation without building a Board.
func (s *Service) observeBoardLocked() {
	backlog := len(s.session.Store().ListByAssignment(""))
	s.recordBoard(backlog, s.session.CapacityModel().Team())
}

func (s *Service) recordBoard(backlog int, team domain.TeamCapacity) {
	s.recorder.ObserveBoard(backlog, TeamView{
		TotalSuggested:    team.TotalSuggested,
		TotalAssigned:     team.TotalAssigned,
		RealUtilization:   team.RealUtilization,
		TargetUtilization: team.TargetUtilization,
	})
}

// persistLocked marks the session dirty and attempts a save, swallowing errors.
func (s *Service) persistLocked(ctx context.Context) {
	s.dirty = true
	if err := s.saveLocked(ctx); err != nil {
		s.log.Warn("sprint save failed; will retry", "sprint_id", s.session.SprintID, "err", err)
	}
}

func (s *Service) saveLocked(ctx context.Context) error {
	if s.repo == nil {
		s.dirty = false
		return nil
	}
	now := s.clock()
	err := s.repo.SaveSnapshot(ctx, s.session.Snapshot(now))
	s.recorder.ObservePersist(err)
	if err != nil {
		s.dirty = true
		return err
	}
	s.session.SavedAt = now.UTC()
	s.dirty = false
	return nil
}
