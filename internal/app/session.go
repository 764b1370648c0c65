package app

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/evanschultz/sprinter/internal/domain"
)

// Session is the working state of one sprint: its roster, capacity budgets
// and task store. Sessions are not safe for concurrent use; Service
// serializes access.
type Session struct {
	SprintID string
	SavedAt  time.Time

	roster   domain.Roster
	capacity map[string]domain.CapacityEntry
	store    *TaskStore
}

// SprintSetup holds the inputs for starting a sprint.
type SprintSetup struct {
	SprintID string
	Roster   []domain.Sprinter
	Capacity map[string]domain.CapacityEntry
}

// NewSession validates setup and returns an empty sprint session.
func NewSession(setup SprintSetup, bounds domain.StoryPointBounds) (*Session, error) {
	sprintID := strings.TrimSpace(setup.SprintID)
	if sprintID == "" {
		return nil, fmt.Errorf("%w: sprint id is required", ErrValidation)
	}
	roster := make(domain.Roster, 0, len(setup.Roster))
	for i, member := range setup.Roster {
		s, err := domain.NewSprinter(member.ID, member.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: roster[%d]: %w", ErrValidation, i, err)
		}
		if roster.Contains(s.ID) {
			return nil, fmt.Errorf("%w: duplicate sprinter id %q", ErrValidation, s.ID)
		}
		roster = append(roster, s)
	}
	capacity := make(map[string]domain.CapacityEntry, len(setup.Capacity))
	for id, entry := range setup.Capacity {
		if !roster.Contains(id) {
			return nil, fmt.Errorf("%w: capacity for %q", ErrUnknownHolder, id)
		}
		if err := entry.Validate(); err != nil {
			return nil, fmt.Errorf("%w: capacity for %q: %w", ErrValidation, id, err)
		}
		capacity[id] = entry
	}
	return &Session{
		SprintID: sprintID,
		roster:   roster,
		capacity: capacity,
		store:    NewTaskStore(roster, bounds),
	}, nil
}

// Roster returns the ordered sprint roster.
func (s *Session) Roster() domain.Roster {
	return s.store.Roster()
}

// Capacity returns a copy of the per-holder budgets.
func (s *Session) Capacity() map[string]domain.CapacityEntry {
	return maps.Clone(s.capacity)
}

// Store exposes the session task store.
func (s *Session) Store() *TaskStore {
	return s.store
}

// CapacityModel derives the current capacity figures.
func (s *Session) CapacityModel() domain.CapacityModel {
	return domain.NewCapacityModel(s.store.All(), s.capacity, s.roster)
}

// SetCapacity replaces the budget for one roster member.
func (s *Session) SetCapacity(holderID string, entry domain.CapacityEntry) error {
	if !s.roster.Contains(holderID) {
		return fmt.Errorf("%w: %q", ErrUnknownHolder, holderID)
	}
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	s.capacity[holderID] = entry
	return nil
}

// Board assembles the backlog and one column per roster member.
func (s *Session) Board() Board {
	model := s.CapacityModel()
	board := Board{
		SprintID: s.SprintID,
		SavedAt:  s.SavedAt,
		Backlog:  s.store.ListByAssignment(""),
		Team:     model.Team(),
	}
	for _, holder := range model.Holders() {
		board.Columns = append(board.Columns, BoardColumn{
			Capacity: holder,
			Tasks:    s.store.ListByAssignment(holder.Sprinter.ID),
		})
	}
	return board
}

// Board is a read-only view of a sprint.
type Board struct {
	SprintID string
	SavedAt  time.Time
	Backlog  []domain.Task
	Columns  []BoardColumn
	Team     domain.TeamCapacity
}

// BoardColumn is one holder's column.
type BoardColumn struct {
	Capacity domain.HolderCapacity
	Tasks    []domain.Task
}

// Column returns the column for holderID.
func (b Board) Column(holderID string) (BoardColumn, bool) {
	for _, col := range b.Columns {
		if col.Capacity.Sprinter.ID == holderID {
			return col, true
		}
	}
	return BoardColumn{}, false
}

// TaskCount returns the number of tasks on the board.
func (b Board) TaskCount() int {
	n := len(b.Backlog)
	for _, col := range b.Columns {
		n += len(col.Tasks)
	}
	return n
}
