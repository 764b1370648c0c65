package domain

import "strings"

// Sprinter is one roster member who can hold tasks.
type Sprinter struct {
	ID   string
	Name string
}

// NewSprinter validates and returns a roster member.
func NewSprinter(id, name string) (Sprinter, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" {
		return Sprinter{}, ErrInvalidID
	}
	if name == "" {
		name = id
	}
	return Sprinter{ID: id, Name: name}, nil
}

// CapacityEntry is the per-holder story point budget for a sprint.
type CapacityEntry struct {
	SuggestedStoryPoints       int
	TargetStoryPointsPerPerson int
}

// Validate rejects negative budgets.
func (c CapacityEntry) Validate() error {
	if c.SuggestedStoryPoints < 0 || c.TargetStoryPointsPerPerson < 0 {
		return ErrInvalidCapacity
	}
	return nil
}

// Roster is the ordered list of sprinters for one sprint.
type Roster []Sprinter

// Contains reports whether id names a roster member.
func (r Roster) Contains(id string) bool {
	_, ok := r.Find(id)
	return ok
}

// Find returns the member with id.
func (r Roster) Find(id string) (Sprinter, bool) {
	for _, s := range r {
		if s.ID == id {
			return s, true
		}
	}
	return Sprinter{}, false
}

// NameOf returns the display name for id, falling back to the id itself.
func (r Roster) NameOf(id string) string {
	if s, ok := r.Find(id); ok {
		return s.Name
	}
	return id
}
