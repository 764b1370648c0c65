package app

import (
	"fmt"
	"time"

	"github.com/evanschultz/sprinter/internal/domain"
)

// ManualAssign moves a task to holderID (or the backlog) without any capacity check.
func (s *Session) ManualAssign(taskID, holderID string, now time.Time) (domain.Task, error) {
	return s.store.Assign(taskID, holderID, now)
}

// AutoAssign distributes backlog tasks in priority order. Each task goes to the
// roster member with the lowest current load whose load plus the task's story
// points stays within their suggested capacity; ties keep roster order. Tasks
// that fit nobody stay in the backlog. The pass is greedy and never revisits a
// placement. It returns the number of tasks assigned, stopping at the first
// store rejection.
func (s *Session) AutoAssign(now time.Time) (int, error) {
	model := s.CapacityModel()
	load := make(map[string]int, len(s.roster))
	for _, member := range s.roster {
		load[member.ID] = model.AssignedStoryPoints(member.ID)
	}

	assigned := 0
	for _, task := range s.store.ListByAssignment("") {
		best := ""
		bestLoad := 0
		for _, member := range s.roster {
			current := load[member.ID]
			if current+task.StoryPoints > s.capacity[member.ID].SuggestedStoryPoints {
				continue
			}
			if best == "" || current < bestLoad {
				best = member.ID
				bestLoad = current
			}
		}
		if best == "" {
			continue
		}
		if _, err := s.store.Assign(task.ID, best, now); err != nil {
			return assigned, fmt.Errorf("auto-assign %s to %s: %w", task.ID, best, err)
		}
		load[best] += task.StoryPoints
		assigned++
	}
	return assigned, nil
}
