package domain

import "math"

// HolderCapacity is the derived capacity row for one roster member.
type HolderCapacity struct {
	Sprinter          Sprinter
	Suggested         int
	Target            int
	Assigned          int
	RealUtilization   int
	TargetUtilization int
	Remaining         int
	OverCapacity      bool
}

// TeamCapacity aggregates capacity across the roster.
type TeamCapacity struct {
	TotalSuggested    int
	TotalTarget       int
	TotalAssigned     int
	RealUtilization   int
	TargetUtilization int
	Remaining         int
}

// CapacityModel derives utilization figures from tasks, budgets and the roster.
// It holds no state of its own beyond the inputs it was built from.
type CapacityModel struct {
	roster   Roster
	capacity map[string]CapacityEntry
	assigned map[string]int
}

// NewCapacityModel builds a model over the given inputs. Tasks assigned to ids
// outside the roster still count toward that id's assigned total.
func NewCapacityModel(tasks []Task, capacity map[string]CapacityEntry, roster Roster) CapacityModel {
	assigned := make(map[string]int, len(roster))
	for _, task := range tasks {
		if !task.Assigned() {
			continue
		}
		assigned[task.AssignedTo] += task.StoryPoints
	}
	return CapacityModel{roster: roster, capacity: capacity, assigned: assigned}
}

// AssignedStoryPoints sums story points currently held by holderID.
func (m CapacityModel) AssignedStoryPoints(holderID string) int {
	return m.assigned[holderID]
}

// Entry returns the budget for holderID; missing entries are zero.
func (m CapacityModel) Entry(holderID string) CapacityEntry {
	return m.capacity[holderID]
}

// RealUtilization is assigned over suggested, as a rounded percentage.
func (m CapacityModel) RealUtilization(holderID string) int {
	return Utilization(m.AssignedStoryPoints(holderID), m.Entry(holderID).SuggestedStoryPoints)
}

// TargetUtilization is assigned over the per-person target, as a rounded percentage.
func (m CapacityModel) TargetUtilization(holderID string) int {
	return Utilization(m.AssignedStoryPoints(holderID), m.Entry(holderID).TargetStoryPointsPerPerson)
}

// RemainingCapacity is suggested minus assigned. It goes negative when over-assigned.
func (m CapacityModel) RemainingCapacity(holderID string) int {
	return m.Entry(holderID).SuggestedStoryPoints - m.AssignedStoryPoints(holderID)
}

// Holder returns the full capacity row for one member.
func (m CapacityModel) Holder(s Sprinter) HolderCapacity {
	entry := m.Entry(s.ID)
	assigned := m.AssignedStoryPoints(s.ID)
	return HolderCapacity{
		Sprinter:          s,
		Suggested:         entry.SuggestedStoryPoints,
		Target:            entry.TargetStoryPointsPerPerson,
		Assigned:          assigned,
		RealUtilization:   Utilization(assigned, entry.SuggestedStoryPoints),
		TargetUtilization: Utilization(assigned, entry.TargetStoryPointsPerPerson),
		Remaining:         entry.SuggestedStoryPoints - assigned,
		OverCapacity:      assigned > entry.SuggestedStoryPoints,
	}
}

// Holders returns one row per roster member in roster order.
func (m CapacityModel) Holders() []HolderCapacity {
	out := make([]HolderCapacity, 0, len(m.roster))
	for _, s := range m.roster {
		out = append(out, m.Holder(s))
	}
	return out
}

// Team aggregates over roster members only.
func (m CapacityModel) Team() TeamCapacity {
	var team TeamCapacity
	for _, s := range m.roster {
		entry := m.Entry(s.ID)
		team.TotalSuggested += entry.SuggestedStoryPoints
		team.TotalTarget += entry.TargetStoryPointsPerPerson
		team.TotalAssigned += m.AssignedStoryPoints(s.ID)
	}
	team.RealUtilization = Utilization(team.TotalAssigned, team.TotalSuggested)
	team.TargetUtilization = Utilization(team.TotalAssigned, team.TotalTarget)
	team.Remaining = team.TotalSuggested - team.TotalAssigned
	return team
}

// Utilization returns round(assigned/budget*100), or 0 when budget is not positive.
func Utilization(assigned, budget int) int {
	if budget <= 0 {
		return 0
	}
	return int(math.Round(float64(assigned) / float64(budget) * 100))
}
