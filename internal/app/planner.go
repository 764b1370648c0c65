package app

import (
	"fmt"
	"strings"

	"github.com/evanschultz/sprinter/internal/domain"
)

// PlanInput describes one sprinter for capacity planning.
type PlanInput struct {
	Sprinter domain.Sprinter
	// BaseCapacity overrides the history-derived base when positive.
	BaseCapacity float64
	History      []domain.SprintRecord
	Exception    *domain.CapacityException
}

// PlanOptions tunes capacity planning.
type PlanOptions struct {
	Settings         domain.ExceptionSettings
	WorkingDays      int
	SuggestionFactor float64
}

// CapacityPlan is the planned budget for one sprinter with its reasoning.
type CapacityPlan struct {
	Sprinter    domain.Sprinter
	Base        float64
	BaseSource  string
	Adjusted    domain.AdjustedCapacity
	Entry       domain.CapacityEntry
	Explanation string
}

// PlanCapacity derives capacity entries from base capacity, sprint history and
// exceptions. Base capacity comes from the explicit value, else the history
// suggestion, else the per-person target.
func PlanCapacity(inputs []PlanInput, opts PlanOptions) ([]CapacityPlan, error) {
	if err := opts.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	plans := make([]CapacityPlan, 0, len(inputs))
	for i, in := range inputs {
		if in.Exception != nil {
			if err := in.Exception.Validate(); err != nil {
				return nil, fmt.Errorf("%w: inputs[%d]: %w", ErrValidation, i, err)
			}
		}
		plan := CapacityPlan{Sprinter: in.Sprinter}
		switch {
		case in.BaseCapacity > 0:
			plan.Base, plan.BaseSource = in.BaseCapacity, "configured"
		default:
			if suggestion, ok := domain.SuggestCapacity(in.History, opts.SuggestionFactor); ok {
				plan.Base = float64(suggestion.SuggestedStoryPoints)
				plan.BaseSource = fmt.Sprintf("history %v: avg %.1f SP, completion %.1f%%", suggestion.Sprints, suggestion.HistoricalAverage, suggestion.CompletionRate)
			} else {
				plan.Base, plan.BaseSource = float64(opts.Settings.TargetStoryPointsPerPerson), "target"
			}
		}
		plan.Adjusted = domain.AdjustCapacity(plan.Base, opts.WorkingDays, in.Exception, opts.Settings)
		plan.Entry = domain.CapacityEntry{
			SuggestedStoryPoints:       plan.Adjusted.SuggestedStoryPoints(),
			TargetStoryPointsPerPerson: opts.Settings.TargetStoryPointsPerPerson,
		}
		plan.Explanation = "no exceptions"
		if len(plan.Adjusted.Adjustments) > 0 {
			plan.Explanation = strings.Join(plan.Adjusted.Adjustments, "; ")
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// SetupFromPlans builds a sprint setup from planned capacity.
func SetupFromPlans(sprintID string, plans []CapacityPlan) SprintSetup {
	setup := SprintSetup{
		SprintID: sprintID,
		Roster:   make([]domain.Sprinter, 0, len(plans)),
		Capacity: make(map[string]domain.CapacityEntry, len(plans)),
	}
	for _, plan := range plans {
		setup.Roster = append(setup.Roster, plan.Sprinter)
		setup.Capacity[plan.Sprinter.ID] = plan.Entry
	}
	return setup
}
