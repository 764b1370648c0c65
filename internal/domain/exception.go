package domain

import (
	"fmt"
	"math"
)

// ExceptionSettings tunes how capacity exceptions reduce a sprinter's base capacity.
type ExceptionSettings struct {
	TargetStoryPointsPerPerson  int
	SprintWorkingDays           int
	MinStoryPointThreshold      float64
	CustomerDelegateMinSP       float64
	CustomerDelegateDays        int
	OnCallReductionSP           float64
	MinSPUnlessFullyUnavailable float64
	FullUnavailabilityThreshold float64
}

// DefaultExceptionSettings returns the stock exception tuning.
func DefaultExceptionSettings() ExceptionSettings {
	return ExceptionSettings{
		TargetStoryPointsPerPerson:  21,
		SprintWorkingDays:           5,
		MinStoryPointThreshold:      3,
		CustomerDelegateMinSP:       2,
		CustomerDelegateDays:        5,
		OnCallReductionSP:           3,
		MinSPUnlessFullyUnavailable: 2,
		FullUnavailabilityThreshold: 1.0,
	}
}

// Validate checks settings invariants.
func (s ExceptionSettings) Validate() error {
	switch {
	case s.SprintWorkingDays <= 0:
		return fmt.Errorf("%w: sprint working days must be positive", ErrInvalidException)
	case s.TargetStoryPointsPerPerson < 0:
		return fmt.Errorf("%w: target story points must be >= 0", ErrInvalidException)
	case s.CustomerDelegateDays < 0:
		return fmt.Errorf("%w: customer delegate days must be >= 0", ErrInvalidException)
	case s.MinStoryPointThreshold < 0, s.CustomerDelegateMinSP < 0, s.OnCallReductionSP < 0, s.MinSPUnlessFullyUnavailable < 0:
		return fmt.Errorf("%w: story point settings must be >= 0", ErrInvalidException)
	case s.FullUnavailabilityThreshold <= 0:
		return fmt.Errorf("%w: full unavailability threshold must be positive", ErrInvalidException)
	}
	return nil
}

// CapacityException records why a sprinter is partly unavailable this sprint.
type CapacityException struct {
	CustomerDelegate     bool
	// CustomerDelegateDays overrides the configured delegate duration when positive.
	CustomerDelegateDays int
	VacationDays         int
	OnCall               bool
}

// Validate rejects negative day counts.
func (e CapacityException) Validate() error {
	if e.VacationDays < 0 || e.CustomerDelegateDays < 0 {
		return fmt.Errorf("%w: day counts must be >= 0", ErrInvalidException)
	}
	return nil
}

// AdjustedCapacity is the outcome of applying exceptions to a base capacity.
type AdjustedCapacity struct {
	Original    float64
	Adjusted    float64
	Adjustments []string
}

// SuggestedStoryPoints rounds the adjusted capacity to whole story points.
func (a AdjustedCapacity) SuggestedStoryPoints() int {
	return int(math.Round(a.Adjusted))
}

// AdjustCapacity applies working-day scaling and exceptions to base in a fixed order:
// working days, customer delegate, vacation, on-call, zero prevention, minimum threshold.
// workingDays <= 0 means the configured sprint length.
func AdjustCapacity(base float64, workingDays int, exc *CapacityException, settings ExceptionSettings) AdjustedCapacity {
	defaultDays := settings.SprintWorkingDays
	if defaultDays <= 0 {
		defaultDays = DefaultExceptionSettings().SprintWorkingDays
	}
	if workingDays <= 0 {
		workingDays = defaultDays
	}
	out := AdjustedCapacity{Original: base, Adjusted: base}

	if workingDays != defaultDays {
		out.Adjusted *= float64(workingDays) / float64(defaultDays)
		out.Adjustments = append(out.Adjustments, fmt.Sprintf("working days: %d", workingDays))
	}
	if exc == nil {
		out.Adjusted = round1(out.Adjusted)
		return out
	}

	delegateDays := 0
	if exc.CustomerDelegate {
		delegateDays = settings.CustomerDelegateDays
		if exc.CustomerDelegateDays > 0 {
			delegateDays = exc.CustomerDelegateDays
		}
		if delegateDays >= workingDays {
			out.Adjusted = settings.CustomerDelegateMinSP
			out.Adjustments = append(out.Adjustments, fmt.Sprintf("customer delegate (full sprint): %g SP", settings.CustomerDelegateMinSP))
		} else {
			remaining := 1 - float64(delegateDays)/float64(workingDays)
			out.Adjusted = math.Max(settings.CustomerDelegateMinSP, out.Adjusted*remaining)
			out.Adjustments = append(out.Adjustments, fmt.Sprintf("customer delegate (%d/%d days): %.1f SP", delegateDays, workingDays, out.Adjusted))
		}
	}

	if exc.VacationDays > 0 {
		factor := math.Max(0, float64(workingDays-exc.VacationDays)/float64(workingDays))
		before := out.Adjusted
		out.Adjusted *= factor
		out.Adjustments = append(out.Adjustments, fmt.Sprintf("vacation (%d/%d days): -%.1f SP", exc.VacationDays, workingDays, before-out.Adjusted))
	}

	if exc.OnCall {
		out.Adjusted = math.Max(0, out.Adjusted-settings.OnCallReductionSP)
		out.Adjustments = append(out.Adjustments, fmt.Sprintf("on-call: -%g SP", settings.OnCallReductionSP))
	}

	unavailableDays := exc.VacationDays
	if exc.CustomerDelegate {
		unavailableDays += min(delegateDays, workingDays)
	}
	ratio := float64(unavailableDays) / float64(workingDays)
	if ratio < settings.FullUnavailabilityThreshold {
		if out.Adjusted < settings.MinSPUnlessFullyUnavailable {
			out.Adjusted = settings.MinSPUnlessFullyUnavailable
			out.Adjustments = append(out.Adjustments, fmt.Sprintf("zero prevention: %g SP", settings.MinSPUnlessFullyUnavailable))
		}
	} else if out.Adjusted <= 0 {
		out.Adjusted = 1
		out.Adjustments = append(out.Adjustments, "emergency minimum: 1 SP")
	}

	if out.Adjusted > 0 && out.Adjusted < settings.MinStoryPointThreshold && out.Adjusted >= settings.MinSPUnlessFullyUnavailable {
		out.Adjusted = settings.MinStoryPointThreshold
		out.Adjustments = append(out.Adjustments, fmt.Sprintf("minimum threshold: %g SP", settings.MinStoryPointThreshold))
	}

	out.Adjusted = round1(out.Adjusted)
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
