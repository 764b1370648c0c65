package domain

import (
	"cmp"
	"math"
	"slices"
	"strings"
)

// HistoryWindow is the number of most recent sprints a capacity suggestion looks at.
const HistoryWindow = 3

// DefaultSuggestionFactor discounts historical throughput when suggesting capacity.
const DefaultSuggestionFactor = 0.9

// SprintRecord is one sprinter's delivery in one past sprint.
type SprintRecord struct {
	Sprint    int
	Assigned  int
	Completed int
}

// CapacitySuggestion is a history-derived capacity proposal.
type CapacitySuggestion struct {
	SuggestedStoryPoints int
	HistoricalAverage    float64
	CompletionRate       float64
	Sprints              []int
}

// SuggestCapacity averages completed story points over the most recent
// HistoryWindow sprints, scales by completion rate and factor, and rounds.
// ok is false when there is no usable history.
func SuggestCapacity(records []SprintRecord, factor float64) (CapacitySuggestion, bool) {
	if factor <= 0 {
		factor = DefaultSuggestionFactor
	}
	sprints := recentSprints(records, HistoryWindow)
	if len(sprints) == 0 {
		return CapacitySuggestion{}, false
	}

	var assigned, completed int
	for _, r := range records {
		if !slices.Contains(sprints, r.Sprint) {
			continue
		}
		assigned += max(r.Assigned, 0)
		completed += max(r.Completed, 0)
	}
	if assigned == 0 || completed == 0 {
		return CapacitySuggestion{}, false
	}

	avg := float64(completed) / float64(len(sprints))
	rate := float64(completed) / float64(assigned) * 100
	return CapacitySuggestion{
		SuggestedStoryPoints: int(math.Round(avg * rate / 100 * factor)),
		HistoricalAverage:    round1(avg),
		CompletionRate:       round1(rate),
		Sprints:              sprints,
	}, true
}

// recentSprints returns up to n distinct sprint numbers, newest first.
func recentSprints(records []SprintRecord, n int) []int {
	seen := make([]int, 0, len(records))
	for _, r := range records {
		if !slices.Contains(seen, r.Sprint) {
			seen = append(seen, r.Sprint)
		}
	}
	slices.SortFunc(seen, func(a, b int) int { return cmp.Compare(b, a) })
	if len(seen) > n {
		seen = seen[:n]
	}
	return seen
}

var sprinterIDReplacer = strings.NewReplacer(
	" ", "_",
	"ç", "c", "ğ", "g", "ı", "i", "ö", "o", "ş", "s", "ü", "u",
)

// NormalizeSprinterID derives a stable roster id from a display name.
func NormalizeSprinterID(name string) string {
	return sprinterIDReplacer.Replace(strings.ToLower(strings.TrimSpace(name)))
}
