package emotion

import (
	"fmt"

	"bodyfeel/internal/domain"
)

// CountMatcher is the simplified local strategy: it only counts how many
// regions carry each sensation and ignores where they are.
type CountMatcher struct{}

func NewCountMatcher() *CountMatcher {
	return &CountMatcher{}
}

func (m *CountMatcher) Name() string {
	return MatcherCounts
}

func (m *CountMatcher) Match(markings domain.SensationMap) []domain.Hypothesis {
	hot := markings.Count(domain.SensationHot)
	warm := markings.Count(domain.SensationWarm)
	cold := markings.Count(domain.SensationCold)
	numb := markings.Count(domain.SensationNumb)

	var results []domain.Hypothesis
	add := func(emotion string, conf float64, description, pattern string) {
		results = append(results, domain.Hypothesis{
			Emotion:     emotion,
			Confidence:  conf,
			Description: description,
			Patterns:    []string{pattern},
			Source:      domain.SourceLocal,
		})
	}

	if hot >= 2 {
		add("Anger/Excitement", 0.8,
			"Multiple hot sensations suggest high energy emotions like anger or excitement",
			fmt.Sprintf("%d hot sensations", hot))
	}
	if warm >= 2 && hot == 0 {
		add("Happiness/Contentment", 0.7,
			"Warm sensations without hot suggest positive emotional state",
			fmt.Sprintf("%d warm sensations", warm))
	}
	if cold >= 2 {
		add("Sadness/Withdrawal", 0.7,
			"Cold sensations suggest emotional withdrawal or sadness",
			fmt.Sprintf("%d cold sensations", cold))
	}
	if hot >= 1 && cold >= 1 {
		add("Anxiety/Stress", 0.6,
			"Mixed hot and cold sensations suggest anxiety or stress",
			fmt.Sprintf("%d hot, %d cold", hot, cold))
	}
	if numb >= 1 {
		add("Disconnection/Shock", 0.6,
			"Numb sensations suggest emotional disconnection or shock",
			fmt.Sprintf("%d numb sensations", numb))
	}

	if len(results) == 0 {
		total := len(markings.Marked())
		if total == 0 {
			return []domain.Hypothesis{neutralHypothesis("No significant sensations detected, suggesting a calm state", "no sensations")}
		}
		results = append(results, mixedHypothesis(total, 0.5))
	}
	return rank(results)
}
