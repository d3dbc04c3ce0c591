package emotion

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"bodyfeel/internal/domain"
)

// Matcher turns markings into ranked hypotheses without any I/O. A Matcher
// never fails and never returns an empty slice.
type Matcher interface {
	Name() string
	Match(markings domain.SensationMap) []domain.Hypothesis
}

const (
	MatcherPattern = "pattern"
	MatcherCounts  = "counts"
)

func NewMatcher(name string, kb *KnowledgeBase) (Matcher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", MatcherPattern:
		return NewPatternMatcher(kb), nil
	case MatcherCounts:
		return NewCountMatcher(), nil
	default:
		return nil, fmt.Errorf("unsupported local matcher: %s", name)
	}
}

const (
	neutralConfidence = 0.8
	// A pattern reaches full confidence once ~30% of its cues are present.
	cueSensitivity = 0.3
	keepThreshold  = 0.1
	weakThreshold  = 0.2
	maxRanked      = 3
)

type PatternMatcher struct {
	kb *KnowledgeBase
}

func NewPatternMatcher(kb *KnowledgeBase) *PatternMatcher {
	if kb == nil {
		kb = DefaultKnowledgeBase()
	}
	return &PatternMatcher{kb: kb}
}

func (m *PatternMatcher) Name() string {
	return MatcherPattern
}

func (m *PatternMatcher) Match(markings domain.SensationMap) []domain.Hypothesis {
	if len(markings.Marked()) == 0 {
		return []domain.Hypothesis{neutralHypothesis("No significant sensations detected, suggesting a calm or neutral emotional state.", "No marked sensations")}
	}

	results := make([]domain.Hypothesis, 0, m.kb.Len())
	for _, p := range m.kb.patterns {
		if h, ok := scorePattern(p, markings); ok {
			results = append(results, h)
		}
	}

	if allWeak(results) {
		results = append(results, contextualHypotheses(markings)...)
	}
	if len(results) == 0 {
		results = append(results, mixedHypothesis(len(markings.Marked()), 0.3))
	}
	return rank(results)
}

func scorePattern(p Pattern, markings domain.SensationMap) (domain.Hypothesis, bool) {
	matches, total := 0, 0
	var found []string
	for _, cue := range p.Cues {
		for _, region := range cue.Regions {
			total++
			if markings[region] == cue.Sensation {
				matches++
				found = append(found, fmt.Sprintf("%s %s", cue.Sensation, region))
			}
		}
	}
	if matches == 0 {
		return domain.Hypothesis{}, false
	}

	conf := math.Min(float64(matches)/math.Max(float64(total)*cueSensitivity, 1), 1)
	if conf <= keepThreshold {
		return domain.Hypothesis{}, false
	}
	if len(found) == 0 {
		found = append([]string(nil), p.Indicators...)
	}
	return domain.Hypothesis{
		Emotion:     p.Emotion,
		Confidence:  round(conf, 6),
		Description: p.Description,
		Patterns:    found,
		Source:      domain.SourceLocal,
	}, true
}

func allWeak(results []domain.Hypothesis) bool {
	for _, h := range results {
		if h.Confidence >= weakThreshold {
			return false
		}
	}
	return true
}

// contextualHypotheses applies coarse region-class heuristics. Every rule
// that fires contributes one hypothesis.
func contextualHypotheses(markings domain.SensationMap) []domain.Hypothesis {
	var limbCold, headHot, numb, cold, warm []string
	hot, cool := 0, 0
	for _, region := range markings.Marked() {
		s := markings[region]
		switch s {
		case domain.SensationCold:
			cold = append(cold, region)
			if isLimb(region) {
				limbCold = append(limbCold, region)
			}
		case domain.SensationHot:
			hot++
			if isHead(region) {
				headHot = append(headHot, region)
			}
		case domain.SensationWarm:
			warm = append(warm, region)
		case domain.SensationCool:
			cool++
		case domain.SensationNumb:
			numb = append(numb, region)
		}
	}

	var out []domain.Hypothesis
	if len(limbCold) > 0 {
		out = append(out, contextual("Fear/Anxiety", 0.6,
			"Cold sensations in the limbs often accompany fear or anxiety.", domain.SensationCold, limbCold))
	}
	if len(headHot) > 0 {
		out = append(out, contextual("Anger/Stress", 0.5,
			"Heat in the head or face suggests anger or stress.", domain.SensationHot, headHot))
	}
	if len(numb) > 0 {
		out = append(out, contextual("Emotional Numbness", 0.5,
			"Numb areas suggest emotional numbness or disconnection.", domain.SensationNumb, numb))
	}
	if len(cold) > hot+len(warm) {
		out = append(out, contextual("Sadness/Withdrawal", 0.4,
			"Cold sensations outweigh warm ones, suggesting sadness or withdrawal.", domain.SensationCold, cold))
	}
	if len(warm) > len(cold)+cool {
		out = append(out, contextual("Contentment/Warmth", 0.4,
			"Warm sensations outweigh cold ones, suggesting contentment.", domain.SensationWarm, warm))
	}
	return out
}

func contextual(emotion string, conf float64, description string, s domain.Sensation, regions []string) domain.Hypothesis {
	patterns := make([]string, 0, len(regions))
	for _, r := range regions {
		patterns = append(patterns, fmt.Sprintf("%s %s", s, r))
	}
	return domain.Hypothesis{
		Emotion:     emotion,
		Confidence:  conf,
		Description: description,
		Patterns:    patterns,
		Source:      domain.SourceLocal,
	}
}

func isLimb(region string) bool {
	return containsAny(region, []string{"leg", "foot", "arm", "hand"})
}

func isHead(region string) bool {
	return containsAny(region, []string{"head", "face"})
}

func containsAny(text string, hints []string) bool {
	t := strings.ToLower(text)
	for _, h := range hints {
		if strings.Contains(t, h) {
			return true
		}
	}
	return false
}

func neutralHypothesis(description, pattern string) domain.Hypothesis {
	return domain.Hypothesis{
		Emotion:     "Neutral/Calm",
		Confidence:  neutralConfidence,
		Description: description,
		Patterns:    []string{pattern},
		Source:      domain.SourceLocal,
	}
}

func mixedHypothesis(total int, conf float64) domain.Hypothesis {
	return domain.Hypothesis{
		Emotion:     "Mixed/Complex",
		Confidence:  conf,
		Description: fmt.Sprintf("Complex pattern of %d sensations suggests mixed emotions", total),
		Patterns:    []string{fmt.Sprintf("%d total sensations", total)},
		Source:      domain.SourceLocal,
	}
}

// rank sorts by confidence, keeping discovery order on ties, and keeps the top results.
func rank(results []domain.Hypothesis) []domain.Hypothesis {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Confidence > results[j].Confidence
	})
	if len(results) > maxRanked {
		results = results[:maxRanked]
	}
	return results
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func round(v float64, precision int) float64 {
	p := math.Pow10(precision)
	return math.Round(v*p) / p
}
