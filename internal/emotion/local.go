package emotion

import (
	"context"

	"bodyfeel/internal/domain"
)

// LocalProvider runs a Matcher in-process. It is the chain's last resort.
type LocalProvider struct {
	matcher Matcher
}

func NewLocalProvider(m Matcher) *LocalProvider {
	if m == nil {
		m = NewPatternMatcher(nil)
	}
	return &LocalProvider{matcher: m}
}

func (p *LocalProvider) ID() string {
	return domain.SourceLocal
}

func (p *LocalProvider) MatcherName() string {
	return p.matcher.Name()
}

func (p *LocalProvider) Analyze(_ context.Context, markings domain.SensationMap, _ domain.View) ([]domain.Hypothesis, error) {
	return p.matcher.Match(markings), nil
}
