package emotion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"bodyfeel/internal/domain"
)

// Provider is one analysis source in the chain.
type Provider interface {
	ID() string
	Analyze(ctx context.Context, markings domain.SensationMap, view domain.View) ([]domain.Hypothesis, error)
}

// Chain tries providers strictly in order and returns the first well-formed
// answer. The provider list is fixed at construction.
type Chain struct {
	providers []Provider
	local     *LocalProvider
	logger    *slog.Logger
	metrics   *Metrics
}

type Status struct {
	Service           string                                    `json:"service"`
	Status            string                                    `json:"status"`
	Providers         []string                                  `json:"providers"`
	ProviderCount     int                                       `json:"llm_providers"`
	PrimaryProvider   string                                    `json:"primary_provider"`
	LocalMatcher      string                                    `json:"local_matcher"`
	FallbackAvailable bool                                      `json:"fallback_available"`
	KnowledgePatterns int                                       `json:"knowledge_patterns,omitempty"`
	Sensations        map[domain.Sensation]domain.SensationDetail `json:"sensations"`
}

// NewChain orders remotes as given and appends local last. A nil local
// falls back to the pattern matcher over the default knowledge base.
func NewChain(remotes []Provider, local *LocalProvider, logger *slog.Logger, metrics *Metrics) *Chain {
	if local == nil {
		local = NewLocalProvider(nil)
	}
	providers := make([]Provider, 0, len(remotes)+1)
	for _, p := range remotes {
		if p != nil {
			providers = append(providers, p)
		}
	}
	providers = append(providers, local)

	c := newChain(providers, logger, metrics)
	c.local = local
	return c
}

func newChain(providers []Provider, logger *slog.Logger, metrics *Metrics) *Chain {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Chain{providers: providers, logger: logger, metrics: metrics}
}

// Analyze never fails: when every provider fails it returns a single
// zero-confidence error hypothesis.
func (c *Chain) Analyze(ctx context.Context, markings domain.SensationMap, view domain.View) domain.Analysis {
	for i, p := range c.providers {
		id := p.ID()
		start := time.Now()
		results, err := c.attempt(ctx, p, markings, view)
		cost := time.Since(start)

		switch {
		case err != nil:
			c.metrics.observeAttempt(id, outcomeOf(err), cost)
			c.logger.Warn("analysis provider failed", "provider", id, "position", i+1, "of", len(c.providers), "error", err)
			continue
		case !wellFormed(results):
			c.metrics.observeAttempt(id, OutcomeMalformed, cost)
			c.logger.Warn("analysis provider returned malformed result", "provider", id, "position", i+1, "of", len(c.providers))
			continue
		}

		c.metrics.observeAttempt(id, OutcomeSuccess, cost)
		c.logger.Info("analysis completed", "provider", id, "emotion", results[0].Emotion, "confidence", results[0].Confidence, "latency", cost)
		return domain.Analysis{Source: id, Results: results}
	}

	c.metrics.observeExhausted()
	c.logger.Error("all analysis providers failed", "providers", len(c.providers))
	return ErrorAnalysis()
}

type panicError struct {
	value any
}

func (e panicError) Error() string {
	return fmt.Sprintf("provider panic: %v", e.value)
}

func (c *Chain) attempt(ctx context.Context, p Provider, markings domain.SensationMap, view domain.View) (results []domain.Hypothesis, err error) {
	defer func() {
		if r := recover(); r != nil {
			results = nil
			err = panicError{value: r}
		}
	}()
	return p.Analyze(ctx, markings, view)
}

func outcomeOf(err error) string {
	if _, ok := err.(panicError); ok {
		return OutcomePanic
	}
	return OutcomeError
}

func wellFormed(results []domain.Hypothesis) bool {
	if len(results) == 0 {
		return false
	}
	for _, h := range results {
		if h.Emotion == "" || !domain.KnownSource(h.Source) {
			return false
		}
		if math.IsNaN(h.Confidence) || h.Confidence < 0 || h.Confidence > 1 {
			return false
		}
	}
	return true
}

func ErrorAnalysis() domain.Analysis {
	return domain.Analysis{
		Source: domain.SourceError,
		Results: []domain.Hypothesis{{
			Emotion:     "Analysis_Error",
			Confidence:  0.0,
			Description: "All emotion analysis providers failed",
			Patterns:    []string{"system_error"},
			Source:      domain.SourceError,
		}},
	}
}

// Providers lists provider ids in the order they are tried.
func (c *Chain) Providers() []string {
	ids := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		ids = append(ids, p.ID())
	}
	return ids
}

func (c *Chain) Status() Status {
	ids := c.Providers()
	st := Status{
		Service:           "emotion_analysis",
		Status:            "active",
		Providers:         ids,
		ProviderCount:     len(ids),
		FallbackAvailable: c.local != nil,
		Sensations:        domain.SensationInfo,
	}
	if len(ids) > 0 {
		st.PrimaryProvider = ids[0]
	}
	if c.local != nil {
		st.LocalMatcher = c.local.MatcherName()
		if pm, ok := c.local.matcher.(*PatternMatcher); ok {
			st.KnowledgePatterns = pm.kb.Len()
		}
	}
	return st
}
