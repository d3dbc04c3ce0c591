package emotion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"bodyfeel/internal/domain"
	"bodyfeel/internal/llm"
)

// ErrNoResult means a provider had nothing usable to offer.
var ErrNoResult = errors.New("no result")

const DefaultRemoteTimeout = 30 * time.Second

type remoteLabel struct {
	description string
	pattern     string
}

var remoteLabels = map[string]remoteLabel{
	domain.SourceGemini: {description: "Gemini AI analysis", pattern: "gemini_ai_analysis"},
	domain.SourceOpenAI: {description: "OpenAI analysis", pattern: "openai_ai_analysis"},
	domain.SourceClaude: {description: "Claude analysis", pattern: "claude_ai_analysis"},
}

// RemoteProvider asks a text-generation service for a hypothesis and decodes
// whatever comes back into one.
type RemoteProvider struct {
	id      string
	gen     llm.Generator
	timeout time.Duration
	logger  *slog.Logger
}

func NewRemoteProvider(id string, gen llm.Generator, timeout time.Duration, logger *slog.Logger) *RemoteProvider {
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &RemoteProvider{id: id, gen: gen, timeout: timeout, logger: logger}
}

func (p *RemoteProvider) ID() string {
	return p.id
}

func (p *RemoteProvider) Analyze(ctx context.Context, markings domain.SensationMap, view domain.View) ([]domain.Hypothesis, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	text, err := p.gen.Generate(callCtx, llm.Request{
		System:      SystemPrompt,
		Prompt:      BuildPrompt(markings, view, p.id),
		Temperature: 0.7,
		MaxTokens:   1024,
	})
	if err != nil {
		var statusErr *llm.StatusError
		switch {
		case errors.As(err, &statusErr) && statusErr.RateLimited():
			p.logger.Warn("remote provider rate limited", "provider", p.id, "status", statusErr.Code)
		case errors.As(err, &statusErr):
			p.logger.Warn("remote provider returned error status", "provider", p.id, "status", statusErr.Code)
		case errors.Is(err, context.DeadlineExceeded):
			p.logger.Warn("remote provider timed out", "provider", p.id, "timeout", p.timeout)
		default:
			p.logger.Warn("remote provider call failed", "provider", p.id, "error", err)
		}
		return nil, fmt.Errorf("%s: %w", p.id, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%s: empty reply: %w", p.id, ErrNoResult)
	}

	h, err := DecodeHypothesis(text)
	if err != nil {
		p.logger.Warn("remote reply is not structured, scanning keywords", "provider", p.id, "error", err)
		label := p.label()
		h = ScanKeywords(text, label.description, label.pattern)
	}
	h.Source = p.id
	return []domain.Hypothesis{h}, nil
}

func (p *RemoteProvider) label() remoteLabel {
	if l, ok := remoteLabels[p.id]; ok {
		return l
	}
	return remoteLabel{description: p.id + " analysis", pattern: p.id + "_analysis"}
}
