package emotion

import (
	"context"
	"io"
	"log/slog"
	"time"

	"bodyfeel/internal/domain"
	"bodyfeel/internal/llm"
)

type ChainConfig struct {
	Gemini        llm.Endpoint
	OpenAI        llm.Endpoint
	Claude        llm.Endpoint
	RemoteTimeout time.Duration
	LocalMatcher  string
}

// BuildChain registers the configured remote providers in priority order
// (Gemini, OpenAI, Claude) followed by the local matcher. Providers without
// an API key are skipped.
func BuildChain(ctx context.Context, cfg ChainConfig, logger *slog.Logger, metrics *Metrics) (*Chain, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	matcher, err := NewMatcher(cfg.LocalMatcher, DefaultKnowledgeBase())
	if err != nil {
		return nil, err
	}
	timeout := cfg.RemoteTimeout
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	httpClient := llm.NewHTTPClient(timeout)

	var remotes []Provider
	if cfg.Gemini.Enabled() {
		gen, err := llm.NewGeminiGenerator(ctx, cfg.Gemini, httpClient)
		if err != nil {
			logger.Warn("skip gemini provider", "error", err)
		} else {
			remotes = append(remotes, NewRemoteProvider(domain.SourceGemini, gen, timeout, logger))
		}
	} else {
		logger.Info("GEMINI_API_KEY not set, skipping gemini provider")
	}
	if cfg.OpenAI.Enabled() {
		remotes = append(remotes, NewRemoteProvider(domain.SourceOpenAI, llm.NewOpenAIGenerator(cfg.OpenAI, httpClient), timeout, logger))
	} else {
		logger.Info("OPENAI_API_KEY not set, skipping openai provider")
	}
	if cfg.Claude.Enabled() {
		remotes = append(remotes, NewRemoteProvider(domain.SourceClaude, llm.NewClaudeGenerator(cfg.Claude, httpClient), timeout, logger))
	}

	chain := NewChain(remotes, NewLocalProvider(matcher), logger, metrics)
	logger.Info("analysis chain ready", "providers", chain.Providers(), "local_matcher", matcher.Name())
	return chain, nil
}
