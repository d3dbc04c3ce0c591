package config

import (
	"testing"
	"time"

	"bodyfeel/internal/emotion"
)

var serverEnv = []string{
	"BODYFEEL_HTTP_ADDR", "BODYFEEL_MAX_BODY_BYTES",
	"GEMINI_API_KEY", "GEMINI_BASE_URL", "GEMINI_MODEL",
	"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL",
	"ANTHROPIC_API_KEY", "ANTHROPIC_BASE_URL", "ANTHROPIC_MODEL",
	"REMOTE_TIMEOUT_SECONDS", "LOCAL_MATCHER", "DB_DSN",
	"MQTT_BROKER_URL", "MQTT_CLIENT_ID", "MQTT_USERNAME", "MQTT_PASSWORD", "MQTT_TOPIC_PREFIX",
	"MQTT_MAX_INFLIGHT", "TERMINAL_TTL_SECONDS",
}

func clearServerEnv(t *testing.T) {
	t.Helper()
	for _, k := range serverEnv {
		t.Setenv(k, "")
	}
}

func TestLoadServerConfigDefaults(t *testing.T) {
	clearServerEnv(t)
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8000" || cfg.MaxBodyBytes != 65536 {
		t.Fatalf("http defaults: %+v", cfg)
	}
	if cfg.RemoteTimeout != 30*time.Second || cfg.LocalMatcher != emotion.MatcherPattern {
		t.Fatalf("analysis defaults: %+v", cfg)
	}
	if cfg.Gemini.Enabled() || cfg.OpenAI.Enabled() || cfg.Claude.Enabled() {
		t.Fatalf("no provider should be enabled without keys")
	}
	if cfg.OpenAI.Model != "gpt-3.5-turbo" || cfg.Gemini.Model != "gemini-1.5-flash" {
		t.Fatalf("model defaults: %+v %+v", cfg.OpenAI, cfg.Gemini)
	}
	if cfg.Hub().TopicPrefix != "bodyfeel" || cfg.Hub().ClientID != "bodyfeel-server" || cfg.Hub().MaxInFlight != 4 {
		t.Fatalf("mqtt defaults: %+v", cfg.Hub())
	}
}

func TestLoadServerConfigOverrides(t *testing.T) {
	clearServerEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("REMOTE_TIMEOUT_SECONDS", "5")
	t.Setenv("LOCAL_MATCHER", "COUNTS")
	t.Setenv("MQTT_TOPIC_PREFIX", "/lab/bodyfeel/")

	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	chain := cfg.Chain()
	if !chain.OpenAI.Enabled() || chain.RemoteTimeout != 5*time.Second || chain.LocalMatcher != emotion.MatcherCounts {
		t.Fatalf("chain config: %+v", chain)
	}
	if cfg.MQTTTopicPrefix != "lab/bodyfeel" {
		t.Fatalf("prefix=%q", cfg.MQTTTopicPrefix)
	}
}

func TestLoadServerConfigErrors(t *testing.T) {
	tests := map[string]map[string]string{
		"unknown matcher": {"LOCAL_MATCHER": "bayes"},
		"zero timeout":    {"REMOTE_TIMEOUT_SECONDS": "0"},
		"negative body":   {"BODYFEEL_MAX_BODY_BYTES": "-1"},
		"mqtt no prefix":  {"MQTT_BROKER_URL": "tcp://localhost:1883", "MQTT_TOPIC_PREFIX": "/"},
		"zero in flight":  {"MQTT_MAX_INFLIGHT": "0"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			clearServerEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := LoadServerConfig(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
