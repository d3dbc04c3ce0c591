package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"bodyfeel/internal/emotion"
	"bodyfeel/internal/llm"
	"bodyfeel/internal/mqtt"
)

type ServerConfig struct {
	HTTPAddr        string
	MaxBodyBytes    int64
	Gemini          llm.Endpoint
	OpenAI          llm.Endpoint
	Claude          llm.Endpoint
	RemoteTimeout   time.Duration
	LocalMatcher    string
	DBDSN           string
	MQTTBrokerURL   string
	MQTTClientID    string
	MQTTUsername    string
	MQTTPassword    string
	MQTTTopicPrefix string
	MQTTMaxInFlight int
	TerminalTTL     time.Duration
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := ServerConfig{
		HTTPAddr:     getenvDefault("BODYFEEL_HTTP_ADDR", ":8000"),
		MaxBodyBytes: getenvInt64Default("BODYFEEL_MAX_BODY_BYTES", 64*1024),
		Gemini: llm.Endpoint{
			BaseURL: getenvDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
			APIKey:  os.Getenv("GEMINI_API_KEY"),
			Model:   getenvDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		},
		OpenAI: llm.Endpoint{
			BaseURL: getenvDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   getenvDefault("OPENAI_MODEL", "gpt-3.5-turbo"),
		},
		Claude: llm.Endpoint{
			BaseURL: getenvDefault("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
			APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
			Model:   getenvDefault("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
		},
		RemoteTimeout:   time.Duration(getenvIntDefault("REMOTE_TIMEOUT_SECONDS", 30)) * time.Second,
		LocalMatcher:    strings.ToLower(getenvDefault("LOCAL_MATCHER", emotion.MatcherPattern)),
		DBDSN:           os.Getenv("DB_DSN"),
		MQTTBrokerURL:   os.Getenv("MQTT_BROKER_URL"),
		MQTTClientID:    getenvDefault("MQTT_CLIENT_ID", "bodyfeel-server"),
		MQTTUsername:    os.Getenv("MQTT_USERNAME"),
		MQTTPassword:    os.Getenv("MQTT_PASSWORD"),
		MQTTTopicPrefix: strings.Trim(getenvDefault("MQTT_TOPIC_PREFIX", "bodyfeel"), "/"),
		MQTTMaxInFlight: getenvIntDefault("MQTT_MAX_INFLIGHT", mqtt.DefaultMaxInFlight),
		TerminalTTL:     time.Duration(getenvIntDefault("TERMINAL_TTL_SECONDS", 60)) * time.Second,
	}

	if cfg.LocalMatcher != emotion.MatcherPattern && cfg.LocalMatcher != emotion.MatcherCounts {
		return ServerConfig{}, fmt.Errorf("LOCAL_MATCHER must be %q or %q, got %q", emotion.MatcherPattern, emotion.MatcherCounts, cfg.LocalMatcher)
	}
	if cfg.RemoteTimeout <= 0 {
		return ServerConfig{}, fmt.Errorf("REMOTE_TIMEOUT_SECONDS must be positive")
	}
	if cfg.MaxBodyBytes <= 0 {
		return ServerConfig{}, fmt.Errorf("BODYFEEL_MAX_BODY_BYTES must be positive")
	}
	if cfg.MQTTMaxInFlight <= 0 {
		return ServerConfig{}, fmt.Errorf("MQTT_MAX_INFLIGHT must be positive")
	}
	if cfg.MQTTBrokerURL != "" && cfg.MQTTTopicPrefix == "" {
		return ServerConfig{}, fmt.Errorf("MQTT_TOPIC_PREFIX is required when MQTT_BROKER_URL is set")
	}

	return cfg, nil
}

func (c ServerConfig) Chain() emotion.ChainConfig {
	return emotion.ChainConfig{
		Gemini:        c.Gemini,
		OpenAI:        c.OpenAI,
		Claude:        c.Claude,
		RemoteTimeout: c.RemoteTimeout,
		LocalMatcher:  c.LocalMatcher,
	}
}

func (c ServerConfig) Hub() mqtt.HubConfig {
	return mqtt.HubConfig{
		BrokerURL:   c.MQTTBrokerURL,
		ClientID:    c.MQTTClientID,
		Username:    c.MQTTUsername,
		Password:    c.MQTTPassword,
		TopicPrefix: c.MQTTTopicPrefix,
		MaxInFlight: c.MQTTMaxInFlight,
	}
}

func getenvDefault(key, val string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return val
}

func getenvIntDefault(key string, val int) int {
	v := os.Getenv(key)
	if v == "" {
		return val
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return val
	}
	return n
}

func getenvInt64Default(key string, val int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return val
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return val
	}
	return n
}
