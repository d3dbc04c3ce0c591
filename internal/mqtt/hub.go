package mqtt

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"bodyfeel/internal/domain"
	"bodyfeel/internal/mapping"
	"bodyfeel/internal/terminals"
)

type HubConfig struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	// MaxInFlight caps concurrent analyses; markings beyond it are answered
	// with a busy report.
	MaxInFlight int
}

const DefaultMaxInFlight = 4

const errBusy = "analysis capacity exceeded, retry later"

// Analyzer is satisfied by *emotion.Chain.
type Analyzer interface {
	Analyze(ctx context.Context, markings domain.SensationMap, view domain.View) domain.Analysis
}

// Recorder is satisfied by *mapping.Service.
type Recorder interface {
	Record(ctx context.Context, sessionID string, markings domain.SensationMap, view domain.View, analysis domain.Analysis) (domain.BodyMapping, error)
}

// Hub receives sensation markings from terminals and answers each report
// with an analysis on the terminal's emotion topic.
type Hub struct {
	cfg      HubConfig
	client   paho.Client
	analyzer Analyzer
	recorder Recorder
	registry *terminals.Registry
	logger   *slog.Logger
	ctx      context.Context
	inflight *semaphore.Weighted
	publish  func(topic string, body []byte) error
}

func NewHub(cfg HubConfig, analyzer Analyzer, recorder Recorder, registry *terminals.Registry, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if registry == nil {
		registry = terminals.NewRegistry(0)
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = DefaultMaxInFlight
	}
	h := &Hub{
		cfg:      cfg,
		analyzer: analyzer,
		recorder: recorder,
		registry: registry,
		logger:   logger,
		ctx:      context.Background(),
		inflight: semaphore.NewWeighted(int64(cfg.MaxInFlight)),
	}
	h.publish = h.publishMQTT
	return h
}

func (h *Hub) Start(ctx context.Context) error {
	opts := paho.NewClientOptions().
		AddBroker(h.cfg.BrokerURL).
		SetClientID(h.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	if h.cfg.Username != "" {
		opts.SetUsername(h.cfg.Username)
		opts.SetPassword(h.cfg.Password)
	}

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		h.logger.Error("mqtt connection lost", "error", err)
	})

	h.ctx = ctx
	h.client = paho.NewClient(opts)
	if token := h.client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}

	if err := h.subscribeHandlers(); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		h.client.Disconnect(100)
	}()

	h.logger.Info("mqtt hub started", "broker", h.cfg.BrokerURL, "prefix", h.cfg.TopicPrefix, "max_in_flight", h.cfg.MaxInFlight)
	return nil
}

func (h *Hub) subscribeHandlers() error {
	if token := h.client.Subscribe(TopicTerminalMarkings(h.cfg.TopicPrefix), 1, h.handleMarkings); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	if token := h.client.Subscribe(TopicTerminalOnline(h.cfg.TopicPrefix), 1, h.handleOnline); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	if token := h.client.Subscribe(TopicTerminalHeartbeat(h.cfg.TopicPrefix), 1, h.handleHeartbeat); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (h *Hub) handleMarkings(_ paho.Client, msg paho.Message) {
	terminalID, err := ParseTerminalID(msg.Topic(), h.cfg.TopicPrefix)
	if err != nil {
		h.logger.Warn("skip invalid markings topic", "topic", msg.Topic(), "error", err)
		return
	}
	payload := append([]byte(nil), msg.Payload()...)

	// paho delivers in order, so the handler must not block on a slow chain.
	if !h.inflight.TryAcquire(1) {
		h.logger.Warn("analysis capacity reached, rejecting markings", "terminal_id", terminalID, "max_in_flight", h.cfg.MaxInFlight)
		h.sendReport(busyReport(terminalID, payload))
		return
	}
	go func() {
		defer h.inflight.Release(1)
		h.sendReport(h.ProcessMarkings(h.ctx, terminalID, payload))
	}()
}

func busyReport(terminalID string, payload []byte) domain.EmotionReport {
	var in domain.MarkingsReport
	_ = json.Unmarshal(payload, &in)
	if in.RequestID == "" {
		in.RequestID = uuid.NewString()
	}
	return domain.EmotionReport{RequestID: in.RequestID, TerminalID: terminalID, Error: errBusy}
}

func (h *Hub) sendReport(report domain.EmotionReport) {
	body, err := json.Marshal(report)
	if err != nil {
		h.logger.Error("encode emotion report failed", "terminal_id", report.TerminalID, "error", err)
		return
	}
	if err := h.publish(TopicEmotion(h.cfg.TopicPrefix, report.TerminalID), body); err != nil {
		h.logger.Warn("publish emotion report failed", "terminal_id", report.TerminalID, "error", err)
	}
}

func (h *Hub) publishMQTT(topic string, body []byte) error {
	if token := h.client.Publish(topic, 1, false, body); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// ProcessMarkings turns one markings payload into the report published back
// to the terminal. It never fails; problems are reported in the payload.
func (h *Hub) ProcessMarkings(ctx context.Context, terminalID string, payload []byte) domain.EmotionReport {
	var in domain.MarkingsReport
	if err := json.Unmarshal(payload, &in); err != nil {
		h.logger.Warn("invalid markings payload", "terminal_id", terminalID, "error", err)
		return domain.EmotionReport{RequestID: uuid.NewString(), TerminalID: terminalID, Error: "invalid markings payload"}
	}
	if in.RequestID == "" {
		in.RequestID = uuid.NewString()
	}
	if in.View == "" {
		in.View = domain.ViewFront
	}
	out := domain.EmotionReport{RequestID: in.RequestID, TerminalID: terminalID}
	markings, err := mapping.ValidateMarkings(in.BodyMarkings, in.View)
	if err != nil {
		h.logger.Warn("rejected markings", "terminal_id", terminalID, "request_id", in.RequestID, "error", err)
		out.Error = err.Error()
		return out
	}
	in.BodyMarkings = markings

	analysis := h.analyzer.Analyze(ctx, in.BodyMarkings, in.View)
	out.OK = true
	out.Analysis = analysis

	if h.recorder != nil {
		m, err := h.recorder.Record(ctx, in.SessionID, in.BodyMarkings, in.View, analysis)
		if err != nil {
			h.logger.Warn("record terminal mapping failed", "terminal_id", terminalID, "request_id", in.RequestID, "error", err)
		} else {
			out.MappingID = m.ID
			in.SessionID = m.SessionID
		}
	}

	h.registry.RecordAnalysis(terminalID, in.SessionID, out.MappingID, analysis)
	h.logger.Info("terminal markings analyzed", "terminal_id", terminalID, "request_id", in.RequestID, "source", analysis.Source, "emotion", analysis.Primary().Emotion)
	return out
}

func (h *Hub) handleOnline(_ paho.Client, msg paho.Message) {
	terminalID, err := ParseTerminalID(msg.Topic(), h.cfg.TopicPrefix)
	if err != nil {
		h.logger.Warn("skip invalid online topic", "topic", msg.Topic(), "error", err)
		return
	}

	payload := strings.TrimSpace(strings.ToLower(string(msg.Payload())))
	online := payload == "1" || payload == "true" || payload == "online"
	h.registry.SetOnline(terminalID, online)
	h.logger.Info("terminal online status", "terminal_id", terminalID, "online", online)
}

func (h *Hub) handleHeartbeat(_ paho.Client, msg paho.Message) {
	terminalID, err := ParseTerminalID(msg.Topic(), h.cfg.TopicPrefix)
	if err != nil {
		h.logger.Warn("skip invalid heartbeat topic", "topic", msg.Topic(), "error", err)
		return
	}
	h.registry.SetOnline(terminalID, true)
}

func (h *Hub) Registry() *terminals.Registry {
	return h.registry
}
