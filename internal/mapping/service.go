package mapping

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"bodyfeel/internal/domain"
)

// Service owns id allocation and validation; the Store only persists.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store Store, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("mapping store is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{store: store, logger: logger, now: time.Now}, nil
}

// ValidateMarkings checks what every entry point requires before analysis or
// storage: at least one marked region and a known view. It returns a copy of
// markings with every sensation in canonical form, which is what the matchers
// compare against.
func ValidateMarkings(markings domain.SensationMap, view domain.View) (domain.SensationMap, error) {
	if len(markings) == 0 {
		return nil, fmt.Errorf("%w: body markings are required", ErrInvalidMapping)
	}
	if !view.Valid() {
		return nil, fmt.Errorf("%w: view must be %q or %q", ErrInvalidMapping, domain.ViewFront, domain.ViewBack)
	}
	out := make(domain.SensationMap, len(markings))
	for region, s := range markings {
		if strings.TrimSpace(region) == "" {
			return nil, fmt.Errorf("%w: empty region name", ErrInvalidMapping)
		}
		if strings.TrimSpace(string(s)) == "" {
			out[region] = ""
			continue
		}
		canonical, ok := domain.ParseSensation(string(s))
		if !ok {
			return nil, fmt.Errorf("%w: unknown sensation %q for %s", ErrInvalidMapping, s, region)
		}
		out[region] = canonical
	}
	return out, nil
}

// CreateMapping stores a new mapping, creating the session on first use. An
// empty sessionID starts a new session.
func (s *Service) CreateMapping(ctx context.Context, sessionID string, markings domain.SensationMap, view domain.View) (domain.BodyMapping, error) {
	markings, err := ValidateMarkings(markings, view)
	if err != nil {
		return domain.BodyMapping{}, err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if _, err := s.store.EnsureSession(ctx, sessionID); err != nil {
		return domain.BodyMapping{}, fmt.Errorf("ensure session: %w", err)
	}

	m := domain.BodyMapping{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		BodyMarkings: markings,
		View:         view,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.SaveMapping(ctx, m); err != nil {
		return domain.BodyMapping{}, fmt.Errorf("save mapping: %w", err)
	}
	s.logger.Info("body mapping created", "mapping_id", m.ID, "session_id", sessionID, "regions", len(m.BodyMarkings.Marked()))
	return m, nil
}

func (s *Service) Mapping(ctx context.Context, mappingID string) (domain.BodyMapping, error) {
	return s.store.GetMapping(ctx, mappingID)
}

func (s *Service) UpdateMapping(ctx context.Context, mappingID string, markings domain.SensationMap, view domain.View) (domain.BodyMapping, error) {
	current, err := s.store.GetMapping(ctx, mappingID)
	if err != nil {
		return domain.BodyMapping{}, err
	}
	if markings == nil {
		markings = current.BodyMarkings
	}
	if view == "" {
		view = current.View
	}
	markings, err = ValidateMarkings(markings, view)
	if err != nil {
		return domain.BodyMapping{}, err
	}
	return s.store.UpdateMapping(ctx, mappingID, markings, view)
}

func (s *Service) DeleteMapping(ctx context.Context, mappingID string) error {
	return s.store.DeleteMapping(ctx, mappingID)
}

func (s *Service) Mappings(ctx context.Context) ([]domain.BodyMapping, error) {
	return s.store.ListMappings(ctx)
}

func (s *Service) SessionMappings(ctx context.Context, sessionID string) ([]domain.BodyMapping, error) {
	return s.store.SessionMappings(ctx, sessionID)
}

func (s *Service) Sessions(ctx context.Context) ([]domain.Session, error) {
	return s.store.ListSessions(ctx)
}

func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	s.logger.Info("session deleted", "session_id", sessionID)
	return nil
}

// SaveResult attaches an analysis to an existing mapping, replacing any
// earlier one.
func (s *Service) SaveResult(ctx context.Context, mappingID string, analysis domain.Analysis) (domain.EmotionRecord, error) {
	rec := domain.EmotionRecord{MappingID: mappingID, Result: analysis, CreatedAt: s.now().UTC()}
	if err := s.store.SaveEmotionResult(ctx, rec); err != nil {
		return domain.EmotionRecord{}, err
	}
	return rec, nil
}

func (s *Service) Result(ctx context.Context, mappingID string) (domain.EmotionRecord, error) {
	return s.store.GetEmotionResult(ctx, mappingID)
}

// Record stores markings that arrived together with their analysis, as
// terminals do over MQTT.
func (s *Service) Record(ctx context.Context, sessionID string, markings domain.SensationMap, view domain.View, analysis domain.Analysis) (domain.BodyMapping, error) {
	m, err := s.CreateMapping(ctx, sessionID, markings, view)
	if err != nil {
		return domain.BodyMapping{}, err
	}
	if _, err := s.SaveResult(ctx, m.ID, analysis); err != nil {
		return domain.BodyMapping{}, fmt.Errorf("save result: %w", err)
	}
	return m, nil
}

func (s *Service) Stats(ctx context.Context) (domain.StorageStats, error) {
	return s.store.Stats(ctx)
}
