package mapping

import (
	"context"
	"errors"

	"bodyfeel/internal/domain"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrMappingNotFound = errors.New("body mapping not found")
	ErrResultNotFound  = errors.New("emotion result not found")
	ErrInvalidMapping  = errors.New("invalid body mapping")
)

// Store persists sessions, body mappings and the analysis stored against a
// mapping. Implementations must be safe for concurrent use.
type Store interface {
	// EnsureSession returns the session, creating it when missing.
	EnsureSession(ctx context.Context, sessionID string) (domain.Session, error)
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
	ListSessions(ctx context.Context) ([]domain.Session, error)
	// DeleteSession also removes the session's mappings and their results.
	DeleteSession(ctx context.Context, sessionID string) error

	// SaveMapping requires the mapping's session to exist.
	SaveMapping(ctx context.Context, m domain.BodyMapping) error
	GetMapping(ctx context.Context, mappingID string) (domain.BodyMapping, error)
	UpdateMapping(ctx context.Context, mappingID string, markings domain.SensationMap, view domain.View) (domain.BodyMapping, error)
	// DeleteMapping also removes the mapping's stored result.
	DeleteMapping(ctx context.Context, mappingID string) error
	ListMappings(ctx context.Context) ([]domain.BodyMapping, error)
	SessionMappings(ctx context.Context, sessionID string) ([]domain.BodyMapping, error)

	SaveEmotionResult(ctx context.Context, rec domain.EmotionRecord) error
	GetEmotionResult(ctx context.Context, mappingID string) (domain.EmotionRecord, error)

	Stats(ctx context.Context) (domain.StorageStats, error)
	Close()
}
