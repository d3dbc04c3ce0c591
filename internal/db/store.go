package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bodyfeel/internal/domain"
	"bodyfeel/internal/mapping"
)

const StoragePostgres = "postgres"

// Store is the PostgreSQL implementation of mapping.Store.
type Store struct {
	pool *pgxpool.Pool
}

var _ mapping.Store = (*Store)(nil)

func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS body_mappings (
			mapping_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
			body_markings JSONB NOT NULL DEFAULT '{}'::jsonb,
			view TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			seq BIGSERIAL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_body_mappings_session_seq ON body_mappings(session_id, seq);`,
		`CREATE TABLE IF NOT EXISTS emotion_results (
			mapping_id TEXT PRIMARY KEY REFERENCES body_mappings(mapping_id) ON DELETE CASCADE,
			source TEXT NOT NULL,
			result JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
	}

	for _, q := range queries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) EnsureSession(ctx context.Context, sessionID string) (domain.Session, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions(session_id)
		VALUES ($1)
		ON CONFLICT (session_id) DO NOTHING
	`, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	return s.GetSession(ctx, sessionID)
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	var out domain.Session
	err := s.pool.QueryRow(ctx, `
		SELECT session_id, created_at
		FROM sessions
		WHERE session_id=$1
	`, sessionID).Scan(&out.ID, &out.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, mapping.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, err
	}
	out.CreatedAt = out.CreatedAt.UTC()

	ids, err := s.sessionMappingIDs(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	out.MappingIDs = ids
	return out, nil
}

func (s *Store) sessionMappingIDs(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT mapping_id
		FROM body_mappings
		WHERE session_id=$1
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) ListSessions(ctx context.Context) ([]domain.Session, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT session_id
		FROM sessions
		ORDER BY created_at ASC, session_id ASC
	`)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.GetSession(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE session_id=$1`, sessionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return mapping.ErrSessionNotFound
	}
	return nil
}

func (s *Store) SaveMapping(ctx context.Context, m domain.BodyMapping) error {
	raw, err := json.Marshal(m.BodyMarkings)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO body_mappings(mapping_id, session_id, body_markings, view, created_at)
		SELECT $1, session_id, $3::jsonb, $4, $5
		FROM sessions
		WHERE session_id=$2
		ON CONFLICT (mapping_id)
		DO UPDATE SET body_markings=EXCLUDED.body_markings, view=EXCLUDED.view
	`, m.ID, m.SessionID, string(raw), string(m.View), m.CreatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return mapping.ErrSessionNotFound
	}
	return nil
}

const mappingColumns = `mapping_id, session_id, body_markings, view, created_at`

func scanMapping(row pgx.Row) (domain.BodyMapping, error) {
	var out domain.BodyMapping
	var raw []byte
	var view string
	var createdAt time.Time
	if err := row.Scan(&out.ID, &out.SessionID, &raw, &view, &createdAt); err != nil {
		return domain.BodyMapping{}, err
	}
	if err := json.Unmarshal(raw, &out.BodyMarkings); err != nil {
		return domain.BodyMapping{}, fmt.Errorf("decode body markings: %w", err)
	}
	out.View = domain.View(view)
	out.CreatedAt = createdAt.UTC()
	return out, nil
}

func (s *Store) GetMapping(ctx context.Context, mappingID string) (domain.BodyMapping, error) {
	m, err := scanMapping(s.pool.QueryRow(ctx, `
		SELECT `+mappingColumns+`
		FROM body_mappings
		WHERE mapping_id=$1
	`, mappingID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.BodyMapping{}, mapping.ErrMappingNotFound
	}
	return m, err
}

func (s *Store) UpdateMapping(ctx context.Context, mappingID string, markings domain.SensationMap, view domain.View) (domain.BodyMapping, error) {
	var raw any
	if markings != nil {
		buf, err := json.Marshal(markings)
		if err != nil {
			return domain.BodyMapping{}, err
		}
		raw = string(buf)
	}
	m, err := scanMapping(s.pool.QueryRow(ctx, `
		UPDATE body_mappings
		SET body_markings=COALESCE($2::jsonb, body_markings),
			view=COALESCE(NULLIF($3, ''), view)
		WHERE mapping_id=$1
		RETURNING `+mappingColumns, mappingID, raw, string(view)))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.BodyMapping{}, mapping.ErrMappingNotFound
	}
	return m, err
}

func (s *Store) DeleteMapping(ctx context.Context, mappingID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM body_mappings WHERE mapping_id=$1`, mappingID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return mapping.ErrMappingNotFound
	}
	return nil
}

func (s *Store) queryMappings(ctx context.Context, query string, args ...any) ([]domain.BodyMapping, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.BodyMapping{}
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListMappings(ctx context.Context) ([]domain.BodyMapping, error) {
	return s.queryMappings(ctx, `
		SELECT `+mappingColumns+`
		FROM body_mappings
		ORDER BY seq ASC
	`)
}

func (s *Store) SessionMappings(ctx context.Context, sessionID string) ([]domain.BodyMapping, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM sessions WHERE session_id=$1)`, sessionID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, mapping.ErrSessionNotFound
	}
	return s.queryMappings(ctx, `
		SELECT `+mappingColumns+`
		FROM body_mappings
		WHERE session_id=$1
		ORDER BY seq ASC
	`, sessionID)
}

func (s *Store) SaveEmotionResult(ctx context.Context, rec domain.EmotionRecord) error {
	raw, err := json.Marshal(rec.Result)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO emotion_results(mapping_id, source, result, created_at)
		SELECT mapping_id, $2, $3::jsonb, $4
		FROM body_mappings
		WHERE mapping_id=$1
		ON CONFLICT (mapping_id)
		DO UPDATE SET source=EXCLUDED.source, result=EXCLUDED.result, created_at=EXCLUDED.created_at
	`, rec.MappingID, rec.Result.Source, string(raw), rec.CreatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return mapping.ErrMappingNotFound
	}
	return nil
}

func (s *Store) GetEmotionResult(ctx context.Context, mappingID string) (domain.EmotionRecord, error) {
	var out domain.EmotionRecord
	var raw []byte
	var createdAt time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT mapping_id, result, created_at
		FROM emotion_results
		WHERE mapping_id=$1
	`, mappingID).Scan(&out.MappingID, &raw, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.EmotionRecord{}, mapping.ErrResultNotFound
	}
	if err != nil {
		return domain.EmotionRecord{}, err
	}
	if err := json.Unmarshal(raw, &out.Result); err != nil {
		return domain.EmotionRecord{}, fmt.Errorf("decode emotion result: %w", err)
	}
	out.CreatedAt = createdAt.UTC()
	return out, nil
}

func (s *Store) Stats(ctx context.Context) (domain.StorageStats, error) {
	out := domain.StorageStats{Storage: StoragePostgres}
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM sessions),
			(SELECT COUNT(*) FROM body_mappings),
			(SELECT COUNT(*) FROM emotion_results)
	`).Scan(&out.TotalSessions, &out.TotalMappings, &out.TotalEmotionResults)
	if err != nil {
		return domain.StorageStats{}, err
	}
	return out, nil
}
