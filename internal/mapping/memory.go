package mapping

import (
	"context"
	"sync"
	"time"

	"bodyfeel/internal/domain"
)

const StorageMemory = "in-memory"

// MemoryStore keeps everything in process memory in insertion order.
type MemoryStore struct {
	mu           sync.RWMutex
	sessions     map[string]*domain.Session
	sessionOrder []string
	mappings     map[string]domain.BodyMapping
	mappingOrder []string
	results      map[string]domain.EmotionRecord
	now          func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*domain.Session),
		mappings: make(map[string]domain.BodyMapping),
		results:  make(map[string]domain.EmotionRecord),
		now:      time.Now,
	}
}

func (s *MemoryStore) EnsureSession(_ context.Context, sessionID string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		return copySession(sess), nil
	}
	sess := &domain.Session{ID: sessionID, CreatedAt: s.now().UTC(), MappingIDs: []string{}}
	s.sessions[sessionID] = sess
	s.sessionOrder = append(s.sessionOrder, sessionID)
	return copySession(sess), nil
}

func (s *MemoryStore) GetSession(_ context.Context, sessionID string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return domain.Session{}, ErrSessionNotFound
	}
	return copySession(sess), nil
}

func (s *MemoryStore) ListSessions(context.Context) ([]domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Session, 0, len(s.sessionOrder))
	for _, id := range s.sessionOrder {
		out = append(out, copySession(s.sessions[id]))
	}
	return out, nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	for _, mid := range sess.MappingIDs {
		delete(s.mappings, mid)
		delete(s.results, mid)
		s.mappingOrder = removeID(s.mappingOrder, mid)
	}
	delete(s.sessions, sessionID)
	s.sessionOrder = removeID(s.sessionOrder, sessionID)
	return nil
}

func (s *MemoryStore) SaveMapping(_ context.Context, m domain.BodyMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[m.SessionID]
	if !ok {
		return ErrSessionNotFound
	}
	if _, exists := s.mappings[m.ID]; !exists {
		s.mappingOrder = append(s.mappingOrder, m.ID)
		sess.MappingIDs = append(sess.MappingIDs, m.ID)
	}
	m.BodyMarkings = copyMarkings(m.BodyMarkings)
	s.mappings[m.ID] = m
	return nil
}

func (s *MemoryStore) GetMapping(_ context.Context, mappingID string) (domain.BodyMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mappings[mappingID]
	if !ok {
		return domain.BodyMapping{}, ErrMappingNotFound
	}
	return copyMapping(m), nil
}

func (s *MemoryStore) UpdateMapping(_ context.Context, mappingID string, markings domain.SensationMap, view domain.View) (domain.BodyMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mappings[mappingID]
	if !ok {
		return domain.BodyMapping{}, ErrMappingNotFound
	}
	if markings != nil {
		m.BodyMarkings = copyMarkings(markings)
	}
	if view != "" {
		m.View = view
	}
	s.mappings[mappingID] = m
	return copyMapping(m), nil
}

func (s *MemoryStore) DeleteMapping(_ context.Context, mappingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mappings[mappingID]
	if !ok {
		return ErrMappingNotFound
	}
	if sess, ok := s.sessions[m.SessionID]; ok {
		sess.MappingIDs = removeID(sess.MappingIDs, mappingID)
	}
	delete(s.mappings, mappingID)
	delete(s.results, mappingID)
	s.mappingOrder = removeID(s.mappingOrder, mappingID)
	return nil
}

func (s *MemoryStore) ListMappings(context.Context) ([]domain.BodyMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.BodyMapping, 0, len(s.mappingOrder))
	for _, id := range s.mappingOrder {
		out = append(out, copyMapping(s.mappings[id]))
	}
	return out, nil
}

func (s *MemoryStore) SessionMappings(_ context.Context, sessionID string) ([]domain.BodyMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := make([]domain.BodyMapping, 0, len(sess.MappingIDs))
	for _, id := range sess.MappingIDs {
		out = append(out, copyMapping(s.mappings[id]))
	}
	return out, nil
}

func (s *MemoryStore) SaveEmotionResult(_ context.Context, rec domain.EmotionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.mappings[rec.MappingID]; !ok {
		return ErrMappingNotFound
	}
	rec.Result.Results = append([]domain.Hypothesis(nil), rec.Result.Results...)
	s.results[rec.MappingID] = rec
	return nil
}

func (s *MemoryStore) GetEmotionResult(_ context.Context, mappingID string) (domain.EmotionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.results[mappingID]
	if !ok {
		return domain.EmotionRecord{}, ErrResultNotFound
	}
	rec.Result.Results = append([]domain.Hypothesis(nil), rec.Result.Results...)
	return rec, nil
}

func (s *MemoryStore) Stats(context.Context) (domain.StorageStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.StorageStats{
		TotalSessions:       len(s.sessions),
		TotalMappings:       len(s.mappings),
		TotalEmotionResults: len(s.results),
		Storage:             StorageMemory,
	}, nil
}

func (s *MemoryStore) Close() {}

func copySession(sess *domain.Session) domain.Session {
	out := *sess
	out.MappingIDs = append([]string{}, sess.MappingIDs...)
	return out
}

func copyMapping(m domain.BodyMapping) domain.BodyMapping {
	m.BodyMarkings = copyMarkings(m.BodyMarkings)
	return m
}

func copyMarkings(in domain.SensationMap) domain.SensationMap {
	out := make(domain.SensationMap, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}
