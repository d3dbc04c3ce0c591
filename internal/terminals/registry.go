package terminals

import (
	"sort"
	"strings"
	"sync"
	"time"

	"bodyfeel/internal/domain"
)

type TerminalState struct {
	TerminalID    string           `json:"terminal_id"`
	Online        bool             `json:"online"`
	LastSeen      time.Time        `json:"last_seen"`
	Reports       int64            `json:"reports"`
	LastSessionID string           `json:"last_session_id,omitempty"`
	LastMappingID string           `json:"last_mapping_id,omitempty"`
	LastAnalysis  *domain.Analysis `json:"last_analysis,omitempty"`
}

// Registry tracks terminals seen over MQTT. A terminal that has not been
// heard from within the TTL is treated as offline.
type Registry struct {
	mu   sync.RWMutex
	data map[string]TerminalState
	ttl  time.Duration
	now  func() time.Time
}

func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Registry{
		data: make(map[string]TerminalState),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (r *Registry) SetOnline(terminalID string, online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := r.data[terminalID]
	state.TerminalID = terminalID
	state.Online = online
	state.LastSeen = r.now()
	r.data[terminalID] = state
}

// RecordAnalysis marks the terminal online and remembers the analysis it was
// last sent.
func (r *Registry) RecordAnalysis(terminalID, sessionID, mappingID string, analysis domain.Analysis) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := r.data[terminalID]
	state.TerminalID = terminalID
	state.Online = true
	state.LastSeen = r.now()
	state.Reports++
	state.LastSessionID = sessionID
	state.LastMappingID = mappingID
	a := cloneAnalysis(analysis)
	state.LastAnalysis = &a
	r.data[terminalID] = state
}

func (r *Registry) GetState(terminalID string) (TerminalState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.data[terminalID]
	if !ok || r.isExpired(state) {
		return TerminalState{}, false
	}
	return cloneState(state), true
}

// ListOnline returns online, unexpired terminals ordered by id.
func (r *Registry) ListOnline() []TerminalState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]TerminalState, 0, len(r.data))
	for _, state := range r.data {
		if strings.TrimSpace(state.TerminalID) == "" {
			continue
		}
		if !state.Online || r.isExpired(state) {
			continue
		}
		out = append(out, cloneState(state))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TerminalID < out[j].TerminalID })
	return out
}

func (r *Registry) isExpired(state TerminalState) bool {
	if r.ttl <= 0 {
		return false
	}
	return r.now().Sub(state.LastSeen) > r.ttl
}

func cloneState(state TerminalState) TerminalState {
	if state.LastAnalysis != nil {
		a := cloneAnalysis(*state.LastAnalysis)
		state.LastAnalysis = &a
	}
	return state
}

func cloneAnalysis(a domain.Analysis) domain.Analysis {
	a.Results = append([]domain.Hypothesis(nil), a.Results...)
	return a
}
