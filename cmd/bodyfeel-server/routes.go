package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"bodyfeel/internal/domain"
	"bodyfeel/internal/emotion"
	"bodyfeel/internal/mapping"
	"bodyfeel/internal/terminals"
)

var testMarkings = domain.SensationMap{
	"head":     domain.SensationHot,
	"chest":    domain.SensationWarm,
	"left-arm": domain.SensationHot,
}

type server struct {
	chain        *emotion.Chain
	mappings     *mapping.Service
	registry     *terminals.Registry
	metrics      http.Handler
	logger       *slog.Logger
	maxBodyBytes int64
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

type createMappingRequest struct {
	SessionID    string              `json:"session_id"`
	BodyMarkings domain.SensationMap `json:"body_markings"`
	View         domain.View         `json:"view"`
}

type updateMappingRequest struct {
	BodyMarkings domain.SensationMap `json:"body_markings"`
	View         domain.View         `json:"view"`
}

type mappingWithResult struct {
	domain.BodyMapping
	EmotionResult *domain.EmotionRecord `json:"emotion_result,omitempty"`
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", s.handleIndex)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/emotions", func(r chi.Router) {
			r.Post("/analyze", s.handleAnalyze)
			r.Get("/status", s.handleStatus)
			r.Post("/test", s.handleTest)
		})
		r.Route("/body-mappings", func(r chi.Router) {
			r.Post("/", s.handleCreateMapping)
			r.Get("/", s.handleListMappings)
			r.Get("/sessions/list", s.handleListSessions)
			r.Delete("/sessions/{sessionID}", s.handleDeleteSession)
			r.Get("/session/{sessionID}", s.handleSessionMappings)
			r.Get("/stats/overview", s.handleStats)
			r.Get("/{mappingID}", s.handleGetMapping)
			r.Put("/{mappingID}", s.handleUpdateMapping)
			r.Delete("/{mappingID}", s.handleDeleteMapping)
		})
		r.Get("/terminals", s.handleTerminals)
	})
	return r
}

func (s *server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":   "bodyfeel",
		"providers": s.chain.Providers(),
		"endpoints": []string{
			"POST /api/v1/emotions/analyze",
			"GET /api/v1/emotions/status",
			"POST /api/v1/emotions/test",
			"/api/v1/body-mappings",
			"GET /api/v1/terminals",
			"GET /metrics",
		},
	})
}

func (s *server) handleAnalyze(w http.ResponseWriter, req *http.Request) {
	var in domain.AnalyzeRequest
	if err := decodeJSONBody(req, s.maxBodyBytes, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	markings, err := mapping.ValidateMarkings(in.BodyMarkings, in.View)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in.BodyMarkings = markings
	in.MappingID = strings.TrimSpace(in.MappingID)
	if in.MappingID != "" {
		if _, err := s.mappings.Mapping(req.Context(), in.MappingID); err != nil {
			s.writeStoreError(w, err)
			return
		}
	}

	analysis := s.chain.Analyze(req.Context(), in.BodyMarkings, in.View)
	out := domain.AnalyzeResponse{Analysis: analysis, Emotion: analysis.Primary()}
	if in.MappingID != "" {
		if _, err := s.mappings.SaveResult(req.Context(), in.MappingID, analysis); err != nil {
			s.writeStoreError(w, err)
			return
		}
		out.MappingID = in.MappingID
	}
	writeEnvelope(w, http.StatusOK, out, "Emotion analysis completed")
}

func (s *server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeEnvelope(w, http.StatusOK, s.chain.Status(), "")
}

func (s *server) handleTest(w http.ResponseWriter, req *http.Request) {
	analysis := s.chain.Analyze(req.Context(), testMarkings, domain.ViewFront)
	writeEnvelope(w, http.StatusOK, map[string]any{
		"test_input": testMarkings,
		"view":       domain.ViewFront,
		"result":     domain.AnalyzeResponse{Analysis: analysis, Emotion: analysis.Primary()},
	}, "Test analysis completed")
}

func (s *server) handleCreateMapping(w http.ResponseWriter, req *http.Request) {
	var in createMappingRequest
	if err := decodeJSONBody(req, s.maxBodyBytes, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := s.mappings.CreateMapping(req.Context(), in.SessionID, in.BodyMarkings, in.View)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeEnvelope(w, http.StatusCreated, m, "Body mapping created")
}

func (s *server) handleListMappings(w http.ResponseWriter, req *http.Request) {
	items, err := s.mappings.Mappings(req.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, items, "")
}

func (s *server) handleGetMapping(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	m, err := s.mappings.Mapping(ctx, chi.URLParam(req, "mappingID"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	out := mappingWithResult{BodyMapping: m}
	rec, err := s.mappings.Result(ctx, m.ID)
	switch {
	case err == nil:
		out.EmotionResult = &rec
	case !errors.Is(err, mapping.ErrResultNotFound):
		s.writeStoreError(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, out, "")
}

func (s *server) handleUpdateMapping(w http.ResponseWriter, req *http.Request) {
	var in updateMappingRequest
	if err := decodeJSONBody(req, s.maxBodyBytes, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := s.mappings.UpdateMapping(req.Context(), chi.URLParam(req, "mappingID"), in.BodyMarkings, in.View)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, m, "Body mapping updated")
}

func (s *server) handleDeleteMapping(w http.ResponseWriter, req *http.Request) {
	if err := s.mappings.DeleteMapping(req.Context(), chi.URLParam(req, "mappingID")); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, nil, "Body mapping deleted")
}

func (s *server) handleSessionMappings(w http.ResponseWriter, req *http.Request) {
	items, err := s.mappings.SessionMappings(req.Context(), chi.URLParam(req, "sessionID"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, items, "")
}

func (s *server) handleListSessions(w http.ResponseWriter, req *http.Request) {
	items, err := s.mappings.Sessions(req.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, items, "")
}

func (s *server) handleDeleteSession(w http.ResponseWriter, req *http.Request) {
	if err := s.mappings.DeleteSession(req.Context(), chi.URLParam(req, "sessionID")); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, nil, "Session deleted")
}

func (s *server) handleStats(w http.ResponseWriter, req *http.Request) {
	stats, err := s.mappings.Stats(req.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, stats, "")
}

func (s *server) handleTerminals(w http.ResponseWriter, _ *http.Request) {
	writeEnvelope(w, http.StatusOK, s.registry.ListOnline(), "")
}

func (s *server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, mapping.ErrInvalidMapping):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, mapping.ErrMappingNotFound),
		errors.Is(err, mapping.ErrSessionNotFound),
		errors.Is(err, mapping.ErrResultNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("storage request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal storage error")
	}
}

func writeEnvelope(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, envelope{Success: true, Data: data, Message: message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeJSONBody(req *http.Request, maxBytes int64, out any) error {
	defer req.Body.Close()
	data, err := io.ReadAll(io.LimitReader(req.Body, maxBytes+1))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return fmt.Errorf("request body too large")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	var extra any
	if err := dec.Decode(&extra); err != io.EOF {
		if err == nil {
			return fmt.Errorf("invalid json: multiple JSON values")
		}
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}
