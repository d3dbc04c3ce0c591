package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bodyfeel/internal/domain"
)

func TestAnalyzeDecodesEnvelope(t *testing.T) {
	var got domain.AnalyzeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/emotions/analyze", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		h := domain.Hypothesis{Emotion: "Anger", Confidence: 1, Source: domain.SourceLocal}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": domain.AnalyzeResponse{
				Analysis: domain.Analysis{Source: domain.SourceLocal, Results: []domain.Hypothesis{h}},
				Emotion:  h,
			},
			"message": "Emotion analysis completed",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second)
	out, err := c.Analyze(context.Background(), domain.AnalyzeRequest{
		BodyMarkings: domain.SensationMap{"head": "hot"},
		View:         domain.ViewFront,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SensationHot, got.BodyMarkings["head"])
	assert.Equal(t, domain.SourceLocal, out.Source)
	assert.Equal(t, "Anger", out.Emotion.Emotion)
	assert.Len(t, out.Results, 1)
}

func TestErrorStatusCarriesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"message":"Body markings are required"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Analyze(context.Background(), domain.AnalyzeRequest{View: domain.ViewFront})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Body markings are required", apiErr.Message)
}

func TestStatusAndStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/emotions/status":
			_, _ = w.Write([]byte(`{"success":true,"data":{"service":"emotion_analysis","providers":["local_pattern_analysis"],"llm_providers":1,"primary_provider":"local_pattern_analysis","fallback_available":true}}`))
		case "/api/v1/body-mappings/stats/overview":
			_, _ = w.Write([]byte(`{"success":true,"data":{"total_sessions":2,"total_mappings":3,"total_emotion_results":1,"storage":"in-memory"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	st, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.SourceLocal, st.PrimaryProvider)
	assert.True(t, st.FallbackAvailable)

	stats, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StorageStats{TotalSessions: 2, TotalMappings: 3, TotalEmotionResults: 1, Storage: "in-memory"}, stats)
}

func TestUnconfiguredClient(t *testing.T) {
	_, err := NewClient("  ", 0).Status(context.Background())
	assert.Error(t, err)
}
