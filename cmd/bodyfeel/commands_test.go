package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bodyfeel/internal/domain"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCLIContext(t, context.Background(), args...)
}

func runCLIContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	t.Setenv("BODYFEEL_SERVER", "")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestParseMarks(t *testing.T) {
	got, err := parseMarks([]string{"head=hot", " chest = Warm ", "left-arm"})
	require.NoError(t, err)
	assert.Equal(t, domain.SensationMap{
		"head":     domain.SensationHot,
		"chest":    domain.SensationWarm,
		"left-arm": "",
	}, got)

	for _, bad := range []string{"=hot", "head=burning"} {
		_, err := parseMarks([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestAnalyzeLocalJSON(t *testing.T) {
	out, err := runCLI(t, "analyze", "--json", "-m", "head=hot", "-m", "chest=hot", "-m", "left-arm=hot")
	require.NoError(t, err)

	var resp domain.AnalyzeResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, domain.SourceLocal, resp.Source)
	assert.Equal(t, "Anger", resp.Emotion.Emotion)
}

func TestAnalyzeMergesBackView(t *testing.T) {
	out, err := runCLI(t, "analyze", "--matcher", "counts", "--back-mark", "left-leg=cold", "--back-mark", "right-leg=cold")
	require.NoError(t, err)
	assert.Contains(t, out, "source: "+domain.SourceLocal)
	assert.Contains(t, out, "1. ")
}

func TestAnalyzeRejectsInvalidInput(t *testing.T) {
	_, err := runCLI(t, "analyze")
	assert.Error(t, err)

	_, err = runCLI(t, "analyze", "-m", "head=hot", "--view", "side")
	assert.Error(t, err)

	_, err = runCLI(t, "analyze", "-m", "head=hot", "--matcher", "oracle")
	assert.Error(t, err)
}

func TestAnalyzeRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/emotions/analyze", r.URL.Path)
		var in domain.AnalyzeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, domain.SensationCold, in.BodyMarkings["chest"])

		h := domain.Hypothesis{Emotion: "Fear", Confidence: 0.7, Source: domain.SourceGemini}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": domain.AnalyzeResponse{
				Analysis: domain.Analysis{Source: domain.SourceGemini, Results: []domain.Hypothesis{h}},
				Emotion:  h,
			},
		})
	}))
	defer srv.Close()

	out, err := runCLI(t, "--server", srv.URL, "analyze", "-m", "chest=cold")
	require.NoError(t, err)
	assert.Contains(t, out, "source: "+domain.SourceGemini)
	assert.Contains(t, out, "1. Fear (0.70)")
}

func TestStatusRequiresServer(t *testing.T) {
	_, err := runCLI(t, "status")
	assert.Error(t, err)
}

func TestStatsRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/body-mappings/stats/overview", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    domain.StorageStats{TotalSessions: 2, TotalMappings: 3, TotalEmotionResults: 1, Storage: "in-memory"},
		})
	}))
	defer srv.Close()

	out, err := runCLI(t, "--server", srv.URL, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "storage:  in-memory")
	assert.Contains(t, out, "mappings: 3")
}

func TestStatusFollowsTimeoutFlag(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := runCLI(t, "--server", srv.URL, "--timeout", "50ms", "status")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestStatsUsesCommandContext(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := runCLIContext(t, ctx, "--server", srv.URL, "stats")
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, hits.Load())
}

func TestKnowledgeLists(t *testing.T) {
	out, err := runCLI(t, "knowledge")
	require.NoError(t, err)
	assert.Contains(t, out, "EMOTION")
	assert.Contains(t, out, "Anger")
	assert.Contains(t, out, "Sadness")
}
