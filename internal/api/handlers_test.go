// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/quillfeed/quillfeed/internal/analyzer"
	"github.com/quillfeed/quillfeed/internal/config"
	"github.com/quillfeed/quillfeed/internal/content"
	"github.com/quillfeed/quillfeed/internal/discovery"
	"github.com/quillfeed/quillfeed/internal/evolution"
	"github.com/quillfeed/quillfeed/internal/feedback"
	"github.com/quillfeed/quillfeed/internal/model"
	"github.com/quillfeed/quillfeed/internal/recommend"
	"github.com/quillfeed/quillfeed/internal/scoring"
	"github.com/quillfeed/quillfeed/internal/service"
	"github.com/quillfeed/quillfeed/internal/store"
)

type fixedAnalyzer struct {
	topics map[string]map[string]float64
}

func (a *fixedAnalyzer) Analyze(_ context.Context, contentID, _ string) (*model.Analysis, error) {
	topics, ok := a.topics[contentID]
	if !ok {
		topics = map[string]float64{"misc": 1.0}
	}
	return &model.Analysis{TopicScores: topics, ReadingLevelScore: 3.0}, nil
}

type apiFixture struct {
	server   *httptest.Server
	pipeline *feedback.Pipeline
}

func newAPIFixture(t *testing.T, mutate func(*config.Config)) *apiFixture {
	t.Helper()

	cfg := config.Default()
	cfg.Store.Path = ""
	cfg.Feedback.WorkerCount = 2
	if mutate != nil {
		mutate(cfg)
	}

	st, err := store.Open(cfg.Store, zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	catalog := content.NewMemoryCatalog()
	resilient := content.NewResilientCatalog(catalog, cfg.Content, zerolog.Nop())

	an := analyzer.NewService(cfg.Analyzer, zerolog.Nop())
	an.Register("en", &fixedAnalyzer{topics: map[string]map[string]float64{
		"go-article": {"golang": 0.9},
	}})

	proc := feedback.NewProcessor(cfg.Feedback, cfg.Discovery)
	pipeline := feedback.NewPipeline(cfg.Feedback, st, proc, zerolog.Nop())
	t.Cleanup(func() { _ = pipeline.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = pipeline.Serve(ctx) }()
	time.Sleep(20 * time.Millisecond)

	scorer := scoring.New(cfg.Scoring)
	engine := recommend.NewEngine(cfg.Recommend, scorer, resilient, st, zerolog.Nop())
	disc := discovery.NewEngine(cfg.Discovery, scorer, resilient, st, zerolog.Nop())
	tracker := evolution.NewTracker(cfg.Evolution, st, zerolog.Nop())

	svc := service.New(st, catalog, resilient, an, pipeline, engine, disc, tracker, zerolog.Nop())
	handler := NewHandler(svc, an, zerolog.Nop())

	server := httptest.NewServer(NewRouter(cfg.Server, handler))
	t.Cleanup(server.Close)

	return &apiFixture{server: server, pipeline: pipeline}
}

func (f *apiFixture) postJSON(t *testing.T, path string, body interface{}) (*http.Response, *APIResponse) {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(f.server.URL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp, decodeEnvelope(t, resp)
}

func (f *apiFixture) get(t *testing.T, path string) (*http.Response, *APIResponse) {
	t.Helper()

	resp, err := http.Get(f.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp, decodeEnvelope(t, resp)
}

func decodeEnvelope(t *testing.T, resp *http.Response) *APIResponse {
	t.Helper()
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	var env APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return &env
}

func (f *apiFixture) ingest(t *testing.T, contentID string) {
	t.Helper()

	resp, env := f.postJSON(t, "/api/v1/content", map[string]interface{}{
		"content_id": contentID,
		"language":   "en",
		"text":       "placeholder text for " + contentID,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("ingest %s: status %d, envelope %+v", contentID, resp.StatusCode, env)
	}
}

func TestIngestContentEndpoint(t *testing.T) {
	f := newAPIFixture(t, nil)

	resp, env := f.postJSON(t, "/api/v1/content", map[string]interface{}{
		"content_id": "go-article",
		"language":   "en",
		"text":       "a long article about Go",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	if !env.Success || env.Data == nil {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestIngestContentValidation(t *testing.T) {
	f := newAPIFixture(t, nil)

	resp, env := f.postJSON(t, "/api/v1/content", map[string]interface{}{
		"language": "en",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != ErrCodeValidationFailed {
		t.Fatalf("unexpected error: %+v", env.Error)
	}
}

func TestIngestUnsupportedLanguage(t *testing.T) {
	f := newAPIFixture(t, nil)

	resp, env := f.postJSON(t, "/api/v1/content", map[string]interface{}{
		"content_id": "fr-1",
		"language":   "fr",
		"text":       "du texte en français",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != ErrCodeUnprocessable {
		t.Fatalf("unexpected error: %+v", env.Error)
	}
}

func TestSubmitFeedbackEndpoint(t *testing.T) {
	f := newAPIFixture(t, nil)
	f.ingest(t, "go-article")

	resp, env := f.postJSON(t, "/api/v1/feedback", map[string]interface{}{
		"user_id":    "alice",
		"content_id": "go-article",
		"type":       "like",
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	data, ok := env.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected data: %+v", env.Data)
	}
	if applied, _ := data["applied"].(bool); !applied {
		t.Fatalf("expected applied=true, got %+v", data)
	}
	if id, _ := data["event_id"].(string); id == "" {
		t.Fatal("expected a generated event_id")
	}
}

func TestSubmitFeedbackUnknownContent(t *testing.T) {
	f := newAPIFixture(t, nil)

	resp, env := f.postJSON(t, "/api/v1/feedback", map[string]interface{}{
		"user_id":    "alice",
		"content_id": "ghost",
		"type":       "like",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != ErrCodeNotFound {
		t.Fatalf("unexpected error: %+v", env.Error)
	}
}

func TestSubmitFeedbackBadType(t *testing.T) {
	f := newAPIFixture(t, nil)

	resp, _ := f.postJSON(t, "/api/v1/feedback", map[string]interface{}{
		"user_id":    "alice",
		"content_id": "go-article",
		"type":       "telepathic",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSubmitImplicitFeedbackRequiresPayload(t *testing.T) {
	f := newAPIFixture(t, nil)
	f.ingest(t, "go-article")

	resp, env := f.postJSON(t, "/api/v1/feedback", map[string]interface{}{
		"user_id":    "alice",
		"content_id": "go-article",
		"type":       "implicit",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if env.Error == nil || !strings.Contains(env.Error.Message, "implicit") {
		t.Fatalf("unexpected error: %+v", env.Error)
	}
}

func TestRecommendationsEndpointColdStart(t *testing.T) {
	f := newAPIFixture(t, nil)
	for i := 0; i < 5; i++ {
		f.ingest(t, fmt.Sprintf("item-%d", i))
	}

	resp, env := f.get(t, "/api/v1/users/newcomer/recommendations?language=en&limit=3")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	data, ok := env.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected data: %+v", env.Data)
	}
	if exploratory, _ := data["exploratory"].(bool); !exploratory {
		t.Fatalf("expected exploratory cold-start set, got %+v", data)
	}
	results, _ := data["results"].([]interface{})
	if len(results) == 0 {
		t.Fatal("expected results for cold-start user")
	}
}

func TestDiscoveriesEndpoint(t *testing.T) {
	f := newAPIFixture(t, nil)
	for i := 0; i < 4; i++ {
		f.ingest(t, fmt.Sprintf("item-%d", i))
	}

	resp, env := f.get(t, "/api/v1/users/newcomer/discoveries?language=en")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !env.Success {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestOverrideLifecycle(t *testing.T) {
	f := newAPIFixture(t, nil)

	req, err := http.NewRequest(http.MethodPut,
		f.server.URL+"/api/v1/users/alice/preferences/golang",
		bytes.NewReader([]byte(`{"weight":0.8}`)))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT override: %v", err)
	}
	if env := decodeEnvelope(t, resp); resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, envelope %+v", resp.StatusCode, env)
	}

	_, env := f.get(t, "/api/v1/users/alice/preferences")
	data, ok := env.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected data: %+v", env.Data)
	}
	overridden, _ := data["overridden"].([]interface{})
	if len(overridden) != 1 || overridden[0] != "golang" {
		t.Fatalf("expected golang overridden, got %+v", overridden)
	}

	del, err := http.NewRequest(http.MethodDelete,
		f.server.URL+"/api/v1/users/alice/preferences/golang", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	delResp, err := http.DefaultClient.Do(del)
	if err != nil {
		t.Fatalf("DELETE override: %v", err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", delResp.StatusCode)
	}
}

func TestOverrideWeightValidation(t *testing.T) {
	f := newAPIFixture(t, nil)

	req, err := http.NewRequest(http.MethodPut,
		f.server.URL+"/api/v1/users/alice/preferences/golang",
		bytes.NewReader([]byte(`{"weight":3.5}`)))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT override: %v", err)
	}
	env := decodeEnvelope(t, resp)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != ErrCodeValidationFailed {
		t.Fatalf("unexpected error: %+v", env.Error)
	}
}

func TestEvolutionEndpointEmptyHistory(t *testing.T) {
	f := newAPIFixture(t, nil)

	resp, env := f.get(t, "/api/v1/users/ghost/evolution")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	data, ok := env.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected data: %+v", env.Data)
	}
	if snapshots, present := data["snapshots"]; present && snapshots != nil {
		if list, ok := snapshots.([]interface{}); ok && len(list) != 0 {
			t.Fatalf("expected empty history, got %+v", list)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t, nil)

	resp, env := f.get(t, "/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	data, ok := env.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected data: %+v", env.Data)
	}
	if status, _ := data["status"].(string); status != "ok" {
		t.Fatalf("status field = %q, want ok", status)
	}
	if _, ok := data["breakers"]; !ok {
		t.Fatal("expected breaker states in health payload")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newAPIFixture(t, nil)

	resp, err := http.Get(f.server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
