// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

package recommend

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/quillfeed/quillfeed/internal/config"
	"github.com/quillfeed/quillfeed/internal/content"
	"github.com/quillfeed/quillfeed/internal/metrics"
	"github.com/quillfeed/quillfeed/internal/model"
	"github.com/quillfeed/quillfeed/internal/scoring"
	"github.com/quillfeed/quillfeed/internal/store"
)

type engineFixture struct {
	engine  *Engine
	store   *store.BadgerStore
	catalog *content.MemoryCatalog
	cfg     *config.Config
}

func newFixture(t *testing.T, mutate func(*config.Config)) *engineFixture {
	t.Helper()

	cfg := config.Default()
	cfg.Store.Path = ""
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
	engine := NewEngine(cfg.Recommend, scoring.New(cfg.Scoring), resilient, st, zerolog.Nop())

	return &engineFixture{engine: engine, store: st, catalog: catalog, cfg: cfg}
}

// warmProfile writes a profile past the cold-start threshold with a
// strong preference for the given topic.
func (f *engineFixture) warmProfile(t *testing.T, userID, topic string) {
	t.Helper()

	_, err := f.store.AtomicUpdate(context.Background(), userID, func(p *model.UserProfile) error {
		p.EventCount = int64(f.cfg.Recommend.ColdStartEventThreshold) + 10
		p.TopicPreferences[topic] = model.TopicPreference{
			Weight: 0.9, Confidence: 0.8, LastUpdated: time.Now(),
		}
		p.ReadingLevels["en"] = model.ReadingLevel{Level: 3.0, Confidence: 0.9, LastUpdated: time.Now()}
		return nil
	})
	if err != nil {
		t.Fatalf("warm profile: %v", err)
	}
}

func seedItems(catalog *content.MemoryCatalog, topic string, n int) {
	for i := 0; i < n; i++ {
		catalog.Upsert(model.ContentItem{
			ID:                   fmt.Sprintf("%s-%d", topic, i),
			Language:             "en",
			TopicScores:          map[string]float64{topic: 0.9},
			ReadingLevelScore:    3.0,
			EstimatedReadingTime: 10 * time.Minute,
			PopularityScore:      0.5,
		})
	}
}

func TestRecommendRanksPreferredTopicFirst(t *testing.T) {
	f := newFixture(t, nil)
	f.warmProfile(t, "u1", "golang")
	seedItems(f.catalog, "golang", 3)
	seedItems(f.catalog, "knitting", 3)

	set, err := f.engine.Recommend(context.Background(), &model.RecommendationRequest{
		UserID: "u1", Language: "en", Limit: 4,
	})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(set.Results) != 4 {
		t.Fatalf("got %d results, want 4", len(set.Results))
	}
	if set.Exploratory {
		t.Error("warm user served exploratory set")
	}
	if got := set.Results[0].ContentID; got[:6] != "golang" {
		t.Errorf("top result %q is not from the preferred topic", got)
	}
	if set.Results[0].Score < 0 || set.Results[0].Score > 1 {
		t.Errorf("score %f outside [0,1]", set.Results[0].Score)
	}
}

func TestRecommendDiversitySpreadsTopics(t *testing.T) {
	f := newFixture(t, nil)
	f.warmProfile(t, "u1", "golang")
	// Slightly preferring a second topic too, with plenty of both.
	_, err := f.store.AtomicUpdate(context.Background(), "u1", func(p *model.UserProfile) error {
		p.TopicPreferences["history"] = model.TopicPreference{Weight: 0.7, Confidence: 0.6, LastUpdated: time.Now()}
		return nil
	})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	seedItems(f.catalog, "golang", 10)
	seedItems(f.catalog, "history", 10)

	set, err := f.engine.Recommend(context.Background(), &model.RecommendationRequest{
		UserID: "u1", Language: "en", Limit: 6,
	})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}

	topics := make(map[string]bool)
	for _, r := range set.Results {
		topics[r.ContentID[:4]] = true
	}
	if len(topics) < 2 {
		t.Errorf("diversity rerank produced a single-topic list: %v", set.Results)
	}
}

func TestRecommendTimeFilter(t *testing.T) {
	f := newFixture(t, nil)
	f.warmProfile(t, "u1", "golang")

	f.catalog.Upsert(model.ContentItem{
		ID: "short", Language: "en",
		TopicScores:          map[string]float64{"golang": 0.9},
		ReadingLevelScore:    3.0,
		EstimatedReadingTime: 5 * time.Minute,
	})
	f.catalog.Upsert(model.ContentItem{
		ID: "long", Language: "en",
		TopicScores:          map[string]float64{"golang": 0.95},
		ReadingLevelScore:    3.0,
		EstimatedReadingTime: time.Hour,
	})

	set, err := f.engine.Recommend(context.Background(), &model.RecommendationRequest{
		UserID: "u1", Language: "en", Limit: 1,
		Context: &model.RequestContext{AvailableTime: 10 * time.Minute},
	})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(set.Results) != 1 || set.Results[0].ContentID != "short" {
		t.Errorf("time filter failed: %+v", set.Results)
	}
	if len(set.RelaxedConstraints) != 0 {
		t.Errorf("unexpected relaxation: %v", set.RelaxedConstraints)
	}
}

func TestRecommendRelaxesTimeFilterWhenStarved(t *testing.T) {
	f := newFixture(t, nil)
	f.warmProfile(t, "u1", "golang")

	// Everything is longer than the budget; relaxation must kick in
	// rather than returning nothing.
	seedItems(f.catalog, "golang", 3)
	stepsBefore := testutil.ToFloat64(metrics.RecommendationRelaxations.WithLabelValues(RelaxTimeFilter))
	set, err := f.engine.Recommend(context.Background(), &model.RecommendationRequest{
		UserID: "u1", Language: "en", Limit: 3,
		Context: &model.RequestContext{AvailableTime: time.Minute},
	})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(set.Results) != 3 {
		t.Fatalf("got %d results after relaxation, want 3", len(set.Results))
	}
	if !containsString(set.RelaxedConstraints, RelaxTimeFilter) {
		t.Errorf("relaxed constraints %v missing %q", set.RelaxedConstraints, RelaxTimeFilter)
	}
	if got := testutil.ToFloat64(metrics.RecommendationRelaxations.WithLabelValues(RelaxTimeFilter)); got != stepsBefore+1 {
		t.Errorf("relaxation counter %v -> %v, want +1", stepsBefore, got)
	}
}

func TestRecommendLevelGateAndMismatchFlag(t *testing.T) {
	f := newFixture(t, nil)
	f.warmProfile(t, "u1", "golang") // en level 3.0

	f.catalog.Upsert(model.ContentItem{
		ID: "at-level", Language: "en",
		TopicScores:       map[string]float64{"golang": 0.9},
		ReadingLevelScore: 3.0,
	})
	f.catalog.Upsert(model.ContentItem{
		ID: "too-hard", Language: "en",
		TopicScores:       map[string]float64{"golang": 0.9},
		ReadingLevelScore: 5.0,
	})

	set, err := f.engine.Recommend(context.Background(), &model.RecommendationRequest{
		UserID: "u1", Language: "en", Limit: 1,
	})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if set.Results[0].ContentID != "at-level" {
		t.Errorf("level gate let %q through", set.Results[0].ContentID)
	}

	// Ask for more than fits inside the band; the widened band admits
	// the hard item and flags the mismatch.
	set, err = f.engine.Recommend(context.Background(), &model.RecommendationRequest{
		UserID: "u1", Language: "en", Limit: 2,
	})
	if err != nil {
		t.Fatalf("Recommend relaxed: %v", err)
	}
	if len(set.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(set.Results))
	}
	for _, r := range set.Results {
		if r.ContentID == "too-hard" && !r.LevelMismatch {
			t.Error("above-band result not flagged as level mismatch")
		}
	}
	if !containsString(set.RelaxedConstraints, RelaxLevelBand) {
		t.Errorf("relaxed constraints %v missing %q", set.RelaxedConstraints, RelaxLevelBand)
	}
}

func TestRecommendColdStartExploratory(t *testing.T) {
	f := newFixture(t, nil)
	seedItems(f.catalog, "golang", 5)
	seedItems(f.catalog, "history", 5)

	set, err := f.engine.Recommend(context.Background(), &model.RecommendationRequest{
		UserID: "brand-new", Language: "en", Limit: 4,
	})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if !set.Exploratory {
		t.Error("cold-start response not marked exploratory")
	}
	if len(set.Results) != 4 {
		t.Errorf("got %d exploratory results, want 4", len(set.Results))
	}

	topics := make(map[string]bool)
	for _, r := range set.Results[:2] {
		topics[r.ContentID[:4]] = true
	}
	if len(topics) < 2 {
		t.Error("exploratory set leads with a single topic")
	}
}

func TestRecommendUncontextualizedFlag(t *testing.T) {
	f := newFixture(t, nil)
	f.warmProfile(t, "u1", "golang")
	seedItems(f.catalog, "golang", 3)

	// No context supplied and no events to infer from.
	set, err := f.engine.Recommend(context.Background(), &model.RecommendationRequest{
		UserID: "u1", Language: "en", Limit: 2,
	})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if !set.Uncontextualized {
		t.Error("missing context with thin history not flagged")
	}
}

func TestRecommendContextInferenceFromHistory(t *testing.T) {
	f := newFixture(t, nil)
	f.warmProfile(t, "u1", "golang")
	seedItems(f.catalog, "golang", 3)

	// Enough history with a consistent context to infer from.
	for i := 0; i < 8; i++ {
		_, err := f.store.AppendEvent(context.Background(), &model.FeedbackEvent{
			EventID: fmt.Sprintf("e%d", i), UserID: "u1", ContentID: "c",
			Type:      model.FeedbackLike,
			Context:   []string{"time:evening", "device:mobile"},
			Timestamp: time.Now(),
		})
		if err != nil {
			t.Fatalf("append event: %v", err)
		}
	}

	set, err := f.engine.Recommend(context.Background(), &model.RecommendationRequest{
		UserID: "u1", Language: "en", Limit: 2,
	})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if set.Uncontextualized {
		t.Error("context should have been inferred from history")
	}
}

func TestRecommendMoodInferenceFromHistory(t *testing.T) {
	f := newFixture(t, nil)
	f.warmProfile(t, "u1", "golang")

	for i := 0; i < 8; i++ {
		_, err := f.store.AppendEvent(context.Background(), &model.FeedbackEvent{
			EventID: fmt.Sprintf("m%d", i), UserID: "u1", ContentID: "c",
			Type:      model.FeedbackLike,
			Context:   []string{"time:evening", "device:mobile", "mood:curious"},
			Timestamp: time.Now(),
		})
		if err != nil {
			t.Fatalf("append event: %v", err)
		}
	}

	// Time and device supplied; the mood still comes from history.
	partial := &model.RequestContext{TimeOfDay: "morning", DeviceType: "ereader"}
	resolved, inferred := f.engine.resolveContext(context.Background(),
		&model.RecommendationRequest{UserID: "u1", Context: partial}, nil)
	if !inferred {
		t.Fatal("mood not inferred from consistent history")
	}
	if resolved.Mood != "curious" {
		t.Errorf("inferred mood = %q, want curious", resolved.Mood)
	}
	if resolved.TimeOfDay != "morning" || resolved.DeviceType != "ereader" {
		t.Errorf("supplied dimensions overwritten: %+v", resolved)
	}

	// A fully specified context takes no inference pass.
	full := &model.RequestContext{TimeOfDay: "morning", DeviceType: "ereader", Mood: "focused"}
	resolved, inferred = f.engine.resolveContext(context.Background(),
		&model.RecommendationRequest{UserID: "u1", Context: full}, nil)
	if inferred {
		t.Error("complete context should skip inference")
	}
	if resolved.Mood != "focused" {
		t.Errorf("supplied mood overwritten with %q", resolved.Mood)
	}
}

// flakyCatalog fails candidate queries on demand.
type flakyCatalog struct {
	content.Catalog
	fail bool
}

func (f *flakyCatalog) Candidates(ctx context.Context, language string, limit int) ([]model.ContentItem, error) {
	if f.fail {
		return nil, errors.New("catalog down")
	}
	return f.Catalog.Candidates(ctx, language, limit)
}

func TestRecommendIncompleteOnDegradedCatalog(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Path = ""

	st, err := store.Open(cfg.Store, zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	memory := content.NewMemoryCatalog()
	backend := &flakyCatalog{Catalog: memory}
	engine := NewEngine(cfg.Recommend, scoring.New(cfg.Scoring),
		content.NewResilientCatalog(backend, cfg.Content, zerolog.Nop()), st, zerolog.Nop())

	_, err = st.AtomicUpdate(context.Background(), "u1", func(p *model.UserProfile) error {
		p.EventCount = int64(cfg.Recommend.ColdStartEventThreshold) + 10
		p.TopicPreferences["golang"] = model.TopicPreference{Weight: 0.9, Confidence: 0.8, LastUpdated: time.Now()}
		return nil
	})
	if err != nil {
		t.Fatalf("warm profile: %v", err)
	}
	seedItems(memory, "golang", 3)

	// A healthy request primes the resilient wrapper's candidate cache.
	warm, err := engine.Recommend(context.Background(), &model.RecommendationRequest{
		UserID: "u1", Language: "en", Limit: 2,
	})
	if err != nil || len(warm.Results) == 0 {
		t.Fatalf("warm query: set=%+v err=%v", warm, err)
	}

	// With the backend failing, the wrapper serves the cached set and
	// the response is incomplete. A different limit bypasses the
	// response cache.
	backend.fail = true
	set, err := engine.Recommend(context.Background(), &model.RecommendationRequest{
		UserID: "u1", Language: "en", Limit: 3,
	})
	if err != nil {
		t.Fatalf("degraded query: %v", err)
	}
	if !set.Incomplete {
		t.Error("degraded response not marked incomplete")
	}
	if len(set.Results) == 0 {
		t.Error("degraded response empty despite cached candidates")
	}
}

func TestRecommendCacheServesRepeatRequests(t *testing.T) {
	f := newFixture(t, nil)
	f.warmProfile(t, "u1", "golang")
	seedItems(f.catalog, "golang", 3)

	req := &model.RecommendationRequest{UserID: "u1", Language: "en", Limit: 2, RequestID: "r1"}
	first, err := f.engine.Recommend(context.Background(), req)
	if err != nil {
		t.Fatalf("first Recommend: %v", err)
	}

	// Remove the catalog contents; a cached response must still come back.
	for i := 0; i < 3; i++ {
		f.catalog.Remove(fmt.Sprintf("golang-%d", i))
	}

	req2 := &model.RecommendationRequest{UserID: "u1", Language: "en", Limit: 2, RequestID: "r2"}
	second, err := f.engine.Recommend(context.Background(), req2)
	if err != nil {
		t.Fatalf("second Recommend: %v", err)
	}
	if len(second.Results) != len(first.Results) {
		t.Errorf("cached response differs: %d vs %d results", len(second.Results), len(first.Results))
	}
	if second.RequestID != "r2" {
		t.Errorf("cached response carries stale request ID %q", second.RequestID)
	}

	// Invalidation brings the live (now empty) catalog back.
	f.engine.InvalidateUser("u1")
	third, err := f.engine.Recommend(context.Background(), req2)
	if err != nil {
		t.Fatalf("third Recommend: %v", err)
	}
	if len(third.Results) != 0 {
		t.Errorf("invalidated cache still served %d results", len(third.Results))
	}
}

func TestRecommendSupersededBySameSession(t *testing.T) {
	f := newFixture(t, nil)
	f.warmProfile(t, "u1", "golang")
	seedItems(f.catalog, "golang", 3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Simulate an in-flight computation registered for the session,
	// then a newer request beginning and canceling it.
	inner, done := f.engine.session.begin(ctx, "s1")
	_, done2 := f.engine.session.begin(ctx, "s1")
	defer done2()
	defer done()

	if inner.Err() == nil {
		t.Fatal("older computation not canceled by the newer one")
	}
	if f.engine.session.isCurrent("s1", inner) {
		t.Error("superseded context still registered as current")
	}
}

func TestRecommendLimitNormalization(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.Recommend.DefaultLimit = 2
		cfg.Recommend.MaxLimit = 3
	})
	f.warmProfile(t, "u1", "golang")
	seedItems(f.catalog, "golang", 10)

	set, err := f.engine.Recommend(context.Background(), &model.RecommendationRequest{UserID: "u1", Language: "en"})
	if err != nil {
		t.Fatalf("Recommend default limit: %v", err)
	}
	if len(set.Results) != 2 {
		t.Errorf("default limit: got %d, want 2", len(set.Results))
	}

	set, err = f.engine.Recommend(context.Background(), &model.RecommendationRequest{UserID: "u1", Language: "en", Limit: 100})
	if err != nil {
		t.Fatalf("Recommend capped limit: %v", err)
	}
	if len(set.Results) != 3 {
		t.Errorf("capped limit: got %d, want 3", len(set.Results))
	}
}

func TestRecommendMissingProfileTreatedAsColdStart(t *testing.T) {
	f := newFixture(t, nil)
	seedItems(f.catalog, "golang", 3)

	set, err := f.engine.Recommend(context.Background(), &model.RecommendationRequest{
		UserID: "nobody", Language: "en", Limit: 2,
	})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if !set.Exploratory {
		t.Error("missing profile should produce the exploratory set")
	}
	if errors.Is(err, store.ErrProfileNotFound) {
		t.Error("profile-not-found leaked to the caller")
	}
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
