package state

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/flashwire/flashwire/internal/model"
)

func newTestRedis(t *testing.T, opts Options) *Redis {
	t.Helper()
	mr := miniredis.RunT(t)
	r, err := NewRedis("redis://"+mr.Addr(), opts)
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRedis_BreakingRoundTrip(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r := newTestRedis(t, Options{Now: fixedClock(base)})

	in := &model.ScoredArticle{
		Article: model.Article{
			ID:       "abc123def456",
			Title:    "Breaking: markets tumble",
			PubDate:  base.Add(-30 * time.Minute),
			Link:     "https://www.bbc.co.uk/news/business-1",
			Category: "business",
		},
		KeywordScore:     0.3,
		VelocityScore:    0.7,
		CategoryScore:    0.6,
		RecencyScore:     1.0,
		TotalScore:       0.555,
		IsBreaking:       true,
		DetectedKeywords: []string{"breaking"},
		Topic:            "markets",
		DetectedAt:       base,
	}
	if err := r.PutBreaking(ctx, in); err != nil {
		t.Fatalf("PutBreaking: %v", err)
	}

	out, ok, err := r.GetBreaking(ctx, in.Article.ID)
	if err != nil || !ok {
		t.Fatalf("GetBreaking: ok=%v err=%v", ok, err)
	}
	if out.Article.ID != in.Article.ID || out.Article.Title != in.Article.Title ||
		out.Article.Link != in.Article.Link || out.Article.Category != in.Article.Category {
		t.Errorf("article changed in round trip: got %+v", out.Article)
	}
	if !out.Article.PubDate.Equal(in.Article.PubDate) {
		t.Errorf("pub date: got %v, want %v", out.Article.PubDate, in.Article.PubDate)
	}
	if out.TotalScore != in.TotalScore || out.Topic != in.Topic || !out.IsBreaking {
		t.Errorf("scores changed in round trip: got %+v", out)
	}
	if len(out.DetectedKeywords) != 1 || out.DetectedKeywords[0] != "breaking" {
		t.Errorf("keywords: got %v", out.DetectedKeywords)
	}
	if !out.DetectedAt.Equal(in.DetectedAt) {
		t.Errorf("detected at: got %v, want %v", out.DetectedAt, in.DetectedAt)
	}

	if _, ok, err := r.GetBreaking(ctx, "missing"); ok || err != nil {
		t.Errorf("missing id: ok=%v err=%v, want absent without error", ok, err)
	}
	if n, _ := r.BreakingCount(ctx); n != 1 {
		t.Errorf("BreakingCount: got %d, want 1", n)
	}
}

func TestRedis_WindowOrderAndPrune(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r := newTestRedis(t, Options{Now: fixedClock(base)})

	// Appended out of order; the sorted set keeps ascending timestamps.
	r.AppendWindow(ctx, "ukraine", base.Add(20*time.Minute), "a2")
	r.AppendWindow(ctx, "ukraine", base, "a0")
	r.AppendWindow(ctx, "ukraine", base.Add(10*time.Minute), "a1")

	w, err := r.Window(ctx, "ukraine")
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if len(w) != 3 || w[0].ArticleID != "a0" || w[2].ArticleID != "a2" {
		t.Fatalf("window order: got %v", w)
	}
	if !w[1].Timestamp.Equal(base.Add(10 * time.Minute)) {
		t.Errorf("timestamp round trip: got %v", w[1].Timestamp)
	}

	// The exact-cutoff entry survives pruning.
	remaining, err := r.PruneWindow(ctx, "ukraine", base.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("PruneWindow: %v", err)
	}
	if remaining != 2 {
		t.Errorf("remaining: got %d, want 2", remaining)
	}
	w, _ = r.Window(ctx, "ukraine")
	if len(w) != 2 || w[0].ArticleID != "a1" {
		t.Errorf("window after prune: got %v", w)
	}
}

func TestRedis_DedupSet(t *testing.T) {
	ctx := context.Background()
	r := newTestRedis(t, Options{})

	if ok, _ := r.SeenHash(ctx, "h1"); ok {
		t.Error("hash seen before add")
	}
	r.AddHash(ctx, "h1")
	r.AddHash(ctx, "h1") // idempotent
	r.AddHash(ctx, "h2")
	if ok, _ := r.SeenHash(ctx, "h1"); !ok {
		t.Error("hash not seen after add")
	}
	if n, _ := r.HashCount(ctx); n != 2 {
		t.Errorf("HashCount: got %d, want 2", n)
	}
}

func TestRedis_CleanupExpiredBreaking(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r := newTestRedis(t, Options{BreakingTTL: time.Hour, Now: fixedClock(base)})

	r.PutBreaking(ctx, scoredFixture("old", base.Add(-2*time.Hour)))
	r.PutBreaking(ctx, scoredFixture("new", base.Add(-time.Minute)))
	// A record some other writer corrupted: discarded but not counted.
	r.client.Set(ctx, prefixBreaking+"bad", "not-json", 0)

	removed, err := r.CleanupExpiredBreaking(ctx)
	if err != nil {
		t.Fatalf("CleanupExpiredBreaking: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed: got %d, want 1", removed)
	}
	if _, ok, _ := r.GetBreaking(ctx, "old"); ok {
		t.Error("expired entry survived cleanup")
	}
	if _, ok, _ := r.GetBreaking(ctx, "new"); !ok {
		t.Error("live entry evicted")
	}
	if n, _ := r.BreakingCount(ctx); n != 1 {
		t.Errorf("count after cleanup: got %d, want 1 (malformed key deleted)", n)
	}
}

func TestRedis_CleanupTopicWindowsDropsEmptiedKeys(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r := newTestRedis(t, Options{VelocityWindow: 30 * time.Minute, Now: fixedClock(base)})

	r.AppendWindow(ctx, "stale", base.Add(-2*time.Hour), "s1")
	r.AppendWindow(ctx, "live", base.Add(-time.Minute), "l1")

	changed, err := r.CleanupTopicWindows(ctx)
	if err != nil {
		t.Fatalf("CleanupTopicWindows: %v", err)
	}
	if changed != 1 {
		t.Errorf("changed topics: got %d, want 1", changed)
	}

	// Redis drops a sorted set once its last member goes; only the live
	// topic remains visible.
	topics, _ := r.Topics(ctx)
	if _, ok := topics["stale"]; ok {
		t.Errorf("stale topic key survived: %v", topics)
	}
	if topics["live"] != 1 {
		t.Errorf("live topic: got %d entries, want 1", topics["live"])
	}
}

func TestRedis_SimulationTimeMonotonic(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r := newTestRedis(t, Options{Now: fixedClock(base)})

	if _, ok, _ := r.SimulationTime(ctx); ok {
		t.Fatal("simulation time set before any write")
	}
	r.SetSimulationTime(ctx, base)
	r.SetSimulationTime(ctx, base.Add(-time.Hour)) // ignored
	got, ok, err := r.SimulationTime(ctx)
	if err != nil || !ok || !got.Equal(base) {
		t.Errorf("simulation time: got (%v,%v,%v), want (%v,true,nil)", got, ok, err, base)
	}
}

func TestRedis_CountersAndReset(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r := newTestRedis(t, Options{Now: fixedClock(base)})

	if n, _ := r.TotalProcessed(ctx); n != 0 {
		t.Errorf("fresh total: got %d", n)
	}
	r.IncrTotalProcessed(ctx)
	if n, _ := r.IncrTotalProcessed(ctx); n != 2 {
		t.Errorf("IncrTotalProcessed: got %d, want 2", n)
	}

	start, err := r.StartTime(ctx)
	if err != nil || !start.Equal(base) {
		t.Errorf("start time: got (%v,%v), want %v", start, err, base)
	}

	r.AddHash(ctx, "h1")
	r.AppendWindow(ctx, "gaza", base, "g1")
	r.PutBreaking(ctx, scoredFixture("b1", base))
	r.SetSimulationTime(ctx, base)
	r.SetLastProcessedTime(ctx, base)
	r.SetLastCleanupTime(ctx, base)

	if err := r.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if n, _ := r.TotalProcessed(ctx); n != 0 {
		t.Errorf("total after reset: got %d", n)
	}
	if n, _ := r.HashCount(ctx); n != 0 {
		t.Errorf("hashes after reset: got %d", n)
	}
	if n, _ := r.BreakingCount(ctx); n != 0 {
		t.Errorf("breaking after reset: got %d", n)
	}
	if topics, _ := r.Topics(ctx); len(topics) != 0 {
		t.Errorf("topics after reset: got %v", topics)
	}
	if _, ok, _ := r.SimulationTime(ctx); ok {
		t.Error("simulation time survived reset")
	}
	// Reset stamps a fresh run start.
	if start, _ := r.StartTime(ctx); !start.Equal(base) {
		t.Errorf("start time after reset: got %v", start)
	}
}
