package scoring

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/flashwire/flashwire/internal/model"
	"github.com/flashwire/flashwire/internal/state"
)

// fixedClock returns a func() time.Time that always returns t.
func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func newTestEngine(now time.Time) (*Engine, *state.Memory) {
	st := state.NewMemory(state.Options{Now: fixedClock(now)})
	e := NewEngine(st)
	e.now = fixedClock(now)
	return e, st
}

func article(id, title string, pub time.Time) model.Article {
	return model.Article{
		ID:      id,
		Title:   title,
		PubDate: pub,
		Link:    "https://example.org/" + id,
	}
}

func TestProcess_DuplicateTitleDropped(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	e, st := newTestEngine(base)

	first := article("a1", "Markets Rally Today", base)
	second := article("a2", "  markets rally today ", base.Add(time.Minute))

	if _, fresh, err := e.Process(ctx, first); err != nil || !fresh {
		t.Fatalf("first article: fresh=%v err=%v, want fresh=true err=nil", fresh, err)
	}
	scored, fresh, err := e.Process(ctx, second)
	if err != nil {
		t.Fatalf("second article: %v", err)
	}
	if fresh || scored != nil {
		t.Errorf("duplicate title: fresh=%v scored=%v, want dropped before scoring", fresh, scored)
	}

	// The duplicate left no trace: one hash, one window entry, one counted.
	if n, _ := st.HashCount(ctx); n != 1 {
		t.Errorf("HashCount: got %d, want 1", n)
	}
	if w, _ := st.Window(ctx, "markets"); len(w) != 1 {
		t.Errorf("window length: got %d, want 1", len(w))
	}
	if total, _ := st.TotalProcessed(ctx); total != 1 {
		t.Errorf("TotalProcessed: got %d, want 1", total)
	}
}

func TestProcess_VelocityBurst(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	e, st := newTestEngine(base)

	// Five same-topic articles within ten minutes: the third and later ones
	// register a burst.
	wantVelocity := []float64{0, 0, 0.7, 1.0, 1.0}
	for i := 0; i < 5; i++ {
		a := article(
			fmt.Sprintf("u%d", i),
			fmt.Sprintf("Ukraine dispatch %d", i),
			base.Add(time.Duration(i)*2*time.Minute),
		)
		scored, fresh, err := e.Process(ctx, a)
		if err != nil || !fresh {
			t.Fatalf("article %d: fresh=%v err=%v", i, fresh, err)
		}
		if scored.Topic != "ukraine" {
			t.Fatalf("article %d topic: got %q, want ukraine", i, scored.Topic)
		}
		if !almostEqual(scored.VelocityScore, wantVelocity[i], 1e-9) {
			t.Errorf("article %d velocity: got %v, want %v", i, scored.VelocityScore, wantVelocity[i])
		}
	}

	if w, _ := st.Window(ctx, "ukraine"); len(w) != 5 {
		t.Errorf("window length after burst: got %d, want 5", len(w))
	}
}

func TestProcess_EarthquakeHeadline(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	e, st := newTestEngine(base)

	// First article of a run, no category, no simulated clock yet.
	a := article("q1", "Breaking: Earthquake kills dozens in region", base)
	scored, fresh, err := e.Process(ctx, a)
	if err != nil || !fresh {
		t.Fatalf("Process: fresh=%v err=%v", fresh, err)
	}

	// Two keyword matches plus the high-urgency bonus.
	if !almostEqual(scored.KeywordScore, 0.9, 1e-9) {
		t.Errorf("keyword score: got %v, want 0.9", scored.KeywordScore)
	}
	if len(scored.DetectedKeywords) < 2 {
		t.Errorf("detected keywords: got %v, want at least 2", scored.DetectedKeywords)
	}
	if !almostEqual(scored.CategoryScore, 0.4, 1e-9) {
		t.Errorf("category score: got %v, want default 0.4", scored.CategoryScore)
	}
	if scored.RecencyScore != 1.0 {
		t.Errorf("recency score before clock set: got %v, want 1.0", scored.RecencyScore)
	}
	if scored.VelocityScore != 0 {
		t.Errorf("velocity score for first article: got %v, want 0", scored.VelocityScore)
	}

	// total = 0.4*0.9 + 0.35*0 + 0.15*0.4 + 0.1*1.0 = 0.52
	if !almostEqual(scored.TotalScore, 0.52, 1e-9) {
		t.Errorf("total score: got %v, want 0.52", scored.TotalScore)
	}
	if !scored.IsBreaking {
		t.Error("IsBreaking: got false, want true")
	}
	if _, ok, _ := st.GetBreaking(ctx, "q1"); !ok {
		t.Error("breaking store: article not recorded")
	}
	if scored.Topic != "earthquake" {
		t.Errorf("topic: got %q, want earthquake", scored.Topic)
	}
}

func TestProcess_ScoresAlwaysInRange(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	e, st := newTestEngine(base)
	st.SetSimulationTime(ctx, base.Add(8*time.Hour))

	titles := []string{
		"Urgent: war attack explosion missile crisis disaster",
		"Quiet afternoon at the village fair",
		"Election vote verdict arrest protest coup sanctions",
		"Breaking breaking breaking",
	}
	for i, title := range titles {
		scored, fresh, err := e.Process(ctx, article(fmt.Sprintf("r%d", i), title, base))
		if err != nil || !fresh {
			t.Fatalf("article %d: fresh=%v err=%v", i, fresh, err)
		}
		for name, v := range map[string]float64{
			"keyword":  scored.KeywordScore,
			"velocity": scored.VelocityScore,
			"category": scored.CategoryScore,
			"recency":  scored.RecencyScore,
			"total":    scored.TotalScore,
		} {
			if v < 0 || v > 1 {
				t.Errorf("article %d %s score %v outside [0,1]", i, name, v)
			}
		}
		if scored.IsBreaking != (scored.TotalScore >= BreakingThreshold) {
			t.Errorf("article %d: IsBreaking=%v inconsistent with total %v",
				i, scored.IsBreaking, scored.TotalScore)
		}
	}
}
