package replay_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/flashwire/flashwire/internal/model"
	"github.com/flashwire/flashwire/internal/replay"
	"github.com/flashwire/flashwire/internal/scoring"
	"github.com/flashwire/flashwire/internal/state"
)

// stubSource serves a fixed article slice, or an error.
type stubSource struct {
	articles []model.Article
	err      error
}

func (s *stubSource) Load(_ context.Context) ([]model.Article, error) {
	return s.articles, s.err
}

func makeArticles(n int, start time.Time, gap time.Duration) []model.Article {
	out := make([]model.Article, n)
	for i := range out {
		out[i] = model.Article{
			ID:      fmt.Sprintf("art%03d", i),
			Title:   fmt.Sprintf("Council meeting summary number %d", i),
			PubDate: start.Add(time.Duration(i) * gap),
			Link:    fmt.Sprintf("https://example.org/%d", i),
		}
	}
	return out
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func newReplayer(src *stubSource, accel float64) (*replay.Replayer, *state.Memory) {
	st := state.NewMemory(state.Options{})
	eng := scoring.NewEngine(st)
	return replay.New(src, st, eng, accel), st
}

func TestReplayer_RunToCompletion(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	src := &stubSource{articles: makeArticles(12, base, time.Second)}
	// Acceleration high enough that every pacing delay falls below the
	// skip floor.
	r, st := newReplayer(src, 1e6)

	r.Start(ctx)
	waitFor(t, 2*time.Second, func() bool { return !r.Running() })

	if n, _ := st.TotalProcessed(ctx); n != 12 {
		t.Errorf("TotalProcessed: got %d, want 12", n)
	}
	sim, ok, _ := st.SimulationTime(ctx)
	if !ok || !sim.Equal(base.Add(11*time.Second)) {
		t.Errorf("simulation clock: got (%v,%v), want last publish time", sim, ok)
	}
	if _, ok, _ := st.LastProcessedTime(ctx); !ok {
		t.Error("last processed time never stamped")
	}
}

func TestReplayer_StopDuringPacing(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	// Five articles in a tight burst, then a gap wide enough that even
	// accelerated pacing hits the 500ms ceiling.
	articles := makeArticles(5, base, time.Millisecond)
	articles = append(articles, model.Article{
		ID:      "late",
		Title:   "Arrives after a very long quiet stretch",
		PubDate: base.Add(30 * 24 * time.Hour),
		Link:    "https://example.org/late",
	})
	src := &stubSource{articles: articles}
	r, st := newReplayer(src, 1e6)

	r.Start(ctx)
	waitFor(t, 2*time.Second, func() bool {
		n, _ := st.TotalProcessed(ctx)
		return n == 5
	})
	r.Stop()

	if r.Running() {
		t.Error("Running after Stop")
	}
	// The sixth article never entered the pipeline.
	if n, _ := st.TotalProcessed(ctx); n != 5 {
		t.Errorf("TotalProcessed after stop: got %d, want 5", n)
	}
	if ok, _ := st.SeenHash(ctx, scoring.TitleHash("Arrives after a very long quiet stretch")); ok {
		t.Error("stopped run left a partial record for the unprocessed article")
	}
}

func TestReplayer_StartIdempotent(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	articles := makeArticles(2, base, time.Millisecond)
	articles = append(articles, model.Article{
		ID:      "tail",
		Title:   "Held back by pacing for the duration of the test",
		PubDate: base.Add(24 * time.Hour),
		Link:    "https://example.org/tail",
	})
	src := &stubSource{articles: articles}
	r, st := newReplayer(src, 1)

	r.Start(ctx)
	waitFor(t, 2*time.Second, func() bool { return r.Running() })
	r.Start(ctx) // no-op while active
	r.Start(ctx)
	defer r.Stop()

	waitFor(t, 2*time.Second, func() bool {
		n, _ := st.HashCount(ctx)
		return n >= 1
	})
	// A second concurrent run would double-count; titles stay unique.
	if n, _ := st.TotalProcessed(ctx); n > 3 {
		t.Errorf("TotalProcessed: got %d, multiple runs active", n)
	}
}

func TestReplayer_FeedLoadFailure(t *testing.T) {
	ctx := context.Background()
	src := &stubSource{err: errors.New("boom")}
	r, st := newReplayer(src, 1)

	r.Start(ctx)
	waitFor(t, 2*time.Second, func() bool { return !r.Running() })

	if n, _ := st.TotalProcessed(ctx); n != 0 {
		t.Errorf("TotalProcessed after failed load: got %d, want 0", n)
	}
}

func TestReplayer_StopWithoutStart(t *testing.T) {
	r, _ := newReplayer(&stubSource{}, 1)
	r.Stop() // must not block or panic
	if r.Running() {
		t.Error("Running without Start")
	}
}
