package replay

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/flashwire/flashwire/internal/feed"
	"github.com/flashwire/flashwire/internal/scoring"
	"github.com/flashwire/flashwire/internal/state"
)

const (
	// maxDelay caps the pacing sleep between consecutive articles so large
	// publish gaps do not stall the replay.
	maxDelay = 500 * time.Millisecond

	// minDelay is the floor below which pacing sleeps are skipped entirely.
	minDelay = time.Millisecond

	// progressBatch controls how often the run logs a progress line.
	progressBatch = 10
)

// Replayer drives a feed through the scoring pipeline at an accelerated
// pace. Between consecutive articles it sleeps for
// min(real_inter_arrival / acceleration, maxDelay), advances the simulated
// clock to the article's publish time, and processes the article.
//
// At most one run is active at a time: Start while running is a no-op, and
// Stop cancels the pacing delay, waits for the run to exit and treats
// cancellation as a normal outcome.
type Replayer struct {
	source feed.Source
	store  state.Store
	engine *scoring.Engine

	mu      sync.Mutex
	accel   float64
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a Replayer. acceleration is the replay speed-up factor; values
// below 1 are raised to 1.
func New(source feed.Source, st state.Store, engine *scoring.Engine, acceleration float64) *Replayer {
	if acceleration < 1 {
		acceleration = 1
	}
	return &Replayer{
		source: source,
		store:  st,
		engine: engine,
		accel:  acceleration,
	}
}

// Start launches a replay run. It returns immediately; the run proceeds in
// the background until the feed is exhausted, Stop is called, or ctx is
// cancelled. Calling Start while a run is active does nothing.
func (r *Replayer) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		slog.Debug("replay: start ignored, run already active")
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.running = true
	r.cancel = cancel
	r.done = done

	go func() {
		defer func() {
			r.mu.Lock()
			r.running = false
			r.mu.Unlock()
			cancel()
			close(done)
		}()
		r.run(runCtx)
	}()
}

// Stop cancels the active run, if any, and waits for it to exit. Cancelling
// mid-pacing is the normal path; Stop never reports it as a failure.
func (r *Replayer) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	<-done
}

// Running reports whether a replay run is currently active.
func (r *Replayer) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// SetAcceleration updates the speed-up factor for the pacing delays of the
// current and future runs. Values below 1 are raised to 1.
func (r *Replayer) SetAcceleration(acceleration float64) {
	if acceleration < 1 {
		acceleration = 1
	}
	r.mu.Lock()
	r.accel = acceleration
	r.mu.Unlock()
}

func (r *Replayer) acceleration() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accel
}

// run is the body of one replay. A feed that cannot be loaded ends the run
// with an error log; it never takes the process down.
func (r *Replayer) run(ctx context.Context) {
	articles, err := r.source.Load(ctx)
	if err != nil {
		slog.Error("replay: feed load failed, run abandoned", "err", err)
		return
	}
	if len(articles) == 0 {
		slog.Warn("replay: feed is empty, nothing to do")
		return
	}

	slog.Info("replay: run starting",
		"articles", len(articles),
		"from", articles[0].PubDate,
		"to", articles[len(articles)-1].PubDate,
		"acceleration", r.acceleration(),
	)

	processed := 0
	var prevPub time.Time
	for _, article := range articles {
		if ctx.Err() != nil {
			slog.Info("replay: run cancelled", "processed", processed)
			return
		}

		// Pace the replay against the feed's real inter-arrival gaps.
		if !prevPub.IsZero() {
			if !r.pause(ctx, article.PubDate.Sub(prevPub)) {
				slog.Info("replay: run cancelled", "processed", processed)
				return
			}
		}
		prevPub = article.PubDate

		// From here to the end of Process the article is one atomic unit:
		// detach from cancellation so a Stop mid-article cannot leave a
		// half-scored record behind.
		procCtx := context.WithoutCancel(ctx)

		if err := r.store.SetSimulationTime(procCtx, article.PubDate); err != nil {
			slog.Error("replay: advance clock failed", "id", article.ID, "err", err)
			continue
		}

		scored, fresh, err := r.engine.Process(procCtx, article)
		if err != nil {
			slog.Error("replay: scoring failed", "id", article.ID, "err", err)
			continue
		}
		if !fresh {
			slog.Debug("replay: duplicate title skipped", "id", article.ID)
			continue
		}

		processed++
		if processed%progressBatch == 0 {
			slog.Debug("replay: progress",
				"processed", processed,
				"latest", article.Title,
				"breaking", scored.IsBreaking,
			)
		}
	}

	slog.Info("replay: run complete", "processed", processed)
}

// pause sleeps for the accelerated inter-arrival delay. Returns false when
// ctx was cancelled during the sleep.
func (r *Replayer) pause(ctx context.Context, gap time.Duration) bool {
	if gap <= 0 {
		return true
	}
	delay := time.Duration(math.Min(
		float64(gap)/r.acceleration(),
		float64(maxDelay),
	))
	if delay < minDelay {
		return true
	}

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
