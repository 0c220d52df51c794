package state

import (
	"context"
	"time"

	"github.com/flashwire/flashwire/internal/model"
)

// Default retention settings.
const (
	DefaultBreakingTTL    = 24 * time.Hour
	DefaultVelocityWindow = 30 * time.Minute
)

// WindowEntry is one element of a topic's velocity window.
type WindowEntry struct {
	Timestamp time.Time
	ArticleID string
}

// Options configures a store implementation.
type Options struct {
	// BreakingTTL is how long a breaking-news entry survives after its
	// DetectedAt before cleanup evicts it. Default: 24h.
	BreakingTTL time.Duration

	// VelocityWindow is the trailing window used by velocity scoring.
	// Topic-window cleanup applies a cutoff of twice this duration.
	// Default: 30m.
	VelocityWindow time.Duration

	// Now is the wall clock, injectable for deterministic tests.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.BreakingTTL <= 0 {
		o.BreakingTTL = DefaultBreakingTTL
	}
	if o.VelocityWindow <= 0 {
		o.VelocityWindow = DefaultVelocityWindow
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Store is the state contract shared by the replayer, the scoring engine and
// the HTTP surface. Two implementations exist: Memory (in-process, no
// persistence) and Redis (shared backend). Replay and scoring code must never
// branch on which implementation it holds.
//
// Every method is an independently atomic operation against the backing
// store; no method requires a cross-key transaction. Once a window mutation
// returns, any subsequent reader observes its effect.
type Store interface {
	// Dedup filter: content hashes of normalized titles already processed.
	SeenHash(ctx context.Context, hash string) (bool, error)
	AddHash(ctx context.Context, hash string) error
	HashCount(ctx context.Context) (int, error)

	// Topic velocity windows, ordered by ascending timestamp.
	// PruneWindow drops entries strictly older than cutoff and returns the
	// number of entries remaining.
	AppendWindow(ctx context.Context, topic string, ts time.Time, articleID string) error
	PruneWindow(ctx context.Context, topic string, cutoff time.Time) (int, error)
	Window(ctx context.Context, topic string) ([]WindowEntry, error)

	// Topics returns every tracked topic with its current window length,
	// including topics whose window has drained to zero.
	Topics(ctx context.Context) (map[string]int, error)

	// Breaking news, keyed by article id. PutBreaking overwrites.
	PutBreaking(ctx context.Context, scored *model.ScoredArticle) error
	GetBreaking(ctx context.Context, id string) (*model.ScoredArticle, bool, error)
	ListBreaking(ctx context.Context) ([]*model.ScoredArticle, error)
	BreakingCount(ctx context.Context) (int, error)

	// Counters and clock fields.
	IncrTotalProcessed(ctx context.Context) (int, error)
	TotalProcessed(ctx context.Context) (int, error)
	StartTime(ctx context.Context) (time.Time, error)

	// SimulationTime reports the simulated clock; ok is false until the
	// first SetSimulationTime. The clock never moves backward: setters
	// carrying an earlier instant are ignored.
	SimulationTime(ctx context.Context) (t time.Time, ok bool, err error)
	SetSimulationTime(ctx context.Context, t time.Time) error

	LastProcessedTime(ctx context.Context) (time.Time, bool, error)
	SetLastProcessedTime(ctx context.Context, t time.Time) error
	LastCleanupTime(ctx context.Context) (time.Time, bool, error)
	SetLastCleanupTime(ctx context.Context, t time.Time) error

	// CleanupExpiredBreaking removes breaking entries whose DetectedAt is
	// before clock − BreakingTTL, where clock is the simulated time if set
	// and the wall clock otherwise. Returns the number removed.
	CleanupExpiredBreaking(ctx context.Context) (int, error)

	// CleanupTopicWindows prunes every topic window to a cutoff of
	// clock − 2×VelocityWindow. Topic keys are kept even when their window
	// empties. Returns the number of topics whose window changed.
	CleanupTopicWindows(ctx context.Context) (int, error)

	// Reset clears all state and restamps the start time. Exposed for
	// explicit operator use and test isolation only.
	Reset(ctx context.Context) error
}
