package state

import (
	"context"
	"log/slog"
	"time"
)

// RunJanitor runs the periodic cleanup loop: every interval it evicts expired
// breaking-news entries, prunes stale topic windows and stamps the cleanup
// time. Cleanup never happens on insertion: stale entries persist until the
// janitor (or an explicit admin call) runs.
//
// now stamps the cleanup time; nil means the wall clock. Blocks until ctx is
// cancelled.
func RunJanitor(ctx context.Context, st Store, interval time.Duration, now func() time.Time) {
	if interval <= 0 {
		interval = time.Minute
	}
	if now == nil {
		now = time.Now
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			expired, err := st.CleanupExpiredBreaking(ctx)
			if err != nil {
				slog.Error("janitor: breaking-news cleanup failed", "err", err)
				continue
			}
			pruned, err := st.CleanupTopicWindows(ctx)
			if err != nil {
				slog.Error("janitor: topic-window cleanup failed", "err", err)
				continue
			}
			if err := st.SetLastCleanupTime(ctx, now().UTC()); err != nil {
				slog.Error("janitor: stamp cleanup time failed", "err", err)
			}
			if expired > 0 || pruned > 0 {
				slog.Debug("janitor: cleanup pass",
					"expired_breaking", expired,
					"pruned_topics", pruned,
				)
			}
		}
	}
}
