package state

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/flashwire/flashwire/internal/model"
)

// Memory is the in-process Store implementation: native containers behind a
// single RWMutex, no persistence, no external dependency. The mutex exists
// for the HTTP readers and the cleanup janitor; within a replay run all
// mutations are strictly sequential.
type Memory struct {
	opts Options

	mu            sync.RWMutex
	breaking      map[string]*model.ScoredArticle
	windows       map[string][]WindowEntry
	seen          map[string]struct{}
	total         int
	startTime     time.Time
	simTime       time.Time
	simSet        bool
	lastProcessed time.Time
	lastProcSet   bool
	lastCleanup   time.Time
	lastCleanSet  bool
}

// NewMemory creates an in-process store.
func NewMemory(opts Options) *Memory {
	m := &Memory{opts: opts.withDefaults()}
	m.resetLocked()
	return m
}

// resetLocked reinitializes all aggregates. Callers must hold mu (or have
// exclusive access during construction).
func (m *Memory) resetLocked() {
	m.breaking = make(map[string]*model.ScoredArticle)
	m.windows = make(map[string][]WindowEntry)
	m.seen = make(map[string]struct{})
	m.total = 0
	m.startTime = m.opts.Now().UTC()
	m.simSet = false
	m.lastProcSet = false
	m.lastCleanSet = false
}

func (m *Memory) SeenHash(_ context.Context, hash string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.seen[hash]
	return ok, nil
}

func (m *Memory) AddHash(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[hash] = struct{}{}
	return nil
}

func (m *Memory) HashCount(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.seen), nil
}

func (m *Memory) AppendWindow(_ context.Context, topic string, ts time.Time, articleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := append(m.windows[topic], WindowEntry{Timestamp: ts, ArticleID: articleID})
	// Feeds replay in publish order, but a shared contract cannot assume it:
	// keep the window sorted by ascending timestamp.
	if n := len(w); n > 1 && w[n-1].Timestamp.Before(w[n-2].Timestamp) {
		sort.SliceStable(w, func(i, j int) bool { return w[i].Timestamp.Before(w[j].Timestamp) })
	}
	m.windows[topic] = w
	return nil
}

func (m *Memory) PruneWindow(_ context.Context, topic string, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pruneLocked(topic, cutoff), nil
}

// pruneLocked removes window entries strictly before cutoff and returns the
// remaining length. Callers must hold mu for writing.
func (m *Memory) pruneLocked(topic string, cutoff time.Time) int {
	w := m.windows[topic]
	kept := w[:0]
	for _, e := range w {
		if !e.Timestamp.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	m.windows[topic] = kept
	return len(kept)
}

func (m *Memory) Window(_ context.Context, topic string) ([]WindowEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w := m.windows[topic]
	out := make([]WindowEntry, len(w))
	copy(out, w)
	return out, nil
}

func (m *Memory) Topics(_ context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int, len(m.windows))
	for topic, w := range m.windows {
		out[topic] = len(w)
	}
	return out, nil
}

func (m *Memory) PutBreaking(_ context.Context, scored *model.ScoredArticle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breaking[scored.Article.ID] = scored
	return nil
}

func (m *Memory) GetBreaking(_ context.Context, id string) (*model.ScoredArticle, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.breaking[id]
	return s, ok, nil
}

func (m *Memory) ListBreaking(_ context.Context) ([]*model.ScoredArticle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.ScoredArticle, 0, len(m.breaking))
	for _, s := range m.breaking {
		out = append(out, s)
	}
	return out, nil
}

func (m *Memory) BreakingCount(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.breaking), nil
}

func (m *Memory) IncrTotalProcessed(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total++
	return m.total, nil
}

func (m *Memory) TotalProcessed(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.total, nil
}

func (m *Memory) StartTime(_ context.Context) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.startTime, nil
}

func (m *Memory) SimulationTime(_ context.Context) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.simTime, m.simSet, nil
}

func (m *Memory) SetSimulationTime(_ context.Context, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.simSet && t.Before(m.simTime) {
		return nil // the simulated clock never moves backward
	}
	m.simTime = t
	m.simSet = true
	return nil
}

func (m *Memory) LastProcessedTime(_ context.Context) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastProcessed, m.lastProcSet, nil
}

func (m *Memory) SetLastProcessedTime(_ context.Context, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastProcessed = t
	m.lastProcSet = true
	return nil
}

func (m *Memory) LastCleanupTime(_ context.Context) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastCleanup, m.lastCleanSet, nil
}

func (m *Memory) SetLastCleanupTime(_ context.Context, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCleanup = t
	m.lastCleanSet = true
	return nil
}

func (m *Memory) CleanupExpiredBreaking(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.clockLocked().Add(-m.opts.BreakingTTL)
	removed := 0
	for id, s := range m.breaking {
		if s.DetectedAt.Before(cutoff) {
			delete(m.breaking, id)
			removed++
		}
	}
	return removed, nil
}

func (m *Memory) CleanupTopicWindows(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.clockLocked().Add(-2 * m.opts.VelocityWindow)
	changed := 0
	for topic, w := range m.windows {
		// Topic keys survive even when their window drains to empty.
		if m.pruneLocked(topic, cutoff) < len(w) {
			changed++
		}
	}
	return changed, nil
}

func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	return nil
}

// clockLocked returns the simulated time if set, else the wall clock.
// Callers must hold mu.
func (m *Memory) clockLocked() time.Time {
	if m.simSet {
		return m.simTime
	}
	return m.opts.Now().UTC()
}
