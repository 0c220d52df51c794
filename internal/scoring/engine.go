package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flashwire/flashwire/internal/model"
	"github.com/flashwire/flashwire/internal/state"
)

// Engine scores articles against the shared state store. It owns the full
// per-article pipeline: the dedup gate, the four component scores (velocity
// scoring appends to and prunes the article's topic window as an explicit
// two-step mutation), the breaking-news decision, and the counter updates.
//
// Engine itself is stateless; all mutable state lives in the Store, so one
// Engine works against either store implementation.
type Engine struct {
	store      state.Store
	now        func() time.Time // injectable for deterministic tests
	onBreaking func(*model.ScoredArticle)
}

// NewEngine creates an Engine bound to st.
func NewEngine(st state.Store) *Engine {
	return &Engine{store: st, now: time.Now}
}

// SetOnBreaking registers a callback invoked for every breaking detection,
// after the record is stored. Must be set before the first Process call.
func (e *Engine) SetOnBreaking(fn func(*model.ScoredArticle)) {
	e.onBreaking = fn
}

// Process runs one article through dedup, scoring and recording.
//
// fresh is false when the article's normalized title was already seen; in
// that case the article is dropped before any scoring: no window mutation,
// no counter increment, no stored record.
func (e *Engine) Process(ctx context.Context, article model.Article) (scored *model.ScoredArticle, fresh bool, err error) {
	hash := TitleHash(article.Title)
	seen, err := e.store.SeenHash(ctx, hash)
	if err != nil {
		return nil, false, fmt.Errorf("scoring: dedup check %s: %w", article.ID, err)
	}
	if seen {
		return nil, false, nil
	}
	if err := e.store.AddHash(ctx, hash); err != nil {
		return nil, false, fmt.Errorf("scoring: dedup add %s: %w", article.ID, err)
	}

	keywordScore, detected := KeywordScore(article.Title)
	topic := ExtractTopic(article.Title)

	// Velocity: record the article in its topic window, then prune the
	// window to the trailing interval and score the remaining count.
	if err := e.store.AppendWindow(ctx, topic, article.PubDate, article.ID); err != nil {
		return nil, false, fmt.Errorf("scoring: window append %s: %w", article.ID, err)
	}
	count, err := e.store.PruneWindow(ctx, topic, article.PubDate.Add(-VelocityWindow))
	if err != nil {
		return nil, false, fmt.Errorf("scoring: window prune %s: %w", article.ID, err)
	}
	velocityScore := VelocityScore(count)

	categoryScore := CategoryScore(article.Category)

	simTime, simSet, err := e.store.SimulationTime(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("scoring: read clock: %w", err)
	}
	recencyScore := RecencyScore(article.PubDate, simTime, simSet)

	total := Combine(keywordScore, velocityScore, categoryScore, recencyScore)

	scored = &model.ScoredArticle{
		Article:          article,
		KeywordScore:     keywordScore,
		VelocityScore:    velocityScore,
		CategoryScore:    categoryScore,
		RecencyScore:     recencyScore,
		TotalScore:       total,
		IsBreaking:       total >= BreakingThreshold,
		DetectedKeywords: detected,
		Topic:            topic,
		DetectedAt:       e.now().UTC(),
	}

	if scored.IsBreaking {
		if err := e.store.PutBreaking(ctx, scored); err != nil {
			return nil, false, fmt.Errorf("scoring: record breaking %s: %w", article.ID, err)
		}
		slog.Info("breaking news detected",
			"id", article.ID,
			"title", article.Title,
			"topic", topic,
			"score", total,
		)
		if e.onBreaking != nil {
			e.onBreaking(scored)
		}
	}

	if _, err := e.store.IncrTotalProcessed(ctx); err != nil {
		return nil, false, fmt.Errorf("scoring: counter %s: %w", article.ID, err)
	}
	if err := e.store.SetLastProcessedTime(ctx, e.now().UTC()); err != nil {
		return nil, false, fmt.Errorf("scoring: stamp processed %s: %w", article.ID, err)
	}

	return scored, true, nil
}
