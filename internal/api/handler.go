package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/flashwire/flashwire/internal/config"
	"github.com/flashwire/flashwire/internal/state"
)

// Controller is the replay-control surface the handler needs; satisfied by
// *replay.Replayer.
type Controller interface {
	Start(ctx context.Context)
	Stop()
	Running() bool
}

// Handler is the HTTP handler for all /api/* endpoints. Reads are plain
// projections of store contents; the POST routes carry the documented side
// effects and nothing beyond them.
type Handler struct {
	store    state.Store
	replayer Controller
	auth     config.AuthConfig
	mux      *http.ServeMux
	now      func() time.Time // injectable for deterministic tests
}

// New creates a Handler wired to the given store and replayer and registers
// all routes.
func New(st state.Store, replayer Controller, auth config.AuthConfig) *Handler {
	h := &Handler{
		store:    st,
		replayer: replayer,
		auth:     auth,
		mux:      http.NewServeMux(),
		now:      time.Now,
	}

	h.mux.HandleFunc("/api/health", h.health)
	h.mux.HandleFunc("/api/breaking", h.breaking)
	h.mux.HandleFunc("/api/stats", h.stats)
	h.mux.HandleFunc("/api/topics", h.topics)
	h.mux.HandleFunc("/api/replay/start", h.withAuth(h.replayStart))
	h.mux.HandleFunc("/api/replay/stop", h.withAuth(h.replayStop))
	h.mux.HandleFunc("/api/admin/cleanup", h.withAuth(h.cleanup))
	h.mux.HandleFunc("/api/admin/reset", h.withAuth(h.reset))

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// SetClock replaces the wall clock used for timestamps and uptime. Tests use
// it for determinism.
func (h *Handler) SetClock(now func() time.Time) { h.now = now }

// --- route handlers ---------------------------------------------------------

// health returns GET /api/health: liveness plus the replayer state.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, HealthResponse{
		Status:         "healthy",
		ReplayerActive: h.replayer.Running(),
		Timestamp:      h.now().UTC().Format(time.RFC3339),
	})
}

// breaking returns GET /api/breaking: current breaking items, best first,
// optionally filtered by ?topic=.
func (h *Handler) breaking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	resp, err := BuildBreaking(r.Context(), h.store, r.URL.Query().Get("topic"))
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, resp)
}

// stats returns GET /api/stats: counters, rates and clocks.
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ctx := r.Context()

	total, err := h.store.TotalProcessed(ctx)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	breakingCount, err := h.store.BreakingCount(ctx)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	topics, err := h.store.Topics(ctx)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	start, err := h.store.StartTime(ctx)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}

	elapsed := h.now().UTC().Sub(start).Seconds()
	var rate float64
	if total > 0 && elapsed > 0 {
		rate = float64(total) / elapsed
	}

	resp := StatsResponse{
		TotalProcessed:    total,
		BreakingNewsCount: breakingCount,
		ActiveTopics:      len(topics),
		ProcessingRate:    rate,
		RealStartTime:     start.UTC().Format(time.RFC3339),
		UptimeSeconds:     elapsed,
	}
	if sim, ok, err := h.store.SimulationTime(ctx); err == nil && ok {
		resp.SimulationTime = sim.UTC().Format(time.RFC3339)
	}
	jsonResp(w, http.StatusOK, resp)
}

// topics returns GET /api/topics: active topics with non-empty windows, busiest first.
func (h *Handler) topics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	counts, err := h.store.Topics(r.Context())
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]TopicEntry, 0, len(counts))
	for topic, n := range counts {
		if n > 0 {
			out = append(out, TopicEntry{Topic: topic, ArticleCount: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ArticleCount != out[j].ArticleCount {
			return out[i].ArticleCount > out[j].ArticleCount
		}
		return out[i].Topic < out[j].Topic
	})

	jsonResp(w, http.StatusOK, TopicsResponse{Count: len(out), Topics: out})
}

// replayStart handles POST /api/replay/start. Starting an active replay is a
// no-op, reported as such.
func (h *Handler) replayStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.replayer.Running() {
		jsonResp(w, http.StatusOK, statusResponse{Status: "already running"})
		return
	}
	h.replayer.Start(context.WithoutCancel(r.Context()))
	jsonResp(w, http.StatusAccepted, statusResponse{Status: "started"})
}

// replayStop handles POST /api/replay/stop.
func (h *Handler) replayStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.replayer.Stop()
	jsonResp(w, http.StatusOK, statusResponse{Status: "stopped"})
}

// cleanup handles POST /api/admin/cleanup: runs both cleanup operations and
// stamps the cleanup time.
func (h *Handler) cleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ctx := r.Context()

	expired, err := h.store.CleanupExpiredBreaking(ctx)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	pruned, err := h.store.CleanupTopicWindows(ctx)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.store.SetLastCleanupTime(ctx, h.now().UTC()); err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, CleanupResponse{
		ExpiredBreaking: expired,
		PrunedTopics:    pruned,
	})
}

// reset handles POST /api/admin/reset: clears all store state.
func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := h.store.Reset(r.Context()); err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, statusResponse{Status: "reset"})
}

// --- auth -------------------------------------------------------------------

// withAuth wraps a mutating handler with API key enforcement.
//
// Behaviour mirrors the usual apikey mode: when Mode != "apikey" or no key is
// configured, all calls pass through; otherwise the request header must carry
// the exact key.
func (h *Handler) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := h.auth.Key()
		if h.auth.Mode != "apikey" || key == "" {
			next(w, r)
			return
		}
		if r.Header.Get(h.auth.EffectiveHeader()) != key {
			jsonErr(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next(w, r)
	}
}

// --- projections ------------------------------------------------------------

// BuildBreaking assembles the breaking-news projection, sorted by score
// descending. topic filters to a single topic when non-empty. Shared with
// the WebSocket hub so both surfaces emit the identical shape.
func BuildBreaking(ctx context.Context, st state.Store, topic string) (BreakingResponse, error) {
	scored, err := st.ListBreaking(ctx)
	if err != nil {
		return BreakingResponse{}, err
	}

	clock := time.Now().UTC()
	if sim, ok, err := st.SimulationTime(ctx); err == nil && ok {
		clock = sim
	}

	items := make([]BreakingItem, 0, len(scored))
	for _, s := range scored {
		if topic != "" && s.Topic != topic {
			continue
		}
		keywords := s.DetectedKeywords
		if keywords == nil {
			keywords = []string{}
		}
		items = append(items, BreakingItem{
			ID:               s.Article.ID,
			Title:            s.Article.Title,
			Description:      s.Article.Description,
			Link:             s.Article.Link,
			Category:         s.Article.Category,
			Score:            s.TotalScore,
			DetectedKeywords: keywords,
			Topic:            s.Topic,
			PubDate:          s.Article.PubDate.UTC().Format(time.RFC3339),
			DetectedAt:       s.DetectedAt.UTC().Format(time.RFC3339),
			TimeAgo:          formatTimeAgo(clock, s.DetectedAt),
		})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ID < items[j].ID
	})

	return BreakingResponse{Count: len(items), BreakingNews: items}, nil
}

// formatTimeAgo renders the age of t against the given clock as a compact
// human string ("42s ago", "3m ago", "2h ago", "1d ago").
func formatTimeAgo(clock, t time.Time) string {
	d := clock.Sub(t)
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
