package api

// HealthResponse is the payload for GET /api/health.
type HealthResponse struct {
	Status         string `json:"status"`
	ReplayerActive bool   `json:"replayer_active"`
	Timestamp      string `json:"timestamp"` // RFC3339
}

// BreakingItem is one entry in GET /api/breaking.
type BreakingItem struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Link             string   `json:"link"`
	Category         string   `json:"category,omitempty"`
	Score            float64  `json:"score"`
	DetectedKeywords []string `json:"detected_keywords"`
	Topic            string   `json:"topic"`
	PubDate          string   `json:"pub_date"`     // RFC3339
	DetectedAt       string   `json:"detected_at"`  // RFC3339
	TimeAgo          string   `json:"time_ago"`
}

// BreakingResponse is the payload for GET /api/breaking and the WebSocket
// broadcast body.
type BreakingResponse struct {
	Count        int            `json:"count"`
	BreakingNews []BreakingItem `json:"breaking_news"`
}

// StatsResponse is the payload for GET /api/stats.
type StatsResponse struct {
	TotalProcessed    int     `json:"total_processed"`
	BreakingNewsCount int     `json:"breaking_news_count"`
	ActiveTopics      int     `json:"active_topics"`
	ProcessingRate    float64 `json:"processing_rate"` // articles per second
	SimulationTime    string  `json:"simulation_time,omitempty"` // RFC3339
	RealStartTime     string  `json:"real_start_time"`           // RFC3339
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// TopicEntry is one active topic in GET /api/topics.
type TopicEntry struct {
	Topic        string `json:"topic"`
	ArticleCount int    `json:"article_count"`
}

// TopicsResponse is the payload for GET /api/topics.
type TopicsResponse struct {
	Count  int          `json:"count"`
	Topics []TopicEntry `json:"topics"`
}

// CleanupResponse is the payload for POST /api/admin/cleanup.
type CleanupResponse struct {
	ExpiredBreaking int `json:"expired_breaking"`
	PrunedTopics    int `json:"pruned_topics"`
}

// statusResponse is a generic acknowledgement body.
type statusResponse struct {
	Status string `json:"status"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
