package model

import "time"

// Article is one raw news item as produced by a feed source.
// Articles are immutable once created.
type Article struct {
	// ID is a stable short hash derived from the feed's unique identifier.
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	PubDate     time.Time `json:"pub_date"`
	Link        string    `json:"link"`

	// Category is derived from the article link where possible; empty when
	// the source carries no category information.
	Category string `json:"category,omitempty"`
}

// ScoredArticle is an Article together with its breaking-news scoring
// breakdown. All component scores and the total are in [0, 1].
type ScoredArticle struct {
	Article Article `json:"article"`

	KeywordScore  float64 `json:"keyword_score"`
	VelocityScore float64 `json:"velocity_score"`
	CategoryScore float64 `json:"category_score"`
	RecencyScore  float64 `json:"recency_score"`
	TotalScore    float64 `json:"total_score"`

	IsBreaking bool `json:"is_breaking"`

	// DetectedKeywords are the urgency keywords found in the title,
	// ordered by their first appearance in the normalized title.
	DetectedKeywords []string `json:"detected_keywords"`

	// Topic is the tracking topic extracted from the title; "general"
	// when no better candidate is found.
	Topic string `json:"topic"`

	// DetectedAt is the real processing instant, distinct from both the
	// article's publish time and the simulated clock.
	DetectedAt time.Time `json:"detected_at"`
}
