package scoring

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// Weight constants for the composite breaking-news score.
// They must sum to 1.0.
const (
	weightKeyword  = 0.40
	weightVelocity = 0.35
	weightCategory = 0.15
	weightRecency  = 0.10
)

// BreakingThreshold is the total score at or above which an article is a
// breaking item.
const BreakingThreshold = 0.50

// Velocity burst detection parameters.
const (
	// VelocityWindow is the trailing window a topic's activity is counted in.
	VelocityWindow = 30 * time.Minute

	// velocityThreshold is the in-window count at which a burst registers.
	velocityThreshold = 3
)

// urgencyKeywords is the fixed keyword table scanned against normalized
// titles. Order is the tie-breaker when two keywords first appear at the
// same title offset.
var urgencyKeywords = []string{
	// high urgency
	"breaking", "just in", "urgent", "alert", "emergency",
	// war/conflict
	"war", "invasion", "attack", "killed", "kills", "explosion", "missile",
	"bombing", "troops", "military", "airstrike", "casualties",
	"ceasefire", "strikes", "bomb", "threats", "shooting",
	// crisis
	"crisis", "catastrophe", "disaster", "evacuate", "flee",
	"collapse", "crash", "dies", "death toll", "dead",
	// political/legal urgency
	"sanctions", "resign", "impeach", "arrest", "protest",
	"coup", "election", "vote", "verdict", "sentenced",
	"convicted", "charged", "warrant", "investigation",
}

// highUrgency is the subset of keywords that adds a bonus on any match.
var highUrgency = map[string]bool{
	"breaking": true,
	"just in":  true,
	"urgent":   true,
	"killed":   true,
	"attack":   true,
	"war":      true,
}

// categoryScores maps a feed category to its priority score.
var categoryScores = map[string]float64{
	"world":         0.9,
	"politics":      0.8,
	"uk":            0.7,
	"business":      0.6,
	"technology":    0.5,
	"health":        0.5,
	"science":       0.4,
	"entertainment": 0.3,
	"sport":         0.3,
}

// defaultCategoryScore is used for absent or unknown categories.
const defaultCategoryScore = 0.4

// KeywordScore scans the normalized title for urgency keywords and returns
// the keyword component score together with the matched keywords, ordered by
// first appearance in the title.
//
// score = min(0.3 × matches, 1.0), plus 0.3 (capped at 1.0) when any match
// belongs to the high-urgency subset.
func KeywordScore(title string) (float64, []string) {
	lower := strings.ToLower(title)

	type match struct {
		keyword string
		pos     int
	}
	var matches []match
	for _, kw := range urgencyKeywords {
		if pos := strings.Index(lower, kw); pos >= 0 {
			matches = append(matches, match{keyword: kw, pos: pos})
		}
	}
	if len(matches) == 0 {
		return 0, nil
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].pos < matches[j].pos })

	detected := make([]string, len(matches))
	bonus := false
	for i, m := range matches {
		detected[i] = m.keyword
		if highUrgency[m.keyword] {
			bonus = true
		}
	}

	score := clamp01(0.3 * float64(len(detected)))
	if bonus {
		score = clamp01(score + 0.3)
	}
	return score, detected
}

// VelocityScore maps an in-window article count to the velocity component.
// Below the burst threshold the component is zero; at and above it the score
// grows by 0.3 per extra article from a 0.7 base.
func VelocityScore(count int) float64 {
	if count < velocityThreshold {
		return 0
	}
	return clamp01(float64(count-velocityThreshold+1)*0.3 + 0.4)
}

// CategoryScore looks the category up in the fixed priority table.
func CategoryScore(category string) float64 {
	if category == "" {
		return defaultCategoryScore
	}
	if s, ok := categoryScores[category]; ok {
		return s
	}
	return defaultCategoryScore
}

// RecencyScore rates the article's age against the simulated clock. Before
// the clock is first set every article counts as fully fresh.
func RecencyScore(pubDate, simTime time.Time, simSet bool) float64 {
	if !simSet {
		return 1.0
	}
	age := simTime.Sub(pubDate).Hours()
	switch {
	case age < 1:
		return 1.0
	case age < 3:
		return 0.8
	case age < 6:
		return 0.5
	default:
		return 0.2
	}
}

// Combine folds the four clamped components into the weighted total.
func Combine(keyword, velocity, category, recency float64) float64 {
	return clamp01(weightKeyword*clamp01(keyword) +
		weightVelocity*clamp01(velocity) +
		weightCategory*clamp01(category) +
		weightRecency*clamp01(recency))
}

// TitleHash is the dedup content hash: MD5 of the trimmed, lowercased title.
// Two titles that normalize identically collide by construction.
func TitleHash(title string) string {
	sum := md5.Sum([]byte(strings.TrimSpace(strings.ToLower(title))))
	return hex.EncodeToString(sum[:])
}

// clamp01 restricts v to the range [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
