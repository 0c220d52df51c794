package feed

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/flashwire/flashwire/internal/model"
)

// Source loads an article sequence ordered by ascending publish time.
type Source interface {
	Load(ctx context.Context) ([]model.Article, error)
}

// bbcCategory extracts the category segment from links like
// https://www.bbc.co.uk/news/world-europe-60638042.
var bbcCategory = regexp.MustCompile(`bbc\.co\.uk/(?:news|sport)/([a-z-]+)`)

// articleID derives the stable short id from the feed's unique identifier:
// the first 12 hex characters of its MD5.
func articleID(guid string) string {
	sum := md5.Sum([]byte(guid))
	return hex.EncodeToString(sum[:])[:12]
}

// categoryFromLink derives a category from the article URL, or "" when the
// URL carries none.
func categoryFromLink(link string) string {
	m := bbcCategory.FindStringSubmatch(strings.ToLower(link))
	if m == nil {
		return ""
	}
	return strings.SplitN(m[1], "-", 2)[0]
}

// sortByPubDate orders articles chronologically, oldest first.
func sortByPubDate(articles []model.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].PubDate.Before(articles[j].PubDate)
	})
}

// dateLayouts are tried in order when parsing feed timestamps.
var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseDate parses ts against the known layouts. Returns ok=false when no
// layout matches; callers skip such rows and continue.
func parseDate(ts string) (time.Time, bool) {
	ts = strings.TrimSpace(ts)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
