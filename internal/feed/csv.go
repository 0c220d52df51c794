package feed

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/flashwire/flashwire/internal/model"
)

// replaySpan is the slice of history kept for replay: the trailing week of
// the dataset, measured back from its newest article.
const replaySpan = 7 * 24 * time.Hour

// CSV loads articles from a news dataset export with at least the columns
// guid, title, description, pubDate and link (any order, extra columns
// ignored). Rows with unparseable dates are skipped; the remainder is sorted
// chronologically and trimmed to the most recent week.
type CSV struct {
	Path string
}

// NewCSV creates a CSV source reading from path.
func NewCSV(path string) *CSV { return &CSV{Path: path} }

func (c *CSV) Load(ctx context.Context) ([]model.Article, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, fmt.Errorf("feed: open %q: %w", c.Path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // tolerate ragged rows; they are skipped below

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("feed: read header of %q: %w", c.Path, err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, required := range []string{"guid", "title", "pubdate", "link"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("feed: %q is missing column %q", c.Path, required)
		}
	}

	var articles []model.Article
	skipped := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("feed: read %q: %w", c.Path, err)
		}

		field := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(row) {
				return ""
			}
			return row[i]
		}

		pubDate, ok := parseDate(field("pubdate"))
		if !ok {
			skipped++
			continue
		}

		link := field("link")
		articles = append(articles, model.Article{
			ID:          articleID(field("guid")),
			Title:       field("title"),
			Description: field("description"),
			PubDate:     pubDate,
			Link:        link,
			Category:    categoryFromLink(link),
		})
	}

	if skipped > 0 {
		slog.Warn("feed: skipped rows with unparseable dates",
			"path", c.Path, "skipped", skipped)
	}

	sortByPubDate(articles)
	articles = trimToRecentWeek(articles)

	slog.Info("feed: csv loaded", "path", c.Path, "articles", len(articles))
	return articles, nil
}

// trimToRecentWeek keeps the trailing replaySpan of a chronologically sorted
// article list.
func trimToRecentWeek(articles []model.Article) []model.Article {
	if len(articles) == 0 {
		return articles
	}
	cutoff := articles[len(articles)-1].PubDate.Add(-replaySpan)
	for i, a := range articles {
		if !a.PubDate.Before(cutoff) {
			return articles[i:]
		}
	}
	return articles
}
