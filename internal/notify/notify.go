package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/flashwire/flashwire/internal/config"
	"github.com/flashwire/flashwire/internal/model"
)

// Notifier delivers webhook notifications for breaking-news detections to
// all configured targets. Each article is announced at most once per process
// lifetime, whatever replay runs it appears in.
//
// Notifier is safe for concurrent use.
type Notifier struct {
	webhooks []config.WebhookConfig
	client   *http.Client

	mu   sync.Mutex
	sent map[string]struct{} // article ids already announced
}

// New creates a Notifier from the notify configuration. A Notifier with no
// webhooks is valid; Notify becomes a no-op.
func New(cfg config.NotifyConfig) *Notifier {
	return &Notifier{
		webhooks: cfg.Webhooks,
		client:   &http.Client{Timeout: 10 * time.Second},
		sent:     make(map[string]struct{}),
	}
}

// Notify announces one breaking detection. Delivery runs asynchronously;
// failures are logged and never surface to the scoring pipeline.
func (n *Notifier) Notify(scored *model.ScoredArticle) {
	if len(n.webhooks) == 0 {
		return
	}

	n.mu.Lock()
	if _, ok := n.sent[scored.Article.ID]; ok {
		n.mu.Unlock()
		return
	}
	n.sent[scored.Article.ID] = struct{}{}
	n.mu.Unlock()

	go n.deliver(scored)
}

func (n *Notifier) deliver(scored *model.ScoredArticle) {
	for _, wh := range n.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}

		var err error
		switch wh.Type {
		case "slack":
			err = n.sendSlack(url, scored)
		case "http":
			err = n.sendHTTP(url, scored)
		default:
			slog.Warn("notify: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		if err != nil {
			slog.Error("notify: webhook delivery failed",
				"type", wh.Type,
				"id", scored.Article.ID,
				"err", err,
			)
		} else {
			slog.Debug("notify: webhook delivered",
				"type", wh.Type,
				"id", scored.Article.ID,
				"topic", scored.Topic,
			)
		}
	}
}

func (n *Notifier) sendSlack(url string, scored *model.ScoredArticle) error {
	body, _ := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*BREAKING* %s (score %.2f) %s",
			scored.Article.Title, scored.TotalScore, scored.Article.Link),
	})
	return n.post(url, body)
}

func (n *Notifier) sendHTTP(url string, scored *model.ScoredArticle) error {
	body, _ := json.Marshal(map[string]interface{}{"breaking_news": scored})
	return n.post(url, body)
}

func (n *Notifier) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
