// Package notify delivers webhook notifications for breaking-news
// detections. Targets are configured under notify.webhooks and resolved from
// the environment; Slack incoming webhooks and generic HTTP endpoints are
// supported. Delivery is asynchronous and at-most-once per article.
package notify
