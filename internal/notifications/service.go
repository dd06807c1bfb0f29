package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"eventarr/internal/config"
)

const userAgent = "eventarr/0.1"

// Event identifies a notification type.
type Event string

const (
	EventReleaseGrabbed   Event = "release_grabbed"
	EventReleaseSelected  Event = "release_selected"
	EventSearchNoResults  Event = "search_no_results"
	EventSearchFailed     Event = "search_failed"
	EventDownloadFailed   Event = "download_failed"
	EventImportExhausted  Event = "import_exhausted"
	EventSourceTripped    Event = "source_tripped"
	EventTestNotification Event = "test"
)

// Payload carries the values a message is rendered from.
type Payload map[string]any

// Service publishes notifications.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op when no topic is set.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := cfg.NotificationTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func render(event Event, payload Payload) (message, bool) {
	eventTitle := payload.text("eventTitle")
	releaseTitle := payload.text("releaseTitle")
	switch event {
	case EventReleaseGrabbed:
		body := fmt.Sprintf("Grabbed for %s:\n%s", eventTitle, releaseTitle)
		if q := payload.text("quality"); q != "" {
			body += fmt.Sprintf(" (%s)", q)
		}
		return message{
			title: "eventarr - Grabbed",
			body:  body,
			tags:  []string{"eventarr", "grab", "completed"},
		}, true
	case EventReleaseSelected:
		return message{
			title: "eventarr - Release Found",
			body:  fmt.Sprintf("Best release for %s:\n%s", eventTitle, releaseTitle),
			tags:  []string{"eventarr", "search", "completed"},
		}, true
	case EventSearchNoResults:
		return message{
			title:    "eventarr - Nothing Found",
			body:     fmt.Sprintf("No acceptable release for %s: %s", eventTitle, payload.text("message")),
			tags:     []string{"eventarr", "search", "empty"},
			priority: "low",
		}, true
	case EventSearchFailed:
		return message{
			title:    "eventarr - Search Failed",
			body:     fmt.Sprintf("Search for %s failed: %s", eventTitle, payload.text("message")),
			tags:     []string{"eventarr", "error", "alert"},
			priority: "high",
		}, true
	case EventDownloadFailed:
		body := fmt.Sprintf("Download failed and was blocked:\n%s", releaseTitle)
		if payload.text("searchItemId") != "" {
			body += "\nReplacement search queued"
		}
		return message{
			title: "eventarr - Download Failed",
			body:  body,
			tags:  []string{"eventarr", "download", "failed"},
		}, true
	case EventImportExhausted:
		return message{
			title:    "eventarr - Import Failed",
			body:     fmt.Sprintf("Giving up on %s after %s import attempts: %s", releaseTitle, payload.text("attempts"), payload.text("message")),
			tags:     []string{"eventarr", "import", "alert"},
			priority: "high",
		}, true
	case EventSourceTripped:
		return message{
			title: "eventarr - Source Disabled",
			body:  fmt.Sprintf("Source %s is cooling down: %s", payload.text("source"), payload.text("message")),
			tags:  []string{"eventarr", "source", "warning"},
		}, true
	case EventTestNotification:
		return message{
			title:    "eventarr - Test",
			body:     "Notification system test",
			tags:     []string{"eventarr", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (p Payload) text(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
