package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"glimpse/internal/config"
)

const userAgent = "glimpse/0.1"

// Service defines the notification surface used by the daemon.
type Service interface {
	NotifyArchiveCompleted(ctx context.Context, archived, failed int, duration time.Duration) error
	NotifyLowDiskSpace(ctx context.Context, path string, freeMiB, minFreeMiB int64) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// Enabled reports whether svc actually delivers anything.
func Enabled(svc Service) bool {
	_, noop := svc.(noopService)
	return svc != nil && !noop
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyArchiveCompleted(ctx context.Context, archived, failed int, duration time.Duration) error {
	duration = max(duration.Round(time.Second), 0)

	data := payload{
		title:   "Glimpse - Archive Complete",
		message: fmt.Sprintf("Archived %d screenshots in %s", archived, duration),
		tags:    []string{"glimpse", "archive", "completed"},
	}
	if failed > 0 {
		data.title = "Glimpse - Archive Complete (with errors)"
		data.message = fmt.Sprintf("Archived %d screenshots, %d failed, in %s", archived, failed, duration)
		data.tags = []string{"glimpse", "archive", "warning"}
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyLowDiskSpace(ctx context.Context, path string, freeMiB, minFreeMiB int64) error {
	data := payload{
		title:    "Glimpse - Low Disk Space",
		message:  fmt.Sprintf("Archive volume %s has %d MiB free (minimum %d MiB)", strings.TrimSpace(path), freeMiB, minFreeMiB),
		tags:     []string{"glimpse", "disk", "warning"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" during ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Glimpse - Error",
		message:  builder.String(),
		tags:     []string{"glimpse", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Glimpse - Test",
		message:  "Notification system test",
		tags:     []string{"glimpse", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
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

func (noopService) NotifyArchiveCompleted(context.Context, int, int, time.Duration) error { return nil }
func (noopService) NotifyLowDiskSpace(context.Context, string, int64, int64) error       { return nil }
func (noopService) NotifyError(context.Context, error, string) error                     { return nil }
func (noopService) TestNotification(context.Context) error                               { return nil }
