package notification

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/jrzesz33/serverless_kafka/internal/models"
)

// NtfyClient pushes lifecycle outcomes to an ntfy.sh topic
type NtfyClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	maxRetries int
	backoff    time.Duration
}

// NtfyClientConfig holds configuration for the Ntfy client
type NtfyClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	// Backoff is the first retry delay, doubled on each retry
	Backoff time.Duration
	Logger  *slog.Logger
}

// NewNtfyClient creates a new ntfy.sh notification client
func NewNtfyClient(config NtfyClientConfig) *NtfyClient {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.Backoff == 0 {
		config.Backoff = time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &NtfyClient{
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger:     config.Logger,
		maxRetries: config.MaxRetries,
		backoff:    config.Backoff,
	}
}

// PublishOutcome sends a push notification describing the outcome, with retry logic
func (c *NtfyClient) PublishOutcome(ctx context.Context, outcome *models.Outcome) error {
	title := fmt.Sprintf("%s %s %s", outcome.Action, outcome.RequestType, outcome.Status)
	message := formatOutcome(outcome)

	priority := "default"
	tags := "white_check_mark"
	if outcome.Status == models.StatusFailed {
		priority = "high"
		tags = "rotating_light"
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.backoff * time.Duration(1<<uint(attempt-1))
			c.logger.DebugContext(ctx, "retrying notification send",
				slog.Int("attempt", attempt+1),
				slog.Int("max_retries", c.maxRetries),
				slog.Duration("backoff", backoff),
			)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		err := c.sendOnce(ctx, title, priority, tags, message)
		if err == nil {
			c.logger.DebugContext(ctx, "notification sent successfully", slog.Int("attempt", attempt+1))
			return nil
		}

		lastErr = err
		c.logger.WarnContext(ctx, "failed to send notification",
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)
	}

	return fmt.Errorf("failed to send notification after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *NtfyClient) sendOnce(ctx context.Context, title, priority, tags, message string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBufferString(message))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Title", title)
	req.Header.Set("Priority", priority)
	req.Header.Set("Tags", tags)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy.sh returned non-success status code %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

func formatOutcome(outcome *models.Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Stack: %s\n", outcome.StackID)
	fmt.Fprintf(&b, "Resource: %s (%s)\n", outcome.LogicalResourceID, outcome.PhysicalResourceID)
	if outcome.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", outcome.Reason)
	}

	keys := make([]string, 0, len(outcome.Data))
	for k := range outcome.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, outcome.Data[k])
	}

	return strings.TrimSuffix(b.String(), "\n")
}
