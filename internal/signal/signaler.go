// Package signal delivers the terminal result of a lifecycle event to the orchestrator's pre-signed callback URL.
package signal

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jrzesz33/serverless_kafka/internal/models"
)

// Client defines the interface for completion signaling
type Client interface {
	Signal(ctx context.Context, event *models.LifecycleEvent, result models.Result) error
}

// Signaler PUTs the callback body to the event's ResponseURL exactly once
type Signaler struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// Config holds configuration for the Signaler
type Config struct {
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewSignaler creates a Signaler. The callback URL is pre-signed S3, so only TLS 1.2+ is accepted.
func NewSignaler(config Config) *Signaler {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 5 * time.Second,
			},
			// The pre-signed URL is final; never follow a redirect with it
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}

	return &Signaler{
		httpClient: config.HTTPClient,
		timeout:    config.Timeout,
		logger:     config.Logger,
	}
}

// Signal sends the result. Failures are logged and returned for the caller's information only;
// there is no second attempt because a pre-signed URL may only be written once.
func (s *Signaler) Signal(ctx context.Context, event *models.LifecycleEvent, result models.Result) error {
	// The invocation context may already be done when we get here
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	body, err := json.Marshal(models.NewResponse(event, result))
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to marshal callback body", slog.String("error", err.Error()))
		return fmt.Errorf("failed to marshal callback body: %w", err)
	}

	s.logger.DebugContext(ctx, "sending callback", slog.String("body", string(body)))

	if err := s.put(ctx, event.ResponseURL, body); err != nil {
		s.logger.ErrorContext(ctx, "failed to signal orchestrator",
			slog.String("status", result.Status.String()),
			slog.String("error", err.Error()),
		)
		return err
	}

	s.logger.InfoContext(ctx, "orchestrator signaled",
		slog.String("status", result.Status.String()),
		slog.String("physical_resource_id", result.PhysicalResourceID),
	)
	return nil
}

func (s *Signaler) put(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	// The URL signature covers an empty content type
	req.Header["Content-Type"] = []string{""}
	req.ContentLength = int64(len(body))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned non-success status code %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}
