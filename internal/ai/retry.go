package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"time"

	"tailor-backend/internal/shared/telemetry"
)

// RetryConfig bounds transport-level retries nested inside one job attempt.
// This budget is independent of the job queue's delivery retries.
type RetryConfig struct {
	// Attempts is the number of retries after the initial call.
	Attempts int

	// BaseDelay is doubled per retry.
	BaseDelay time.Duration
}

// DefaultRetryConfig is used when the env keys are unset.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{Attempts: 2, BaseDelay: 300 * time.Millisecond}
}

type retryingClient struct {
	base Client
	cfg  RetryConfig
}

// NewRetryingClient wraps base so transient transport failures (timeouts,
// 5xx, connection resets) are retried before the call counts as failed.
func NewRetryingClient(base Client, cfg RetryConfig) Client {
	if base == nil {
		return nil
	}
	if cfg.Attempts < 0 {
		cfg.Attempts = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 300 * time.Millisecond
	}
	return retryingClient{base: base, cfg: cfg}
}

func (r retryingClient) Generate(ctx context.Context, input GenerateInput) (json.RawMessage, error) {
	resp, err := r.base.Generate(ctx, input)
	if err == nil || !shouldRetry(err) {
		return resp, err
	}

	delay := r.cfg.BaseDelay
	for attempt := 1; attempt <= r.cfg.Attempts; attempt++ {
		telemetry.Warn("ai.retry", map[string]any{
			"attempt":  attempt,
			"delay_ms": delay.Milliseconds(),
			"error":    err.Error(),
		})

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}

		resp, err = r.base.Generate(ctx, input)
		if err == nil || !shouldRetry(err) {
			return resp, err
		}
		delay *= 2
	}
	return nil, err
}

func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "http status 5") || strings.Contains(msg, "server_error") {
		return true
	}
	if strings.Contains(msg, "timeout") && (strings.Contains(msg, "openai") || strings.Contains(msg, "client.timeout")) {
		return true
	}
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "tls handshake timeout") ||
		strings.Contains(msg, "eof") {
		return true
	}
	return false
}
