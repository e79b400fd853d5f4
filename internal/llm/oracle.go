package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	aerrors "github.com/p-blackswan/autodev/internal/errors"
	"github.com/p-blackswan/autodev/internal/metrics"
	"github.com/p-blackswan/autodev/internal/retry"
)

// Client turns a Provider into an Oracle. Each call is bounded by a timeout
// and retried with backoff on transient failures.
type Client struct {
	provider Provider
	timeout  time.Duration
	retry    retry.Config
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout bounds every Generate call. Zero disables the bound.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithRetry sets the retry policy for transient provider errors.
func WithRetry(cfg retry.Config) ClientOption {
	return func(c *Client) { c.retry = cfg }
}

// WithMetrics records call counts and latency.
func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// NewClient wraps provider.
func NewClient(provider Provider, logger zerolog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		provider: provider,
		timeout:  5 * time.Minute,
		retry:    retry.DefaultConfig(),
		logger:   logger.With().Str("component", "oracle").Str("provider", provider.Name()).Logger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Generate sends prompt with an optional system message. A call that exceeds
// the timeout fails with ErrTimeout once retries are spent.
func (c *Client) Generate(ctx context.Context, prompt, system string) (string, error) {
	req := CompletionRequest{
		SystemPrompt: system,
		Messages:     []Message{{Role: RoleUser, Content: prompt}},
	}

	start := time.Now()
	var resp *CompletionResponse
	err := retry.Do(ctx, c.retry, c.logger, func(ctx context.Context) error {
		callCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		r, err := c.provider.Complete(callCtx, req)
		if err != nil {
			if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				return fmt.Errorf("%w after %s: %v", aerrors.ErrTimeout, c.timeout, err)
			}
			return err
		}
		resp = r
		return nil
	})
	elapsed := time.Since(start)

	if err != nil {
		c.metrics.RecordOracleCall(c.provider.Name(), "error", elapsed.Seconds())
		return "", fmt.Errorf("oracle %s: %w", c.provider.Name(), err)
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		c.metrics.RecordOracleCall(c.provider.Name(), "empty", elapsed.Seconds())
		return "", aerrors.ErrNoResponse
	}

	c.metrics.RecordOracleCall(c.provider.Name(), "ok", elapsed.Seconds())
	c.logger.Debug().
		Str("model", c.provider.ModelID()).
		Int("in_tokens", resp.InputTokens).
		Int("out_tokens", resp.OutputTokens).
		Dur("elapsed", elapsed).
		Msg("oracle response")
	return resp.Text, nil
}
