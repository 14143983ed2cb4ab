// Package gateway implements the client side of the application
// gateway boundary: the external service that merges an approved
// change proposal into the live skill registry. Calls are fallible and
// retried here with backoff; the mining core above this boundary never
// retries silently.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"

	"github.com/skillminer/skillminer/pkg/logger"
	"github.com/skillminer/skillminer/pkg/types/mining"
)

// Config holds the gateway client configuration.
type Config struct {
	// Endpoint is the URL proposals are POSTed to.
	Endpoint string `mapstructure:"endpoint"`
	// Token is sent as a bearer token when non-empty.
	Token string `mapstructure:"token"`
	// Attempts is the total number of tries per call.
	Attempts int `mapstructure:"attempts"`
	// InitialDelayMs is the delay before the first retry.
	InitialDelayMs int `mapstructure:"initial_delay_ms"`
	// MaxDelayMs caps the backoff delay.
	MaxDelayMs int `mapstructure:"max_delay_ms"`
	// BackoffType selects "fixed" or "exponential" delays.
	BackoffType string `mapstructure:"backoff_type"`
	// TimeoutSeconds bounds each individual HTTP request.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// DefaultConfig returns the gateway defaults used when the config file
// leaves fields unset.
func DefaultConfig() Config {
	return Config{
		Attempts:       3,
		InitialDelayMs: 500,
		MaxDelayMs:     5000,
		BackoffType:    "exponential",
		TimeoutSeconds: 30,
	}
}

// Client talks to the application gateway over HTTP.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient validates the configuration and creates a Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("gateway endpoint cannot be empty")
	}
	if _, err := url.ParseRequestURI(cfg.Endpoint); err != nil {
		return nil, errors.Wrapf(err, "invalid gateway endpoint %q", cfg.Endpoint)
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultConfig().Attempts
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = DefaultConfig().TimeoutSeconds
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
	}, nil
}

// Apply submits the proposal for merging into the skill registry.
// Transient failures (5xx, 429, transport errors) are retried with
// backoff; permanent rejections (other 4xx) fail immediately. The
// final error is returned as-is for the caller to surface.
func (c *Client) Apply(ctx context.Context, proposal mining.ChangeProposal) error {
	var delayType retry.DelayTypeFunc
	switch c.cfg.BackoffType {
	case "fixed":
		delayType = retry.FixedDelay
	default:
		delayType = retry.BackOffDelay
	}

	err := retry.Do(
		func() error {
			return c.post(ctx, proposal)
		},
		retry.RetryIf(isRetryableError),
		retry.Attempts(uint(c.cfg.Attempts)),
		retry.Delay(time.Duration(c.cfg.InitialDelayMs)*time.Millisecond),
		retry.DelayType(delayType),
		retry.MaxDelay(time.Duration(c.cfg.MaxDelayMs)*time.Millisecond),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).
				WithField("attempt", n+1).
				WithField("max_attempts", c.cfg.Attempts).
				Warn("retrying application gateway call")
		}),
	)

	return errors.Wrap(err, "application gateway call failed")
}

func (c *Client) post(ctx context.Context, proposal mining.ChangeProposal) error {
	body, err := json.Marshal(proposal)
	if err != nil {
		return errors.Wrap(err, "failed to marshal proposal")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build gateway request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "gateway request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &statusError{code: resp.StatusCode, detail: string(detail)}
}

// statusError carries the HTTP status so retry classification can
// distinguish transient from permanent failures.
type statusError struct {
	code   int
	detail string
}

func (e *statusError) Error() string {
	if e.detail == "" {
		return fmt.Sprintf("gateway returned status %d", e.code)
	}
	return fmt.Sprintf("gateway returned status %d: %s", e.code, e.detail)
}

func isRetryableError(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	// Transport-level failures are worth retrying.
	return true
}
