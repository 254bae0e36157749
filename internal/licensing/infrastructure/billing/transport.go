// Package billing holds the HTTP plumbing shared by the store billing clients.
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/felixgeelhaar/tally/internal/licensing/domain"
	"github.com/felixgeelhaar/tally/pkg/observability"
)

// ErrNoCredentials means no vendor credentials were configured.
var ErrNoCredentials = errors.New("no vendor credentials configured")

// APIError is a non-2xx vendor response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vendor api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying later may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// TransportConfig configures rate limiting and circuit breaking.
type TransportConfig struct {
	// Name labels the breaker in logs and metrics.
	Name string
	// Timeout bounds a single HTTP request.
	Timeout time.Duration
	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64
	Burst     int
	// MaxFailures consecutive failures open the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open.
	OpenTimeout time.Duration
}

// DefaultTransportConfig returns conservative vendor defaults.
func DefaultTransportConfig(name string) TransportConfig {
	return TransportConfig{
		Name:        name,
		Timeout:     15 * time.Second,
		RateLimit:   5,
		Burst:       5,
		MaxFailures: 5,
		OpenTimeout: 30 * time.Second,
	}
}

// Transport sends JSON requests to a vendor API. Connectivity failures,
// 5xx and 429 responses and an open breaker are reported as
// domain.ErrBillingUnavailable; other 4xx responses are plain APIErrors
// and do not count against the breaker.
type Transport struct {
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[any]
	logger  *slog.Logger
	metrics observability.Metrics
	name    string
}

// NewTransport wraps client. A nil client gets a default one with cfg.Timeout.
func NewTransport(cfg TransportConfig, client *http.Client, logger *slog.Logger, metrics observability.Metrics) *Transport {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	settings := gobreaker.Settings{
		Name:    cfg.Name,
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return !apiErr.Temporary()
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				"vendor", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &Transport{
		client:  client,
		limiter: limiter,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
		logger:  logger,
		metrics: metrics,
		name:    cfg.Name,
	}
}

// DoJSON sends body (if non-nil) as JSON and decodes the response into out
// (if non-nil).
func (t *Transport) DoJSON(ctx context.Context, method, url string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	tags := []observability.Tag{observability.T("vendor", t.name)}
	t.metrics.Counter(observability.MetricBillingRequests, 1, tags...)

	_, err := t.breaker.Execute(func() (any, error) {
		return nil, t.do(ctx, method, url, payload, out)
	})
	if err == nil {
		return nil
	}

	t.metrics.Counter(observability.MetricBillingFailures, 1, tags...)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", domain.ErrBillingUnavailable, err)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && !apiErr.Temporary() {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrBillingUnavailable, err)
}

func (t *Transport) do(ctx context.Context, method, url string, payload []byte, out any) error {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Publisher sends commands to the device billing bridge.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
}

// PublishJSON marshals event and publishes it under routingKey.
func PublishJSON(ctx context.Context, publisher Publisher, routingKey string, event any) error {
	if publisher == nil {
		return fmt.Errorf("%w: no billing bridge configured", domain.ErrBillingUnavailable)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := publisher.Publish(ctx, routingKey, payload); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBillingUnavailable, err)
	}
	return nil
}
