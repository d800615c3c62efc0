package resilience

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

var (
	// ErrCircuitOpen is returned without contacting the provider while its
	// circuit is open or saturated with half-open probes.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// ServerError marks a 5xx reply so it counts against the breaker.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// ClientConfig configures a Client. Zero durations take package defaults.
type ClientConfig struct {
	Name string
	// Timeout bounds each attempt, not the whole call.
	Timeout time.Duration
	// Retries is the number of attempts after the first. Only network
	// errors and 5xx replies are retried.
	Retries         uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Breaker         BreakerPolicy
	// Registry, when set, receives the client on construction and the
	// outcome of every call.
	Registry  *Registry
	Transport http.RoundTripper
}

// DefaultClientConfig is for request-level calls such as directions or
// geocoding: two retries behind RequestPolicy.
func DefaultClientConfig(name string) ClientConfig {
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		Retries:         2,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Breaker:         RequestPolicy(),
	}
}

// PointLookupConfig is for per-point lookups fanned out along a route. They
// are never retried; a slow or failed point is dropped by the caller.
func PointLookupConfig(name string, timeout time.Duration) ClientConfig {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return ClientConfig{Name: name, Timeout: timeout, Breaker: FanOutPolicy()}
}

// Client is an http.Client guarded by a circuit breaker and retries.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 5 * time.Second
	}
	if cfg.Breaker.FailureRatio == 0 {
		cfg.Breaker = RequestPolicy()
	}

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		breaker: newBreaker[*http.Response](cfg.Name, cfg.Breaker), //nolint:bodyclose // type parameter
	}
	if cfg.Registry != nil {
		cfg.Registry.Register(c)
	}
	return c
}

func (c *Client) Name() string {
	return c.cfg.Name
}

// State returns the breaker state and its counts for the current window.
func (c *Client) State() (gobreaker.State, gobreaker.Counts) {
	return c.breaker.State(), c.breaker.Counts()
}

// Do sends req under the request's context. A 5xx reply that survives every
// retry is returned as a response, not an error, so callers can map it.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.send(req.Context(), req)
	if reg := c.cfg.Registry; reg != nil {
		switch {
		case err != nil:
			reg.RecordFailure(c.cfg.Name, err)
		case resp.StatusCode >= http.StatusInternalServerError:
			reg.RecordFailure(c.cfg.Name, &ServerError{StatusCode: resp.StatusCode})
		default:
			reg.RecordSuccess(c.cfg.Name)
		}
	}
	return resp, err
}

func (c *Client) send(ctx context.Context, req *http.Request) (*http.Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialInterval
	bo.MaxInterval = c.cfg.MaxInterval
	bo.MaxElapsedTime = 0

	var last *http.Response
	resp, err := backoff.RetryWithData(func() (*http.Response, error) {
		if last != nil {
			last.Body.Close()
			last = nil
		}
		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // returned to caller
			r, err := c.http.Do(req.Clone(ctx))
			if err == nil && r.StatusCode >= http.StatusInternalServerError {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, err
		})
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return nil, backoff.Permanent(ErrCircuitOpen)
		case err != nil:
			last = resp
			return nil, err
		}
		return resp, nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, c.cfg.Retries), ctx))

	if err != nil && last != nil {
		return last, nil
	}
	return resp, err
}
