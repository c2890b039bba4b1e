// Package peer holds the typed HTTP clients one billing service uses to call
// another. Every call forwards the inbound bearer token and maps the callee's
// status code back onto the error kinds of the caller.
package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"
	"github.com/rs/zerolog"

	"github.com/ledgerline/billing/internal/auth"
	"github.com/ledgerline/billing/internal/domain"
	"github.com/ledgerline/billing/internal/logger"
	"github.com/ledgerline/billing/internal/metrics"
)

const maxRetryDelay = 2 * time.Second

// Options configures every peer client.
type Options struct {
	Timeout    time.Duration
	Attempts   int
	RetryDelay time.Duration
	Clock      clock.Clock
	Metrics    *metrics.Collector
	// Transport overrides the HTTP round tripper, mostly for tests.
	Transport http.RoundTripper
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.Attempts < 1 {
		o.Attempts = 1
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 100 * time.Millisecond
	}
	if o.Clock == nil {
		o.Clock = clock.WallClock
	}
	return o
}

// client is the shared transport of the typed clients.
type client struct {
	name    string
	baseURL string
	http    *http.Client
	opts    Options
	log     zerolog.Logger
}

func newClient(name, baseURL string, opts Options) *client {
	opts = opts.withDefaults()
	return &client{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: opts.Timeout, Transport: opts.Transport},
		opts:    opts,
		log:     logger.WithComponent("peer").With().Str("peer", name).Logger(),
	}
}

// get fetches path into out. Only unavailability is retried; any answer from
// the callee is final.
func (c *client) get(ctx context.Context, path string, out any) error {
	var lastErr error
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			return c.do(ctx, http.MethodGet, path, nil, out)
		},
		IsFatalError: func(err error) bool {
			return !errors.Is(err, domain.ErrServiceUnavailable)
		},
		NotifyFunc: func(err error, attempt int) {
			c.log.Debug().Err(err).Int("attempt", attempt).Str("path", path).Msg("peer call failed")
			lastErr = err
		},
		Attempts:    c.opts.Attempts,
		Delay:       c.opts.RetryDelay,
		MaxDelay:    maxRetryDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       c.opts.Clock,
		Stop:        ctx.Done(),
	})
	if retry.IsAttemptsExceeded(err) || retry.IsRetryStopped(err) {
		c.opts.Metrics.PeerFailed(c.name)
		if lastErr != nil {
			return lastErr
		}
		return fmt.Errorf("%s: %v: %w", c.name, err, domain.ErrServiceUnavailable)
	}
	return err
}

// send performs a mutating call exactly once.
func (c *client) send(ctx context.Context, method, path string, body, out any) error {
	err := c.do(ctx, method, path, body, out)
	if errors.Is(err, domain.ErrServiceUnavailable) {
		c.opts.Metrics.PeerFailed(c.name)
	}
	return err
}

func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Annotatef(err, "encode %s request", c.name)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Annotatef(err, "build %s request", c.name)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := auth.TokenFrom(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s %s: %v: %w", c.name, method, path, err, domain.ErrServiceUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return c.statusError(resp, method, path)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Annotatef(err, "decode %s response to %s %s", c.name, method, path)
	}
	return nil
}

func (c *client) statusError(resp *http.Response, method, path string) error {
	msg := readErrorMessage(resp)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errors.NewNotFound(nil, msg)
	case resp.StatusCode == http.StatusBadRequest:
		return errors.NewNotValid(nil, msg)
	case resp.StatusCode == http.StatusConflict:
		return errors.NewAlreadyExists(nil, msg)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return errors.NewForbidden(nil, msg)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%s %s %s answered %d: %s: %w",
			c.name, method, path, resp.StatusCode, msg, domain.ErrServiceUnavailable)
	}
	return errors.Errorf("%s %s %s answered %d: %s", c.name, method, path, resp.StatusCode, msg)
}

// readErrorMessage extracts the message of an {"error": "..."} body, falling
// back to the error-message header and then the status text.
func readErrorMessage(resp *http.Response) string {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return body.Error
	}
	if h := resp.Header.Get("error-message"); h != "" {
		return h
	}
	return http.StatusText(resp.StatusCode)
}

func query(kv ...string) string {
	v := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			v.Set(kv[i], kv[i+1])
		}
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}
