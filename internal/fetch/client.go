// Package fetch implements the outbound HTTP transport shared by every
// connector: a colly-backed GET client wrapped in a bounded retry loop with
// linear backoff and a per-host post-success throttle.
package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/inbix/curator/internal/metrics"
)

// Config controls client behavior.
type Config struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
	// Throttle is the minimum spacing between successful calls against the
	// same host. Different hosts throttle independently.
	Throttle time.Duration
}

// Request captures everything needed to fetch a URL.
type Request struct {
	URL     string
	Params  url.Values
	Headers http.Header
	// NoRetry performs exactly one attempt. Used when probing mirrors,
	// where a failure means "try the next one" rather than "try again".
	NoRetry bool
}

// Client executes GET requests through a shared colly collector.
type Client struct {
	cfg           Config
	baseCollector *colly.Collector
	limiter       *hostLimiter
	logger        *zap.Logger
	sleep         func(ctx context.Context, d time.Duration) error
}

// New builds a Client.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = 300 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// colly v2.1.0's Async option sets Async=true even when passed false;
	// the collector is synchronous by default, so the option is omitted.
	c := colly.NewCollector(
		colly.IgnoreRobotsTxt(),
		colly.AllowURLRevisit(),
	)
	c.WithTransport(newHTTPTransport())

	return &Client{
		cfg:           cfg,
		baseCollector: c,
		limiter:       newHostLimiter(cfg.Throttle),
		logger:        logger,
		sleep:         sleepCtx,
	}
}

// Fetch executes the request under the retry policy. Transient failures are
// retried with a linearly increasing delay; blocking statuses (401/403/429)
// short-circuit with ErrBlocked so the caller can fall back instead of
// burning retries. The error after exhausted retries is informational only:
// callers treat it as "source returned nothing".
func (c *Client) Fetch(ctx context.Context, req Request) ([]byte, error) {
	attempts := c.cfg.MaxRetries
	if attempts < 1 || req.NoRetry {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		body, err := c.get(ctx, req)
		if err == nil {
			// the fetch already succeeded; a throttle wait cut short by
			// the context never fails it
			_ = c.limiter.wait(ctx, req.URL)
			return body, nil
		}
		if IsBlocked(err) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
		c.logger.Warn("fetch attempt failed",
			zap.String("url", req.URL),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt < attempts {
			metrics.ObserveFetchRetry(retryReason(err))
			if sleepErr := c.sleep(ctx, c.cfg.BaseDelay*time.Duration(attempt)); sleepErr != nil {
				return nil, sleepErr
			}
		}
	}
	return nil, fmt.Errorf("fetch %s after %d attempts: %w", req.URL, attempts, lastErr)
}

// get performs a single GET through a cloned collector.
func (c *Client) get(ctx context.Context, req Request) ([]byte, error) {
	target := req.URL
	if len(req.Params) > 0 {
		sep := "?"
		if u, err := url.Parse(target); err == nil && u.RawQuery != "" {
			sep = "&"
		}
		target = target + sep + req.Params.Encode()
	}

	collector := c.baseCollector.Clone()
	if c.cfg.UserAgent != "" {
		collector.UserAgent = c.cfg.UserAgent
	}
	collector.SetRequestTimeout(c.cfg.Timeout)

	var (
		body     []byte
		fetchErr error
	)
	collector.OnRequest(func(r *colly.Request) {
		for key, values := range req.Headers {
			for _, v := range values {
				r.Headers.Set(key, v)
			}
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			fetchErr = &StatusError{Code: r.StatusCode, URL: target}
			return
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if fetchErr != nil {
			return nil, fetchErr
		}
		if err != nil {
			return nil, fmt.Errorf("visit %s: %w", target, err)
		}
		return body, nil
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
