// Package rates fetches the ARS/USD reference rate used to normalize income
// reports.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"finanzas/internal/cache"
	applog "finanzas/internal/log"
)

const (
	DefaultURL  = "https://api.bluelytics.com.ar/v2/latest"
	DefaultPath = "$.blue.value_buy"

	cacheKey = "reference_rate"
)

var ErrRateUnavailable = errors.New("reference rate unavailable")

// Config configures the quote endpoint.
type Config struct {
	URL     string
	Path    string // JSONPath to the buy rate
	Timeout time.Duration
	// CacheTTL keeps a fetched rate for this long. Zero fetches on every call.
	CacheTTL time.Duration
}

// Client fetches the reference rate over HTTP.
type Client struct {
	http   *resty.Client
	url    string
	path   string
	cache  *cache.LRUCache[decimal.Decimal]
	group  singleflight.Group
	logger *applog.Logger
}

func NewClient(cfg Config, logger *applog.Logger) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = applog.Discard()
	}

	c := &Client{
		http:   resty.New().SetTimeout(cfg.Timeout).SetHeader("Accept", "application/json"),
		url:    cfg.URL,
		path:   cfg.Path,
		logger: logger.WithComponent(applog.ComponentRates),
	}
	if cfg.CacheTTL > 0 {
		c.cache = cache.NewLRUCache[decimal.Decimal](1, cfg.CacheTTL)
	}
	return c
}

// Cache exposes the rate cache for registration with a cache.Manager. It is
// nil when caching is disabled.
func (c *Client) Cache() cache.Cleaner {
	if c.cache == nil {
		return nil
	}
	return c.cache
}

// ReferenceRate returns the current buy rate. Concurrent callers share one
// in-flight request, which outlives the cancellation of any single caller
// and stays bounded by the client timeout.
func (c *Client) ReferenceRate(ctx context.Context) (decimal.Decimal, error) {
	if c.cache != nil {
		if rate, ok := c.cache.Get(cacheKey); ok {
			return rate, nil
		}
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(cacheKey, func() (any, error) {
		rate, err := c.fetch(fetchCtx)
		if err == nil && c.cache != nil {
			c.cache.Set(cacheKey, rate)
		}
		return rate, err
	})

	select {
	case <-ctx.Done():
		return decimal.Zero, fmt.Errorf("%w: %w", ErrRateUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return decimal.Zero, res.Err
		}
		return res.Val.(decimal.Decimal), nil
	}
}

func (c *Client) fetch(ctx context.Context) (decimal.Decimal, error) {
	start := time.Now()
	resp, err := c.http.R().SetContext(ctx).Get(c.url)
	if err != nil {
		c.logger.WarnContext(ctx, "Reference rate request failed", "url", c.url, applog.FieldError, err)
		return decimal.Zero, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}
	if resp.IsError() {
		c.logger.WarnContext(ctx, "Reference rate request rejected", "url", c.url, applog.FieldStatusCode, resp.StatusCode())
		return decimal.Zero, fmt.Errorf("%w: status %d", ErrRateUnavailable, resp.StatusCode())
	}

	rate, err := extractRate(resp.Body(), c.path)
	if err != nil {
		return decimal.Zero, err
	}
	c.logger.DebugContext(ctx, "Reference rate fetched",
		"rate", rate.String(),
		applog.FieldDuration, time.Since(start).Milliseconds())
	return rate, nil
}

// extractRate evaluates path over body and converts the match into a decimal.
func extractRate(body []byte, path string) (decimal.Decimal, error) {
	var jobj any
	if err := json.Unmarshal(body, &jobj); err != nil {
		return decimal.Zero, fmt.Errorf("%w: decode body: %v", ErrRateUnavailable, err)
	}
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: evaluate %q: %v", ErrRateUnavailable, path, err)
	}
	// Filters and slices yield a list; keep the first match.
	if list, ok := jval.([]any); ok {
		if len(list) == 0 {
			return decimal.Zero, fmt.Errorf("%w: %q matched nothing", ErrRateUnavailable, path)
		}
		jval = list[0]
	}

	var rate decimal.Decimal
	switch v := jval.(type) {
	case float64:
		rate = decimal.NewFromFloat(v)
	case string:
		if rate, err = decimal.NewFromString(strings.TrimSpace(v)); err != nil {
			return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrRateUnavailable, v)
		}
	default:
		return decimal.Zero, fmt.Errorf("%w: %q yielded %T", ErrRateUnavailable, path, jval)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive rate %s", ErrRateUnavailable, rate)
	}
	return rate, nil
}
