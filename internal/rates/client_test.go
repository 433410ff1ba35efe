package rates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bluelyticsBody = `{
  "oficial": {"value_avg": 1010.5, "value_sell": 1030.0, "value_buy": 991.0},
  "blue": {"value_avg": 1215.0, "value_sell": 1230.0, "value_buy": 1200.0},
  "last_update": "2025-03-10T12:00:00-03:00"
}`

func quoteServer(t *testing.T, body string, status int, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestReferenceRate_DefaultPath(t *testing.T) {
	srv := quoteServer(t, bluelyticsBody, http.StatusOK, nil)
	c := NewClient(Config{URL: srv.URL}, nil)

	rate, err := c.ReferenceRate(context.Background())
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(1200)), rate.String())
}

func TestReferenceRate_CustomPathAndStringValue(t *testing.T) {
	srv := quoteServer(t, `[{"casa":"blue","compra":"1185.50"}]`, http.StatusOK, nil)
	c := NewClient(Config{URL: srv.URL, Path: "$[0].compra"}, nil)

	rate, err := c.ReferenceRate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1185.5", rate.String())
}

func TestReferenceRate_Errors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		status int
		path   string
	}{
		{"server error", `{}`, http.StatusBadGateway, ""},
		{"not json", `<html>`, http.StatusOK, ""},
		{"missing key", `{"oficial":{"value_buy":1}}`, http.StatusOK, ""},
		{"not a number", `{"blue":{"value_buy":true}}`, http.StatusOK, ""},
		{"zero", `{"blue":{"value_buy":0}}`, http.StatusOK, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := quoteServer(t, tc.body, tc.status, nil)
			c := NewClient(Config{URL: srv.URL, Path: tc.path}, nil)
			_, err := c.ReferenceRate(context.Background())
			assert.ErrorIs(t, err, ErrRateUnavailable)
		})
	}
}

func TestReferenceRate_FreshPerCallWithoutCache(t *testing.T) {
	var hits int32
	srv := quoteServer(t, bluelyticsBody, http.StatusOK, &hits)
	c := NewClient(Config{URL: srv.URL}, nil)
	assert.Nil(t, c.Cache())

	for i := 0; i < 3; i++ {
		_, err := c.ReferenceRate(context.Background())
		require.NoError(t, err)
	}
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))
}

func TestReferenceRate_Cached(t *testing.T) {
	var hits int32
	srv := quoteServer(t, bluelyticsBody, http.StatusOK, &hits)
	c := NewClient(Config{URL: srv.URL, CacheTTL: time.Hour}, nil)
	require.NotNil(t, c.Cache())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rate, err := c.ReferenceRate(context.Background())
			assert.NoError(t, err)
			assert.True(t, rate.Equal(decimal.NewFromInt(1200)))
		}()
	}
	wg.Wait()

	_, err := c.ReferenceRate(context.Background())
	require.NoError(t, err)
	// Later calls are served from the cache; concurrent first calls may
	// race before the first response lands.
	before := atomic.LoadInt32(&hits)
	_, err = c.ReferenceRate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before, atomic.LoadInt32(&hits))
}

func TestReferenceRate_CancelledCallerDoesNotFailSharedFetch(t *testing.T) {
	var hits int32
	arrived := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		arrived <- struct{}{}
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(bluelyticsBody))
	}))
	t.Cleanup(srv.Close)
	c := NewClient(Config{URL: srv.URL, Timeout: 5 * time.Second}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.ReferenceRate(ctx)
		first <- err
	}()
	<-arrived

	type result struct {
		rate decimal.Decimal
		err  error
	}
	second := make(chan result, 1)
	go func() {
		rate, err := c.ReferenceRate(context.Background())
		second <- result{rate, err}
	}()
	// let the second caller join the in-flight request
	time.Sleep(50 * time.Millisecond)

	cancel()
	err := <-first
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrRateUnavailable)

	close(release)
	res := <-second
	require.NoError(t, res.err)
	assert.True(t, res.rate.Equal(decimal.NewFromInt(1200)), res.rate.String())
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}
