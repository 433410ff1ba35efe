// Package pdfparser talks to the external service that turns statement PDFs
// into the JSON payload accepted by statement ingestion.
package pdfparser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-resty/resty/v2"

	applog "finanzas/internal/log"
)

var ErrParseFailed = errors.New("pdf parsing failed")

type Config struct {
	URL     string
	Timeout time.Duration
}

type Client struct {
	http   *resty.Client
	url    string
	logger *applog.Logger
}

func NewClient(cfg Config, logger *applog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = applog.Discard()
	}
	return &Client{
		http:   resty.New().SetTimeout(cfg.Timeout),
		url:    cfg.URL,
		logger: logger.WithComponent(applog.ComponentPDFParser),
	}
}

// Parse uploads the PDF as the multipart field "file" and returns the raw
// JSON body of the reply.
func (c *Client) Parse(ctx context.Context, filename string, pdf io.Reader) ([]byte, error) {
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetFileReader("file", filename, pdf).
		Post(c.url)
	if err != nil {
		c.logger.WarnContext(ctx, "PDF parser request failed", applog.FieldFile, filename, applog.FieldError, err)
		return nil, fmt.Errorf("%w: %s: %v", ErrParseFailed, filename, err)
	}
	if resp.IsError() {
		c.logger.WarnContext(ctx, "PDF parser rejected file",
			applog.FieldFile, filename,
			applog.FieldStatusCode, resp.StatusCode())
		return nil, fmt.Errorf("%w: %s: status %d", ErrParseFailed, filename, resp.StatusCode())
	}

	c.logger.DebugContext(ctx, "PDF parsed",
		applog.FieldFile, filename,
		applog.FieldDuration, time.Since(start).Milliseconds(),
		"bytes", len(resp.Body()))
	return resp.Body(), nil
}
