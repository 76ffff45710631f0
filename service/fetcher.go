package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/berthwatch/backend/config"
	"github.com/berthwatch/backend/pkg/logger"
	"github.com/berthwatch/backend/pkg/metrics"
)

// Fetcher downloads the published schedule document
type Fetcher struct {
	url        string
	maxBytes   int64
	httpClient *http.Client
	metrics    *metrics.Registry
}

func NewFetcher(cfg *config.SourceConfig, m *metrics.Registry) *Fetcher {
	return &Fetcher{
		url:      cfg.PDFURL,
		metrics:  m,
		maxBytes: int64(cfg.MaxSizeMB) << 20,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// Fetch downloads the document. Every failure wraps ErrFetch.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	data, err := f.fetch(ctx)
	if err != nil {
		f.metrics.ObserveFetchFailure()
		logger.Warn(ctx, "schedule download failed", "url", f.url, "error", err)
		return nil, err
	}
	return data, nil
}

func (f *Fetcher) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrFetch, err)
	}
	req.Header.Set("Accept", "application/pdf, */*")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to send request: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %d from %s", ErrFetch, resp.StatusCode, f.url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrFetch, err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("%w: document exceeds %d bytes", ErrFetch, f.maxBytes)
	}

	logger.Debug(ctx, "schedule downloaded", "url", f.url, "bytes", len(body))
	return body, nil
}
