// Package fetch downloads Slack snippet content.
package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"sambot/internal/domain"
)

const defaultMaxBytes = 10 << 20

// Fetcher performs a single authenticated GET per call. It never retries.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
	logger   *slog.Logger
}

// Config configures a Fetcher.
type Config struct {
	Client   *http.Client
	MaxBytes int64 // 0 = 10 MiB
	Logger   *slog.Logger
}

// New creates a Fetcher. A nil Client gets NewHTTPClient defaults.
func New(cfg Config) *Fetcher {
	if cfg.Client == nil {
		cfg.Client = NewHTTPClient(0, false)
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Fetcher{client: cfg.Client, maxBytes: cfg.MaxBytes, logger: cfg.Logger}
}

// FetchText downloads url with a bearer token and returns the body as text.
// All failures are *domain.FetchError.
func (f *Fetcher) FetchText(ctx context.Context, url, bearerToken string) (string, error) {
	if url == "" {
		return "", &domain.FetchError{Message: "attachment has no download URL"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &domain.FetchError{URL: url, Message: "build request", Cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+bearerToken)

	f.logger.Debug("fetching snippet", "url", url)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &domain.FetchError{URL: url, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Read a small amount for the error message.
		excerpt := make([]byte, 512)
		n, _ := io.ReadFull(resp.Body, excerpt)
		return "", &domain.FetchError{URL: url, StatusCode: resp.StatusCode, Message: string(excerpt[:n])}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1)) // +1 to detect overflow
	if err != nil {
		return "", &domain.FetchError{URL: url, StatusCode: resp.StatusCode, Message: "read body", Cause: err}
	}
	if int64(len(body)) > f.maxBytes {
		return "", &domain.FetchError{URL: url, StatusCode: resp.StatusCode, Message: "snippet exceeds size limit"}
	}
	if !utf8.Valid(body) {
		return "", &domain.FetchError{URL: url, StatusCode: resp.StatusCode, Cause: errNotUTF8}
	}

	f.logger.Debug("snippet fetched", "url", url, "bytes", len(body))
	return string(body), nil
}

var errNotUTF8 = errors.New("body is not valid UTF-8")
