package events

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// ErrSearch is matched by every failure to obtain a search response.
var ErrSearch = errors.New("events: search failed")

// Searcher runs a search body against an index and returns the raw response.
type Searcher interface {
	Search(ctx context.Context, body []byte) ([]byte, error)
}

// SearcherConfig configures an HTTPSearcher.
type SearcherConfig struct {
	URL        string
	Index      string
	Timeout    time.Duration
	MaxRetries int
	Logger     zerolog.Logger
}

// HTTPSearcher posts searches to {URL}/{Index}/_search.
type HTTPSearcher struct {
	endpoint   string
	httpClient *http.Client
	maxRetries uint64
	logger     zerolog.Logger
}

// NewHTTPSearcher creates a searcher for cfg.
func NewHTTPSearcher(cfg SearcherConfig) *HTTPSearcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var retries uint64
	if cfg.MaxRetries > 0 {
		retries = uint64(cfg.MaxRetries)
	}
	return &HTTPSearcher{
		endpoint:   strings.TrimRight(cfg.URL, "/") + "/" + strings.Trim(cfg.Index, "/") + "/_search",
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: retries,
		logger:     cfg.Logger,
	}
}

// Search implements Searcher. A search is a read, so transport failures
// and server errors are retried.
func (s *HTTPSearcher) Search(ctx context.Context, body []byte) ([]byte, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 100 * time.Millisecond
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, s.maxRetries), ctx)

	var out []byte
	err := backoff.Retry(func() error {
		var retry bool
		var err error
		out, retry, err = s.post(ctx, body)
		if err != nil && !retry {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
	return out, err
}

func (s *HTTPSearcher) post(ctx context.Context, body []byte) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("%w: build request: %v", ErrSearch, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("%w: %v", ErrSearch, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("%w: read body: %v", ErrSearch, err)
	}
	s.logger.Debug().
		Str("endpoint", s.endpoint).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("events search")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason := gjson.GetBytes(data, "error.reason").String()
		if reason == "" {
			reason = strings.TrimSpace(string(data))
		}
		return nil, resp.StatusCode >= 500, fmt.Errorf("%w: HTTP %d: %s", ErrSearch, resp.StatusCode, reason)
	}
	return data, false, nil
}
