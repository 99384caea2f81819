// Package gateway is the HTTP transport to a MultiversX proxy/gateway node.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/dmagro/novax/internal/receipt"
)

var (
	// ErrTransport is returned when the gateway cannot be reached or answers
	// with a server error.
	ErrTransport = errors.New("gateway: transport error")

	// ErrParse is returned when a response body cannot be read.
	ErrParse = errors.New("gateway: cannot parse response")

	// ErrGateway is returned when the gateway rejects a request.
	ErrGateway = errors.New("gateway: request rejected")
)

// HTTPError is a non-2xx answer without a readable error message.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("gateway: HTTP %d", e.Status)
	}
	return fmt.Sprintf("gateway: HTTP %d: %s", e.Status, e.Body)
}

// Is matches ErrTransport.
func (e *HTTPError) Is(target error) bool { return target == ErrTransport }

// APIError is an error reported inside the response envelope.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway: %s (%s)", e.Message, e.Code)
}

// Is matches ErrGateway.
func (e *APIError) Is(target error) bool { return target == ErrGateway }

// QueryError is a contract query that executed but did not return "ok".
type QueryError struct {
	ReturnCode    string
	ReturnMessage string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed with %s: %s", e.ReturnCode, e.ReturnMessage)
}

// ClientConfig configures a Client.
type ClientConfig struct {
	URL     string
	Timeout time.Duration
	// MaxRetries bounds the retries of GET requests. POST requests are
	// never retried.
	MaxRetries int
	Logger     zerolog.Logger
}

// Client talks to one gateway.
type Client struct {
	url        string
	httpClient *http.Client
	maxRetries int
	logger     zerolog.Logger
}

// NewClient creates a client for cfg.URL.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:        strings.TrimRight(cfg.URL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: cfg.MaxRetries,
		logger:     cfg.Logger,
	}
}

// URL returns the gateway base URL.
func (c *Client) URL() string { return c.url }

// Get fetches path and decodes the envelope data into out. Transport errors
// are retried with exponential backoff: 100ms, 200ms, 400ms...
func (c *Client) Get(ctx context.Context, path string, out any) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 100 * time.Millisecond
	eb.RandomizationFactor = 0
	eb.Multiplier = 2
	eb.MaxElapsedTime = 0

	var retries uint64
	if c.maxRetries > 0 {
		retries = uint64(c.maxRetries)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, retries), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := c.do(ctx, http.MethodGet, path, nil, out)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		if err != nil {
			c.logger.Debug().Err(err).Str("path", path).Int("attempt", attempt).Msg("gateway GET failed")
		}
		return err
	}, policy)
	if err != nil && attempt > 1 && errors.Is(err, ErrTransport) {
		return fmt.Errorf("failed after %d attempts: %w", attempt, err)
	}
	return err
}

// Post sends body once and decodes the envelope data into out.
func (c *Client) Post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("gateway: encode request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, data, out)
}

// retryable reports whether err is a network failure or a server error.
func retryable(err error) bool {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status >= 500
	}
	return errors.Is(err, ErrTransport)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url+path, reader)
	if err != nil {
		return fmt.Errorf("gateway: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}
	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("gateway round trip")

	var env envelope
	jsonErr := json.Unmarshal(respBody, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if jsonErr == nil && env.Error != "" && resp.StatusCode < 500 {
			return &APIError{Code: env.Code, Message: env.Error}
		}
		return &HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	if jsonErr != nil {
		return fmt.Errorf("%w: %v", ErrParse, jsonErr)
	}
	if env.Error != "" || (env.Code != "" && env.Code != codeSuccessful) {
		return &APIError{Code: env.Code, Message: env.Error}
	}
	if out == nil {
		return nil
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%w: empty data", ErrParse)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}
	return nil
}

// GetAccount fetches the state of addr.
func (c *Client) GetAccount(ctx context.Context, addr string) (*Account, error) {
	var data struct {
		Account *Account `json:"account"`
	}
	if err := c.Get(ctx, "/address/"+url.PathEscape(addr), &data); err != nil {
		return nil, err
	}
	if data.Account == nil {
		return nil, fmt.Errorf("%w: missing account", ErrParse)
	}
	return data.Account, nil
}

// GetStorage fetches every storage pair of addr, hex key to hex value.
func (c *Client) GetStorage(ctx context.Context, addr string) (map[string]string, error) {
	var data struct {
		Pairs map[string]string `json:"pairs"`
	}
	if err := c.Get(ctx, "/address/"+url.PathEscape(addr)+"/keys", &data); err != nil {
		return nil, err
	}
	if data.Pairs == nil {
		data.Pairs = map[string]string{}
	}
	return data.Pairs, nil
}

// GetNetworkConfig fetches the network parameters.
func (c *Client) GetNetworkConfig(ctx context.Context) (*NetworkConfig, error) {
	var data struct {
		Config *NetworkConfig `json:"config"`
	}
	if err := c.Get(ctx, "/network/config", &data); err != nil {
		return nil, err
	}
	if data.Config == nil {
		return nil, fmt.Errorf("%w: missing config", ErrParse)
	}
	return data.Config, nil
}

// SendTransaction submits a signed transaction and returns its hash.
func (c *Client) SendTransaction(ctx context.Context, tx *Transaction) (string, error) {
	var data struct {
		TxHash string `json:"txHash"`
	}
	if err := c.Post(ctx, "/transaction/send", tx, &data); err != nil {
		return "", err
	}
	if data.TxHash == "" {
		return "", fmt.Errorf("%w: missing txHash", ErrParse)
	}
	return data.TxHash, nil
}

// SimulateTransaction dry-runs tx without checking its signature and
// returns the raw simulation data.
func (c *Client) SimulateTransaction(ctx context.Context, tx *Transaction) (json.RawMessage, error) {
	var data json.RawMessage
	if err := c.Post(ctx, "/transaction/simulate?checkSignature=false", tx, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// GetTransactionStatus returns the processing status of hash.
func (c *Client) GetTransactionStatus(ctx context.Context, hash string) (string, error) {
	var data struct {
		Status string `json:"status"`
	}
	if err := c.Get(ctx, "/transaction/"+url.PathEscape(hash)+"/process-status", &data); err != nil {
		return "", err
	}
	return data.Status, nil
}

// GetTransaction fetches the processed transaction with its results and logs.
func (c *Client) GetTransaction(ctx context.Context, hash string) (*receipt.Receipt, error) {
	var data struct {
		Transaction *receipt.Receipt `json:"transaction"`
	}
	if err := c.Get(ctx, "/transaction/"+url.PathEscape(hash)+"?withResults=true", &data); err != nil {
		return nil, err
	}
	if data.Transaction == nil {
		return nil, fmt.Errorf("%w: missing transaction", ErrParse)
	}
	if data.Transaction.Hash == "" {
		data.Transaction.Hash = hash
	}
	return data.Transaction, nil
}

// QueryContract runs a read-only contract function. A return code other
// than "ok" is a *QueryError.
func (c *Client) QueryContract(ctx context.Context, q *VMQuery) (*VMQueryResult, error) {
	if q.Args == nil {
		q.Args = []string{}
	}
	var data struct {
		Data *VMQueryResult `json:"data"`
	}
	if err := c.Post(ctx, "/vm-values/query", q, &data); err != nil {
		return nil, err
	}
	if data.Data == nil {
		return nil, fmt.Errorf("%w: missing query result", ErrParse)
	}
	if data.Data.ReturnCode != returnCodeOK {
		return nil, &QueryError{ReturnCode: data.Data.ReturnCode, ReturnMessage: data.Data.ReturnMessage}
	}
	return data.Data, nil
}
