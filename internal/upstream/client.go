// internal/upstream/client.go

// Package upstream is the typed access layer for the publishing platform
// API. It attaches session credentials and site context to outgoing calls
// and classifies every failure into client/server/network so retry policy
// can be decided by the caller.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Options are the per-call knobs. Token and Site are attached when present;
// their absence is not an error at this layer, it is the server's concern.
// Quiet suppresses the client's own warn log so call sites can apply custom
// messaging without double-reporting.
type Options struct {
	Token string
	Site  string
	Quiet bool
}

// Response is a successful (2xx) upstream answer.
type Response struct {
	Status int
	Body   []byte
}

// Decode unmarshals the response body, unwrapping a {status,message,data}
// envelope when one is present.
func (r *Response) Decode(v interface{}) error {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(r.Body, &env); err == nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, v)
	}
	return json.Unmarshal(r.Body, v)
}

type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Do issues one request. body (when non-nil) is JSON-encoded. The error is
// always a *CallError carrying the classification tag.
func (c *Client) Do(ctx context.Context, method, path string, body interface{}, opts Options) (*Response, *CallError) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, &CallError{Kind: KindClient, Status: http.StatusBadRequest, Message: "failed to encode request body: " + err.Error()}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &CallError{Kind: KindClient, Status: http.StatusBadRequest, Message: err.Error()}
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.Token)
	}
	if opts.Site != "" {
		req.Header.Set("X-Site", opts.Site)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		callErr := &CallError{Kind: KindNetwork, Message: err.Error()}
		c.warn(callErr, method, path, opts)
		return nil, callErr
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		callErr := &CallError{Kind: KindNetwork, Message: "failed to read response: " + err.Error()}
		c.warn(callErr, method, path, opts)
		return nil, callErr
	}

	if resp.StatusCode >= 400 {
		callErr := classify(resp.StatusCode, envelopeMessage(data))
		c.warn(callErr, method, path, opts)
		return nil, callErr
	}

	return &Response{Status: resp.StatusCode, Body: data}, nil
}

// DoWithRetry re-issues the call while the outcome advises retry, up to
// maxAttempts total tries, backing off between attempts. Only one warn line
// is emitted for the whole chain regardless of attempt count.
func (c *Client) DoWithRetry(ctx context.Context, method, path string, body interface{}, opts Options, maxAttempts int) (*Response, *CallError) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	quiet := opts
	quiet.Quiet = true

	var lastErr *CallError
	backoff := 250 * time.Millisecond

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, callErr := c.Do(ctx, method, path, body, quiet)
		if callErr == nil {
			return resp, nil
		}
		lastErr = callErr

		if !callErr.RetryAdvised() || attempt == maxAttempts {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, &CallError{Kind: KindNetwork, Message: ctx.Err().Error()}
		}
		backoff *= 2
	}

	c.warn(lastErr, method, path, opts)
	return nil, lastErr
}

func (c *Client) warn(callErr *CallError, method, path string, opts Options) {
	if opts.Quiet || c.logger == nil {
		return
	}
	c.logger.Warn("upstream call failed",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("kind", callErr.Kind.String()),
		zap.Int("status", callErr.Status),
		zap.String("message", callErr.Message),
	)
}

// envelopeMessage pulls the human message out of an error envelope body.
func envelopeMessage(body []byte) string {
	var env struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	if env.Message != "" {
		return env.Message
	}
	return env.Error
}
