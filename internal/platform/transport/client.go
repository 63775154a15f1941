// Package transport is the single authenticated egress point of the client.
// It attaches the bearer credential, normalizes the backend error envelope
// into a typed taxonomy, and recovers exactly one error class: a 401 fires
// the injected auth-failure callback so the session can invalidate itself.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// TokenSource yields the current bearer token, if any. The session
// controller is the production implementation.
type TokenSource func() (string, bool)

// Client performs all HTTP calls against the backend.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	tokens        TokenSource
	onAuthFailure func()
	log           zerolog.Logger
}

// Options configures a Client.
type Options struct {
	BaseURL string
	// Tokens yields the bearer token attached to every request. May be nil
	// for a client that only hits the unauthenticated endpoints.
	Tokens TokenSource
	// OnAuthFailure is invoked once per 401 response, before the error is
	// surfaced to the caller. May be nil.
	OnAuthFailure func()
	// Timeout of zero leaves the transport default in place; the client
	// performs no retries or cancellation of its own.
	Timeout time.Duration
	Logger  zerolog.Logger
}

func New(opts Options) *Client {
	return &Client{
		httpClient:    &http.Client{Timeout: opts.Timeout},
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		tokens:        opts.Tokens,
		onAuthFailure: opts.OnAuthFailure,
		log:           opts.Logger,
	}
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Get issues a GET and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	return c.Do(ctx, http.MethodPost, path, in, out)
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, in, out any) error {
	return c.Do(ctx, http.MethodPut, path, in, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out)
}

// Do performs one JSON request. A nil out discards the response body.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		body = buf
	}

	resp, err := c.send(ctx, method, path, body, "application/json")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return c.normalize(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindNetwork, Status: resp.StatusCode, cause: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

// Download streams a binary response (report PDFs). The caller owns the
// returned reader and is responsible for saving and closing it.
func (c *Client) Download(ctx context.Context, path string) (io.ReadCloser, string, error) {
	resp, err := c.send(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode >= 400 {
		defer func() { _ = resp.Body.Close() }()
		return nil, "", c.normalize(resp)
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if contentType != "" && body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if c.tokens != nil {
		if tok, ok := c.tokens(); ok {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("method", method).Str("path", path).Msg("transport failure")
		return nil, &Error{Kind: KindNetwork, cause: err}
	}
	return resp, nil
}

// normalize maps a non-2xx response onto the error taxonomy. The body is
// consumed here.
func (c *Client) normalize(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	status := resp.StatusCode

	if status >= 500 {
		return &Error{Kind: KindNetwork, Status: status, Raw: strings.TrimSpace(string(raw))}
	}

	var env envelope
	decoded := json.Unmarshal(raw, &env) == nil && env.Message != ""

	if status == http.StatusUnauthorized {
		if c.onAuthFailure != nil {
			c.onAuthFailure()
		}
		msg := "authentication required"
		if decoded {
			msg = env.Message
		}
		return &Error{Kind: KindAuth, Status: status, Message: msg}
	}

	e := &Error{Status: status, Raw: strings.TrimSpace(string(raw))}
	if decoded {
		e.Message = env.Message
		e.Fields = env.Errors
	}

	switch {
	case (status == http.StatusBadRequest || status == http.StatusUnprocessableEntity) && len(e.Fields) > 0:
		e.Kind = KindValidation
	case status == http.StatusForbidden:
		e.Kind = KindForbidden
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	case status == http.StatusConflict:
		e.Kind = KindConflict
	default:
		e.Kind = KindRemote
	}
	return e
}
