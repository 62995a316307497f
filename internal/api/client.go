package api

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

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// maxErrorBody bounds how much of a failed response is read for the
// server message.
const maxErrorBody = 64 << 10

// Client is the backend REST client.
//
// Login and registration are sent without credentials. Every other call is
// authenticated with a bearer token obtained from the configured
// oauth2.TokenSource (the session store in production) and attached by
// oauth2.Transport.
//
// Thread-safety: Client is safe for concurrent use.
type Client struct {
	baseURL   *url.URL
	transport http.RoundTripper
	tokens    oauth2.TokenSource
	requestID func() string
}

// Option configures a Client.
type Option func(*Client)

// WithTransport sets the underlying round tripper (default
// http.DefaultTransport). Tests point this at an httptest server's client.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = rt
	}
}

// WithRequestIDs overrides the X-Request-ID generator (default UUIDv7).
func WithRequestIDs(gen func() string) Option {
	return func(c *Client) {
		c.requestID = gen
	}
}

// New creates a client for the API rooted at baseURL.
//
// tokens may be nil when only unauthenticated endpoints are used.
func New(baseURL string, tokens oauth2.TokenSource, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parse base url: unsupported scheme %q", u.Scheme)
	}

	c := &Client{
		baseURL:   u,
		transport: http.DefaultTransport,
		tokens:    tokens,
		requestID: func() string { return uuid.Must(uuid.NewV7()).String() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// bearer returns a token source that always yields token.
func bearer(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}

// do sends one JSON request and decodes a JSON response into out.
//
// auth == nil sends the request without credentials. The token is read
// once up front so a concurrent sign-out cannot swap credentials mid-call.
func (c *Client) do(ctx context.Context, method, path string, auth oauth2.TokenSource, in, out any) error {
	op := method + " " + path

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", c.requestID())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := &http.Client{Transport: c.transport}
	if auth != nil {
		tok, err := auth.Token()
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		httpClient.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(tok),
			Base:   c.transport,
		}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", op, ctxErr)
		}
		return fmt.Errorf("%s: %w: %w", op, ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s: %w", op, decodeRemoteError(resp))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%s: %w: %w", op, ErrMalformedResponse, err)
	}
	return nil
}

// authed is do() with the client's token source.
func (c *Client) authed(ctx context.Context, method, path string, in, out any) error {
	if c.tokens == nil {
		return fmt.Errorf("%s %s: no token source configured", method, path)
	}
	return c.do(ctx, method, path, c.tokens, in, out)
}

// errorBody covers the message shapes the backend uses for failures.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func decodeRemoteError(resp *http.Response) *RemoteError {
	re := &RemoteError{Status: resp.StatusCode}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var eb errorBody
	if json.Unmarshal(data, &eb) == nil {
		re.Message = eb.Error
		if re.Message == "" {
			re.Message = eb.Message
		}
	}
	if re.Message == "" {
		re.Message = http.StatusText(resp.StatusCode)
	}
	return re
}
