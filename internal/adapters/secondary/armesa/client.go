package armesa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lorrc/armesa-dashboard/internal/core/domain"
	apperrors "github.com/lorrc/armesa-dashboard/internal/core/errors"
)

// maxResponseSize bounds the body read from any non-streaming response.
const maxResponseSize = 8 << 20

// Config holds configuration for creating a backend Client.
type Config struct {
	// BaseURL is the backend root, e.g. "https://tickets.example.com".
	// The /api prefix is added by the client.
	BaseURL string

	// ServiceToken authorizes calls made without a session in the context,
	// such as the process-wide live feed. Optional.
	ServiceToken string

	// Timeout bounds each request. The event stream is exempt.
	Timeout time.Duration

	// HTTPClient defaults to a client with Timeout.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Client talks to the Armesa ticket backend REST API.
type Client struct {
	baseURL      string
	serviceToken string
	httpClient   *http.Client
	streamClient *http.Client
	logger       *slog.Logger
}

// NewClient creates a backend client.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("armesa: invalid backend URL %q", cfg.BaseURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("armesa: backend URL must be http or https (got %q)", parsed.Scheme)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	// The event stream stays open indefinitely, so it gets a copy without
	// the overall request timeout.
	streamClient := *httpClient
	streamClient.Timeout = 0

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:      base + "/api",
		serviceToken: cfg.ServiceToken,
		httpClient:   httpClient,
		streamClient: &streamClient,
		logger:       logger.With("component", "armesa_client"),
	}, nil
}

type anonymousKey struct{}

// anonymous marks ctx so that requests made with it carry no credentials.
func anonymous(ctx context.Context) context.Context {
	return context.WithValue(ctx, anonymousKey{}, true)
}

// bearer picks the token for ctx: the session's backend token when a
// session is present, the service token otherwise.
func (c *Client) bearer(ctx context.Context) string {
	if ctx.Value(anonymousKey{}) != nil {
		return ""
	}
	if session, ok := domain.SessionFromContext(ctx); ok && session.Token != "" {
		return session.Token
	}
	return c.serviceToken
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("armesa: encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("armesa: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.bearer(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// do sends a JSON request and decodes a 2xx answer into out (may be nil).
// notFound is returned for 404 answers.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, notFound error) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperrors.NewBackendError(err, 0)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return apperrors.NewBackendError(fmt.Errorf("reading response body: %w", err), resp.StatusCode)
	}

	c.logger.DebugContext(ctx, "backend call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return mapStatus(resp.StatusCode, payload, notFound)
	}

	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return apperrors.NewBackendError(fmt.Errorf("decoding %s %s: %w", method, path, err), resp.StatusCode)
	}
	return nil
}

// errorBody is the backend error envelope. detail is a string for
// handled errors and a list for request validation failures.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

func detailMessage(payload []byte) string {
	var body errorBody
	if err := json.Unmarshal(payload, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(body.Detail, &text); err == nil {
		return text
	}
	return string(body.Detail)
}

// mapStatus translates a non-2xx backend answer into the core error set.
func mapStatus(status int, payload []byte, notFound error) error {
	detail := detailMessage(payload)

	switch {
	case status == http.StatusUnauthorized:
		return apperrors.ErrUnauthorized
	case status == http.StatusForbidden:
		if detail != "" {
			return fmt.Errorf("%w: %s", apperrors.ErrForbidden, detail)
		}
		return apperrors.ErrForbidden
	case status == http.StatusNotFound:
		if notFound == nil {
			notFound = apperrors.ErrNotFound
		}
		return notFound
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		if detail == "" {
			detail = "The backend rejected the request"
		}
		return apperrors.NewBadRequestError(apperrors.ErrBadRequest, detail)
	case status == http.StatusTooManyRequests:
		return apperrors.ErrRateLimited
	default:
		return apperrors.NewBackendError(fmt.Errorf("unexpected status %d", status), status)
	}
}
