// Package http provides the HTTP adapter for the remote session backend.
// It implements ports.SessionAPI over the backend's JSON wire format and
// normalizes every transport and protocol failure into the domain taxonomy.
package http

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

	"github.com/aretw0/grove/internal/logging"
	"github.com/aretw0/grove/pkg/domain"
	"github.com/aretw0/grove/pkg/ports"
)

// DefaultTimeout bounds a single request when the caller's context carries
// no deadline of its own.
const DefaultTimeout = 30 * time.Second

// Client talks to the session backend. Safe for concurrent use.
type Client struct {
	baseURL string
	hc      *http.Client
	logger  *slog.Logger
	observe func(op string, elapsed time.Duration, err error)
}

var _ ports.SessionAPI = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying *http.Client, e.g. for custom
// transports or test servers.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.hc = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.hc.Timeout = d
	}
}

// WithLogger configures a structured logger for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithObserver registers a callback fired once per terminal call, used to
// feed metrics.
func WithObserver(fn func(op string, elapsed time.Duration, err error)) Option {
	return func(c *Client) {
		c.observe = fn
	}
}

// NewClient creates a Client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: DefaultTimeout},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Wire types. Field names follow the backend's JSON contract.

type createSessionRequest struct {
	AgentID string         `json:"agent_id"`
	State   map[string]any `json:"state,omitempty"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// chatResponse tolerates both reply field spellings the backend has used.
type chatResponse struct {
	Response *string `json:"response"`
	Text     *string `json:"text"`
}

type sessionResponse struct {
	SessionID string         `json:"session_id"`
	AgentID   string         `json:"agent_id"`
	State     map[string]any `json:"state"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

// CreateSession implements ports.SessionAPI.
func (c *Client) CreateSession(ctx context.Context, agentID string, initial domain.StateMap) (string, error) {
	const op = "create_session"
	if agentID == "" {
		return "", domain.Failf(domain.KindInvalidRequest, op, "agent_id is required")
	}

	var resp createSessionResponse
	req := createSessionRequest{AgentID: agentID, State: initial.Interface()}
	err := c.call(ctx, op, http.MethodPost, "/sessions", req, &resp)
	if err != nil {
		return "", err
	}
	if resp.SessionID == "" {
		return "", domain.Failf(domain.KindRemoteError, op, "backend returned no session_id")
	}
	return resp.SessionID, nil
}

// SendMessage implements ports.SessionAPI.
func (c *Client) SendMessage(ctx context.Context, sessionID, text string) (string, error) {
	const op = "send_message"
	if sessionID == "" {
		return "", domain.Failf(domain.KindInvalidRequest, op, "session_id is required")
	}

	var resp chatResponse
	err := c.call(ctx, op, http.MethodPost, "/chat", chatRequest{SessionID: sessionID, Message: text}, &resp)
	if err != nil {
		return "", err
	}
	switch {
	case resp.Response != nil:
		return *resp.Response, nil
	case resp.Text != nil:
		return *resp.Text, nil
	}
	return "", domain.Failf(domain.KindRemoteError, op, "backend reply carries neither response nor text")
}

// DeleteSession implements ports.SessionAPI. Unknown sessions delete cleanly.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	const op = "delete_session"
	if sessionID == "" {
		return domain.Failf(domain.KindInvalidRequest, op, "session_id is required")
	}

	err := c.call(ctx, op, http.MethodDelete, "/sessions/"+url.PathEscape(sessionID), nil, nil)
	if domain.KindOf(err) == domain.KindSessionNotFound {
		return nil
	}
	return err
}

// GetSession implements ports.SessionAPI.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	const op = "get_session"
	if sessionID == "" {
		return nil, domain.Failf(domain.KindInvalidRequest, op, "session_id is required")
	}

	var resp sessionResponse
	if err := c.call(ctx, op, http.MethodGet, "/sessions/"+url.PathEscape(sessionID), nil, &resp); err != nil {
		return nil, err
	}
	return wireSession(resp, op)
}

// ListSessions implements ports.SessionAPI. The backend endpoint is
// unfiltered; agentID filtering happens client-side.
func (c *Client) ListSessions(ctx context.Context, agentID string) ([]domain.Session, error) {
	const op = "list_sessions"

	var resp listSessionsResponse
	if err := c.call(ctx, op, http.MethodGet, "/sessions", nil, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.Session, 0, len(resp.Sessions))
	for _, ws := range resp.Sessions {
		if agentID != "" && ws.AgentID != agentID {
			continue
		}
		s, err := wireSession(ws, op)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, nil
}

func wireSession(ws sessionResponse, op string) (*domain.Session, error) {
	state, err := domain.StateFromAny(ws.State)
	if err != nil {
		return nil, domain.NewFailure(domain.KindRemoteError, op, err)
	}
	return &domain.Session{ID: ws.SessionID, AgentID: ws.AgentID, State: state}, nil
}

// call performs one request/response round trip and classifies the outcome.
func (c *Client) call(ctx context.Context, op, method, path string, in, out any) (err error) {
	start := time.Now()
	defer func() {
		if c.observe != nil {
			c.observe(op, time.Since(start), err)
		}
	}()

	var body io.Reader
	if in != nil {
		payload, merr := json.Marshal(in)
		if merr != nil {
			return domain.NewFailure(domain.KindInvalidRequest, op, merr)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return domain.NewFailure(domain.KindInvalidRequest, op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		// Connection refused, DNS failure, timeout: all transport-level.
		return domain.NewFailure(domain.KindUnreachable, op, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("backend call", "op", op, "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.classifyStatus(op, resp)
	}
	if out == nil {
		return nil
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return domain.Failf(domain.KindRemoteError, op, "malformed response body: %v", err)
	}
	return nil
}

// classifyStatus maps a non-2xx response onto the failure taxonomy.
func (c *Client) classifyStatus(op string, resp *http.Response) error {
	detail := readDetail(resp.Body)

	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domain.Failf(domain.KindInvalidRequest, op, "HTTP %d: %s", resp.StatusCode, detail)
	case http.StatusNotFound:
		return domain.Failf(domain.KindSessionNotFound, op, "HTTP 404: %s", detail)
	default:
		return domain.Failf(domain.KindRemoteError, op, "HTTP %d: %s", resp.StatusCode, detail)
	}
}

// readDetail extracts a short error description from the response body,
// preferring the backend's {"detail": ...} shape.
func readDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4<<10))
	if err != nil || len(raw) == 0 {
		return "no response body"
	}
	var wire struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(raw, &wire); err == nil {
		if wire.Detail != "" {
			return wire.Detail
		}
		if wire.Error != "" {
			return wire.Error
		}
	}
	return fmt.Sprintf("%.200s", strings.TrimSpace(string(raw)))
}
