package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/z-admin/assistant/internal/model/chat"
)

// APIKeyHeader carries the optional static API key.
const APIKeyHeader = "X-API-Key"

const maxErrorBody = 64 << 10

// Config describes the remote chat endpoint.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Reply is the result of a successful send.
type Reply struct {
	Message  string
	Actions  []chat.Action
	Metadata map[string]any
}

// Client issues session, history, message and health calls. It keeps no
// conversation state and never retries.
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	credentials CredentialProvider
	logger      *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithCredentials sets the bearer token source.
func WithCredentials(p CredentialProvider) Option {
	return func(c *Client) { c.credentials = p }
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client for cfg.BaseURL.
func New(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type createSessionRequest struct {
	UserID string `json:"user_id"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

type historyResponse struct {
	Messages []chat.Message `json:"messages"`
}

type sendMessageRequest struct {
	Content   string         `json:"content"`
	SessionID string         `json:"session_id"`
	Context   map[string]any `json:"context"`
}

type sendMessageResponse struct {
	Message  string                  `json:"message"`
	Actions  []chat.ActionDescriptor `json:"actions,omitempty"`
	Metadata map[string]any          `json:"metadata,omitempty"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// CreateSession asks the service for a new session id. Every failure is a
// *TransportError so callers can fall back to a local id.
func (c *Client) CreateSession(ctx context.Context, userID string) (string, error) {
	var out createSessionResponse
	if err := c.do(ctx, http.MethodPost, "/session", nil, createSessionRequest{UserID: userID}, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.SessionID) == "" {
		return "", &TransportError{Status: http.StatusOK, Message: "session response missing session_id"}
	}
	return out.SessionID, nil
}

// FetchHistory returns the session transcript. Failures are logged and read as
// an empty history.
func (c *Client) FetchHistory(ctx context.Context, sessionID string) []chat.Message {
	var out historyResponse
	query := url.Values{"session_id": {sessionID}}
	if err := c.do(ctx, http.MethodGet, "/history", query, nil, &out); err != nil {
		c.logger.Warn("history unavailable, starting empty",
			zap.String("session_id", sessionID), zap.Error(err))
		return []chat.Message{}
	}
	if out.Messages == nil {
		return []chat.Message{}
	}
	return out.Messages
}

// SendMessage posts a user message and returns the assistant reply.
func (c *Client) SendMessage(ctx context.Context, content, sessionID string, chatContext map[string]any) (*Reply, error) {
	if chatContext == nil {
		chatContext = map[string]any{}
	}
	req := sendMessageRequest{Content: content, SessionID: sessionID, Context: chatContext}

	var out sendMessageResponse
	if err := c.do(ctx, http.MethodPost, "/message", nil, req, &out); err != nil {
		return nil, err
	}
	return &Reply{
		Message:  out.Message,
		Actions:  chat.DecodeActions(out.Actions),
		Metadata: out.Metadata,
	}, nil
}

// HealthCheck reports whether the service answered with a 2xx status.
func (c *Client) HealthCheck(ctx context.Context) bool {
	req, err := c.newRequest(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("health check failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &TransportError{Message: fmt.Sprintf("encode request: %v", err), Err: err}
		}
		payload = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, query, payload)
	if err != nil {
		return networkError(err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return networkError(err)
	}
	defer resp.Body.Close()

	c.logger.Debug("request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody errorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = json.Unmarshal(raw, &errBody)
		return statusError(resp.StatusCode, strings.TrimSpace(errBody.Message))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("malformed response from %s: %v", path, err),
			Err:     err,
		}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.credentials != nil {
		if token, ok := c.credentials.Token(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}
	return req, nil
}
