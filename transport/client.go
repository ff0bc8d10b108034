// Package transport talks to the anyGem web app backend. Every operation
// resolves to a value: send failures become the error tag of the reply and
// listing or loading failures become empty results.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kir-gadjello/anygem/conversation"
)

const (
	actionChat         = "chat"
	actionListSessions = "list_sessions"
	actionLoadSession  = "load_session"

	defaultTimeout = 5 * time.Minute
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithVerbose dumps every request and response to the log.
func WithVerbose() ClientOption {
	return func(c *Client) {
		c.httpClient.Transport = &loggingTransport{next: c.httpClient.Transport}
	}
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ conversation.Backend = (*Client)(nil)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

func (c *Client) Send(ctx context.Context, p conversation.Payload) conversation.Reply {
	log.Printf("[Transport] Send started session_id=%s mode=%s has_file=%t", p.SessionID, p.Mode, p.FileData != "")

	var reply conversation.Reply
	if err := c.do(ctx, http.MethodPost, actionChat, nil, p, &reply); err != nil {
		log.Printf("[Transport] Send failed: err=%v", err)
		return conversation.Failed(err.Error())
	}

	log.Printf("[Transport] Send completed status=%s model=%s", reply.Status, reply.Model)
	return reply
}

type sessionsResponse struct {
	Sessions []wireSession `json:"sessions"`
}

// wireSession accepts updatedAt as unix millis or an RFC 3339 string.
type wireSession struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Preview   string          `json:"preview"`
	UpdatedAt json.RawMessage `json:"updatedAt"`
}

func (c *Client) ListSessions(ctx context.Context, identity string) []conversation.Session {
	var resp sessionsResponse
	query := url.Values{"user_id": {identity}}
	if err := c.do(ctx, http.MethodGet, actionListSessions, query, nil, &resp); err != nil {
		log.Printf("[Transport] ListSessions failed: identity=%s err=%v", identity, err)
		return nil
	}

	sessions := make([]conversation.Session, 0, len(resp.Sessions))
	for _, s := range resp.Sessions {
		sessions = append(sessions, conversation.Session{
			ID:        s.ID,
			Title:     s.Title,
			Preview:   s.Preview,
			UpdatedAt: parseUpdatedAt(s.UpdatedAt),
		})
	}
	log.Printf("[Transport] ListSessions completed identity=%s count=%d", identity, len(sessions))
	return sessions
}

type loadResponse struct {
	Logs []conversation.LogEntry `json:"logs"`
}

func (c *Client) LoadSession(ctx context.Context, id string) []conversation.LogEntry {
	var resp loadResponse
	query := url.Values{"session_id": {id}}
	if err := c.do(ctx, http.MethodGet, actionLoadSession, query, nil, &resp); err != nil {
		log.Printf("[Transport] LoadSession failed: session_id=%s err=%v", id, err)
		return nil
	}
	log.Printf("[Transport] LoadSession completed session_id=%s count=%d", id, len(resp.Logs))
	return resp.Logs
}

func (c *Client) do(ctx context.Context, method, action string, query url.Values, body, out any) error {
	endpoint, err := c.endpoint(action, query)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return handleError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) endpoint(action string, query url.Values) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("api_url is not configured (set it in config.yaml or ANYGEM_API_URL)")
	}
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid api_url %q: %w", c.baseURL, err)
	}

	q := u.Query()
	q.Set("action", action)
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func handleError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	msg := string(body)

	// Prefer the backend's own error field when it sent one
	var tagged struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &tagged) == nil && tagged.Error != "" {
		msg = tagged.Error
	}
	if len(msg) > 500 {
		msg = msg[:500] + "..."
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}

func parseUpdatedAt(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var ms float64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return int64(ms)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UnixMilli()
	}
	return 0
}
