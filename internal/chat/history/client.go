// Package history is the HTTP boundary to the chat backend: login, room
// message history, and message reporting.
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/polyglot.chat/internal/chat/domain"
	"github.com/louisbranch/polyglot.chat/internal/platform/timeouts"
)

// DefaultLimit is the history page size requested on room entry.
const DefaultLimit = 50

// Config defines the inputs for the HTTP API boundary.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client calls the chat backend's JSON HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New builds an API client.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = timeouts.HTTPRequest
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type loginRequest struct {
	Username string `json:"username"`
	Language string `json:"language"`
}

type historyResponse struct {
	Messages []domain.Message `json:"messages"`
}

type reportRequest struct {
	MessageID string `json:"messageId"`
	Reason    string `json:"reason"`
}

// Login exchanges a username and language preference for a session identity.
func (c *Client) Login(ctx context.Context, username, language string) (domain.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.Session{}, errors.New("username is required")
	}

	var session domain.Session
	err := c.postJSON(ctx, "/api/auth/login", loginRequest{Username: username, Language: language}, &session)
	if err != nil {
		return domain.Session{}, fmt.Errorf("login: %w", err)
	}
	if strings.TrimSpace(session.UserID) == "" {
		return domain.Session{}, errors.New("login returned empty user id")
	}
	if strings.TrimSpace(session.Username) == "" {
		session.Username = username
	}
	if strings.TrimSpace(session.PreferredLanguage) == "" {
		session.PreferredLanguage = language
	}
	return session, nil
}

// MessageHistory loads the most recent messages for a room.
func (c *Client) MessageHistory(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return nil, errors.New("room id is required")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	endpoint := c.baseURL + "/api/messages/" + url.PathEscape(roomID) + "?limit=" + strconv.Itoa(limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build history request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call history endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("history status %d", resp.StatusCode)
	}

	var payload historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode history response: %w", err)
	}
	return payload.Messages, nil
}

// Report flags a message for moderator review.
func (c *Client) Report(ctx context.Context, messageID, reason string) error {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return errors.New("message id is required")
	}
	if err := c.postJSON(ctx, "/api/messages/report", reportRequest{MessageID: messageID, Reason: reason}, nil); err != nil {
		return fmt.Errorf("report message: %w", err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s status %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
