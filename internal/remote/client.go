// Package remote talks to the authoritative chat API over REST.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

var (
	ErrUnauthorized = errors.New("remote: unauthorized")
	ErrNotFound     = errors.New("remote: not found")
)

// ChatSnapshot is one conversation as the server reports it.
type ChatSnapshot struct {
	ChatID    string           `json:"chat_id"`
	Name      string           `json:"name"`
	CreatedAt time.Time        `json:"created_at"`
	CreatorID string           `json:"creator_id"`
	IsGroup   bool             `json:"is_group"`
	Members   []MemberSnapshot `json:"members"`
}

// MemberSnapshot is one conversation member as the server reports it.
type MemberSnapshot struct {
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// ContactSnapshot is one contact as the server reports it.
type ContactSnapshot struct {
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Picture    string `json:"picture"`
	Status     string `json:"status"`
	IsFavorite bool   `json:"is_favorite"`
}

// UserSnapshot is one user profile as the server reports it.
type UserSnapshot struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Picture  string `json:"picture"`
}

// SendMessageRequest is the outbound message submission body.
type SendMessageRequest struct {
	ChatID          string `json:"chat_id"`
	ClientMessageID string `json:"client_message_id"`
	Content         string `json:"content"`
}

// SendMessageResponse carries the server-assigned message id.
type SendMessageResponse struct {
	MessageID string `json:"message_id"`
}

// CreateChatRequest creates a conversation with the given members.
type CreateChatRequest struct {
	Name      string   `json:"name,omitempty"`
	IsGroup   bool     `json:"is_group"`
	MemberIDs []string `json:"member_ids"`
}

// API is the subset of the chat server's REST surface this client uses.
type API interface {
	ListChats(ctx context.Context) ([]ChatSnapshot, error)
	ListContacts(ctx context.Context) ([]ContactSnapshot, error)
	ListMembers(ctx context.Context, chatID string) ([]MemberSnapshot, error)
	GetUser(ctx context.Context, userID string) (UserSnapshot, error)
	CreateChat(ctx context.Context, req CreateChatRequest) (ChatSnapshot, error)
	LeaveChat(ctx context.Context, chatID string) error
	SendMessage(ctx context.Context, req SendMessageRequest) (SendMessageResponse, error)
}

// Client implements API against a base URL with bearer auth.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// NewClient constructs a Client. httpClient may be nil; a default with
// a request timeout is used then.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

// SetToken stores the bearer credential used on subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// envelope wraps every response body. A null data field means an empty
// collection, not an error.
type envelope struct {
	Data json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 300:
		return fmt.Errorf("remote: %s %s returned %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("remote: decode %s %s: %w", method, path, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

// ListChats fetches the full conversation snapshot for the user.
func (c *Client) ListChats(ctx context.Context) ([]ChatSnapshot, error) {
	chats := []ChatSnapshot{}
	err := c.do(ctx, http.MethodGet, "/chats", nil, &chats)
	return chats, err
}

// ListContacts fetches the user's contact snapshot.
func (c *Client) ListContacts(ctx context.Context) ([]ContactSnapshot, error) {
	contacts := []ContactSnapshot{}
	err := c.do(ctx, http.MethodGet, "/friends", nil, &contacts)
	return contacts, err
}

// ListMembers fetches the member snapshot of one conversation.
func (c *Client) ListMembers(ctx context.Context, chatID string) ([]MemberSnapshot, error) {
	members := []MemberSnapshot{}
	err := c.do(ctx, http.MethodGet, "/chats/"+chatID+"/members", nil, &members)
	return members, err
}

// GetUser fetches one user profile.
func (c *Client) GetUser(ctx context.Context, userID string) (UserSnapshot, error) {
	var user UserSnapshot
	err := c.do(ctx, http.MethodGet, "/users/"+userID, nil, &user)
	return user, err
}

// CreateChat creates a conversation on the server.
func (c *Client) CreateChat(ctx context.Context, reqBody CreateChatRequest) (ChatSnapshot, error) {
	var chat ChatSnapshot
	err := c.do(ctx, http.MethodPost, "/chats", reqBody, &chat)
	return chat, err
}

// LeaveChat removes the current user from a conversation.
func (c *Client) LeaveChat(ctx context.Context, chatID string) error {
	return c.do(ctx, http.MethodPost, "/chats/"+chatID+"/leave", nil, nil)
}

// SendMessage submits a message and returns its server-assigned id.
func (c *Client) SendMessage(ctx context.Context, reqBody SendMessageRequest) (SendMessageResponse, error) {
	var resp SendMessageResponse
	err := c.do(ctx, http.MethodPost, "/messages", reqBody, &resp)
	return resp, err
}
