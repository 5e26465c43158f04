// Package telegram is a minimal typed client for the Telegram Bot API
// methods the moderation engine needs: sending and deleting messages,
// banning, restricting, pinning, and chat/member lookups.
//
// The client wraps exactly one HTTP call per method. Errors reported by the
// API (ok=false) are returned as *APIError carrying the provider's error
// code and description; transport failures are returned as wrapped Go errors.
// Neither is ever a panic. The base URL is configurable so tests can point
// the client at a local fake server.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultBaseURL is the production Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// APIError is a structured error returned by the Bot API (ok=false).
type APIError struct {
	Code        int
	Description string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api error %d: %s", e.Code, e.Description)
}

// AsAPIError unwraps err into an *APIError when the failure originated from
// the Bot API rather than the transport.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Message is the subset of the Bot API message object the engine consumes.
type Message struct {
	MessageID int64 `json:"message_id"`
	Chat      *Chat `json:"chat,omitempty"`
}

// Chat is the subset of the Bot API chat object the engine consumes. getChat
// also returns private chats (users), so the user-name fields are present.
type Chat struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title,omitempty"`
	UserName  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// ChatPermissions mirrors the Bot API permissions object used by
// restrictChatMember. Only the three send permissions the engine toggles are
// modeled.
type ChatPermissions struct {
	CanSendMessages      bool `json:"can_send_messages"`
	CanSendPolls         bool `json:"can_send_polls"`
	CanSendOtherMessages bool `json:"can_send_other_messages"`
}

// Client issues Bot API calls for a single bot token.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint (tests point this at httptest).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// WithTimeout bounds every API call at the transport level.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpc.Timeout = d }
}

// New constructs a Client for the given bot token.
func New(token string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		token:   token,
		httpc:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// apiResponse is the Bot API envelope common to every method.
type apiResponse struct {
	OK          bool            `json:"ok"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// call POSTs payload to the named Bot API method and decodes the result into
// out when out is non-nil.
func (c *Client) call(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram %s: encode: %w", method, err)
	}
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("telegram %s: read response: %w", method, err)
	}

	var env apiResponse
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("telegram %s: decode response: %w", method, err)
	}
	if !env.OK {
		code := env.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		return &APIError{Code: code, Description: env.Description}
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}

// replyParameters is the Bot API reply linkage object.
type replyParameters struct {
	MessageID int64 `json:"message_id"`
}

// SendMessage sends text to a chat. When replyTo is > 0 the message is sent
// as a reply to that message ID.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, replyTo int64) (*Message, error) {
	payload := struct {
		ChatID          int64            `json:"chat_id"`
		Text            string           `json:"text"`
		ReplyParameters *replyParameters `json:"reply_parameters,omitempty"`
	}{ChatID: chatID, Text: text}
	if replyTo > 0 {
		payload.ReplyParameters = &replyParameters{MessageID: replyTo}
	}
	var msg Message
	if err := c.call(ctx, "sendMessage", payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// BanChatMember permanently bans a user from a chat.
func (c *Client) BanChatMember(ctx context.Context, chatID, userID int64) error {
	payload := struct {
		ChatID int64 `json:"chat_id"`
		UserID int64 `json:"user_id"`
	}{chatID, userID}
	return c.call(ctx, "banChatMember", payload, nil)
}

// UnbanChatMember lifts a ban so the user may rejoin via invite link.
func (c *Client) UnbanChatMember(ctx context.Context, chatID, userID int64) error {
	payload := struct {
		ChatID int64 `json:"chat_id"`
		UserID int64 `json:"user_id"`
	}{chatID, userID}
	return c.call(ctx, "unbanChatMember", payload, nil)
}

// RestrictChatMember applies perms to a user. until is a unix timestamp;
// zero means the restriction is permanent.
func (c *Client) RestrictChatMember(ctx context.Context, chatID, userID int64, perms ChatPermissions, until int64) error {
	payload := struct {
		ChatID      int64           `json:"chat_id"`
		UserID      int64           `json:"user_id"`
		Permissions ChatPermissions `json:"permissions"`
		UntilDate   int64           `json:"until_date,omitempty"`
	}{chatID, userID, perms, until}
	return c.call(ctx, "restrictChatMember", payload, nil)
}

// DeleteMessage removes a message from a chat.
func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	payload := struct {
		ChatID    int64 `json:"chat_id"`
		MessageID int64 `json:"message_id"`
	}{chatID, messageID}
	return c.call(ctx, "deleteMessage", payload, nil)
}

// PinChatMessage pins a message, optionally without notifying members.
func (c *Client) PinChatMessage(ctx context.Context, chatID, messageID int64, disableNotification bool) error {
	payload := struct {
		ChatID              int64 `json:"chat_id"`
		MessageID           int64 `json:"message_id"`
		DisableNotification bool  `json:"disable_notification,omitempty"`
	}{chatID, messageID, disableNotification}
	return c.call(ctx, "pinChatMessage", payload, nil)
}

// UnpinChatMessage unpins a message.
func (c *Client) UnpinChatMessage(ctx context.Context, chatID, messageID int64) error {
	payload := struct {
		ChatID    int64 `json:"chat_id"`
		MessageID int64 `json:"message_id"`
	}{chatID, messageID}
	return c.call(ctx, "unpinChatMessage", payload, nil)
}

// GetChat returns information about a chat (or, for positive IDs, a user).
func (c *Client) GetChat(ctx context.Context, chatID int64) (*Chat, error) {
	payload := struct {
		ChatID int64 `json:"chat_id"`
	}{chatID}
	var chat Chat
	if err := c.call(ctx, "getChat", payload, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// GetChatMemberCount returns the number of members in a chat.
func (c *Client) GetChatMemberCount(ctx context.Context, chatID int64) (int, error) {
	payload := struct {
		ChatID int64 `json:"chat_id"`
	}{chatID}
	var count int
	if err := c.call(ctx, "getChatMemberCount", payload, &count); err != nil {
		return 0, err
	}
	return count, nil
}
