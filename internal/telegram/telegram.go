// Package telegram is a minimal Telegram Bot API client: send, edit and
// delete messages with reply-keyboard support, plus a long-polling update
// loop. It implements the controller's Transport interface.
package telegram

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

	"github.com/avralex/tradebrief/internal/bot"
)

// Client talks to the Telegram Bot API.
type Client struct {
	token   string
	baseURL string
	client  *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithAPIBaseURL overrides the Bot API endpoint (used in tests).
func WithAPIBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithProxy routes API calls through an HTTP proxy.
func WithProxy(proxyURL string) Option {
	return func(c *Client) {
		if u, err := url.Parse(proxyURL); err == nil {
			c.client.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
		}
	}
}

// NewClient creates a Bot API client for the given token.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		token:   token,
		baseURL: "https://api.telegram.org",
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// --- Wire types ---

type keyboardButton struct {
	Text string `json:"text"`
}

type replyKeyboardMarkup struct {
	Keyboard        [][]keyboardButton `json:"keyboard"`
	ResizeKeyboard  bool               `json:"resize_keyboard"`
	OneTimeKeyboard bool               `json:"one_time_keyboard"`
}

type replyKeyboardRemove struct {
	RemoveKeyboard bool `json:"remove_keyboard"`
}

type sendMessageRequest struct {
	ChatID      int64  `json:"chat_id"`
	Text        string `json:"text"`
	ParseMode   string `json:"parse_mode,omitempty"`
	ReplyMarkup any    `json:"reply_markup,omitempty"`
}

type editMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	MessageID int    `json:"message_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type deleteMessageRequest struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int   `json:"message_id"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

type messageResult struct {
	MessageID int `json:"message_id"`
}

// User describes the bot account, as returned by getMe.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

// GetMe returns the bot account the token belongs to. Useful as a
// credential check.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	raw, err := c.call(ctx, "getMe", struct{}{})
	if err != nil {
		return nil, err
	}
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("getMe: decode result: %w", err)
	}
	return &u, nil
}

// --- bot.Transport implementation ---

// Send delivers a reply as an HTML-formatted message. If Telegram rejects
// the HTML entities it retries once as plain text so the user always gets
// an answer.
func (c *Client) Send(ctx context.Context, chatID int64, r bot.Reply) (int, error) {
	req := sendMessageRequest{
		ChatID:      chatID,
		Text:        r.Text,
		ParseMode:   "HTML",
		ReplyMarkup: replyMarkup(r),
	}

	id, err := c.sendMessage(ctx, req)
	if err == nil {
		return id, nil
	}

	req.ParseMode = ""
	if id, retryErr := c.sendMessage(ctx, req); retryErr == nil {
		return id, nil
	}
	return 0, err
}

// Edit replaces the text of an existing message.
func (c *Client) Edit(ctx context.Context, chatID int64, msgID int, text string) error {
	_, err := c.call(ctx, "editMessageText", editMessageRequest{
		ChatID:    chatID,
		MessageID: msgID,
		Text:      text,
		ParseMode: "HTML",
	})
	return err
}

// Delete removes a message.
func (c *Client) Delete(ctx context.Context, chatID int64, msgID int) error {
	_, err := c.call(ctx, "deleteMessage", deleteMessageRequest{
		ChatID:    chatID,
		MessageID: msgID,
	})
	return err
}

// --- Internals ---

func replyMarkup(r bot.Reply) any {
	if len(r.Keyboard) > 0 {
		rows := make([][]keyboardButton, len(r.Keyboard))
		for i, row := range r.Keyboard {
			rows[i] = make([]keyboardButton, len(row))
			for j, label := range row {
				rows[i][j] = keyboardButton{Text: label}
			}
		}
		return replyKeyboardMarkup{
			Keyboard:        rows,
			ResizeKeyboard:  true,
			OneTimeKeyboard: true,
		}
	}
	if r.RemoveKeyboard {
		return replyKeyboardRemove{RemoveKeyboard: true}
	}
	return nil
}

func (c *Client) sendMessage(ctx context.Context, req sendMessageRequest) (int, error) {
	raw, err := c.call(ctx, "sendMessage", req)
	if err != nil {
		return 0, err
	}
	var msg messageResult
	if err := json.Unmarshal(raw, &msg); err != nil {
		return 0, fmt.Errorf("parse sendMessage result: %w", err)
	}
	return msg.MessageID, nil
}

// call posts a request to a Bot API method and returns the raw result.
func (c *Client) call(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	apiURL := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", method, err)
	}

	var api apiResponse
	if err := json.Unmarshal(respBody, &api); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", method, err)
	}
	if !api.OK {
		return nil, fmt.Errorf("%s: telegram API error: status %d, %s", method, resp.StatusCode, api.Description)
	}
	return api.Result, nil
}
