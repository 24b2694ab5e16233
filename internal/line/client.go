// Package line talks to the LINE Messaging API: pushing text to a linked
// user and reading signed webhook deliveries.
package line

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const defaultAPIURL = "https://api.line.me"

// maxTextLength is the Messaging API limit for one text message.
const maxTextLength = 5000

var ErrNotConfigured = errors.New("line client not configured: missing channel access token")

type Client struct {
	accessToken   string
	channelSecret string
	apiURL        string
	httpClient    *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

func WithAPIURL(u string) Option {
	return func(cl *Client) { cl.apiURL = u }
}

func NewClient(accessToken, channelSecret string, opts ...Option) *Client {
	c := &Client{
		accessToken:   accessToken,
		channelSecret: channelSecret,
		apiURL:        defaultAPIURL,
		httpClient:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Configured() bool {
	return c.accessToken != ""
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type pushRequest struct {
	To       string        `json:"to"`
	Messages []textMessage `json:"messages"`
}

type replyRequest struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []textMessage `json:"messages"`
}

// PushText sends a text message to a LINE user id.
func (c *Client) PushText(ctx context.Context, to, text string) error {
	return c.post(ctx, "/v2/bot/message/push", pushRequest{
		To:       to,
		Messages: []textMessage{{Type: "text", Text: truncate(text)}},
	})
}

// ReplyText answers a webhook event using its reply token.
func (c *Client) ReplyText(ctx context.Context, replyToken, text string) error {
	return c.post(ctx, "/v2/bot/message/reply", replyRequest{
		ReplyToken: replyToken,
		Messages:   []textMessage{{Type: "text", Text: truncate(text)}},
	})
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send line message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("line API error: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}

// VerifySignature checks the X-Line-Signature header against the raw body.
func (c *Client) VerifySignature(body []byte, signature string) bool {
	if c.channelSecret == "" || signature == "" {
		return false
	}
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(c.channelSecret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

func truncate(text string) string {
	r := []rune(text)
	if len(r) <= maxTextLength {
		return text
	}
	return string(r[:maxTextLength-1]) + "…"
}
