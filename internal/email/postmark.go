package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
)

const postmarkURL = "https://api.postmarkapp.com/email"

var ErrNotConfigured = errors.New("email client not configured: missing server token")

type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// NewClient builds a Postmark client. baseURL is the public address of this
// service and prefixes every link placed in a message.
func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     baseURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendLoginCode sends the 6-digit sign-in code.
func (c *Client) SendLoginCode(ctx context.Context, toEmail, code string) error {
	text := fmt.Sprintf("Your Zaikon sign-in code is %s\n\nThe code expires in 15 minutes.", code)
	htmlBody := fmt.Sprintf(
		`<p>Your Zaikon sign-in code is</p><p style="font-size:24px;letter-spacing:4px"><strong>%s</strong></p><p>The code expires in 15 minutes.</p>`,
		html.EscapeString(code),
	)
	return c.Send(ctx, toEmail, "Your Zaikon sign-in code", text, htmlBody)
}

// SendEmailChangeLink asks the owner of the new address to confirm it.
func (c *Client) SendEmailChangeLink(ctx context.Context, toEmail, userName, code string) error {
	link := fmt.Sprintf("%s/email-change/%s", c.baseURL, code)
	text := fmt.Sprintf(
		"Hi %s,\n\nOpen the link below to confirm your new email address:\n\n%s\n\nThis link expires in 30 minutes. If you did not ask for this, ignore this message.",
		userName, link,
	)
	htmlBody := fmt.Sprintf(
		`<p>Hi %s,</p><p>Open the link below to confirm your new email address:</p><p><a href="%s">Confirm email address</a></p><p>This link expires in 30 minutes. If you did not ask for this, ignore this message.</p>`,
		html.EscapeString(userName), link,
	)
	return c.Send(ctx, toEmail, "Confirm your new Zaikon email address", text, htmlBody)
}

// Send delivers one message through the Postmark API.
func (c *Client) Send(ctx context.Context, toEmail, subject, textBody, htmlBody string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	payload := postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", postmarkURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
