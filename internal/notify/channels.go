package notify

import (
	"context"
	"errors"

	"github.com/dukerupert/zaikon/internal/email"
	"github.com/dukerupert/zaikon/internal/line"
	"github.com/dukerupert/zaikon/internal/model"
	"github.com/dukerupert/zaikon/internal/push"
)

const (
	ChannelEmail = "email"
	ChannelLINE  = "line"
	ChannelPush  = "push"
)

type EmailChannel struct {
	client *email.Client
}

func NewEmailChannel(client *email.Client) *EmailChannel {
	return &EmailChannel{client: client}
}

func (c *EmailChannel) Name() string { return ChannelEmail }

func (c *EmailChannel) Deliver(ctx context.Context, to *model.User, msg Message) error {
	if !c.client.Configured() || to.Email == "" {
		return ErrUnreachable
	}
	body := msg.Body
	if msg.URL != "" {
		body += "\n\n" + msg.URL
	}
	return c.client.Send(ctx, to.Email, msg.Title, body, "")
}

type LINEChannel struct {
	client *line.Client
}

func NewLINEChannel(client *line.Client) *LINEChannel {
	return &LINEChannel{client: client}
}

func (c *LINEChannel) Name() string { return ChannelLINE }

func (c *LINEChannel) Deliver(ctx context.Context, to *model.User, msg Message) error {
	if !to.LineLinked() {
		return ErrUnreachable
	}
	err := c.client.PushText(ctx, *to.LineUserID, msg.Text())
	if errors.Is(err, line.ErrNotConfigured) {
		return ErrUnreachable
	}
	return err
}

type PushChannel struct {
	notifier *push.Notifier
	enabled  bool
}

func NewPushChannel(notifier *push.Notifier, enabled bool) *PushChannel {
	return &PushChannel{notifier: notifier, enabled: enabled}
}

func (c *PushChannel) Name() string { return ChannelPush }

func (c *PushChannel) Deliver(_ context.Context, to *model.User, msg Message) error {
	if !c.enabled {
		return ErrUnreachable
	}
	sent, err := c.notifier.SendToUser(to.ID, push.Payload{Title: msg.Title, Body: msg.Body, URL: msg.URL})
	if err != nil {
		return err
	}
	if sent == 0 {
		return ErrUnreachable
	}
	return nil
}
