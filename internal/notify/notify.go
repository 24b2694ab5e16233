// Package notify delivers short messages to users over whatever channels
// are configured. Delivery never affects the data change being reported.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/zaikon/internal/model"
)

// ErrUnreachable means the user has no address on a channel, for example
// no linked LINE account.
var ErrUnreachable = errors.New("recipient not reachable on channel")

type Message struct {
	Title string
	Body  string
	URL   string
}

func (m Message) Text() string {
	if m.Title == "" {
		return m.Body
	}
	return m.Title + "\n\n" + m.Body
}

type Channel interface {
	Name() string
	Deliver(ctx context.Context, to *model.User, msg Message) error
}

const defaultTimeout = 10 * time.Second

type Dispatcher struct {
	channels []Channel
	logger   *slog.Logger
	timeout  time.Duration
	wg       sync.WaitGroup
}

func NewDispatcher(logger *slog.Logger, channels ...Channel) *Dispatcher {
	return &Dispatcher{channels: channels, logger: logger, timeout: defaultTimeout}
}

// Deliver sends msg on one named channel and reports the outcome.
func (d *Dispatcher) Deliver(ctx context.Context, channel string, to *model.User, msg Message) error {
	for _, ch := range d.channels {
		if ch.Name() == channel {
			ctx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()
			return ch.Deliver(ctx, to, msg)
		}
	}
	return fmt.Errorf("channel %q: %w", channel, ErrUnreachable)
}

// Notify sends msg on every channel in the background. Failures are logged
// and otherwise ignored.
func (d *Dispatcher) Notify(to *model.User, msg Message) {
	if to == nil || len(d.channels) == 0 {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		for _, ch := range d.channels {
			err := ch.Deliver(ctx, to, msg)
			switch {
			case err == nil:
				d.logger.Debug("notification sent", "channel", ch.Name(), "user_id", to.ID)
			case errors.Is(err, ErrUnreachable):
			default:
				d.logger.Warn("notification failed", "channel", ch.Name(), "user_id", to.ID, "error", err)
			}
		}
	}()
}

// Wait blocks until background notifications have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
