package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/zaikon/internal/model"
)

type recordingChannel struct {
	name string
	err  error

	mu   sync.Mutex
	sent []Message
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Deliver(_ context.Context, _ *model.User, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return c.err
}

func (c *recordingChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyContinuesPastFailures(t *testing.T) {
	failing := &recordingChannel{name: "line", err: errors.New("boom")}
	ok := &recordingChannel{name: "push"}
	d := NewDispatcher(discardLogger(), failing, ok)

	d.Notify(&model.User{ID: 1}, Message{Title: "t", Body: "b"})
	d.Wait()

	if failing.count() != 1 || ok.count() != 1 {
		t.Errorf("sent = %d/%d, want 1/1", failing.count(), ok.count())
	}
}

func TestNotifyNilUser(t *testing.T) {
	ch := &recordingChannel{name: "line"}
	d := NewDispatcher(discardLogger(), ch)

	d.Notify(nil, Message{Body: "b"})
	d.Wait()

	if ch.count() != 0 {
		t.Error("expected nothing sent")
	}
}

func TestDeliverNamedChannel(t *testing.T) {
	boom := errors.New("boom")
	lineCh := &recordingChannel{name: "line", err: boom}
	d := NewDispatcher(discardLogger(), lineCh)

	if err := d.Deliver(context.Background(), "line", &model.User{ID: 1}, Message{Body: "x"}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if err := d.Deliver(context.Background(), "fax", &model.User{ID: 1}, Message{}); !errors.Is(err, ErrUnreachable) {
		t.Errorf("err = %v, want ErrUnreachable", err)
	}
}

func TestMessageText(t *testing.T) {
	if got := (Message{Title: "T", Body: "B"}).Text(); got != "T\n\nB" {
		t.Errorf("text = %q", got)
	}
	if got := (Message{Body: "B"}).Text(); got != "B" {
		t.Errorf("text = %q", got)
	}
}

func locatedItem(loc, name string, amount, yellow int) model.LocatedItem {
	return model.LocatedItem{
		Item:         model.Item{Name: name, Amount: amount, Yellow: yellow},
		LocationName: loc,
	}
}

func TestShoppingMessageGroupsByLocation(t *testing.T) {
	msg := ShoppingMessage("Alice", []model.LocatedItem{
		locatedItem("Bathroom", "Soap", 0, 1),
		locatedItem("Kitchen", "Rice", 0, 2),
		locatedItem("Kitchen", "Salt", 0, 1),
	})

	if msg.Title != "Shopping list for Alice" {
		t.Errorf("title = %q", msg.Title)
	}
	if strings.Count(msg.Body, "[Kitchen]") != 1 || strings.Count(msg.Body, "[Bathroom]") != 1 {
		t.Errorf("body groups wrong:\n%s", msg.Body)
	}
	if strings.Index(msg.Body, "Rice") < strings.Index(msg.Body, "[Kitchen]") {
		t.Errorf("Rice listed outside Kitchen:\n%s", msg.Body)
	}
	if !strings.Contains(msg.Body, "3 item(s) to buy.") {
		t.Errorf("missing total:\n%s", msg.Body)
	}
}

func TestReplenishMessage(t *testing.T) {
	msg := ReplenishMessage("Bob", []model.LocatedItem{locatedItem("Kitchen", "Shampoo", 2, 1)})
	if !strings.Contains(msg.Body, "Shampoo (stock 2)") {
		t.Errorf("body = %q", msg.Body)
	}
}

func TestPurchaseRequestMessage(t *testing.T) {
	due := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	msg := PurchaseRequestMessage("Alice", &model.TemporaryPurchase{
		ItemName:    "Batteries",
		Description: "AA x4",
		Priority:    model.PriorityHigh,
		ExpiresAt:   &due,
	})

	for _, want := range []string{"Alice asked you to buy Batteries (urgent).", "AA x4", "2026-03-01 09:30 UTC"} {
		if !strings.Contains(msg.Body, want) {
			t.Errorf("body missing %q:\n%s", want, msg.Body)
		}
	}
}
