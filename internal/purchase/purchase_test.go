package purchase

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/zaikon/internal/apperr"
	"github.com/dukerupert/zaikon/internal/database"
	"github.com/dukerupert/zaikon/internal/model"
	"github.com/dukerupert/zaikon/internal/notify"
	"github.com/dukerupert/zaikon/internal/store"
)

type notified struct {
	to  int64
	msg notify.Message
}

type fakeNotifier struct {
	sent []notified
}

func (f *fakeNotifier) Notify(to *model.User, msg notify.Message) {
	f.sent = append(f.sent, notified{to: to.ID, msg: msg})
}

type fixture struct {
	svc      *Service
	notifier *fakeNotifier
	now      time.Time
	alice    *model.User
	bob      *model.User
	carol    *model.User
}

// setup creates Alice and Bob sharing a kitchen, and Carol on her own.
func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	locations := store.NewLocationStore(db)
	f := &fixture{notifier: &fakeNotifier{}, now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	f.svc = NewService(store.NewPurchaseStore(db), users, locations, f.notifier, slog.New(slog.NewTextHandler(io.Discard, nil)))
	f.svc.now = func() time.Time { return f.now }

	f.alice, _ = users.Create("alice@example.com", "Alice", "")
	f.bob, _ = users.Create("bob@example.com", "Bob", "")
	f.carol, _ = users.Create("carol@example.com", "Carol", "")
	loc, err := locations.Create("Kitchen", f.alice.ID)
	if err != nil {
		t.Fatalf("create location: %v", err)
	}
	if _, err := locations.AddMember(loc.ID, f.bob.ID); err != nil {
		t.Fatalf("add member: %v", err)
	}
	return f
}

func TestCreateDefaults(t *testing.T) {
	f := setup(t)

	p, err := f.svc.Create(f.alice.ID, Request{ItemName: " Batteries "})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.ItemName != "Batteries" || p.Priority != model.PriorityMedium || p.RequestedFor != f.alice.ID || p.ExpiresAt != nil {
		t.Errorf("purchase = %+v", p)
	}
	if len(f.notifier.sent) != 0 {
		t.Error("self request should not notify")
	}
}

func TestCreateValidation(t *testing.T) {
	f := setup(t)
	for name, req := range map[string]Request{
		"blank name":       {ItemName: " "},
		"bad priority":     {ItemName: "Milk", Priority: "urgent"},
		"negative expiry":  {ItemName: "Milk", ExpiresInHours: -1},
		"expiry too large": {ItemName: "Milk", ExpiresInHours: maxExpiresInHours + 1},
	} {
		if _, err := f.svc.Create(f.alice.ID, req); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("%s: err = %v, want validation", name, err)
		}
	}
}

func TestCreateForOtherUser(t *testing.T) {
	f := setup(t)

	p, err := f.svc.Create(f.alice.ID, Request{ItemName: "Milk", Priority: "HIGH", RequestedFor: f.bob.ID, ExpiresInHours: 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.TargetName != "Bob" || p.Priority != model.PriorityHigh {
		t.Errorf("purchase = %+v", p)
	}
	if p.ExpiresAt == nil || !p.ExpiresAt.Equal(f.now.Add(2*time.Hour)) {
		t.Errorf("expires_at = %v", p.ExpiresAt)
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0].to != f.bob.ID {
		t.Fatalf("notifications = %+v", f.notifier.sent)
	}

	if _, err := f.svc.Create(f.alice.ID, Request{ItemName: "Milk", RequestedFor: f.carol.ID}); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("no shared location: err = %v, want forbidden", err)
	}
	if _, err := f.svc.Create(f.alice.ID, Request{ItemName: "Milk", RequestedFor: 9999}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown target: err = %v, want not found", err)
	}
}

func TestOnlyRequesterEditsAndDeletes(t *testing.T) {
	f := setup(t)
	p, _ := f.svc.Create(f.alice.ID, Request{ItemName: "Milk", RequestedFor: f.bob.ID})

	if _, err := f.svc.Update(f.bob.ID, p.ID, Request{ItemName: "Oat milk"}); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("target edit: err = %v, want forbidden", err)
	}
	if err := f.svc.Delete(f.bob.ID, p.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("target delete: err = %v, want forbidden", err)
	}
	if _, err := f.svc.Get(f.carol.ID, p.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("stranger get: err = %v, want not found", err)
	}

	updated, err := f.svc.Update(f.alice.ID, p.ID, Request{ItemName: "Oat milk", Priority: "low"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ItemName != "Oat milk" || updated.Priority != model.PriorityLow || updated.RequestedFor != f.bob.ID {
		t.Errorf("updated = %+v", updated)
	}

	if err := f.svc.Delete(f.alice.ID, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.svc.Get(f.alice.ID, p.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("after delete: err = %v, want not found", err)
	}
}

func TestCompleteByTargetNotifiesRequester(t *testing.T) {
	f := setup(t)
	p, _ := f.svc.Create(f.alice.ID, Request{ItemName: "Milk", RequestedFor: f.bob.ID})
	f.notifier.sent = nil

	done, err := f.svc.Complete(f.bob.ID, p.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != model.PurchaseCompleted || done.CompletedBy == nil || *done.CompletedBy != f.bob.ID {
		t.Errorf("done = %+v", done)
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0].to != f.alice.ID {
		t.Errorf("notifications = %+v", f.notifier.sent)
	}

	if _, err := f.svc.Complete(f.alice.ID, p.ID); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("second complete: err = %v, want validation", err)
	}
	if _, err := f.svc.Update(f.alice.ID, p.ID, Request{ItemName: "x"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("edit completed: err = %v, want validation", err)
	}
}

func TestCancel(t *testing.T) {
	f := setup(t)
	p, _ := f.svc.Create(f.alice.ID, Request{ItemName: "Milk", RequestedFor: f.bob.ID})

	if _, err := f.svc.Cancel(f.bob.ID, p.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("target cancel: err = %v, want forbidden", err)
	}
	cancelled, err := f.svc.Cancel(f.alice.ID, p.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != model.PurchaseCancelled {
		t.Errorf("status = %s", cancelled.Status)
	}
	if _, err := f.svc.Complete(f.bob.ID, p.ID); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("complete cancelled: err = %v, want validation", err)
	}
}

func TestActiveExcludesExpired(t *testing.T) {
	f := setup(t)
	f.svc.Create(f.alice.ID, Request{ItemName: "Soon", ExpiresInHours: 1})
	f.svc.Create(f.alice.ID, Request{ItemName: "Later", Priority: "high", ExpiresInHours: 48})
	f.svc.Create(f.alice.ID, Request{ItemName: "Whenever", Priority: "low"})

	f.now = f.now.Add(2 * time.Hour)
	active, err := f.svc.Active(f.alice.ID)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 2 || active[0].ItemName != "Later" || active[1].ItemName != "Whenever" {
		t.Errorf("active = %+v", active)
	}

	all, _ := f.svc.List(f.alice.ID)
	if len(all) != 3 {
		t.Errorf("all = %d, want 3", len(all))
	}
}

func TestCompleteExpiredIsGone(t *testing.T) {
	f := setup(t)
	p, _ := f.svc.Create(f.alice.ID, Request{ItemName: "Bread", RequestedFor: f.bob.ID, ExpiresInHours: 1})
	f.notifier.sent = nil

	f.now = f.now.Add(time.Hour)
	if _, err := f.svc.Complete(f.bob.ID, p.ID); !errors.Is(err, apperr.ErrGone) {
		t.Fatalf("complete expired: err = %v, want gone", err)
	}
	got, err := f.svc.Get(f.alice.ID, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.PurchasePending || got.CompletedBy != nil {
		t.Errorf("expired request changed: %+v", got)
	}
	if len(f.notifier.sent) != 0 {
		t.Errorf("notifications = %+v", f.notifier.sent)
	}
}
