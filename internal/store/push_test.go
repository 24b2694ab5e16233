package store

import "testing"

func setupPushTestDB(t *testing.T) (*PushStore, int64, int64) {
	t.Helper()
	db := openTestDB(t)
	us := NewUserStore(db)
	alice, err := us.Create("alice@example.com", "Alice", "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	bob, err := us.Create("bob@example.com", "Bob", "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return NewPushStore(db), alice.ID, bob.ID
}

func TestCreateSubscription(t *testing.T) {
	ps, alice, _ := setupPushTestDB(t)

	sub, err := ps.CreateSubscription(alice, "https://push.example.com/sub1", "p256dh_key1", "auth_key1", "Chrome Desktop")
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	if sub.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if sub.Endpoint != "https://push.example.com/sub1" {
		t.Errorf("endpoint = %q", sub.Endpoint)
	}
	if sub.DeviceName != "Chrome Desktop" {
		t.Errorf("device_name = %q, want %q", sub.DeviceName, "Chrome Desktop")
	}
}

func TestCreateSubscriptionUpsertMovesOwner(t *testing.T) {
	ps, alice, bob := setupPushTestDB(t)

	first, _ := ps.CreateSubscription(alice, "https://push.example.com/shared", "k1", "a1", "Tablet")
	second, err := ps.CreateSubscription(bob, "https://push.example.com/shared", "k2", "a2", "Tablet")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("id = %d, want %d", second.ID, first.ID)
	}
	if second.UserID != bob || second.P256dhKey != "k2" {
		t.Errorf("upserted = %+v", second)
	}
	if subs, _ := ps.ListByUser(alice); len(subs) != 0 {
		t.Errorf("alice still has %d subscriptions", len(subs))
	}
}

func TestDeleteSubscriptionScopedToOwner(t *testing.T) {
	ps, alice, bob := setupPushTestDB(t)
	sub, _ := ps.CreateSubscription(alice, "https://push.example.com/a", "k", "a", "")

	if ok, _ := ps.DeleteSubscription(sub.ID, bob); ok {
		t.Error("bob must not delete alice's subscription")
	}
	ok, err := ps.DeleteSubscription(sub.ID, alice)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !ok {
		t.Error("expected deletion")
	}
}

func TestDeleteByEndpoint(t *testing.T) {
	ps, alice, _ := setupPushTestDB(t)
	ps.CreateSubscription(alice, "https://push.example.com/gone", "k", "a", "")

	if err := ps.DeleteByEndpoint("https://push.example.com/gone"); err != nil {
		t.Fatalf("delete by endpoint: %v", err)
	}
	if subs, _ := ps.ListByUser(alice); len(subs) != 0 {
		t.Errorf("subs = %d, want 0", len(subs))
	}
}
