package push

import (
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/zaikon/internal/model"
)

func TestGenerateVAPIDKeys(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	// 65 bytes uncompressed P-256 point
	pubBytes, err := base64.RawURLEncoding.DecodeString(pub)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(pubBytes) != 65 {
		t.Errorf("public key length = %d, want 65", len(pubBytes))
	}

	privBytes, err := base64.RawURLEncoding.DecodeString(priv)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	if len(privBytes) > 32 || len(privBytes) < 30 {
		t.Errorf("private key length = %d, want about 32", len(privBytes))
	}

	pub2, _, _ := GenerateVAPIDKeys()
	if pub == pub2 {
		t.Error("expected different keys on second generation")
	}
}

func TestServiceConfigured(t *testing.T) {
	if NewService("", "", "").Configured() {
		t.Error("expected unconfigured without keys")
	}
	svc := NewService("pub", "priv", "")
	if !svc.Configured() {
		t.Error("expected configured")
	}
	if svc.subscriber != "mailto:noreply@zaikon.app" {
		t.Errorf("subscriber = %q", svc.subscriber)
	}
}

type memSubs struct {
	subs    []model.PushSubscription
	deleted []string
}

func (m *memSubs) ListByUser(userID int64) ([]model.PushSubscription, error) {
	var out []model.PushSubscription
	for _, s := range m.subs {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSubs) DeleteByEndpoint(endpoint string) error {
	m.deleted = append(m.deleted, endpoint)
	return nil
}

// testSubscription returns a subscription with valid client keys so that
// webpush can encrypt the payload.
func testSubscription(t *testing.T, id, userID int64, endpoint string) model.PushSubscription {
	t.Helper()
	pub, _, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate client keys: %v", err)
	}
	return model.PushSubscription{
		ID:        id,
		UserID:    userID,
		Endpoint:  endpoint,
		P256dhKey: pub,
		AuthKey:   base64.RawURLEncoding.EncodeToString([]byte("0123456789abcdef")),
	}
}

func TestNotifierSendToUserPrunesExpired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusGone)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate keys: %v", err)
	}
	svc := NewService(pub, priv, "mailto:test@example.com")
	svc.httpClient = server.Client()

	subs := &memSubs{subs: []model.PushSubscription{
		testSubscription(t, 1, 7, server.URL+"/ok"),
		testSubscription(t, 2, 7, server.URL+"/gone"),
		testSubscription(t, 3, 8, server.URL+"/ok"),
	}}
	n := NewNotifier(svc, subs, slog.New(slog.NewTextHandler(io.Discard, nil)))

	sent, err := n.SendToUser(7, Payload{Title: "Milk", Body: "Alice asked you to buy milk"})
	if err != nil {
		t.Fatalf("send to user: %v", err)
	}
	if sent != 1 {
		t.Errorf("sent = %d, want 1", sent)
	}
	if len(subs.deleted) != 1 || subs.deleted[0] != server.URL+"/gone" {
		t.Errorf("deleted = %v", subs.deleted)
	}
}

func TestNotifierSendToUserAllFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	pub, priv, _ := GenerateVAPIDKeys()
	svc := NewService(pub, priv, "")
	svc.httpClient = server.Client()

	subs := &memSubs{subs: []model.PushSubscription{testSubscription(t, 1, 7, server.URL+"/a")}}
	n := NewNotifier(svc, subs, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if _, err := n.SendToUser(7, Payload{Title: "x"}); err == nil {
		t.Error("expected error when every device fails")
	}
}
