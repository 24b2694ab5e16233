package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/zaikon/internal/admin"
)

func captureLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, nil))
}

func decodeLogLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	return entry
}

func TestRequestLoggerRecordsSessionUser(t *testing.T) {
	s, ss, us := setupAuthMiddlewareDB(t)
	u, _ := us.Create("alice@example.com", "Alice", "")
	sess, _ := ss.Create(u.ID)

	var buf bytes.Buffer
	handler := RequestLogger(captureLogger(&buf))(s.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	})))

	req := httptest.NewRequest("GET", "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sess.Token})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entry := decodeLogLine(t, &buf)
	if entry["level"] != "INFO" || entry["path"] != "/api/me" {
		t.Errorf("entry = %v", entry)
	}
	if got, _ := entry["user_id"].(float64); int64(got) != u.ID {
		t.Errorf("user_id = %v, want %d", entry["user_id"], u.ID)
	}
	if got, _ := entry["bytes"].(float64); got != 5 {
		t.Errorf("bytes = %v, want 5", entry["bytes"])
	}
	if _, ok := entry["admin"]; ok {
		t.Error("unexpected admin attribute")
	}
}

func TestRequestLoggerAnonymousWarn(t *testing.T) {
	s, _, _ := setupAuthMiddlewareDB(t)

	var buf bytes.Buffer
	handler := RequestLogger(captureLogger(&buf))(s.RequireAuth(unreachable(t)))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/locations", nil))

	entry := decodeLogLine(t, &buf)
	if entry["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", entry["level"])
	}
	if got, _ := entry["status"].(float64); got != http.StatusUnauthorized {
		t.Errorf("status = %v, want 401", entry["status"])
	}
	if _, ok := entry["user_id"]; ok {
		t.Error("unexpected user_id attribute")
	}
}

func TestRequestLoggerRecordsAdmin(t *testing.T) {
	hash, err := admin.HashPassword("secret")
	if err != nil {
		t.Fatal(err)
	}
	issuer := admin.NewIssuer("key", hash, time.Minute)
	token, _, err := issuer.Issue("secret")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	var buf bytes.Buffer
	handler := RequestLogger(captureLogger(&buf))(RequireAdmin(issuer, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	req := httptest.NewRequest("GET", "/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entry := decodeLogLine(t, &buf)
	if entry["admin"] != true {
		t.Errorf("admin = %v, want true", entry["admin"])
	}
}
