package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/zaikon/internal/admin"
	"github.com/dukerupert/zaikon/internal/auth"
	"github.com/dukerupert/zaikon/internal/model"
	"github.com/dukerupert/zaikon/internal/store"
)

const SessionCookieName = "zaikon_session"

// Sessions resolves session cookies and records user activity.
type Sessions struct {
	sessions *store.SessionStore
	users    *store.UserStore
	logger   *slog.Logger
	now      func() time.Time
}

func NewSessions(sessions *store.SessionStore, users *store.UserStore, logger *slog.Logger) *Sessions {
	return &Sessions{sessions: sessions, users: users, logger: logger, now: time.Now}
}

func (s *Sessions) resolve(r *http.Request) (*model.Session, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}
	sess, err := s.sessions.GetByToken(cookie.Value)
	if err != nil {
		s.logger.Error("session lookup failed", "error", err)
		return nil, false
	}
	if sess == nil {
		return nil, false
	}
	if err := s.users.TouchActivity(sess.UserID, s.now().UTC()); err != nil {
		s.logger.Warn("touch activity failed", "user_id", sess.UserID, "error", err)
	}
	return sess, true
}

func withSession(r *http.Request, sess *model.Session) *http.Request {
	noteUser(r, sess.UserID)
	ctx := auth.WithAuth(r.Context(), auth.AuthContext{
		UserID:    sess.UserID,
		SessionID: sess.ID,
		Token:     sess.Token,
	})
	return r.WithContext(ctx)
}

// RequireAuth validates the session cookie and populates AuthContext.
// API requests get a 401 JSON body; pages are sent to /login.
func (s *Sessions) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.resolve(r)
		if !ok {
			if wantsJSON(r) {
				writeError(w, http.StatusUnauthorized, "Sign in required")
				return
			}
			redirectToLogin(w, r)
			return
		}
		next.ServeHTTP(w, withSession(r, sess))
	})
}

// OptionalAuth populates AuthContext when a valid session exists and
// passes the request on either way.
func (s *Sessions) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess, ok := s.resolve(r); ok {
			r = withSession(r, sess)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin checks the bearer administrator token.
func RequireAdmin(issuer *admin.Issuer, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				writeError(w, http.StatusUnauthorized, "Administrator token required")
				return
			}
			claims, err := issuer.Verify(strings.TrimSpace(token))
			if err != nil {
				logger.Warn("admin token rejected", "remote", RealIP(r), "error", err)
				writeError(w, http.StatusUnauthorized, "Administrator token required")
				return
			}
			noteAdmin(r)
			next.ServeHTTP(w, r.WithContext(auth.WithAdmin(r.Context(), claims.ID)))
		})
	}
}

func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/ws" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/login")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
