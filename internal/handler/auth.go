package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/zaikon/internal/account"
	"github.com/dukerupert/zaikon/internal/auth"
	"github.com/dukerupert/zaikon/internal/inventory"
	"github.com/dukerupert/zaikon/internal/model"
)

type AuthHandler struct {
	accounts  *account.Service
	inventory *inventory.Service
	logger    *slog.Logger
}

func NewAuthHandler(accounts *account.Service, inv *inventory.Service, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, inventory: inv, logger: logger}
}

type sessionResponse struct {
	User *model.User `json:"user"`
}

// Register handles POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req account.Registration
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	user, sess, err := h.accounts.Register(req)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	setSessionCookie(w, r, sess.Token, sess.ExpiresAt)
	writeJSON(w, http.StatusCreated, sessionResponse{User: user})
}

type loginRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// Login handles POST /login. The answer does not reveal whether the
// address is registered.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if err := h.accounts.RequestLoginCode(r.Context(), req.Email); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "check your email"})
}

// Verify handles POST /auth/verify
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	user, sess, err := h.accounts.VerifyLoginCode(req.Email, strings.TrimSpace(req.Code))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	setSessionCookie(w, r, sess.Token, sess.ExpiresAt)
	writeJSON(w, http.StatusOK, sessionResponse{User: user})
}

// Logout handles POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if ac, ok := auth.FromContext(r.Context()); ok {
		if err := h.accounts.Logout(ac.Token); err != nil {
			h.logger.Error("logout", "user_id", ac.UserID, "error", err)
		}
	}
	clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

type dashboardResponse struct {
	User      *model.User            `json:"user"`
	Locations []model.LocationDetail `json:"locations"`
}

// Dashboard handles GET /user/{userID}. Without a session the user is
// resolved from the path and signed in.
func (h *AuthHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	pathUserID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	user, sess, err := h.accounts.Dashboard(auth.UserID(r.Context()), pathUserID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if sess != nil {
		setSessionCookie(w, r, sess.Token, sess.ExpiresAt)
	}
	locations, err := h.inventory.Overview(user.ID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboardResponse{User: user, Locations: locations})
}
