package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/dukerupert/zaikon/internal/account"
	"github.com/dukerupert/zaikon/internal/auth"
	"github.com/dukerupert/zaikon/internal/line"
)

type ProfileHandler struct {
	accounts *account.Service
	line     *line.Client
	logger   *slog.Logger
}

func NewProfileHandler(accounts *account.Service, lineClient *line.Client, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{accounts: accounts, line: lineClient, logger: logger}
}

// Me handles GET /api/me
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.accounts.Profile(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type profileRequest struct {
	UserName        string `json:"user_name"`
	UserDescription string `json:"user_description"`
}

// UpdateMe handles PUT /api/me
func (h *ProfileHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	user, err := h.accounts.UpdateProfile(auth.UserID(r.Context()), req.UserName, req.UserDescription)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// RequestEmailChange handles POST /api/me/email-change
func (h *ProfileHandler) RequestEmailChange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewEmail string `json:"new_email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	change, err := h.accounts.RequestEmailChange(r.Context(), auth.UserID(r.Context()), req.NewEmail)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, change)
}

// ShowEmailChange handles GET /email-change/{code}
func (h *ProfileHandler) ShowEmailChange(w http.ResponseWriter, r *http.Request) {
	change, err := h.accounts.PendingEmailChange(r.PathValue("code"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, change)
}

// ConfirmEmailChange handles POST /email-change/{code}
func (h *ProfileHandler) ConfirmEmailChange(w http.ResponseWriter, r *http.Request) {
	user, err := h.accounts.ConfirmEmailChange(r.PathValue("code"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// CreateLinkCode handles POST /api/me/line/link-code
func (h *ProfileHandler) CreateLinkCode(w http.ResponseWriter, r *http.Request) {
	code, err := h.accounts.CreateLinkCode(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, code)
}

// UnlinkLINE handles DELETE /api/me/line
func (h *ProfileHandler) UnlinkLINE(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.UnlinkLINE(auth.UserID(r.Context())); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LINEWebhook handles POST /line/webhook. Events are only trusted when
// the body carries a valid channel signature.
func (h *ProfileHandler) LINEWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "could not read body"})
		return
	}
	if !h.line.VerifySignature(body, r.Header.Get("X-Line-Signature")) {
		h.logger.Warn("line webhook signature rejected", "remote", r.RemoteAddr)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		return
	}
	events, err := line.ParseEvents(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	h.accounts.HandleLINEEvents(r.Context(), events)
	w.WriteHeader(http.StatusOK)
}
