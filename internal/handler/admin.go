package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/zaikon/internal/admin"
	"github.com/dukerupert/zaikon/internal/auth"
	"github.com/dukerupert/zaikon/internal/cleanup"
)

type AdminHandler struct {
	admin  *admin.Service
	issuer *admin.Issuer
	logger *slog.Logger
}

func NewAdminHandler(svc *admin.Service, issuer *admin.Issuer, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{admin: svc, issuer: issuer, logger: logger}
}

// Token handles POST /admin/token
func (h *AdminHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	token, expires, err := h.issuer.Issue(req.Password)
	if err != nil {
		h.logger.Warn("admin token refused", "remote", r.RemoteAddr, "error", err)
		writeError(w, h.logger, r, err)
		return
	}
	h.logger.Info("admin token issued", "remote", r.RemoteAddr)
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "expires_at": expires})
}

// Stats handles GET /admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.admin.Stats()
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// ListBans handles GET /admin/bans
func (h *AdminHandler) ListBans(w http.ResponseWriter, r *http.Request) {
	bans, err := h.admin.ListBans()
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bans)
}

// AddBan handles POST /admin/bans
func (h *AdminHandler) AddBan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email  string `json:"email"`
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	entry, err := h.admin.Ban(req.Email, req.Reason)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// RemoveBan handles DELETE /admin/bans/{id}
func (h *AdminHandler) RemoveBan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if err := h.admin.Unban(id); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListUsers handles GET /admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.admin.ListUsers()
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

type confirmRequest struct {
	Confirm string `json:"confirm"`
}

// DeleteUser handles DELETE /admin/users/{id}
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	res, err := h.admin.DeleteUser(id, req.Confirm)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	h.logger.Warn("admin deleted user", "user_id", id, "token_id", auth.AdminTokenID(r.Context()))
	writeJSON(w, http.StatusOK, res)
}

// ClearAll handles POST /admin/clear-all
func (h *AdminHandler) ClearAll(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	counts, err := h.admin.ClearAll(req.Confirm)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	h.logger.Warn("admin cleared all data", "token_id", auth.AdminTokenID(r.Context()))
	writeJSON(w, http.StatusOK, map[string]any{"deleted": counts})
}

// Cleanup handles POST /admin/cleanup
func (h *AdminHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	var req cleanup.Options
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	report, err := h.admin.Cleanup(req)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Backup handles POST /admin/backup
func (h *AdminHandler) Backup(w http.ResponseWriter, r *http.Request) {
	b, err := h.admin.Backup(r.Context())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// ListBackups handles GET /admin/backups
func (h *AdminHandler) ListBackups(w http.ResponseWriter, r *http.Request) {
	list, status, err := h.admin.Backups()
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status, "backups": list})
}

// DownloadBackup handles GET /admin/backups/{id}/download
func (h *AdminHandler) DownloadBackup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	body, b, err := h.admin.DownloadBackup(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", b.Filename))
	if b.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(b.SizeBytes, 10))
	}
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Error("stream backup", "backup_id", id, "error", err)
	}
}
