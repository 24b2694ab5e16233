package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/zaikon/internal/auth"
	"github.com/dukerupert/zaikon/internal/inventory"
)

type LocationHandler struct {
	inventory *inventory.Service
	logger    *slog.Logger
}

func NewLocationHandler(inv *inventory.Service, logger *slog.Logger) *LocationHandler {
	return &LocationHandler{inventory: inv, logger: logger}
}

type locationRequest struct {
	Name string `json:"location_name"`
}

// Create handles POST /api/locations
func (h *LocationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	loc, err := h.inventory.CreateLocation(auth.UserID(r.Context()), req.Name)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, loc)
}

// List handles GET /api/locations
func (h *LocationHandler) List(w http.ResponseWriter, r *http.Request) {
	locs, err := h.inventory.ListLocations(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, locs)
}

// Get handles GET /api/locations/{id}
func (h *LocationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	detail, err := h.inventory.Location(auth.UserID(r.Context()), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// Rename handles PUT /api/locations/{id}
func (h *LocationHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	var req locationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	loc, err := h.inventory.RenameLocation(auth.UserID(r.Context()), id, req.Name)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// Delete handles DELETE /api/locations/{id}
func (h *LocationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if err := h.inventory.DeleteLocation(auth.UserID(r.Context()), id); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMembers handles GET /api/locations/{id}/members
func (h *LocationHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	members, err := h.inventory.ListMembers(auth.UserID(r.Context()), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// AddMember handles POST /api/locations/{id}/members
func (h *LocationHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	var req inventory.MemberLookup
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	member, err := h.inventory.AddMember(auth.UserID(r.Context()), id, req)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

// RemoveMember handles DELETE /api/locations/{id}/members/{userID}
func (h *LocationHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	target, err := pathID(r, "userID")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	deleted, err := h.inventory.RemoveMember(auth.UserID(r.Context()), id, target)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"location_deleted": deleted})
}
