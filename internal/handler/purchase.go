package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/zaikon/internal/auth"
	"github.com/dukerupert/zaikon/internal/purchase"
)

type PurchaseHandler struct {
	purchases *purchase.Service
	logger    *slog.Logger
}

func NewPurchaseHandler(svc *purchase.Service, logger *slog.Logger) *PurchaseHandler {
	return &PurchaseHandler{purchases: svc, logger: logger}
}

// Create handles POST /api/purchases
func (h *PurchaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req purchase.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	p, err := h.purchases.Create(auth.UserID(r.Context()), req)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// List handles GET /api/purchases
func (h *PurchaseHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.purchases.List(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Active handles GET /api/purchases/active
func (h *PurchaseHandler) Active(w http.ResponseWriter, r *http.Request) {
	list, err := h.purchases.Active(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Get handles GET /api/purchases/{id}
func (h *PurchaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	p, err := h.purchases.Get(auth.UserID(r.Context()), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Update handles PUT /api/purchases/{id}
func (h *PurchaseHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	var req purchase.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	p, err := h.purchases.Update(auth.UserID(r.Context()), id, req)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Complete handles POST /api/purchases/{id}/complete
func (h *PurchaseHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	p, err := h.purchases.Complete(auth.UserID(r.Context()), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Cancel handles POST /api/purchases/{id}/cancel
func (h *PurchaseHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	p, err := h.purchases.Cancel(auth.UserID(r.Context()), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Delete handles DELETE /api/purchases/{id}
func (h *PurchaseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if err := h.purchases.Delete(auth.UserID(r.Context()), id); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
