package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/zaikon/internal/apperr"
	"github.com/dukerupert/zaikon/internal/auth"
	"github.com/dukerupert/zaikon/internal/inventory"
)

type ItemHandler struct {
	inventory *inventory.Service
	logger    *slog.Logger
}

func NewItemHandler(inv *inventory.Service, logger *slog.Logger) *ItemHandler {
	return &ItemHandler{inventory: inv, logger: logger}
}

// ids reads the location and item path values. withItem is false for
// collection routes.
func (h *ItemHandler) ids(r *http.Request, withItem bool) (locationID, itemID int64, err error) {
	if locationID, err = pathID(r, "id"); err != nil {
		return 0, 0, err
	}
	if withItem {
		if itemID, err = pathID(r, "itemID"); err != nil {
			return 0, 0, err
		}
	}
	return locationID, itemID, nil
}

// List handles GET /api/locations/{id}/items
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	locationID, _, err := h.ids(r, false)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	items, err := h.inventory.ListItems(auth.UserID(r.Context()), locationID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Create handles POST /api/locations/{id}/items
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	locationID, _, err := h.ids(r, false)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	var req inventory.ItemInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	item, err := h.inventory.CreateItem(auth.UserID(r.Context()), locationID, req)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// Get handles GET /api/locations/{id}/items/{itemID}
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	locationID, itemID, err := h.ids(r, true)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	item, err := h.inventory.Item(auth.UserID(r.Context()), locationID, itemID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Update handles PUT /api/locations/{id}/items/{itemID}
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	locationID, itemID, err := h.ids(r, true)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	var req inventory.ItemInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	item, err := h.inventory.UpdateItem(auth.UserID(r.Context()), locationID, itemID, req)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type amountRequest struct {
	Action string           `json:"action"`
	Value  inventory.Number `json:"value"`
}

// Amount handles POST /api/locations/{id}/items/{itemID}/amount
func (h *ItemHandler) Amount(w http.ResponseWriter, r *http.Request) {
	locationID, itemID, err := h.ids(r, true)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	var req amountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	item, err := h.inventory.ApplyAmount(auth.UserID(r.Context()), locationID, itemID, req.Action, req.Value)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// InUse handles POST /api/locations/{id}/items/{itemID}/inuse
func (h *ItemHandler) InUse(w http.ResponseWriter, r *http.Request) {
	locationID, itemID, err := h.ids(r, true)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	item, changed, err := h.inventory.AdvanceInUse(auth.UserID(r.Context()), locationID, itemID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item, "changed": changed})
}

type moveRequest struct {
	ToLocationID inventory.Number `json:"to_location_id"`
}

// Move handles POST /api/locations/{id}/items/{itemID}/move
func (h *ItemHandler) Move(w http.ResponseWriter, r *http.Request) {
	locationID, itemID, err := h.ids(r, true)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	var req moveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if req.ToLocationID.Blank() {
		writeError(w, h.logger, r, apperr.Invalid("to_location_id", "to_location_id is required"))
		return
	}
	to, err := req.ToLocationID.Int("to_location_id", 0)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	item, err := h.inventory.MoveItem(auth.UserID(r.Context()), locationID, itemID, int64(to))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Delete handles DELETE /api/locations/{id}/items/{itemID}
func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	locationID, itemID, err := h.ids(r, true)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if err := h.inventory.DeleteItem(auth.UserID(r.Context()), locationID, itemID); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListFor handles GET /api/me/replenish and GET /api/me/shopping.
func (h *ItemHandler) ListFor(kind inventory.ListKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := h.inventory.List(auth.UserID(r.Context()), kind)
		if err != nil {
			writeError(w, h.logger, r, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

// SendFor handles POST /api/me/line/replenish and POST /api/me/line/shopping.
func (h *ItemHandler) SendFor(kind inventory.ListKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := h.inventory.SendList(r.Context(), auth.UserID(r.Context()), kind)
		if err != nil {
			writeError(w, h.logger, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"items": n})
	}
}
