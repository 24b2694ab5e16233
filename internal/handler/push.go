package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dukerupert/zaikon/internal/apperr"
	"github.com/dukerupert/zaikon/internal/auth"
	"github.com/dukerupert/zaikon/internal/push"
	"github.com/dukerupert/zaikon/internal/store"
)

type PushHandler struct {
	pushStore *store.PushStore
	service   *push.Service
	notifier  *push.Notifier
	logger    *slog.Logger
}

func NewPushHandler(ps *store.PushStore, svc *push.Service, notifier *push.Notifier, logger *slog.Logger) *PushHandler {
	return &PushHandler{pushStore: ps, service: svc, notifier: notifier, logger: logger}
}

type subscribeRequest struct {
	Endpoint   string `json:"endpoint"`
	P256dh     string `json:"p256dh"`
	Auth       string `json:"auth"`
	DeviceName string `json:"device_name"`
}

// Subscribe handles POST /api/push/subscribe
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req subscribeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	if req.Endpoint == "" || req.P256dh == "" || req.Auth == "" {
		writeError(w, h.logger, r, apperr.Invalid("endpoint", "endpoint, p256dh, and auth are required"))
		return
	}

	sub, err := h.pushStore.CreateSubscription(userID, req.Endpoint, req.P256dh, req.Auth, req.DeviceName)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}

// Unsubscribe handles DELETE /api/push/subscriptions/{id}
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	ok, err := h.pushStore.DeleteSubscription(id, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if !ok {
		writeError(w, h.logger, r, apperr.NotFound("subscription"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListSubscriptions handles GET /api/push/subscriptions
func (h *PushHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.pushStore.ListByUser(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if subs == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// GetVAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) GetVAPIDKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"public_key": h.service.VAPIDPublicKey(),
		"enabled":    h.service.Configured(),
	})
}

// TestNotification handles POST /api/push/test
func (h *PushHandler) TestNotification(w http.ResponseWriter, r *http.Request) {
	sent, err := h.notifier.SendToUser(auth.UserID(r.Context()), push.Payload{
		Title: "Test Notification",
		Body:  "Push notifications are working!",
		URL:   "/",
		Tag:   "test",
	})
	if err != nil {
		writeError(w, h.logger, r, fmt.Errorf("%w: %v", apperr.ErrDelivery, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"sent": sent})
}
