package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/careslot/careslot/libs/httpx"
	"github.com/careslot/careslot/services/notification-service/internal/storage"
)

const listLimit = 50

type NotificationStore interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]storage.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID string) (bool, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type Handler struct {
	store NotificationStore
}

func New(store NotificationStore) *Handler {
	return &Handler{store: store}
}

func userIDFromHeader(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-Id"))
}

func (h *Handler) MyNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID := userIDFromHeader(r)
	if userID == "" {
		httpx.WriteMessage(w, http.StatusUnauthorized, "sign in required")
		return
	}

	list, err := h.store.ListByUser(r.Context(), userID, listLimit)
	if err != nil {
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to load notifications")
		return
	}
	if list == nil {
		list = []storage.Notification{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"notifications": list})
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID := userIDFromHeader(r)
	if userID == "" {
		httpx.WriteMessage(w, http.StatusUnauthorized, "sign in required")
		return
	}
	notificationID := strings.TrimPrefix(r.URL.Path, "/notification/mark-read/")
	if notificationID == "" {
		httpx.WriteMessage(w, http.StatusBadRequest, "notification id required")
		return
	}

	updated, err := h.store.MarkRead(r.Context(), userID, notificationID)
	if err != nil {
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to mark notification")
		return
	}
	if !updated {
		httpx.WriteMessage(w, http.StatusNotFound, "Notification not found.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID := userIDFromHeader(r)
	if userID == "" {
		httpx.WriteMessage(w, http.StatusUnauthorized, "sign in required")
		return
	}

	updated, err := h.store.MarkAllRead(r.Context(), userID)
	if err != nil {
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to mark notifications")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}
