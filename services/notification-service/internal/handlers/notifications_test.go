package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/careslot/careslot/services/notification-service/internal/storage"
)

type stubStore struct {
	list      []storage.Notification
	marked    []string
	markedAll bool
}

func (s *stubStore) ListByUser(context.Context, string, int) ([]storage.Notification, error) {
	return s.list, nil
}

func (s *stubStore) MarkRead(_ context.Context, _ string, notificationID string) (bool, error) {
	for _, n := range s.list {
		if n.ID == notificationID {
			s.marked = append(s.marked, notificationID)
			return true, nil
		}
	}
	return false, nil
}

func (s *stubStore) MarkAllRead(context.Context, string) (int64, error) {
	s.markedAll = true
	return int64(len(s.list)), nil
}

func TestMyNotificationsRequiresSignIn(t *testing.T) {
	h := New(&stubStore{})
	req := httptest.NewRequest(http.MethodGet, "/notification/my-notifications", nil)
	rec := httptest.NewRecorder()
	h.MyNotifications(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestMyNotificationsReturnsEmptyArray(t *testing.T) {
	h := New(&stubStore{})
	req := httptest.NewRequest(http.MethodGet, "/notification/my-notifications", nil)
	req.Header.Set("X-User-Id", "user-1")
	rec := httptest.NewRecorder()
	h.MyNotifications(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out struct {
		Notifications []storage.Notification `json:"notifications"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Notifications == nil {
		t.Fatal("expected empty array, got null")
	}
}

func TestMarkReadUnknownIDIs404(t *testing.T) {
	store := &stubStore{list: []storage.Notification{{ID: "n1"}}}
	h := New(store)

	req := httptest.NewRequest(http.MethodPost, "/notification/mark-read/n2", nil)
	req.Header.Set("X-User-Id", "user-1")
	rec := httptest.NewRecorder()
	h.MarkRead(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestMarkRead(t *testing.T) {
	store := &stubStore{list: []storage.Notification{{ID: "n1"}}}
	h := New(store)

	req := httptest.NewRequest(http.MethodPost, "/notification/mark-read/n1", nil)
	req.Header.Set("X-User-Id", "user-1")
	rec := httptest.NewRecorder()
	h.MarkRead(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(store.marked) != 1 || store.marked[0] != "n1" {
		t.Fatalf("expected n1 marked, got %v", store.marked)
	}
}

func TestMarkAllRead(t *testing.T) {
	store := &stubStore{list: []storage.Notification{{ID: "n1"}, {ID: "n2"}}}
	h := New(store)

	req := httptest.NewRequest(http.MethodPost, "/notification/mark-all-read", nil)
	req.Header.Set("X-User-Id", "user-1")
	rec := httptest.NewRecorder()
	h.MarkAllRead(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !store.markedAll {
		t.Fatal("expected MarkAllRead call")
	}
	var out struct {
		Updated int64 `json:"updated"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Updated != 2 {
		t.Fatalf("expected 2 updated, got %d", out.Updated)
	}
}
