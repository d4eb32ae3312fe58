package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/careslot/careslot/libs/httpx"
	"github.com/careslot/careslot/services/doctor-service/internal/cache"
	"github.com/careslot/careslot/services/doctor-service/internal/storage"
)

const (
	topRatedLimit = 10
	cacheTTL      = 5 * time.Minute
)

// DoctorStore is the storage surface the handlers use; the pgx
// repository implements it and tests substitute a stub.
type DoctorStore interface {
	Search(ctx context.Context, name, specialty string) ([]storage.DoctorSummary, error)
	TopRated(ctx context.Context, limit int) ([]storage.DoctorSummary, error)
	GetDetails(ctx context.Context, doctorID, userID string) (storage.DoctorDetails, error)
	AddReview(ctx context.Context, doctorID, userID string, rate float64, comment string) error
	ToggleFavourite(ctx context.Context, doctorID, userID string) (bool, error)
}

type Handler struct {
	store DoctorStore
	cache cache.Store
}

func New(store DoctorStore, cacheStore cache.Store) *Handler {
	if cacheStore == nil {
		cacheStore = cache.Null{}
	}
	return &Handler{store: store, cache: cacheStore}
}

func userIDFromHeader(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-Id"))
}

func (h *Handler) GetDoctors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	doctors, err := h.store.Search(r.Context(),
		strings.TrimSpace(r.URL.Query().Get("name")),
		strings.TrimSpace(r.URL.Query().Get("specialty")),
	)
	if err != nil {
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to load doctors")
		return
	}
	if doctors == nil {
		doctors = []storage.DoctorSummary{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"doctors": doctors})
}

func (h *Handler) GetTopRatedDoctors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if buf, ok := h.cache.Get(r.Context(), cache.KeyTopRated); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf)
		return
	}

	doctors, err := h.store.TopRated(r.Context(), topRatedLimit)
	if err != nil {
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to load doctors")
		return
	}
	if doctors == nil {
		doctors = []storage.DoctorSummary{}
	}
	body, err := json.Marshal(map[string]any{"doctors": doctors})
	if err != nil {
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to encode doctors")
		return
	}
	h.cache.Set(r.Context(), cache.KeyTopRated, body, cacheTTL)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) GetDoctor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	doctorID := strings.TrimPrefix(r.URL.Path, "/doctor/get-doctor/")
	if doctorID == "" {
		httpx.WriteMessage(w, http.StatusBadRequest, "doctor id required")
		return
	}
	userID := userIDFromHeader(r)

	// Details are only cached for anonymous reads; the favourite flag
	// is per user.
	cacheable := userID == ""
	if cacheable {
		if buf, ok := h.cache.Get(r.Context(), cache.KeyDetails(doctorID)); ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(buf)
			return
		}
	}

	details, err := h.store.GetDetails(r.Context(), doctorID, userID)
	if err != nil {
		if storage.IsNotFound(err) {
			httpx.WriteMessage(w, http.StatusNotFound, "Doctor not found.")
			return
		}
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to load doctor")
		return
	}
	if details.AvailableSlots == nil {
		details.AvailableSlots = []storage.DaySlots{}
	}
	if details.Reviews == nil {
		details.Reviews = []storage.Review{}
	}

	body, err := json.Marshal(map[string]any{"doctor": details})
	if err != nil {
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to encode doctor")
		return
	}
	if cacheable {
		h.cache.Set(r.Context(), cache.KeyDetails(doctorID), body, cacheTTL)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) AddReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID := userIDFromHeader(r)
	if userID == "" {
		httpx.WriteMessage(w, http.StatusUnauthorized, "sign in required")
		return
	}
	doctorID := strings.TrimPrefix(r.URL.Path, "/review/add-review/")
	if doctorID == "" {
		httpx.WriteMessage(w, http.StatusBadRequest, "doctor id required")
		return
	}

	var req struct {
		Rate    float64 `json:"rate"`
		Comment string  `json:"comment"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Rate < 1 || req.Rate > 5 {
		httpx.WriteMessage(w, http.StatusBadRequest, "rate must be between 1 and 5")
		return
	}
	req.Comment = strings.TrimSpace(req.Comment)
	if req.Comment == "" {
		httpx.WriteMessage(w, http.StatusBadRequest, "comment is required")
		return
	}

	if err := h.store.AddReview(r.Context(), doctorID, userID, req.Rate, req.Comment); err != nil {
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to add review")
		return
	}
	h.cache.Delete(r.Context(), cache.KeyDetails(doctorID), cache.KeyTopRated)

	httpx.WriteJSON(w, http.StatusCreated, map[string]string{"message": "Review submitted."})
}

func (h *Handler) ToggleFavourite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID := userIDFromHeader(r)
	if userID == "" {
		httpx.WriteMessage(w, http.StatusUnauthorized, "sign in required")
		return
	}
	doctorID := strings.TrimPrefix(r.URL.Path, "/doctor/toggle-favourite/")
	if doctorID == "" {
		httpx.WriteMessage(w, http.StatusBadRequest, "doctor id required")
		return
	}

	fav, err := h.store.ToggleFavourite(r.Context(), doctorID, userID)
	if err != nil {
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to update favourites")
		return
	}
	h.cache.Delete(r.Context(), cache.KeyDetails(doctorID))

	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"is_favourite": fav})
}
