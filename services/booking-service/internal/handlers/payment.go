package handlers

import (
	"net/http"
	"strings"

	"github.com/careslot/careslot/libs/db"
	"github.com/careslot/careslot/libs/httpx"
)

type cardResponse struct {
	ID       string `json:"id"`
	Brand    string `json:"brand"`
	Last4    string `json:"last4"`
	ExpMonth int64  `json:"exp_month"`
	ExpYear  int64  `json:"exp_year"`
}

// ensureCustomer looks up the user's processor customer, creating and
// persisting one on first use. The stored id wins on concurrent first
// binds so a user never ends up split across two customer records.
func (h *Handler) ensureCustomer(r *http.Request, userID string) (string, error) {
	ctx := r.Context()
	user, err := h.store.GetUserBilling(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.StripeCustomer != "" {
		return user.StripeCustomer, nil
	}
	customerID, err := h.gateway.EnsureCustomer(ctx, userID, user.Email, user.Fullname)
	if err != nil {
		return "", err
	}
	if err := h.store.SetUserCustomer(ctx, userID, customerID); err != nil {
		return "", err
	}
	user, err = h.store.GetUserBilling(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.StripeCustomer, nil
}

// CreateSetupIntent starts saving a card for later off-session use.
func (h *Handler) CreateSetupIntent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID := userIDFromHeader(r)
	if userID == "" {
		httpx.WriteMessage(w, http.StatusUnauthorized, "sign in required")
		return
	}

	customerID, err := h.ensureCustomer(r, userID)
	if err != nil {
		if db.IsNotFound(err) {
			httpx.WriteMessage(w, http.StatusNotFound, "User not found.")
			return
		}
		h.logger.Error("setup intent customer lookup failed", "err", err, "user_id", userID)
		httpx.WriteMessage(w, http.StatusBadGateway, "Could not start card setup. Please try again.")
		return
	}

	intent, err := h.gateway.CreateSetupIntent(r.Context(), customerID)
	if err != nil {
		h.logger.Error("setup intent creation failed", "err", err, "user_id", userID)
		httpx.WriteMessage(w, http.StatusBadGateway, "Could not start card setup. Please try again.")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"setupIntent": map[string]string{
			"id":            intent.ID,
			"client_secret": intent.ClientSecret,
			"status":        intent.Status,
		},
		"customer": customerID,
	})
}

func (h *Handler) AddPaymentMethod(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID := userIDFromHeader(r)
	if userID == "" {
		httpx.WriteMessage(w, http.StatusUnauthorized, "sign in required")
		return
	}

	var req struct {
		PaymentMethodID string `json:"pm_id"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.PaymentMethodID = strings.TrimSpace(req.PaymentMethodID)
	if req.PaymentMethodID == "" {
		httpx.WriteMessage(w, http.StatusBadRequest, "pm_id is required")
		return
	}

	customerID, err := h.ensureCustomer(r, userID)
	if err != nil {
		httpx.WriteMessage(w, http.StatusBadGateway, "Could not save the card. Please try again.")
		return
	}
	if err := h.gateway.AttachPaymentMethod(r.Context(), customerID, req.PaymentMethodID); err != nil {
		h.logger.Error("payment method attach failed", "err", err, "user_id", userID)
		httpx.WriteMessage(w, http.StatusBadGateway, "Could not save the card. Please try again.")
		return
	}
	httpx.WriteMessage(w, http.StatusCreated, "Card saved.")
}

func (h *Handler) RemovePaymentMethod(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID := userIDFromHeader(r)
	if userID == "" {
		httpx.WriteMessage(w, http.StatusUnauthorized, "sign in required")
		return
	}

	var req struct {
		PaymentMethodID string `json:"pm_id"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.PaymentMethodID = strings.TrimSpace(req.PaymentMethodID)
	if req.PaymentMethodID == "" {
		httpx.WriteMessage(w, http.StatusBadRequest, "pm_id is required")
		return
	}

	// Only cards attached to the caller's own customer are detachable.
	user, err := h.store.GetUserBilling(r.Context(), userID)
	if err != nil {
		if db.IsNotFound(err) {
			httpx.WriteMessage(w, http.StatusNotFound, "User not found.")
			return
		}
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	if user.StripeCustomer == "" {
		httpx.WriteMessage(w, http.StatusNotFound, "Card not found.")
		return
	}
	listed, err := h.gateway.ListPaymentMethods(r.Context(), user.StripeCustomer)
	if err != nil {
		h.logger.Error("payment method list failed", "err", err, "user_id", userID)
		httpx.WriteMessage(w, http.StatusBadGateway, "Could not remove the card. Please try again.")
		return
	}
	owned := false
	for _, c := range listed {
		if c.ID == req.PaymentMethodID {
			owned = true
			break
		}
	}
	if !owned {
		httpx.WriteMessage(w, http.StatusNotFound, "Card not found.")
		return
	}

	if err := h.gateway.DetachPaymentMethod(r.Context(), req.PaymentMethodID); err != nil {
		h.logger.Error("payment method detach failed", "err", err, "user_id", userID)
		httpx.WriteMessage(w, http.StatusBadGateway, "Could not remove the card. Please try again.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID := userIDFromHeader(r)
	if userID == "" {
		httpx.WriteMessage(w, http.StatusUnauthorized, "sign in required")
		return
	}

	user, err := h.store.GetUserBilling(r.Context(), userID)
	if err != nil {
		if db.IsNotFound(err) {
			httpx.WriteMessage(w, http.StatusNotFound, "User not found.")
			return
		}
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	cards := []cardResponse{}
	var customerID string
	if user.StripeCustomer != "" {
		customerID = user.StripeCustomer
		listed, err := h.gateway.ListPaymentMethods(r.Context(), user.StripeCustomer)
		if err != nil {
			h.logger.Error("payment method list failed", "err", err, "user_id", userID)
			httpx.WriteMessage(w, http.StatusBadGateway, "Could not load saved cards. Please try again.")
			return
		}
		for _, c := range listed {
			cards = append(cards, cardResponse{
				ID:       c.ID,
				Brand:    c.Brand,
				Last4:    c.Last4,
				ExpMonth: c.ExpMonth,
				ExpYear:  c.ExpYear,
			})
		}
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"customer": customerID,
		"cards":    cards,
	})
}
