package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/careslot/careslot/libs/auth"
	"github.com/careslot/careslot/libs/db"
	"github.com/careslot/careslot/libs/httpx"
	"github.com/careslot/careslot/services/auth-service/internal/sessions"
	"github.com/careslot/careslot/services/auth-service/internal/storage"
)

type AuthHandler struct {
	secret     string
	users      *storage.UserRepository
	refresh    *sessions.RefreshRepository
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewAuthHandler(secret string, users *storage.UserRepository, refresh *sessions.RefreshRepository, accessTTL, refreshTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		secret:     secret,
		users:      users,
		refresh:    refresh,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

type signupRequest struct {
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type profileResponse struct {
	ID        string `json:"id"`
	Fullname  string `json:"fullname"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Birthdate string `json:"birthdate"`
	Avatar    string `json:"avatar"`
	Customer  string `json:"customer"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req signupRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Fullname = strings.TrimSpace(req.Fullname)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Password = strings.TrimSpace(req.Password)
	if req.Fullname == "" || req.Email == "" || req.Password == "" {
		httpx.WriteMessage(w, http.StatusBadRequest, "fullname, email and password are required")
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user := storage.User{
		ID:           uuid.NewString(),
		Fullname:     req.Fullname,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         auth.RolePatient,
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		if db.IsUniqueViolation(err) {
			httpx.WriteMessage(w, http.StatusConflict, "Email already registered.")
			return
		}
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]string{"message": "Account created. Please sign in."})
}

func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req signinRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Password = strings.TrimSpace(req.Password)
	if req.Email == "" || req.Password == "" {
		httpx.WriteMessage(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if storage.IsNotFound(err) {
			httpx.WriteMessage(w, http.StatusUnauthorized, "Invalid email or password.")
			return
		}
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to look up user")
		return
	}
	if err := verifyPassword(user.PasswordHash, req.Password); err != nil {
		httpx.WriteMessage(w, http.StatusUnauthorized, "Invalid email or password.")
		return
	}

	h.writeTokens(r.Context(), w, user, http.StatusOK)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req refreshRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		httpx.WriteMessage(w, http.StatusBadRequest, "refresh_token required")
		return
	}

	record, err := h.refresh.GetByHash(r.Context(), sessions.HashToken(req.RefreshToken))
	if err != nil {
		if sessions.IsNotFound(err) {
			httpx.WriteMessage(w, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to look up refresh token")
		return
	}
	if record.RevokedAt != nil || record.ExpiresAt.Before(time.Now()) {
		httpx.WriteMessage(w, http.StatusUnauthorized, "refresh token expired")
		return
	}

	user, err := h.users.GetByID(r.Context(), record.UserID)
	if err != nil {
		httpx.WriteMessage(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	// Rotate: the presented token is dead regardless of what follows.
	if err := h.refresh.Revoke(r.Context(), record.ID); err != nil {
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to rotate refresh token")
		return
	}

	h.writeTokens(r.Context(), w, user, http.StatusOK)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req refreshRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		httpx.WriteMessage(w, http.StatusBadRequest, "refresh_token required")
		return
	}

	record, err := h.refresh.GetByHash(r.Context(), sessions.HashToken(req.RefreshToken))
	if err != nil {
		if sessions.IsNotFound(err) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to look up refresh token")
		return
	}
	if record.RevokedAt == nil {
		if err := h.refresh.Revoke(r.Context(), record.ID); err != nil {
			httpx.WriteMessage(w, http.StatusInternalServerError, "failed to revoke refresh token")
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	claims, ok := h.verifyRequest(r)
	if !ok {
		httpx.WriteMessage(w, http.StatusUnauthorized, "invalid token")
		return
	}
	user, err := h.users.GetByID(r.Context(), claims.Sub)
	if err != nil {
		if storage.IsNotFound(err) {
			httpx.WriteMessage(w, http.StatusNotFound, "user not found")
			return
		}
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]profileResponse{"user": toProfile(user)})
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		httpx.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	claims, ok := h.verifyRequest(r)
	if !ok {
		httpx.WriteMessage(w, http.StatusUnauthorized, "invalid token")
		return
	}

	var req struct {
		Fullname  string `json:"fullname"`
		Phone     string `json:"phone"`
		Birthdate string `json:"birthdate"`
		Avatar    string `json:"avatar"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Fullname = strings.TrimSpace(req.Fullname)
	if req.Fullname == "" {
		httpx.WriteMessage(w, http.StatusBadRequest, "fullname is required")
		return
	}

	if err := h.users.UpdateProfile(r.Context(), claims.Sub, req.Fullname, req.Phone, req.Birthdate, req.Avatar); err != nil {
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to update profile")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) verifyRequest(r *http.Request) (*auth.Claims, bool) {
	token, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		return nil, false
	}
	claims, err := auth.VerifyHS256(token, h.secret)
	if err != nil {
		return nil, false
	}
	return claims, true
}

func (h *AuthHandler) writeTokens(ctx context.Context, w http.ResponseWriter, user storage.User, status int) {
	accessToken, err := auth.SignHS256(auth.NewClaims(user.ID, user.Email, user.Role, h.accessTTL), h.secret)
	if err != nil {
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	refreshToken, err := h.issueRefreshToken(ctx, user.ID)
	if err != nil {
		httpx.WriteMessage(w, http.StatusInternalServerError, "failed to issue refresh token")
		return
	}
	httpx.WriteJSON(w, status, tokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
	})
}

func (h *AuthHandler) issueRefreshToken(ctx context.Context, userID string) (string, error) {
	raw, err := newOpaqueToken()
	if err != nil {
		return "", err
	}
	if _, err := h.refresh.Create(ctx, userID, raw, time.Now().Add(h.refreshTTL)); err != nil {
		return "", err
	}
	return raw, nil
}

func newOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func toProfile(user storage.User) profileResponse {
	return profileResponse{
		ID:        user.ID,
		Fullname:  user.Fullname,
		Email:     user.Email,
		Phone:     user.Phone,
		Birthdate: user.Birthdate,
		Avatar:    user.Avatar,
		Customer:  user.StripeCustomer,
	}
}

func hashPassword(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func verifyPassword(hash, raw string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw))
}
