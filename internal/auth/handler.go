package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gstdocai/backend/internal/ledger"
)

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AccountResponse struct {
	ID             string      `json:"id"`
	Email          string      `json:"email"`
	Name           string      `json:"name"`
	Plan           ledger.Plan `json:"plan"`
	Credits        int         `json:"credits"`
	CreditsResetAt time.Time   `json:"credits_reset_at"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type Handler struct {
	svc Service
	log *slog.Logger
}

func NewHandler(svc Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

// Register handles POST /api/v1/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		http.Error(w, `{"error":"missing required fields"}`, http.StatusBadRequest)
		return
	}
	acc, err := h.svc.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicateEmail):
			http.Error(w, `{"error":"email already registered"}`, http.StatusConflict)
		case errors.Is(err, ErrInvalidInput):
			http.Error(w, `{"error":"a valid email and a password of at least 8 characters are required"}`, http.StatusBadRequest)
		default:
			h.log.Error("register failed", "error", err)
			http.Error(w, `{"error":"registration failed"}`, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusCreated, AccountResponse{
		ID:             acc.ID.String(),
		Email:          acc.Email,
		Name:           acc.Name,
		Plan:           acc.Plan,
		Credits:        acc.Credits,
		CreditsResetAt: acc.CreditsResetAt,
	})
}

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		http.Error(w, `{"error":"missing email or password"}`, http.StatusBadRequest)
		return
	}
	token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidLogin) {
			http.Error(w, `{"error":"invalid credentials"}`, http.StatusUnauthorized)
			return
		}
		h.log.Error("login failed", "error", err)
		http.Error(w, `{"error":"login failed"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
