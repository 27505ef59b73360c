package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/gstdocai/backend/internal/ledger"
	"github.com/gstdocai/backend/internal/middleware"
	"github.com/gstdocai/backend/internal/models"
	"github.com/gstdocai/backend/internal/repository"
	"github.com/gstdocai/backend/internal/services"
)

const (
	maxGenerateBody = 64 << 10
	defaultPageSize = 10
	maxPageSize     = 50
)

// Generator runs one metered generation.
type Generator interface {
	Generate(ctx context.Context, req services.GenerateRequest) (*services.GenerateResult, error)
}

// LetterReader is the subset of the letter repository needed by the handler.
type LetterReader interface {
	GetByID(ctx context.Context, accountID, id uuid.UUID) (*models.Letter, error)
	ListByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*models.Letter, int, error)
}

// LetterHandler serves /api/v1/letters endpoints.
type LetterHandler struct {
	Gateway Generator
	Letters LetterReader
	Logger  *slog.Logger
}

// --- POST /api/v1/letters/generate ---

// Generate handles POST /api/v1/letters/generate.
// Auth (via middleware) -> Reset -> Quota -> Validate -> Provider -> Debit+Persist -> 200.
func (h *LetterHandler) Generate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxGenerateBody))
	if err != nil {
		http.Error(w, `{"error":"request body too large"}`, http.StatusRequestEntityTooLarge)
		return
	}

	accountID := middleware.AccountIDFromCtx(r.Context())
	res, err := h.Gateway.Generate(r.Context(), services.GenerateRequest{AccountID: accountID, Input: body})
	if err != nil {
		h.writeGenerateError(w, accountID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"letter_id": res.LetterID,
		"letter":    res.Content,
		"credits":   res.Credits,
	})
}

func (h *LetterHandler) writeGenerateError(w http.ResponseWriter, accountID uuid.UUID, err error) {
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "please sign in to generate letters", "requires_auth": true})
	case errors.Is(err, ledger.ErrNotFound):
		http.Error(w, `{"error":"user not found"}`, http.StatusNotFound)
	case errors.Is(err, services.ErrQuotaExhausted):
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":            "you have used all your credits, upgrade your plan for more",
			"requires_upgrade": true,
			"credits":          0,
		})
	case errors.Is(err, services.ErrValidation):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, services.ErrProvider):
		http.Error(w, `{"error":"letter generation failed, you have not been charged"}`, http.StatusBadGateway)
	default:
		if !errors.Is(err, services.ErrPersistence) {
			h.Logger.Error("generate letter", "account_id", accountID, "error", err)
		}
		http.Error(w, `{"error":"failed to generate letter"}`, http.StatusInternalServerError)
	}
}

// --- GET /api/v1/letters ---

type pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type listLettersResponse struct {
	Letters    []*models.Letter `json:"letters"`
	Pagination pagination       `json:"pagination"`
}

// ListLetters handles GET /api/v1/letters?page=&limit=, newest first.
func (h *LetterHandler) ListLetters(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.AccountIDFromCtx(r.Context())
	if accountID == uuid.Nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	page, limit := pageParams(r)

	letters, total, err := h.Letters.ListByAccountID(r.Context(), accountID, limit, (page-1)*limit)
	if err != nil {
		h.Logger.Error("list letters", "account_id", accountID, "error", err)
		http.Error(w, `{"error":"failed to fetch letters"}`, http.StatusInternalServerError)
		return
	}
	if letters == nil {
		letters = []*models.Letter{}
	}
	writeJSON(w, http.StatusOK, listLettersResponse{
		Letters: letters,
		Pagination: pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: (total + limit - 1) / limit,
		},
	})
}

// --- GET /api/v1/letters/{id} ---

// GetLetter handles GET /api/v1/letters/{id}. Letters of other accounts are reported as missing.
func (h *LetterHandler) GetLetter(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.AccountIDFromCtx(r.Context())
	if accountID == uuid.Nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid letter id"}`, http.StatusBadRequest)
		return
	}
	l, err := h.Letters.GetByID(r.Context(), accountID, id)
	if errors.Is(err, repository.ErrLetterNotFound) {
		http.Error(w, `{"error":"letter not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		h.Logger.Error("get letter", "account_id", accountID, "letter_id", id, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// --- helpers ---

// pageParams reads page (>= 1, default 1) and limit (clamped to [1, 50], default 10).
func pageParams(r *http.Request) (page, limit int) {
	page, limit = 1, defaultPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		limit = min(max(v, 1), maxPageSize)
	}
	return page, limit
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
