package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/gstdocai/backend/internal/ledger"
	"github.com/gstdocai/backend/internal/middleware"
	"github.com/gstdocai/backend/internal/models"
	"github.com/gstdocai/backend/internal/payments"
)

// AccountReader loads the profile fields of an account.
type AccountReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// CreditChecker brings the balance current before it is shown.
type CreditChecker interface {
	CheckAndReset(ctx context.Context, accountID uuid.UUID) (*ledger.Account, error)
}

type Handler struct {
	accounts AccountReader
	credits  CreditChecker
	log      *slog.Logger
}

func NewHandler(accounts AccountReader, credits CreditChecker, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{accounts: accounts, credits: credits, log: log}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GET /api/v1/account/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.AccountIDFromCtx(r.Context())
	if accountID == uuid.Nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	bal, err := h.credits.CheckAndReset(r.Context(), accountID)
	if errors.Is(err, ledger.ErrNotFound) {
		http.Error(w, `{"error":"account not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("check credits failed", "account_id", accountID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	acc, err := h.accounts.GetByID(r.Context(), accountID)
	if err != nil {
		h.log.Error("get account failed", "account_id", accountID, "error", err)
		http.Error(w, `{"error":"account not found"}`, http.StatusNotFound)
		return
	}
	allotment, _ := ledger.Allotment(bal.Plan)
	writeJSON(w, http.StatusOK, map[string]any{
		"id":               acc.ID,
		"email":            acc.Email,
		"name":             acc.Name,
		"plan":             bal.Plan,
		"credits":          bal.Credits,
		"allotment":        allotment,
		"credits_reset_at": bal.CreditsResetAt,
		"created_at":       acc.CreatedAt,
	})
}

type planInfo struct {
	Plan        ledger.Plan `json:"plan"`
	Credits     int         `json:"credits"`
	PricePaise  int64       `json:"price_paise"`
	Currency    string      `json:"currency"`
	Purchasable bool        `json:"purchasable"`
}

// ListPlans handles GET /api/v1/plans (public, no auth).
func ListPlans(w http.ResponseWriter, _ *http.Request) {
	plans := make([]planInfo, 0, len(ledger.Plans()))
	for _, p := range ledger.Plans() {
		credits, _ := ledger.Allotment(p)
		price, ok := payments.Price(p)
		plans = append(plans, planInfo{Plan: p, Credits: credits, PricePaise: price, Currency: payments.Currency, Purchasable: ok})
	}
	writeJSON(w, http.StatusOK, plans)
}
