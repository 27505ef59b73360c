package payments

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gstdocai/backend/internal/ledger"
	"github.com/gstdocai/backend/internal/middleware"
	"github.com/gstdocai/backend/internal/repository"
)

type createOrderRequest struct {
	Plan string `json:"plan"`
}

type Handler struct {
	svc *Service
	log *slog.Logger
}

func NewHandler(svc *Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

// CreateOrder handles POST /api/v1/payments/orders.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.AccountIDFromCtx(r.Context())
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	plan, err := ledger.ParsePlan(req.Plan)
	if err != nil {
		http.Error(w, `{"error":"invalid plan"}`, http.StatusBadRequest)
		return
	}
	order, err := h.svc.CreateOrder(r.Context(), accountID, plan)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotPurchasable):
			http.Error(w, `{"error":"invalid plan"}`, http.StatusBadRequest)
		case errors.Is(err, ErrNotConfigured):
			h.log.Error("payment gateway not configured")
			http.Error(w, `{"error":"payment gateway not configured"}`, http.StatusInternalServerError)
		default:
			h.log.Error("create order failed", "account_id", accountID, "error", err)
			http.Error(w, `{"error":"failed to create order"}`, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// Verify handles POST /api/v1/payments/verify. The plan change is applied
// asynchronously; 202 means it is queued.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.AccountIDFromCtx(r.Context())
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	p, err := h.svc.Verify(r.Context(), accountID, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingDetails):
			http.Error(w, `{"error":"missing payment details"}`, http.StatusBadRequest)
		case errors.Is(err, ErrInvalidSignature):
			http.Error(w, `{"error":"invalid payment signature"}`, http.StatusBadRequest)
		case errors.Is(err, repository.ErrPaymentNotFound):
			http.Error(w, `{"error":"order not found"}`, http.StatusNotFound)
		case errors.Is(err, ErrNotConfigured):
			http.Error(w, `{"error":"payment gateway not configured"}`, http.StatusInternalServerError)
		default:
			h.log.Error("payment verification failed", "account_id", accountID, "order_id", req.OrderID, "error", err)
			http.Error(w, `{"error":"payment verification failed"}`, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"success": true,
		"plan":    p.Plan,
		"status":  p.Status,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
