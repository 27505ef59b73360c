package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gstdocai/backend/internal/ledger"
)

// Payment status lifecycle: pending -> verified -> applied.
const (
	PaymentStatusPending  = "pending"
	PaymentStatusVerified = "verified"
	PaymentStatusApplied  = "applied"
)

type Payment struct {
	ID          uuid.UUID   `json:"id"`
	AccountID   uuid.UUID   `json:"account_id"`
	OrderID     string      `json:"order_id"`
	PaymentID   *string     `json:"payment_id,omitempty"`
	Signature   *string     `json:"-"`
	AmountPaise int64       `json:"amount_paise"`
	Currency    string      `json:"currency"`
	Plan        ledger.Plan `json:"plan"`
	Status      string      `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
