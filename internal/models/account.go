package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gstdocai/backend/internal/ledger"
)

type Account struct {
	ID             uuid.UUID   `json:"id"`
	Email          string      `json:"email"`
	Name           string      `json:"name"`
	PasswordHash   string      `json:"-"`
	Plan           ledger.Plan `json:"plan"`
	Credits        int         `json:"credits"`
	CreditsResetAt time.Time   `json:"credits_reset_at"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}
