package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Letter is the artifact of one successful, debited generation. Rows are never updated.
type Letter struct {
	ID             uuid.UUID       `json:"id"`
	AccountID      uuid.UUID       `json:"account_id"`
	ClientName     string          `json:"client_name"`
	GSTIN          string          `json:"gstin,omitempty"`
	ComplianceType string          `json:"compliance_type"`
	Period         string          `json:"period"`
	Tone           string          `json:"tone"`
	Language       string          `json:"language"`
	Inputs         json.RawMessage `json:"inputs,omitempty"`
	Content        string          `json:"content"`
	CreatedAt      time.Time       `json:"created_at"`
}
