package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gstdocai/backend/internal/ledger"
	"github.com/gstdocai/backend/internal/models"
	"github.com/gstdocai/backend/internal/observability"
	"github.com/gstdocai/backend/internal/prompt"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrQuotaExhausted means the caller has no credits left this cycle and should upgrade.
	ErrQuotaExhausted = errors.New("quota exhausted")
	ErrProvider       = errors.New("text generation failed")
	// ErrPersistence means text was generated but the debit and artifact did not commit.
	ErrPersistence = errors.New("failed to persist letter")
)

// DefaultProviderTimeout bounds a single provider call when none is configured.
const DefaultProviderTimeout = 60 * time.Second

// TextProvider produces a completion for a prompt.
type TextProvider interface {
	Complete(ctx context.Context, p prompt.Prompt) (string, error)
}

// LetterWriter persists the artifact inside the debit transaction.
type LetterWriter interface {
	CreateTx(ctx context.Context, tx pgx.Tx, l *models.Letter) error
}

// GenerateRequest is one generation attempt. Input is the raw letter description.
type GenerateRequest struct {
	AccountID uuid.UUID
	Input     json.RawMessage
}

type GenerateResult struct {
	LetterID uuid.UUID `json:"letter_id"`
	Content  string    `json:"letter"`
	Credits  int       `json:"credits"`
}

// GenerationGateway admits, runs, and charges a generation request.
// A request is charged exactly one credit only when its letter is committed.
type GenerationGateway struct {
	Meter           *CreditMeter
	Pool            TxBeginner
	Letters         LetterWriter
	Provider        TextProvider
	Validator       *Validator
	ProviderTimeout time.Duration
	Logger          *slog.Logger
	Metrics         *observability.Metrics
}

// Generate runs: authenticate -> lazy reset -> quota check -> validate -> provider ->
// debit and persist in one transaction. No step is retried.
func (g *GenerationGateway) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if req.AccountID == uuid.Nil {
		g.outcome("unauthenticated")
		return nil, ErrUnauthenticated
	}

	acc, err := g.Meter.CheckAndReset(ctx, req.AccountID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			g.outcome("not_found")
			return nil, err
		}
		g.outcome("error")
		return nil, fmt.Errorf("check credits: %w", err)
	}
	if acc.Credits <= 0 {
		g.outcome("quota_exhausted")
		return nil, ErrQuotaExhausted
	}

	if err := g.Validator.ValidateInput(KindGSTReminder, req.Input); err != nil {
		g.outcome("invalid")
		return nil, err
	}
	var in prompt.LetterInput
	if err := json.Unmarshal(req.Input, &in); err != nil {
		g.outcome("invalid")
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	p, err := prompt.Build(in)
	if err != nil {
		g.outcome("error")
		return nil, err
	}

	content, err := g.complete(ctx, p)
	if err != nil {
		g.Logger.Warn("provider call failed", "account_id", req.AccountID, "error", err)
		g.outcome("provider_error")
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	filled := in.WithDefaults()
	letter := &models.Letter{
		ID:             uuid.New(),
		AccountID:      req.AccountID,
		ClientName:     in.ClientName,
		GSTIN:          strings.TrimSpace(in.GSTIN),
		ComplianceType: in.ComplianceType,
		Period:         in.Period,
		Tone:           filled.Tone,
		Language:       filled.Language,
		Inputs:         req.Input,
		Content:        content,
	}

	// Once text exists the charge and artifact commit even if the client has gone away.
	remaining, err := g.persist(context.WithoutCancel(ctx), letter)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientCredits) {
			g.Logger.Info("debit lost to concurrent request, discarding letter",
				"account_id", req.AccountID, "letter_id", letter.ID)
			g.outcome("quota_exhausted")
			return nil, ErrQuotaExhausted
		}
		g.Logger.Error("letter persistence failed",
			"account_id", req.AccountID, "letter_id", letter.ID,
			"content", content, "error", err)
		g.outcome("persistence_error")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	g.outcome("success")
	if g.Metrics != nil {
		g.Metrics.CreditsDebited.Inc()
	}
	return &GenerateResult{LetterID: letter.ID, Content: content, Credits: remaining}, nil
}

func (g *GenerationGateway) complete(ctx context.Context, p prompt.Prompt) (string, error) {
	timeout := g.ProviderTimeout
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	text, err := g.Provider.Complete(ctx, p)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("empty completion")
	}
	if g.Metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		g.Metrics.ProviderLatency.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}
	return text, err
}

// persist debits one credit and inserts the letter in a single transaction.
func (g *GenerationGateway) persist(ctx context.Context, letter *models.Letter) (int, error) {
	tx, err := g.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	remaining, err := g.Meter.Debit(ctx, tx, letter.AccountID)
	if err != nil {
		return 0, err
	}
	if err := g.Letters.CreateTx(ctx, tx, letter); err != nil {
		return 0, fmt.Errorf("create letter: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return remaining, nil
}

func (g *GenerationGateway) outcome(o string) {
	if g.Metrics != nil {
		g.Metrics.GenerationsTotal.WithLabelValues(o).Inc()
	}
}
