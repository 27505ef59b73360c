package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gstdocai/backend/internal/execution"
	"github.com/gstdocai/backend/internal/ledger"
	"github.com/gstdocai/backend/internal/models"
	"github.com/gstdocai/backend/internal/observability"
)

const Currency = "INR"

var (
	ErrNotPurchasable   = errors.New("plan is not purchasable")
	ErrMissingDetails   = errors.New("missing payment details")
	ErrInvalidSignature = errors.New("invalid payment signature")
	ErrNotConfigured    = errors.New("payment gateway not configured")
)

// prices are in paise.
var prices = map[ledger.Plan]int64{
	ledger.PlanPro:  49900,
	ledger.PlanFirm: 149900,
}

// Price returns the purchase price of plan in paise.
func Price(p ledger.Plan) (int64, bool) {
	amount, ok := prices[p]
	return amount, ok
}

// Store is the subset of the payment repository the service needs.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, p *models.Payment) error
	MarkVerifiedTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, orderID, paymentID, signature string) (*models.Payment, error)
}

// EnqueueUpgradeTxFunc enqueues an ApplyUpgrade job within the given transaction.
// Provided by main using river.Client.InsertTx.
type EnqueueUpgradeTxFunc func(ctx context.Context, tx pgx.Tx, args execution.ApplyUpgradeArgs) error

type Order struct {
	OrderID     string      `json:"order_id"`
	AmountPaise int64       `json:"amount"`
	Currency    string      `json:"currency"`
	Plan        ledger.Plan `json:"plan"`
	MockMode    bool        `json:"mock_mode"`
}

type VerifyRequest struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
	MockMode  bool   `json:"mock_mode"`
}

type Service struct {
	store     Store
	enqueue   EnqueueUpgradeTxFunc
	keySecret string
	mockMode  bool
	logger    *slog.Logger
	metrics   *observability.Metrics
}

func NewService(store Store, enqueue EnqueueUpgradeTxFunc, keySecret string, mockMode bool, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{store: store, enqueue: enqueue, keySecret: keySecret, mockMode: mockMode, logger: logger, metrics: metrics}
}

// CreateOrder records a pending payment for plan at its list price.
func (s *Service) CreateOrder(ctx context.Context, accountID uuid.UUID, plan ledger.Plan) (*Order, error) {
	amount, ok := Price(plan)
	if !ok {
		return nil, ErrNotPurchasable
	}
	if !s.mockMode && s.keySecret == "" {
		return nil, ErrNotConfigured
	}
	prefix := "order_"
	if s.mockMode {
		prefix = "mock_order_"
	}
	p := &models.Payment{
		AccountID:   accountID,
		OrderID:     prefix + strings.ReplaceAll(uuid.NewString(), "-", ""),
		AmountPaise: amount,
		Currency:    Currency,
		Plan:        plan,
		Status:      models.PaymentStatusPending,
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	if s.metrics != nil {
		s.metrics.PaymentOrdersTotal.WithLabelValues(string(plan)).Inc()
	}
	return &Order{OrderID: p.OrderID, AmountPaise: amount, Currency: Currency, Plan: plan, MockMode: s.mockMode}, nil
}

// Verify checks the gateway callback and, in one transaction, marks the order
// verified and enqueues the upgrade. The plan comes from the stored order.
func (s *Service) Verify(ctx context.Context, accountID uuid.UUID, req VerifyRequest) (*models.Payment, error) {
	if req.OrderID == "" || req.PaymentID == "" {
		return nil, ErrMissingDetails
	}
	mock := s.mockMode && req.MockMode
	signature := req.Signature
	if mock {
		signature = "mock_signature"
	} else {
		if signature == "" {
			return nil, ErrMissingDetails
		}
		if s.keySecret == "" {
			return nil, ErrNotConfigured
		}
		if !VerifySignature(s.keySecret, req.OrderID, req.PaymentID, signature) {
			s.logger.Warn("payment signature mismatch", "account_id", accountID, "order_id", req.OrderID)
			return nil, ErrInvalidSignature
		}
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin verify tx: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := s.store.MarkVerifiedTx(ctx, tx, accountID, req.OrderID, req.PaymentID, signature)
	if err != nil {
		return nil, err
	}
	if err := s.enqueue(ctx, tx, execution.ApplyUpgradeArgs{
		AccountID: accountID,
		Plan:      p.Plan,
		PaymentID: req.PaymentID,
	}); err != nil {
		return nil, fmt.Errorf("enqueue upgrade: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit verify tx: %w", err)
	}

	s.logger.Info("payment verified",
		"account_id", accountID, "order_id", req.OrderID, "payment_id", req.PaymentID,
		"plan", p.Plan, "mock", mock)
	return p, nil
}
