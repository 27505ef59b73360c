package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gstdocai/backend/internal/ledger"
	"github.com/gstdocai/backend/internal/models"
	"github.com/gstdocai/backend/internal/prompt"
)

// ---------------------------------------------------------------------------
// In-memory fakes for the ledger, letters, payments and provider.
// Writes made through a fakeTx are undone when it rolls back.
// ---------------------------------------------------------------------------

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- fakeTx satisfies pgx.Tx; only Commit/Rollback carry behaviour. ---

type fakeTx struct {
	mu         sync.Mutex
	undo       []func()
	committed  bool
	rolledBack bool
	commitErr  error
}

func (t *fakeTx) onRollback(f func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.undo = append(t.undo, f)
}

func (t *fakeTx) Commit(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.commitErr != nil {
		t.runUndoLocked()
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.committed {
		return pgx.ErrTxClosed
	}
	t.runUndoLocked()
	return nil
}

func (t *fakeTx) runUndoLocked() {
	if t.rolledBack {
		return
	}
	t.rolledBack = true
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
}

func (t *fakeTx) Begin(context.Context) (pgx.Tx, error) { return t, nil }
func (t *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (t *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (t *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *fakeTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *fakeTx) Conn() *pgx.Conn { return nil }

func asFakeTx(q ledger.Querier) *fakeTx {
	tx, _ := q.(*fakeTx)
	return tx
}

// --- TxBeginner fake ---

type fakePool struct {
	mu        sync.Mutex
	txs       []*fakeTx
	beginErr  error
	commitErr error
}

func (p *fakePool) Begin(context.Context) (pgx.Tx, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.beginErr != nil {
		return nil, p.beginErr
	}
	tx := &fakeTx{commitErr: p.commitErr}
	p.txs = append(p.txs, tx)
	return tx, nil
}

// --- ledger store fake: MeterStore + PlanWriter ---

type fakeStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*ledger.Account
	resets   int
	getHook  func()
}

func newFakeStore(accs ...ledger.Account) *fakeStore {
	s := &fakeStore{accounts: make(map[uuid.UUID]*ledger.Account)}
	for _, a := range accs {
		cp := a
		s.accounts[a.ID] = &cp
	}
	return s
}

func (s *fakeStore) Get(_ context.Context, id uuid.UUID) (*ledger.Account, error) {
	if s.getHook != nil {
		s.getHook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *fakeStore) ResetCycle(_ context.Context, id uuid.UUID, credits int, anchor, seenAnchor time.Time) (*ledger.Account, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, false, ledger.ErrNotFound
	}
	if !a.CreditsResetAt.Equal(seenAnchor) {
		cp := *a
		return &cp, false, nil
	}
	a.Credits = credits
	a.CreditsResetAt = anchor
	s.resets++
	cp := *a
	return &cp, true, nil
}

func (s *fakeStore) Debit(_ context.Context, q ledger.Querier, id uuid.UUID, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return 0, ledger.ErrNotFound
	}
	if a.Credits <= 0 || a.Credits < delta {
		return 0, ledger.ErrInsufficientCredits
	}
	a.Credits -= delta
	if tx := asFakeTx(q); tx != nil {
		tx.onRollback(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			a.Credits += delta
		})
	}
	return a.Credits, nil
}

func (s *fakeStore) SetPlan(_ context.Context, q ledger.Querier, id uuid.UUID, plan ledger.Plan, credits int, anchor time.Time) (*ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	prev := *a
	a.Plan, a.Credits, a.CreditsResetAt = plan, credits, anchor
	if tx := asFakeTx(q); tx != nil {
		tx.onRollback(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			*a = prev
		})
	}
	cp := *a
	return &cp, nil
}

func (s *fakeStore) account(id uuid.UUID) ledger.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.accounts[id]
}

func (s *fakeStore) resetCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}

// --- PaymentMarker fake ---

type fakePayments struct {
	mu        sync.Mutex
	processed map[string]uuid.UUID
	err       error
}

func newFakePayments() *fakePayments {
	return &fakePayments{processed: make(map[string]uuid.UUID)}
}

func (p *fakePayments) MarkProcessed(_ context.Context, q ledger.Querier, paymentID string, accountID uuid.UUID, _ ledger.Plan) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return false, p.err
	}
	if _, ok := p.processed[paymentID]; ok {
		return false, nil
	}
	p.processed[paymentID] = accountID
	if tx := asFakeTx(q); tx != nil {
		tx.onRollback(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			delete(p.processed, paymentID)
		})
	}
	return true, nil
}

func (p *fakePayments) has(paymentID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.processed[paymentID]
	return ok
}

// --- LetterWriter fake ---

type fakeLetters struct {
	mu      sync.Mutex
	letters map[uuid.UUID]*models.Letter
	err     error
}

func newFakeLetters() *fakeLetters {
	return &fakeLetters{letters: make(map[uuid.UUID]*models.Letter)}
}

func (l *fakeLetters) CreateTx(_ context.Context, tx pgx.Tx, letter *models.Letter) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	cp := *letter
	cp.CreatedAt = time.Now()
	l.letters[letter.ID] = &cp
	if ftx, ok := tx.(*fakeTx); ok {
		ftx.onRollback(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.letters, letter.ID)
		})
	}
	return nil
}

func (l *fakeLetters) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.letters)
}

// --- TextProvider fake ---

type fakeProvider struct {
	mu    sync.Mutex
	calls int
	text  string
	err   error
	delay time.Duration
}

var errProviderDown = errors.New("provider down")

func (f *fakeProvider) Complete(ctx context.Context, _ prompt.Prompt) (string, error) {
	f.mu.Lock()
	f.calls++
	text, err, delay := f.text, f.err, f.delay
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return text, err
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
