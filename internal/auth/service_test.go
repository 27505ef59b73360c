package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gstdocai/backend/internal/ledger"
	"github.com/gstdocai/backend/internal/models"
)

// --- AccountStore mock ---

type mockStore struct {
	mu      sync.Mutex
	byEmail map[string]*models.Account
}

func newMockStore() *mockStore { return &mockStore{byEmail: make(map[string]*models.Account)} }

func (m *mockStore) Create(_ context.Context, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[a.Email]; ok {
		return &pgconn.PgError{Code: "23505"}
	}
	a.ID = uuid.New()
	a.Credits, _ = ledger.Allotment(a.Plan)
	a.CreditsResetAt = time.Now()
	cp := *a
	m.byEmail[a.Email] = &cp
	return nil
}

func (m *mockStore) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

const testSecret = "test-secret"

func TestRegister_CreatesFreeAccount(t *testing.T) {
	svc := NewService(newMockStore(), testSecret)

	acc, err := svc.Register(context.Background(), "  CA@Example.com ", "password123", "Ravi")
	require.NoError(t, err)
	assert.Equal(t, "ca@example.com", acc.Email)
	assert.Equal(t, ledger.PlanFree, acc.Plan)
	assert.Equal(t, 5, acc.Credits)
	assert.NotEqual(t, "password123", acc.PasswordHash)
}

func TestRegister_Rejections(t *testing.T) {
	store := newMockStore()
	svc := NewService(store, testSecret)
	ctx := context.Background()

	_, err := svc.Register(ctx, "not-an-email", "password123", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Register(ctx, "a@b.com", "short", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Register(ctx, "a@b.com", "password123", "")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "A@B.com", "password123", "")
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestLoginAndValidateToken(t *testing.T) {
	svc := NewService(newMockStore(), testSecret)
	ctx := context.Background()

	acc, err := svc.Register(ctx, "a@b.com", "password123", "")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "a@b.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidLogin)
	_, err = svc.Login(ctx, "nobody@b.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidLogin)

	token, err := svc.Login(ctx, "A@b.com", "password123")
	require.NoError(t, err)

	id, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, id)
}

func TestValidateToken_Rejects(t *testing.T) {
	svc := NewService(newMockStore(), testSecret)
	ctx := context.Background()
	id := uuid.New()

	t.Run("expired", func(t *testing.T) {
		old := NewService(newMockStore(), testSecret)
		old.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
		token, err := old.issueToken(id)
		require.NoError(t, err)
		_, err = svc.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := NewService(newMockStore(), "other").issueToken(id)
		require.NoError(t, err)
		_, err = svc.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("non uuid subject", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "admin",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = svc.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateToken(ctx, "not.a.jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
