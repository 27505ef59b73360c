package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gstdocai/backend/internal/models"
)

// ErrLetterNotFound is returned when the letter does not exist or belongs to another account.
var ErrLetterNotFound = errors.New("letter not found")

type LetterRepo struct {
	pool *pgxpool.Pool
}

func NewLetterRepo(pool *pgxpool.Pool) *LetterRepo {
	return &LetterRepo{pool: pool}
}

// CreateTx inserts the artifact inside the debit transaction.
func (r *LetterRepo) CreateTx(ctx context.Context, tx pgx.Tx, l *models.Letter) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return tx.QueryRow(ctx, `
		INSERT INTO letters (id, account_id, client_name, gstin, compliance_type, period, tone, language, inputs, content)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`, l.ID, l.AccountID, l.ClientName, l.GSTIN, l.ComplianceType, l.Period, l.Tone, l.Language, l.Inputs, l.Content).Scan(&l.CreatedAt)
}

func (r *LetterRepo) GetByID(ctx context.Context, accountID, id uuid.UUID) (*models.Letter, error) {
	var l models.Letter
	err := r.pool.QueryRow(ctx, `
		SELECT id, account_id, client_name, gstin, compliance_type, period, tone, language, inputs, content, created_at
		FROM letters WHERE id = $1 AND account_id = $2
	`, id, accountID).Scan(&l.ID, &l.AccountID, &l.ClientName, &l.GSTIN, &l.ComplianceType, &l.Period, &l.Tone, &l.Language, &l.Inputs, &l.Content, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrLetterNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListByAccountID returns one page of the account's letters, newest first, and the total count.
func (r *LetterRepo) ListByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*models.Letter, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM letters WHERE account_id = $1`, accountID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, client_name, gstin, compliance_type, period, tone, language, content, created_at
		FROM letters WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	list := []*models.Letter{}
	for rows.Next() {
		var l models.Letter
		if err := rows.Scan(&l.ID, &l.AccountID, &l.ClientName, &l.GSTIN, &l.ComplianceType, &l.Period, &l.Tone, &l.Language, &l.Content, &l.CreatedAt); err != nil {
			return nil, 0, err
		}
		list = append(list, &l)
	}
	return list, total, rows.Err()
}
