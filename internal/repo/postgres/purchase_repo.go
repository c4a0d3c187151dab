package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrPurchaseNotFound = errors.New("purchase not found")
	ErrPurchaseExists   = errors.New("purchase already exists")
)

type PurchaseRepo struct {
	pool *pgxpool.Pool
}

type PurchaseRecord struct {
	ID        uuid.UUID
	UserID    int64
	Amount    int64
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewPurchaseRepo(pool *pgxpool.Pool) *PurchaseRepo {
	return &PurchaseRepo{pool: pool}
}

func (r *PurchaseRepo) Create(ctx context.Context, id uuid.UUID, userID, amount int64, status string) (PurchaseRecord, error) {
	if r.pool == nil {
		return PurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}

	var record PurchaseRecord
	err := r.pool.QueryRow(ctx, `
INSERT INTO purchases (id, user_id, amount, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, NOW(), NOW())
RETURNING id, user_id, amount, status, created_at, updated_at
`, id, userID, amount, status).Scan(
		&record.ID,
		&record.UserID,
		&record.Amount,
		&record.Status,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return PurchaseRecord{}, ErrPurchaseExists
		}
		return PurchaseRecord{}, fmt.Errorf("create purchase: %w", err)
	}

	return record, nil
}

func (r *PurchaseRepo) FindByID(ctx context.Context, purchaseID uuid.UUID) (PurchaseRecord, error) {
	if r.pool == nil {
		return PurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}

	var record PurchaseRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, user_id, amount, status, created_at, updated_at
FROM purchases
WHERE id = $1
LIMIT 1
`, purchaseID).Scan(
		&record.ID,
		&record.UserID,
		&record.Amount,
		&record.Status,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseRecord{}, ErrPurchaseNotFound
		}
		return PurchaseRecord{}, fmt.Errorf("find purchase by id: %w", err)
	}

	return record, nil
}

// DeleteTerminalOlderThan removes refunded and voided purchases last touched
// before the cutoff. Purchases with granted rewards are kept for audit.
func (r *PurchaseRepo) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
DELETE FROM purchases p
WHERE p.status IN ('refunded', 'voided')
  AND p.updated_at < $1
  AND NOT EXISTS (
      SELECT 1 FROM rewards w WHERE w.purchase_id = p.id
  )
`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete terminal purchases: %w", err)
	}

	return tag.RowsAffected(), nil
}

// LockForSettlement takes the purchase row lock that serializes concurrent
// settlers of the same purchase. Must run inside the settlement transaction.
func (r *PurchaseRepo) LockForSettlement(ctx context.Context, tx pgx.Tx, purchaseID uuid.UUID) (PurchaseRecord, error) {
	if tx == nil {
		return PurchaseRecord{}, fmt.Errorf("transaction is required")
	}

	var record PurchaseRecord
	err := tx.QueryRow(ctx, `
SELECT id, user_id, amount, status, created_at, updated_at
FROM purchases
WHERE id = $1
FOR UPDATE
`, purchaseID).Scan(
		&record.ID,
		&record.UserID,
		&record.Amount,
		&record.Status,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseRecord{}, ErrPurchaseNotFound
		}
		return PurchaseRecord{}, fmt.Errorf("lock purchase for settlement: %w", err)
	}

	return record, nil
}
