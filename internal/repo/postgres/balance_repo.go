package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BalanceRepo struct {
	pool *pgxpool.Pool
}

func NewBalanceRepo(pool *pgxpool.Pool) *BalanceRepo {
	return &BalanceRepo{pool: pool}
}

// Credit adds delta to the user's balance, creating the row on first use.
// The upsert-increment is a single statement so concurrent credits to the
// same user never lose updates.
func (r *BalanceRepo) Credit(ctx context.Context, tx pgx.Tx, userID, delta int64) error {
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}
	if userID <= 0 || delta <= 0 {
		return fmt.Errorf("invalid balance credit payload")
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO balances (user_id, balance)
VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE SET
	balance = balances.balance + EXCLUDED.balance
`, userID, delta); err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}

	return nil
}

// Get returns the user's balance, zero when no row exists yet.
func (r *BalanceRepo) Get(ctx context.Context, userID int64) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return 0, fmt.Errorf("invalid user id")
	}

	var balance int64
	err := r.pool.QueryRow(ctx, `
SELECT balance
FROM balances
WHERE user_id = $1
LIMIT 1
`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get balance: %w", err)
	}

	return balance, nil
}
