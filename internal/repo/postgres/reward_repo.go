package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RewardRepo struct {
	pool *pgxpool.Pool
}

type RewardRecord struct {
	PurchaseID        uuid.UUID
	UserID            int64
	BeneficiaryUserID int64
	Level             int
	Amount            int64
	CreatedAt         time.Time
}

func NewRewardRepo(pool *pgxpool.Pool) *RewardRepo {
	return &RewardRepo{pool: pool}
}

// GrantIfAbsent inserts a reward grant unless one already exists for the
// (purchase, beneficiary, level) key. A duplicate is absorbed by the unique
// constraint and reported as created=false, never as an error.
func (r *RewardRepo) GrantIfAbsent(ctx context.Context, tx pgx.Tx, purchaseID uuid.UUID, userID, beneficiaryUserID int64, level int, amount int64) (bool, error) {
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}
	if beneficiaryUserID <= 0 || level < 1 || level > 2 || amount <= 0 {
		return false, fmt.Errorf("invalid reward grant payload")
	}

	tag, err := tx.Exec(ctx, `
INSERT INTO rewards (purchase_id, user_id, beneficiary_user_id, level, amount, created_at)
VALUES ($1, $2, $3, $4, $5, NOW())
ON CONFLICT (purchase_id, beneficiary_user_id, level) DO NOTHING
`, purchaseID, userID, beneficiaryUserID, level, amount)
	if err != nil {
		return false, fmt.Errorf("grant reward: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *RewardRepo) ListByPurchase(ctx context.Context, purchaseID uuid.UUID) ([]RewardRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT purchase_id, user_id, beneficiary_user_id, level, amount, created_at
FROM rewards
WHERE purchase_id = $1
ORDER BY level
`, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("list rewards by purchase: %w", err)
	}
	defer rows.Close()

	var records []RewardRecord
	for rows.Next() {
		var record RewardRecord
		if err := rows.Scan(
			&record.PurchaseID,
			&record.UserID,
			&record.BeneficiaryUserID,
			&record.Level,
			&record.Amount,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan reward row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reward rows: %w", err)
	}

	return records, nil
}
