package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"referral-rewards-api/internal/domain/model"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// FindByID reads a user with the consistency view of the given
// transaction. Referral decisions must never be made from stale rows.
func (r *UserRepo) FindByID(ctx context.Context, tx pgx.Tx, userID int64) (model.User, error) {
	if tx == nil {
		return model.User{}, fmt.Errorf("transaction is required")
	}
	if userID <= 0 {
		return model.User{}, fmt.Errorf("invalid user id")
	}

	var user model.User
	err := tx.QueryRow(ctx, `
SELECT id, referrer_id, is_active, created_at
FROM users
WHERE id = $1
`, userID).Scan(&user.ID, &user.ReferrerID, &user.IsActive, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("find user by id: %w", err)
	}

	return user, nil
}
