package balances

import (
	"context"
	"errors"
	"fmt"

	"referral-rewards-api/internal/domain/model"
	"referral-rewards-api/internal/pkg/validate"
)

var ErrValidation = errors.New("validation error")

type BalanceStore interface {
	Get(ctx context.Context, userID int64) (int64, error)
}

type Service struct {
	balances BalanceStore
}

func NewService(balances BalanceStore) *Service {
	return &Service{balances: balances}
}

// Get returns the user's accumulated reward balance. A user who was never
// credited has a zero balance, not a missing one.
func (s *Service) Get(ctx context.Context, userID int64) (model.Balance, error) {
	if s.balances == nil {
		return model.Balance{}, fmt.Errorf("balance store is nil")
	}
	if !validate.UserID(userID) {
		return model.Balance{}, ErrValidation
	}

	balance, err := s.balances.Get(ctx, userID)
	if err != nil {
		return model.Balance{}, err
	}

	return model.Balance{UserID: userID, Balance: balance}, nil
}
