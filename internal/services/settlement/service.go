package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"referral-rewards-api/internal/domain/enums"
	"referral-rewards-api/internal/domain/model"
	"referral-rewards-api/internal/domain/rules"
	pgrepo "referral-rewards-api/internal/repo/postgres"
)

var ErrPurchaseNotFound = errors.New("purchase not found")

// TxRunner owns the transaction boundary for a settlement. Everything the
// service does for one purchase happens inside a single callback.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
}

type PurchaseStore interface {
	LockForSettlement(ctx context.Context, tx pgx.Tx, purchaseID uuid.UUID) (pgrepo.PurchaseRecord, error)
}

type UserStore interface {
	FindByID(ctx context.Context, tx pgx.Tx, userID int64) (model.User, error)
}

type RewardStore interface {
	GrantIfAbsent(ctx context.Context, tx pgx.Tx, purchaseID uuid.UUID, userID, beneficiaryUserID int64, level int, amount int64) (bool, error)
}

type BalanceStore interface {
	Credit(ctx context.Context, tx pgx.Tx, userID, delta int64) error
}

type Service struct {
	tx        TxRunner
	purchases PurchaseStore
	users     UserStore
	rewards   RewardStore
	balances  BalanceStore
}

type Dependencies struct {
	Tx        TxRunner
	Purchases PurchaseStore
	Users     UserStore
	Rewards   RewardStore
	Balances  BalanceStore
}

func NewService(deps Dependencies) *Service {
	return &Service{
		tx:        deps.Tx,
		purchases: deps.Purchases,
		users:     deps.Users,
		rewards:   deps.Rewards,
		balances:  deps.Balances,
	}
}

// Settle distributes referral rewards for a captured purchase. It is safe
// to call any number of times, sequentially or concurrently: the purchase
// row lock serializes settlers of the same purchase, and a balance credit
// happens only when the reward grant was newly inserted in the same call.
func (s *Service) Settle(ctx context.Context, purchaseID uuid.UUID) error {
	if s.tx == nil || s.purchases == nil || s.users == nil || s.rewards == nil || s.balances == nil {
		return fmt.Errorf("settlement dependencies are not configured")
	}

	return s.tx.WithTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		purchase, err := s.purchases.LockForSettlement(txCtx, tx, purchaseID)
		if err != nil {
			if errors.Is(err, pgrepo.ErrPurchaseNotFound) {
				return ErrPurchaseNotFound
			}
			return err
		}

		// Not captured yet, or already refunded/voided: commit the no-op.
		// Speculative settlement calls are legitimate and must not error.
		if purchase.Status != string(enums.PurchaseStatusCaptured) {
			return nil
		}

		level1, err := s.activeReferrer(txCtx, tx, purchase.UserID)
		if err != nil {
			return err
		}
		var level2 *int64
		if level1 != nil {
			level2, err = s.activeReferrer(txCtx, tx, *level1)
			if err != nil {
				return err
			}
		}

		if level1 != nil {
			if err := s.payout(txCtx, tx, purchase, *level1, 1, rules.Level1Percent); err != nil {
				return err
			}
		}
		if level2 != nil {
			if err := s.payout(txCtx, tx, purchase, *level2, 2, rules.Level2Percent); err != nil {
				return err
			}
		}

		return nil
	})
}

// payout grants one reward level and credits the beneficiary's balance iff
// the grant was created by this call. A found duplicate means another
// settlement already paid this level; the credit is skipped.
func (s *Service) payout(ctx context.Context, tx pgx.Tx, purchase pgrepo.PurchaseRecord, beneficiaryID int64, level int, percent int64) error {
	amount := rules.PercentOf(purchase.Amount, percent)
	if amount <= 0 {
		return nil
	}

	created, err := s.rewards.GrantIfAbsent(ctx, tx, purchase.ID, purchase.UserID, beneficiaryID, level, amount)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}

	return s.balances.Credit(ctx, tx, beneficiaryID, amount)
}

// activeReferrer returns the user's referrer when one exists and is active.
// The chain is walked level by level, so an inactive or missing link stops
// resolution regardless of what sits above it.
func (s *Service) activeReferrer(ctx context.Context, tx pgx.Tx, userID int64) (*int64, error) {
	user, err := s.users.FindByID(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if user.ReferrerID == nil {
		return nil, nil
	}

	referrer, err := s.users.FindByID(ctx, tx, *user.ReferrerID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !referrer.IsActive {
		return nil, nil
	}

	id := referrer.ID
	return &id, nil
}
