package purchases

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"referral-rewards-api/internal/domain/enums"
	"referral-rewards-api/internal/domain/model"
	"referral-rewards-api/internal/pkg/validate"
	pgrepo "referral-rewards-api/internal/repo/postgres"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrPurchaseConflict = errors.New("purchase already exists")
	ErrPurchaseNotFound = errors.New("purchase not found")
)

type PurchaseStore interface {
	Create(ctx context.Context, id uuid.UUID, userID, amount int64, status string) (pgrepo.PurchaseRecord, error)
	FindByID(ctx context.Context, purchaseID uuid.UUID) (pgrepo.PurchaseRecord, error)
}

type RewardStore interface {
	ListByPurchase(ctx context.Context, purchaseID uuid.UUID) ([]pgrepo.RewardRecord, error)
}

type RateLimiter interface {
	AllowIntake(ctx context.Context, userID int64) (int64, bool, error)
}

// RateLimitedError carries the backoff hint for a throttled intake call.
type RateLimitedError struct {
	RetryAfterSec int64
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("purchase intake rate limited, retry after %ds", e.RetryAfterSec)
}

type Service struct {
	purchases PurchaseStore
	rewards   RewardStore
	limiter   RateLimiter
}

type CreateInput struct {
	ID     *uuid.UUID
	UserID int64
	Amount int64
	Status string
}

func NewService(purchases PurchaseStore, rewards RewardStore) *Service {
	return &Service{
		purchases: purchases,
		rewards:   rewards,
	}
}

func (s *Service) AttachRateLimiter(limiter RateLimiter) {
	s.limiter = limiter
}

// Create records an incoming purchase. The id may be supplied by the caller
// for idempotent intake; a duplicate id is a conflict, not a retryable write.
func (s *Service) Create(ctx context.Context, in CreateInput) (model.Purchase, error) {
	if s.purchases == nil {
		return model.Purchase{}, fmt.Errorf("purchase store is nil")
	}
	if !validate.UserID(in.UserID) || !validate.Amount(in.Amount) {
		return model.Purchase{}, ErrValidation
	}
	if !enums.PurchaseStatus(in.Status).Valid() {
		return model.Purchase{}, ErrValidation
	}

	if s.limiter != nil {
		retryAfterSec, allowed, err := s.limiter.AllowIntake(ctx, in.UserID)
		if err != nil {
			return model.Purchase{}, err
		}
		if !allowed {
			return model.Purchase{}, &RateLimitedError{RetryAfterSec: retryAfterSec}
		}
	}

	id := uuid.New()
	if in.ID != nil && *in.ID != uuid.Nil {
		id = *in.ID
	}

	record, err := s.purchases.Create(ctx, id, in.UserID, in.Amount, in.Status)
	if err != nil {
		if errors.Is(err, pgrepo.ErrPurchaseExists) {
			return model.Purchase{}, ErrPurchaseConflict
		}
		return model.Purchase{}, err
	}

	return model.Purchase{
		ID:        record.ID,
		UserID:    record.UserID,
		Amount:    record.Amount,
		Status:    enums.PurchaseStatus(record.Status),
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}, nil
}

func (s *Service) Rewards(ctx context.Context, purchaseID uuid.UUID) ([]model.RewardGrant, error) {
	if s.purchases == nil || s.rewards == nil {
		return nil, fmt.Errorf("purchase dependencies are not configured")
	}

	if _, err := s.purchases.FindByID(ctx, purchaseID); err != nil {
		if errors.Is(err, pgrepo.ErrPurchaseNotFound) {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}

	records, err := s.rewards.ListByPurchase(ctx, purchaseID)
	if err != nil {
		return nil, err
	}

	grants := make([]model.RewardGrant, 0, len(records))
	for _, record := range records {
		grants = append(grants, model.RewardGrant{
			PurchaseID:        record.PurchaseID,
			UserID:            record.UserID,
			BeneficiaryUserID: record.BeneficiaryUserID,
			Level:             record.Level,
			Amount:            record.Amount,
			CreatedAt:         record.CreatedAt,
		})
	}

	return grants, nil
}
