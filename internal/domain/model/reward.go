package model

import (
	"time"

	"github.com/google/uuid"
)

// RewardGrant is insert-only. At most one grant ever exists per
// (purchase, beneficiary, level) triple.
type RewardGrant struct {
	PurchaseID        uuid.UUID `json:"purchase_id"`
	UserID            int64     `json:"user_id"`
	BeneficiaryUserID int64     `json:"beneficiary_user_id"`
	Level             int       `json:"level"`
	Amount            int64     `json:"amount"`
	CreatedAt         time.Time `json:"created_at"`
}
