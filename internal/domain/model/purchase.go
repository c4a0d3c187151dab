package model

import (
	"time"

	"github.com/google/uuid"

	"referral-rewards-api/internal/domain/enums"
)

type Purchase struct {
	ID        uuid.UUID            `json:"id"`
	UserID    int64                `json:"user_id"`
	Amount    int64                `json:"amount"`
	Status    enums.PurchaseStatus `json:"status"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}
