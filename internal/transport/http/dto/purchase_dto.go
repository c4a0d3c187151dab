package dto

import "github.com/google/uuid"

type PurchaseCreateRequest struct {
	ID     *uuid.UUID `json:"id"`
	UserID int64      `json:"user_id"`
	Amount int64      `json:"amount"`
	Status string     `json:"status"`
}

type PurchaseCreateResponse struct {
	ID uuid.UUID `json:"id"`
}

type PurchaseProcessResponse struct {
	Processed uuid.UUID `json:"processed"`
}

type RewardItem struct {
	BeneficiaryUserID int64 `json:"beneficiary_user_id"`
	Level             int   `json:"level"`
	Amount            int64 `json:"amount"`
}

type PurchaseRewardsResponse struct {
	PurchaseID uuid.UUID    `json:"purchase_id"`
	Rewards    []RewardItem `json:"rewards"`
}
