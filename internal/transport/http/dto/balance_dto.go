package dto

type BalanceResponse struct {
	UserID  int64 `json:"user_id"`
	Balance int64 `json:"balance"`
}
