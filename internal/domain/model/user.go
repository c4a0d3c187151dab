package model

import "time"

// User rows are owned by the account service; this service only ever
// reads the referrer link and the activity flag.
type User struct {
	ID         int64     `json:"id"`
	ReferrerID *int64    `json:"referrer_id"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}
