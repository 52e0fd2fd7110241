package models

import "time"

// User is a creditor account, created lazily on first contact.
type User struct {
	ID         int64     `json:"id" db:"id"`
	TelegramID int64     `json:"telegram_id" db:"telegram_id"`
	FullName   string    `json:"full_name" db:"full_name"`
	Username   *string   `json:"username,omitempty" db:"username"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
