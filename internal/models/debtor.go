package models

import "time"

// Debtor is a ledger counterparty owned by exactly one user. Names are free
// text and not required to be unique within a user's contact list.
type Debtor struct {
	ID         int64     `json:"id" db:"id"`
	UserID     int64     `json:"user_id" db:"user_id"`
	Name       string    `json:"name" db:"name"`
	TelegramID *int64    `json:"telegram_id,omitempty" db:"telegram_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Alias is a user-defined nickname resolving to exactly one debtor. Alias
// names are unique (case-insensitive) across all debtors of the owning user.
type Alias struct {
	ID        int64  `json:"id" db:"id"`
	DebtorID  int64  `json:"debtor_id" db:"debtor_id"`
	AliasName string `json:"alias_name" db:"alias_name"`
}
