package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction kinds. DEBT increases what the debtor owes the user, CREDIT
// decreases it. The running balance is never stored; it is always derived by
// aggregating the append-only transaction log.
const (
	TransactionDebt   = "DEBT"
	TransactionCredit = "CREDIT"
)

// Transaction is a single immutable ledger entry. Only the due date may be
// updated after creation; everything else is append-only.
type Transaction struct {
	ID        int64           `json:"id" db:"id"`
	DebtorID  int64           `json:"debtor_id" db:"debtor_id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Type      string          `json:"type" db:"type"`
	Note      *string         `json:"note,omitempty" db:"note"`
	GroupID   *int64          `json:"group_id,omitempty" db:"group_id"`
	DueDate   *time.Time      `json:"due_date,omitempty" db:"due_date"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// DebtorBalance is one row of the per-user aggregate balance projection.
type DebtorBalance struct {
	DebtorID int64           `json:"debtor_id" db:"debtor_id"`
	Name     string          `json:"name" db:"name"`
	Balance  decimal.Decimal `json:"balance" db:"balance"`
}

// DeadlineItem is a transaction with a due date joined with its debtor's
// name for display.
type DeadlineItem struct {
	Transaction
	DebtorName string `json:"debtor_name" db:"debtor_name"`
}
