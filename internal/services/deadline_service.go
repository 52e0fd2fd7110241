package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/notocbot/backend/internal/models"
)

// DeadlineService attaches due dates to ledger entries and lists the ones
// coming up.
type DeadlineService struct {
	db *sql.DB
}

func NewDeadlineService(db *sql.DB) *DeadlineService {
	return &DeadlineService{db: db}
}

// SetDueDate stamps a due date on a transaction, or clears it when dueDate
// is nil. Fail-closed ownership: nil when the transaction does not exist or
// belongs to another user's debtor.
func (s *DeadlineService) SetDueDate(ctx context.Context, userID, transactionID int64, dueDate *time.Time) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE transactions t
		SET due_date = $3
		FROM debtors d
		WHERE t.id = $1 AND t.debtor_id = d.id AND d.user_id = $2
		RETURNING t.id, t.debtor_id, t.amount, t.type, t.note, t.group_id, t.due_date, t.created_at`,
		transactionID, userID, dueDate)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListUpcoming returns the user's dated transactions ordered soonest-due
// first, ties broken by creation time. Overdue entries are included, they
// sort to the front. withinDays <= 0 means no horizon.
func (s *DeadlineService) ListUpcoming(ctx context.Context, userID int64, withinDays, limit int) ([]models.DeadlineItem, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT t.id, t.debtor_id, t.amount, t.type, t.note, t.group_id, t.due_date, t.created_at, d.name
		FROM transactions t
		JOIN debtors d ON d.id = t.debtor_id
		WHERE d.user_id = $1 AND t.due_date IS NOT NULL`
	args := []any{userID}
	if withinDays > 0 {
		horizon := time.Now().AddDate(0, 0, withinDays)
		query += ` AND t.due_date <= $2`
		args = append(args, horizon)
	}
	query += ` ORDER BY t.due_date ASC, t.created_at ASC`
	if withinDays > 0 {
		query += ` LIMIT $3`
	} else {
		query += ` LIMIT $2`
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.DeadlineItem
	for rows.Next() {
		var item models.DeadlineItem
		var raw string
		err := rows.Scan(&item.ID, &item.DebtorID, &raw, &item.Type, &item.Note,
			&item.GroupID, &item.DueDate, &item.CreatedAt, &item.DebtorName)
		if err != nil {
			return nil, err
		}
		if item.Amount, err = parseAmount(raw); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
