package services

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/notocbot/backend/internal/models"
)

// StatsService serves the dashboard's aggregate views.
type StatsService struct {
	db *sql.DB
}

func NewStatsService(db *sql.DB) *StatsService {
	return &StatsService{db: db}
}

// UserSummary is the headline card on the dashboard.
type UserSummary struct {
	DebtorCount      int64           `json:"debtor_count"`
	TransactionCount int64           `json:"transaction_count"`
	NetBalance       decimal.Decimal `json:"net_balance"`
	TotalOwedToUser  decimal.Decimal `json:"total_owed_to_user"`
	TotalOwedByUser  decimal.Decimal `json:"total_owed_by_user"`
}

// MonthlyTrend is one month of ledger activity.
type MonthlyTrend struct {
	Month       string          `json:"month"`
	TotalDebt   decimal.Decimal `json:"total_debt"`
	TotalCredit decimal.Decimal `json:"total_credit"`
}

// GetUserSummary aggregates the user's whole ledger in one pass over the
// per-debtor balances. Positive and negative totals are kept apart so a
// debtor in credit does not hide money still owed elsewhere.
func (s *StatsService) GetUserSummary(ctx context.Context, userID int64) (*UserSummary, error) {
	var summary UserSummary
	var rawNet, rawPos, rawNeg string
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(b.debtor_id),
			COALESCE(SUM(b.tx_count), 0),
			COALESCE(SUM(b.balance), 0),
			COALESCE(SUM(CASE WHEN b.balance > 0 THEN b.balance ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN b.balance < 0 THEN -b.balance ELSE 0 END), 0)
		FROM (
			SELECT d.id AS debtor_id, COUNT(t.id) AS tx_count,
				COALESCE(SUM(CASE WHEN t.type = 'DEBT' THEN t.amount ELSE -t.amount END), 0) AS balance
			FROM debtors d
			LEFT JOIN transactions t ON t.debtor_id = d.id
			WHERE d.user_id = $1
			GROUP BY d.id
		) b`,
		userID).Scan(&summary.DebtorCount, &summary.TransactionCount, &rawNet, &rawPos, &rawNeg)
	if err != nil {
		return nil, err
	}
	if summary.NetBalance, err = parseAmount(rawNet); err != nil {
		return nil, err
	}
	if summary.TotalOwedToUser, err = parseAmount(rawPos); err != nil {
		return nil, err
	}
	if summary.TotalOwedByUser, err = parseAmount(rawNeg); err != nil {
		return nil, err
	}
	return &summary, nil
}

// GetHistoryForUser returns the user's most recent transactions, newest
// first, with the debtor name joined in. A non-nil debtorID narrows the
// listing to that debtor, still ownership-checked through the join.
func (s *StatsService) GetHistoryForUser(ctx context.Context, userID int64, debtorID *int64, limit int) ([]models.DeadlineItem, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.debtor_id, t.amount, t.type, t.note, t.group_id, t.due_date, t.created_at, d.name
		FROM transactions t
		JOIN debtors d ON d.id = t.debtor_id
		WHERE d.user_id = $1 AND ($2::bigint IS NULL OR t.debtor_id = $2)
		ORDER BY t.created_at DESC
		LIMIT $3`,
		userID, debtorID, limit)
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

// GetMonthlyTrends buckets the user's ledger activity by calendar month over
// the last `months` months, oldest first.
func (s *StatsService) GetMonthlyTrends(ctx context.Context, userID int64, months int) ([]MonthlyTrend, error) {
	if months <= 0 {
		months = 6
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT to_char(t.created_at, 'YYYY-MM') AS month,
			COALESCE(SUM(CASE WHEN t.type = 'DEBT' THEN t.amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN t.type = 'CREDIT' THEN t.amount ELSE 0 END), 0)
		FROM transactions t
		JOIN debtors d ON d.id = t.debtor_id
		WHERE d.user_id = $1 AND t.created_at >= NOW() - ($2 * INTERVAL '1 month')
		GROUP BY month
		ORDER BY month ASC`,
		userID, months)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trends []MonthlyTrend
	for rows.Next() {
		var tr MonthlyTrend
		var rawDebt, rawCredit string
		if err := rows.Scan(&tr.Month, &rawDebt, &rawCredit); err != nil {
			return nil, err
		}
		if tr.TotalDebt, err = parseAmount(rawDebt); err != nil {
			return nil, err
		}
		if tr.TotalCredit, err = parseAmount(rawCredit); err != nil {
			return nil, err
		}
		trends = append(trends, tr)
	}
	return trends, rows.Err()
}
