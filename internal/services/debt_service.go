package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/notocbot/backend/internal/models"
	"github.com/notocbot/backend/internal/notify"
)

// DebtService is the ledger engine. Transactions are append-only; balances
// are projections computed by aggregation at query time and are never
// stored, so there is no stored state to drift.
type DebtService struct {
	db       *sql.DB
	notifier notify.Notifier
}

func NewDebtService(db *sql.DB, notifier notify.Notifier) *DebtService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &DebtService{db: db, notifier: notifier}
}

// AddTransaction appends a ledger entry. Amount must be strictly positive;
// the kind must be DEBT or CREDIT. No balance check gates the append:
// arbitrarily negative or positive running balances are valid states.
func (s *DebtService) AddTransaction(ctx context.Context, debtorID int64, amount decimal.Decimal, txType string, note *string, dueDate *time.Time, groupID *int64) (*models.Transaction, error) {
	if amount.Cmp(decimal.Zero) <= 0 {
		return nil, ErrInvalidAmount
	}
	if txType != models.TransactionDebt && txType != models.TransactionCredit {
		return nil, ErrInvalidTransactionType
	}

	t := models.Transaction{
		DebtorID: debtorID,
		Amount:   amount,
		Type:     txType,
		Note:     note,
		GroupID:  groupID,
		DueDate:  dueDate,
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO transactions (debtor_id, amount, type, note, group_id, due_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		debtorID, amount.String(), txType, note, groupID, dueDate).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("append transaction: %w", err)
	}
	return &t, nil
}

// GetBalance computes the net balance for one debtor in a single aggregate:
// sum of DEBT amounts minus sum of CREDIT amounts. Zero for a debtor with no
// transactions. The NUMERIC result crosses the wire as a string and never
// passes through floating point.
func (s *DebtService) GetBalance(ctx context.Context, debtorID int64) (decimal.Decimal, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN type = 'DEBT' THEN amount ELSE -amount END), 0)
		FROM transactions WHERE debtor_id = $1`,
		debtorID).Scan(&raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balance aggregate: %w", err)
	}
	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse balance %q: %w", raw, err)
	}
	return balance, nil
}

// GetAllBalances returns every debtor of the user with a non-zero balance,
// most-owed first. One GROUP BY pass over the joined transactions, not a
// per-debtor loop.
func (s *DebtService) GetAllBalances(ctx context.Context, userID int64) ([]models.DebtorBalance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.name,
			SUM(CASE WHEN t.type = 'DEBT' THEN t.amount ELSE -t.amount END) AS balance
		FROM debtors d
		JOIN transactions t ON t.debtor_id = d.id
		WHERE d.user_id = $1
		GROUP BY d.id, d.name
		HAVING SUM(CASE WHEN t.type = 'DEBT' THEN t.amount ELSE -t.amount END) <> 0
		ORDER BY balance DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []models.DebtorBalance
	for rows.Next() {
		var b models.DebtorBalance
		var raw string
		if err := rows.Scan(&b.DebtorID, &b.Name, &raw); err != nil {
			return nil, err
		}
		if b.Balance, err = decimal.NewFromString(raw); err != nil {
			return nil, fmt.Errorf("parse balance %q: %w", raw, err)
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

// GetHistory returns the debtor's most recent transactions, newest first.
func (s *DebtService) GetHistory(ctx context.Context, debtorID int64, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, debtor_id, amount, type, note, group_id, due_date, created_at
		FROM transactions
		WHERE debtor_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		debtorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, *t)
	}
	return history, rows.Err()
}

// DeleteTransaction removes one ledger entry. Fail-closed: false when the
// transaction does not exist or its debtor belongs to another user, with no
// distinction between the two.
func (s *DebtService) DeleteTransaction(ctx context.Context, userID, transactionID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM transactions t
		USING debtors d
		WHERE t.id = $1 AND t.debtor_id = d.id AND d.user_id = $2`,
		transactionID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteDebtor removes a debtor and, through the cascading foreign keys, all
// of its transactions and aliases. Same fail-closed contract as
// DeleteTransaction.
func (s *DebtService) DeleteDebtor(ctx context.Context, userID, debtorID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM debtors WHERE id = $1 AND user_id = $2`,
		debtorID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteAll removes every debtor the user owns and returns how many were
// removed; 0 when the user owns none.
func (s *DebtService) DeleteAll(ctx context.Context, userID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM debtors WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountDebtors returns the number of debtors the user owns.
func (s *DebtService) CountDebtors(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM debtors WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

// GetTransactionWithOwnerCheck loads a transaction only if its debtor
// belongs to userID; nil otherwise, never an error that would reveal whether
// the id exists.
func (s *DebtService) GetTransactionWithOwnerCheck(ctx context.Context, userID, transactionID int64) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT t.id, t.debtor_id, t.amount, t.type, t.note, t.group_id, t.due_date, t.created_at
		FROM transactions t
		JOIN debtors d ON d.id = t.debtor_id
		WHERE t.id = $1 AND d.user_id = $2`,
		transactionID, userID)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// RecordParams describes one resolve-and-append flow. Either DebtorID (an
// already-resolved, confirmed debtor) or DebtorName (exact find-or-create)
// must be set.
type RecordParams struct {
	TelegramID int64
	FullName   string
	Username   *string
	DebtorID   *int64
	DebtorName string
	Amount     decimal.Decimal
	Type       string
	Note       *string
	DueDate    *time.Time
	GroupID    *int64
}

// RecordResult carries everything the caller needs to render a confirmation.
type RecordResult struct {
	User        models.User
	Debtor      models.Debtor
	Transaction models.Transaction
	Balance     decimal.Decimal
	AllBalances []models.DebtorBalance
}

// RecordTransaction runs a full ledger write in one database transaction:
// upsert the user, find-or-create (or ownership-check) the debtor, append
// the entry. The counterpart notification is dispatched only after the
// commit is durable and is best-effort - a notification failure is logged
// and never rolls back or fails the write.
func (s *DebtService) RecordTransaction(ctx context.Context, p RecordParams) (*RecordResult, error) {
	if p.Amount.Cmp(decimal.Zero) <= 0 {
		return nil, ErrInvalidAmount
	}
	if p.Type != models.TransactionDebt && p.Type != models.TransactionCredit {
		return nil, ErrInvalidTransactionType
	}
	if p.DebtorID == nil && p.DebtorName == "" {
		return nil, ErrEmptyName
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	user, err := upsertUser(ctx, tx, p.TelegramID, p.FullName, p.Username)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}

	var debtor models.Debtor
	if p.DebtorID != nil {
		err = tx.QueryRowContext(ctx, `
			SELECT id, user_id, name, telegram_id, created_at
			FROM debtors WHERE id = $1 AND user_id = $2`,
			*p.DebtorID, user.ID).Scan(&debtor.ID, &debtor.UserID, &debtor.Name, &debtor.TelegramID, &debtor.CreatedAt)
		if err == sql.ErrNoRows {
			return nil, ErrDebtorNotFound
		}
		if err != nil {
			return nil, err
		}
	} else {
		d, err := findOrCreateDebtor(ctx, tx, user.ID, p.DebtorName)
		if err != nil {
			return nil, err
		}
		debtor = *d
	}

	entry := models.Transaction{
		DebtorID: debtor.ID,
		Amount:   p.Amount,
		Type:     p.Type,
		Note:     p.Note,
		GroupID:  p.GroupID,
		DueDate:  p.DueDate,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO transactions (debtor_id, amount, type, note, group_id, due_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		debtor.ID, p.Amount.String(), p.Type, p.Note, p.GroupID, p.DueDate).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("append transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	balance, err := s.GetBalance(ctx, debtor.ID)
	if err != nil {
		return nil, err
	}
	allBalances, err := s.GetAllBalances(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	// Outbound notification happens strictly after the write is durable.
	if debtor.TelegramID != nil {
		msg := notify.FormatLedgerEvent(user.FullName, p.Type, p.Amount, p.Note)
		if err := s.notifier.Notify(ctx, *debtor.TelegramID, msg); err != nil {
			log.Printf("[DebtService] notification to %d failed: %v", *debtor.TelegramID, err)
		}
	}

	return &RecordResult{
		User:        *user,
		Debtor:      debtor,
		Transaction: entry,
		Balance:     balance,
		AllBalances: allBalances,
	}, nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	var raw string
	err := row.Scan(&t.ID, &t.DebtorID, &raw, &t.Type, &t.Note, &t.GroupID, &t.DueDate, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if t.Amount, err = parseAmount(raw); err != nil {
		return nil, err
	}
	return &t, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	return d, nil
}
