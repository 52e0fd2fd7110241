package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notocbot/backend/internal/models"
)

func TestSetDueDate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewDeadlineService(db)
	ctx := context.Background()
	now := time.Now()
	due := now.AddDate(0, 0, 7)

	updateQuery := `UPDATE transactions t SET due_date = \$3 FROM debtors d`
	txCols := []string{"id", "debtor_id", "amount", "type", "note", "group_id", "due_date", "created_at"}

	t.Run("deadline stamped", func(t *testing.T) {
		mock.ExpectQuery(updateQuery).
			WithArgs(int64(11), int64(1), due).
			WillReturnRows(sqlmock.NewRows(txCols).
				AddRow(int64(11), int64(3), "50", models.TransactionDebt, nil, nil, due, now))

		updated, err := svc.SetDueDate(ctx, 1, 11, &due)
		require.NoError(t, err)
		require.NotNil(t, updated)
		require.NotNil(t, updated.DueDate)
		assert.WithinDuration(t, due, *updated.DueDate, time.Second)
	})

	t.Run("nil clears the deadline", func(t *testing.T) {
		mock.ExpectQuery(updateQuery).
			WithArgs(int64(11), int64(1), nil).
			WillReturnRows(sqlmock.NewRows(txCols).
				AddRow(int64(11), int64(3), "50", models.TransactionDebt, nil, nil, nil, now))

		updated, err := svc.SetDueDate(ctx, 1, 11, nil)
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Nil(t, updated.DueDate)
	})

	t.Run("someone else's transaction stays untouched", func(t *testing.T) {
		mock.ExpectQuery(updateQuery).
			WithArgs(int64(11), int64(2), due).
			WillReturnRows(sqlmock.NewRows(txCols))

		updated, err := svc.SetDueDate(ctx, 2, 11, &due)
		require.NoError(t, err)
		assert.Nil(t, updated)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUpcoming(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewDeadlineService(db)
	ctx := context.Background()
	now := time.Now()

	cols := []string{"id", "debtor_id", "amount", "type", "note", "group_id", "due_date", "created_at", "name"}

	t.Run("soonest due first, overdue included", func(t *testing.T) {
		overdue := now.AddDate(0, 0, -2)
		soon := now.AddDate(0, 0, 3)
		mock.ExpectQuery(`WHERE d.user_id = \$1 AND t.due_date IS NOT NULL ORDER BY t.due_date ASC, t.created_at ASC LIMIT \$2`).
			WithArgs(int64(1), 20).
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow(int64(11), int64(3), "50", models.TransactionDebt, nil, nil, overdue, now, "Tuan").
				AddRow(int64(12), int64(2), "30", models.TransactionDebt, nil, nil, soon, now, "Khanh"))

		items, err := svc.ListUpcoming(ctx, 1, 0, 0)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "Tuan", items[0].DebtorName)
		assert.True(t, items[0].DueDate.Before(*items[1].DueDate))
	})

	t.Run("horizon bounds the query", func(t *testing.T) {
		mock.ExpectQuery(`AND t.due_date <= \$2 ORDER BY t.due_date ASC, t.created_at ASC LIMIT \$3`).
			WithArgs(int64(1), sqlmock.AnyArg(), 5).
			WillReturnRows(sqlmock.NewRows(cols))

		items, err := svc.ListUpcoming(ctx, 1, 7, 5)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
