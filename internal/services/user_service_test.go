package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewUserService(db)
	ctx := context.Background()
	now := time.Now()

	upsertQuery := `INSERT INTO users \(telegram_id, full_name, username\)`
	cols := []string{"id", "telegram_id", "full_name", "username", "created_at"}

	t.Run("upsert returns the row either way", func(t *testing.T) {
		username := "annguyen"
		mock.ExpectQuery(upsertQuery).
			WithArgs(int64(42), "An Nguyen", "annguyen").
			WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(7), int64(42), "An Nguyen", username, now))

		u, err := svc.GetOrCreateUser(ctx, 42, "An Nguyen", &username)
		require.NoError(t, err)
		assert.Equal(t, int64(7), u.ID)
		require.NotNil(t, u.Username)
		assert.Equal(t, "annguyen", *u.Username)
	})

	t.Run("blank name rejected", func(t *testing.T) {
		_, err := svc.GetOrCreateUser(ctx, 42, "   ", nil)
		assert.ErrorIs(t, err, ErrEmptyName)

		_, err = svc.GetOrCreateUser(ctx, 42, "", nil)
		assert.ErrorIs(t, err, ErrEmptyName)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByTelegramID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewUserService(db)
	ctx := context.Background()

	selectQuery := `FROM users WHERE telegram_id = \$1`
	cols := []string{"id", "telegram_id", "full_name", "username", "created_at"}

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(selectQuery).
			WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(7), int64(42), "An Nguyen", nil, time.Now()))

		u, err := svc.GetUserByTelegramID(ctx, 42)
		require.NoError(t, err)
		require.NotNil(t, u)
		assert.Equal(t, int64(7), u.ID)
	})

	t.Run("unknown id is nil, not an error", func(t *testing.T) {
		mock.ExpectQuery(selectQuery).
			WithArgs(int64(99)).
			WillReturnError(sql.ErrNoRows)

		u, err := svc.GetUserByTelegramID(ctx, 99)
		require.NoError(t, err)
		assert.Nil(t, u)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
