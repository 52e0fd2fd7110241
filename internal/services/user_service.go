package services

import (
	"context"
	"database/sql"
	"strings"

	"github.com/notocbot/backend/internal/models"
)

type UserService struct {
	db *sql.DB
}

func NewUserService(db *sql.DB) *UserService {
	return &UserService{db: db}
}

// GetOrCreateUser upserts a creditor account keyed by its Telegram id. The
// display name and username are refreshed on every contact so they track the
// user's current Telegram profile.
func (s *UserService) GetOrCreateUser(ctx context.Context, telegramID int64, fullName string, username *string) (*models.User, error) {
	if strings.TrimSpace(fullName) == "" {
		return nil, ErrEmptyName
	}
	return upsertUser(ctx, s.db, telegramID, fullName, username)
}

// GetUserByTelegramID returns the user or nil when none exists.
func (s *UserService) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, telegram_id, full_name, username, created_at
		FROM users WHERE telegram_id = $1`,
		telegramID).Scan(&u.ID, &u.TelegramID, &u.FullName, &u.Username, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// queryable covers *sql.DB and *sql.Tx so the upsert can participate in a
// caller's transaction.
type queryable interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertUser(ctx context.Context, q queryable, telegramID int64, fullName string, username *string) (*models.User, error) {
	var u models.User
	err := q.QueryRowContext(ctx, `
		INSERT INTO users (telegram_id, full_name, username)
		VALUES ($1, $2, $3)
		ON CONFLICT (telegram_id) DO UPDATE
		SET full_name = EXCLUDED.full_name,
			username = EXCLUDED.username
		RETURNING id, telegram_id, full_name, username, created_at`,
		telegramID, fullName, username).Scan(&u.ID, &u.TelegramID, &u.FullName, &u.Username, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
