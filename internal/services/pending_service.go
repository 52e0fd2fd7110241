package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PendingDecision is a half-finished ledger write waiting for the user to
// confirm a fuzzy match or pick from a candidate list. Stored in Redis under
// pending:<telegram_id>:<token> so a user can only ever resume their own.
type PendingDecision struct {
	Token      string          `json:"token"`
	TelegramID int64           `json:"telegram_id"`
	Action     string          `json:"action"`
	DebtorName string          `json:"debtor_name"`
	Amount     decimal.Decimal `json:"amount"`
	Type       string          `json:"type"`
	Note       *string         `json:"note,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// PendingService stores pending decisions with a TTL. A nil Redis client is
// tolerated at construction so the rest of the service can run without
// session storage; operations then fail with ErrSessionStoreUnavailable.
type PendingService struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewPendingService(rdb *redis.Client, ttl time.Duration) *PendingService {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &PendingService{rdb: rdb, ttl: ttl}
}

func pendingKey(telegramID int64, token string) string {
	return fmt.Sprintf("pending:%d:%s", telegramID, token)
}

// Create stores the decision and returns its token.
func (s *PendingService) Create(ctx context.Context, d PendingDecision) (string, error) {
	if s.rdb == nil {
		return "", ErrSessionStoreUnavailable
	}
	d.Token = uuid.NewString()
	d.CreatedAt = time.Now()
	payload, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, pendingKey(d.TelegramID, d.Token), payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store pending decision: %w", err)
	}
	return d.Token, nil
}

// Get loads a pending decision; nil when it expired or never existed.
func (s *PendingService) Get(ctx context.Context, telegramID int64, token string) (*PendingDecision, error) {
	if s.rdb == nil {
		return nil, ErrSessionStoreUnavailable
	}
	payload, err := s.rdb.Get(ctx, pendingKey(telegramID, token)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var d PendingDecision
	if err := json.Unmarshal(payload, &d); err != nil {
		return nil, fmt.Errorf("decode pending decision: %w", err)
	}
	return &d, nil
}

// Delete removes a pending decision after it is resolved or cancelled.
func (s *PendingService) Delete(ctx context.Context, telegramID int64, token string) error {
	if s.rdb == nil {
		return ErrSessionStoreUnavailable
	}
	return s.rdb.Del(ctx, pendingKey(telegramID, token)).Err()
}
