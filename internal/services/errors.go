package services

import (
	"errors"
	"fmt"
)

// Validation errors surfaced to callers before anything touches the database.
var (
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrInvalidTransactionType = errors.New("transaction type must be DEBT or CREDIT")
	ErrEmptyName              = errors.New("name must not be empty")
)

// ErrDebtorNotFound is returned when an operation names a debtor that does
// not exist for the requesting user. Ownership checks never distinguish
// "missing" from "not yours".
var ErrDebtorNotFound = errors.New("debtor not found")

// ErrSessionStoreUnavailable is returned when a confirmation flow is
// requested but no pending-decision store is configured.
var ErrSessionStoreUnavailable = errors.New("session store unavailable")

// AliasConflictError reports an alias name collision within a user's
// namespace. The colliding name is kept so the caller can show the user why
// the write was rejected.
type AliasConflictError struct {
	Alias string
}

func (e *AliasConflictError) Error() string {
	return fmt.Sprintf("alias %q is already in use", e.Alias)
}
