package database

import (
	"database/sql"
	"fmt"
	"log"
)

// Cascading foreign keys encode the ownership invariant: destroying a debtor
// destroys its aliases and transactions, and destroying a user destroys
// everything the user owns. Balance is never stored anywhere in this schema;
// it is always derived from the transactions log.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		telegram_id BIGINT UNIQUE NOT NULL,
		full_name VARCHAR(255) NOT NULL,
		username VARCHAR(255),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS debtors (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name VARCHAR(255) NOT NULL,
		telegram_id BIGINT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_debtors_user_id ON debtors(user_id)`,
	`CREATE TABLE IF NOT EXISTS aliases (
		id BIGSERIAL PRIMARY KEY,
		debtor_id BIGINT NOT NULL REFERENCES debtors(id) ON DELETE CASCADE,
		alias_name VARCHAR(255) NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_aliases_debtor_id ON aliases(debtor_id)`,
	`CREATE INDEX IF NOT EXISTS idx_aliases_name ON aliases(alias_name)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id BIGSERIAL PRIMARY KEY,
		debtor_id BIGINT NOT NULL REFERENCES debtors(id) ON DELETE CASCADE,
		amount NUMERIC(10,2) NOT NULL,
		type VARCHAR(6) NOT NULL CHECK (type IN ('DEBT','CREDIT')),
		note VARCHAR(500),
		group_id BIGINT,
		due_date TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_debtor_id ON transactions(debtor_id)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_due_date ON transactions(due_date) WHERE due_date IS NOT NULL`,
}

// InitSchema creates the tables and indexes if they do not exist yet.
func InitSchema(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	log.Println("Database schema ready")
	return nil
}
