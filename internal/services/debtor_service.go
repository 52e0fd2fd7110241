package services

import (
	"context"
	"database/sql"
	"log"
	"sort"
	"strings"

	"github.com/notocbot/backend/internal/fuzzy"
	"github.com/notocbot/backend/internal/models"
)

// DefaultThreshold is the minimum similarity score for a fuzzy candidate.
const DefaultThreshold = 60

// LinkThreshold is the stricter score used when linking a Telegram identity
// to an existing debtor; a wrong link would route notifications to a
// stranger, so the bar is higher than for a confirmation prompt.
const LinkThreshold = 80

// MatchKind reports which resolution layer produced a result.
type MatchKind string

const (
	MatchAlias MatchKind = "alias"
	MatchName  MatchKind = "name"
	MatchFuzzy MatchKind = "fuzzy"
	MatchNone  MatchKind = "none"
)

// Candidate pairs a debtor with its similarity score against a query.
type Candidate struct {
	Debtor models.Debtor `json:"debtor"`
	Score  int           `json:"score"`
}

type DebtorService struct {
	db *sql.DB
}

func NewDebtorService(db *sql.DB) *DebtorService {
	return &DebtorService{db: db}
}

// GetOrCreateDebtor finds a debtor by exact name or creates one. The lookup
// and insert run in one transaction with a NOT EXISTS guard so two
// concurrent first-time entries for the same name do not both insert.
// Duplicate names created through other paths are tolerated.
func (s *DebtorService) GetOrCreateDebtor(ctx context.Context, userID int64, name string) (*models.Debtor, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	d, err := findOrCreateDebtor(ctx, tx, userID, name)
	if err != nil {
		return nil, err
	}
	return d, tx.Commit()
}

// findOrCreateDebtor is the shared guarded form: select first, then insert
// behind a NOT EXISTS so two concurrent first-time entries for the same name
// do not both insert, then re-select when the insert lost the race. It runs
// against whatever queryable the caller holds, usually an open transaction.
func findOrCreateDebtor(ctx context.Context, q queryable, userID int64, name string) (*models.Debtor, error) {
	var d models.Debtor
	err := q.QueryRowContext(ctx, `
		SELECT id, user_id, name, telegram_id, created_at
		FROM debtors WHERE user_id = $1 AND name = $2
		ORDER BY id LIMIT 1`,
		userID, name).Scan(&d.ID, &d.UserID, &d.Name, &d.TelegramID, &d.CreatedAt)
	if err == nil {
		return &d, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	err = q.QueryRowContext(ctx, `
		INSERT INTO debtors (user_id, name)
		SELECT $1, $2
		WHERE NOT EXISTS (
			SELECT 1 FROM debtors WHERE user_id = $1 AND name = $2
		)
		RETURNING id, user_id, name, telegram_id, created_at`,
		userID, name).Scan(&d.ID, &d.UserID, &d.Name, &d.TelegramID, &d.CreatedAt)
	if err == sql.ErrNoRows {
		// Lost the race to a concurrent insert; the row exists now.
		err = q.QueryRowContext(ctx, `
			SELECT id, user_id, name, telegram_id, created_at
			FROM debtors WHERE user_id = $1 AND name = $2
			ORDER BY id LIMIT 1`,
			userID, name).Scan(&d.ID, &d.UserID, &d.Name, &d.TelegramID, &d.CreatedAt)
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDebtor returns the debtor only if it belongs to userID; nil otherwise.
func (s *DebtorService) GetDebtor(ctx context.Context, userID, debtorID int64) (*models.Debtor, error) {
	var d models.Debtor
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, telegram_id, created_at
		FROM debtors WHERE id = $1 AND user_id = $2`,
		debtorID, userID).Scan(&d.ID, &d.UserID, &d.Name, &d.TelegramID, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// SearchDebtorsFuzzy is the non-alias-aware search variant: it scores the
// query against every debtor name of the user and returns candidates at or
// above threshold sorted by score descending. A score of 100 signals an
// exact match. Ties keep storage order.
func (s *DebtorService) SearchDebtorsFuzzy(ctx context.Context, userID int64, query string, threshold int) ([]Candidate, error) {
	debtors, err := s.loadDebtors(ctx, userID)
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	for _, d := range debtors {
		if score := fuzzy.Score(query, d.Name); score >= threshold {
			candidates = append(candidates, Candidate{Debtor: d, Score: score})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates, nil
}

// ResolveDebtor resolves a free-form name to a debtor with layered priority:
//
//  1. exact alias match (case-insensitive) - aliases are user-curated and
//     must win over any coincidental fuzzy overlap with a real name
//  2. exact debtor name match (case-insensitive)
//  3. alias-aware fuzzy ranking at the given threshold
//
// Only one layer fires. The return is (exact, candidates, kind): an exact
// match with kind alias/name, a ranked candidate list with kind fuzzy, or
// nothing with kind none. An ambiguous candidate list is never auto-resolved
// here; disambiguation belongs to the caller.
func (s *DebtorService) ResolveDebtor(ctx context.Context, userID int64, nameQuery string, threshold int) (*models.Debtor, []Candidate, MatchKind, error) {
	query := strings.TrimSpace(nameQuery)
	if query == "" {
		return nil, nil, MatchNone, ErrEmptyName
	}

	if d, err := s.GetDebtorByAlias(ctx, userID, query); err != nil {
		return nil, nil, MatchNone, err
	} else if d != nil {
		return d, nil, MatchAlias, nil
	}

	var d models.Debtor
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, telegram_id, created_at
		FROM debtors WHERE user_id = $1 AND LOWER(name) = LOWER($2)
		ORDER BY id LIMIT 1`,
		userID, query).Scan(&d.ID, &d.UserID, &d.Name, &d.TelegramID, &d.CreatedAt)
	if err == nil {
		return &d, nil, MatchName, nil
	}
	if err != sql.ErrNoRows {
		return nil, nil, MatchNone, err
	}

	candidates, err := s.rankWithAliases(ctx, userID, query, threshold)
	if err != nil {
		return nil, nil, MatchNone, err
	}
	if len(candidates) > 0 {
		return nil, candidates, MatchFuzzy, nil
	}
	return nil, nil, MatchNone, nil
}

// ResolveOrCreateDebtor is the resolution variant that always yields a
// target: an exact alias or name match wins, else the best fuzzy candidate,
// else a freshly created debtor named as typed. For flows that must confirm
// before acting, use ResolveDebtor instead.
func (s *DebtorService) ResolveOrCreateDebtor(ctx context.Context, userID int64, nameQuery string, threshold int) (*models.Debtor, error) {
	debtor, candidates, kind, err := s.ResolveDebtor(ctx, userID, nameQuery, threshold)
	if err != nil {
		return nil, err
	}
	switch kind {
	case MatchAlias, MatchName:
		return debtor, nil
	case MatchFuzzy:
		return &candidates[0].Debtor, nil
	default:
		return s.GetOrCreateDebtor(ctx, userID, strings.TrimSpace(nameQuery))
	}
}

// GetDebtorByAlias finds a debtor by exact case-insensitive alias match.
func (s *DebtorService) GetDebtorByAlias(ctx context.Context, userID int64, alias string) (*models.Debtor, error) {
	var d models.Debtor
	err := s.db.QueryRowContext(ctx, `
		SELECT d.id, d.user_id, d.name, d.telegram_id, d.created_at
		FROM debtors d
		JOIN aliases a ON a.debtor_id = d.id
		WHERE d.user_id = $1 AND LOWER(a.alias_name) = LOWER($2)
		LIMIT 1`,
		userID, alias).Scan(&d.ID, &d.UserID, &d.Name, &d.TelegramID, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// AddAlias attaches a nickname to the debtor whose name matches realName
// case-insensitively. The alias namespace is per user: if any alias of any
// of the user's debtors already matches case-insensitively the write is
// rejected with an AliasConflictError.
func (s *DebtorService) AddAlias(ctx context.Context, userID int64, aliasName, realName string) (*models.Debtor, error) {
	aliasName = strings.TrimSpace(aliasName)
	if aliasName == "" || strings.TrimSpace(realName) == "" {
		return nil, ErrEmptyName
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var d models.Debtor
	err = tx.QueryRowContext(ctx, `
		SELECT id, user_id, name, telegram_id, created_at
		FROM debtors WHERE user_id = $1 AND LOWER(name) = LOWER($2)
		ORDER BY id LIMIT 1`,
		userID, realName).Scan(&d.ID, &d.UserID, &d.Name, &d.TelegramID, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrDebtorNotFound
	}
	if err != nil {
		return nil, err
	}

	var taken bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM aliases a
			JOIN debtors d ON d.id = a.debtor_id
			WHERE d.user_id = $1 AND LOWER(a.alias_name) = LOWER($2)
		)`,
		userID, aliasName).Scan(&taken)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, &AliasConflictError{Alias: aliasName}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO aliases (debtor_id, alias_name) VALUES ($1, $2)`,
		d.ID, aliasName); err != nil {
		return nil, err
	}
	return &d, tx.Commit()
}

// LinkDebtorTelegramID attaches a Telegram identity to a debtor for
// notification routing. Fail-closed: false when the debtor does not exist or
// belongs to another user.
func (s *DebtorService) LinkDebtorTelegramID(ctx context.Context, userID, debtorID, telegramID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE debtors SET telegram_id = $1
		WHERE id = $2 AND user_id = $3`,
		telegramID, debtorID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetOrCreateDebtorByTelegramID resolves a group-chat mention to a debtor:
// exact telegram-id match first, then a strict fuzzy match used only to link
// an existing unlinked debtor, else a new debtor carrying the id.
func (s *DebtorService) GetOrCreateDebtorByTelegramID(ctx context.Context, userID, debtorTelegramID int64, name string, threshold int) (*models.Debtor, error) {
	var d models.Debtor
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, telegram_id, created_at
		FROM debtors WHERE user_id = $1 AND telegram_id = $2
		ORDER BY id LIMIT 1`,
		userID, debtorTelegramID).Scan(&d.ID, &d.UserID, &d.Name, &d.TelegramID, &d.CreatedAt)
	if err == nil {
		if d.Name != name {
			if _, uerr := s.db.ExecContext(ctx, `UPDATE debtors SET name = $1 WHERE id = $2`, name, d.ID); uerr != nil {
				return nil, uerr
			}
			d.Name = name
		}
		return &d, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	candidates, err := s.SearchDebtorsFuzzy(ctx, userID, name, threshold)
	if err != nil {
		return nil, err
	}
	// Only link when the best match has no Telegram id yet; never overwrite
	// another person's identity.
	if len(candidates) > 0 && candidates[0].Debtor.TelegramID == nil {
		best := candidates[0].Debtor
		ok, err := s.LinkDebtorTelegramID(ctx, userID, best.ID, debtorTelegramID)
		if err != nil {
			return nil, err
		}
		if ok {
			best.TelegramID = &debtorTelegramID
			return &best, nil
		}
		log.Printf("[DebtorService] link race on debtor %d, creating new record", best.ID)
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO debtors (user_id, name, telegram_id)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, name, telegram_id, created_at`,
		userID, name, debtorTelegramID).Scan(&d.ID, &d.UserID, &d.Name, &d.TelegramID, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// rankWithAliases scores the query against every debtor name and every alias
// of each debtor, keeping the best score per debtor. Each debtor appears at
// most once no matter how many of its names clear the threshold.
func (s *DebtorService) rankWithAliases(ctx context.Context, userID int64, query string, threshold int) ([]Candidate, error) {
	debtors, err := s.loadDebtors(ctx, userID)
	if err != nil {
		return nil, err
	}
	aliases, err := s.loadAliasNames(ctx, userID)
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	for _, d := range debtors {
		best := fuzzy.Score(query, d.Name)
		for _, alias := range aliases[d.ID] {
			if score := fuzzy.Score(query, alias); score > best {
				best = score
			}
		}
		if best >= threshold {
			candidates = append(candidates, Candidate{Debtor: d, Score: best})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates, nil
}

func (s *DebtorService) loadDebtors(ctx context.Context, userID int64) ([]models.Debtor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, telegram_id, created_at
		FROM debtors WHERE user_id = $1
		ORDER BY id`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var debtors []models.Debtor
	for rows.Next() {
		var d models.Debtor
		if err := rows.Scan(&d.ID, &d.UserID, &d.Name, &d.TelegramID, &d.CreatedAt); err != nil {
			return nil, err
		}
		debtors = append(debtors, d)
	}
	return debtors, rows.Err()
}

func (s *DebtorService) loadAliasNames(ctx context.Context, userID int64) (map[int64][]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.debtor_id, a.alias_name
		FROM aliases a
		JOIN debtors d ON d.id = a.debtor_id
		WHERE d.user_id = $1`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	aliases := make(map[int64][]string)
	for rows.Next() {
		var debtorID int64
		var name string
		if err := rows.Scan(&debtorID, &name); err != nil {
			return nil, err
		}
		aliases[debtorID] = append(aliases[debtorID], name)
	}
	return aliases, rows.Err()
}
