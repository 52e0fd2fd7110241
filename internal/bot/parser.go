package bot

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ParsedEntry is one "amount name [- note]" chat line.
type ParsedEntry struct {
	Amount  decimal.Decimal
	RawName string
	Note    *string
}

var (
	reEntry = regexp.MustCompile(`^\s*([0-9]+(?:[.,][0-9]{1,2})?)\s+(.+)$`)
	reDate  = regexp.MustCompile(`^(\d{1,2})[.\-/](\d{1,2})[.\-/](\d{4})$`)
)

var errBadEntry = errors.New("could not read that. Example: `50 tuan - lunch`")

// ParseEntry reads "<amount> <name...>" with an optional " - note" suffix.
// The amount accepts comma or dot decimals, the name is everything up to
// the note separator.
func ParseEntry(text string) (ParsedEntry, error) {
	m := reEntry.FindStringSubmatch(text)
	if m == nil {
		return ParsedEntry{}, errBadEntry
	}

	amount, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", "."))
	if err != nil || amount.Cmp(decimal.Zero) <= 0 {
		return ParsedEntry{}, errBadEntry
	}

	rest := strings.TrimSpace(m[2])
	var note *string
	if name, n, found := strings.Cut(rest, " - "); found {
		rest = strings.TrimSpace(name)
		if n = strings.TrimSpace(n); n != "" {
			note = &n
		}
	}
	if rest == "" {
		return ParsedEntry{}, errBadEntry
	}

	return ParsedEntry{Amount: amount, RawName: rest, Note: note}, nil
}

// ParseDate reads a dd.mm.yyyy date (also - and / separators) as end of day
// local time.
func ParseDate(text string) (time.Time, error) {
	m := reDate.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return time.Time{}, errors.New("could not read the date. Example: `31.12.2026`")
	}
	t, err := time.ParseInLocation("2.1.2006", m[1]+"."+m[2]+"."+m[3], time.Local)
	if err != nil {
		return time.Time{}, errors.New("that date does not exist")
	}
	return t.Add(23*time.Hour + 59*time.Minute), nil
}
