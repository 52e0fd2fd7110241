package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntry(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		amount  string
		rawName string
		note    string
		wantErr bool
	}{
		{name: "plain", input: "50 tuan", amount: "50", rawName: "tuan"},
		{name: "decimal dot", input: "12.50 tuan", amount: "12.5", rawName: "tuan"},
		{name: "decimal comma", input: "12,50 tuan", amount: "12.5", rawName: "tuan"},
		{name: "multi-word name", input: "50 tuan anh", amount: "50", rawName: "tuan anh"},
		{name: "with note", input: "50 tuan - lunch at the corner", amount: "50", rawName: "tuan", note: "lunch at the corner"},
		{name: "note separator inside name needs spaces", input: "50 jean-pierre", amount: "50", rawName: "jean-pierre"},
		{name: "no amount", input: "tuan 50", wantErr: true},
		{name: "no name", input: "50", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "zero amount", input: "0 tuan", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := ParseEntry(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.amount, parsed.Amount.String())
			assert.Equal(t, tt.rawName, parsed.RawName)
			if tt.note == "" {
				assert.Nil(t, parsed.Note)
			} else {
				require.NotNil(t, parsed.Note)
				assert.Equal(t, tt.note, *parsed.Note)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	t.Run("dd.mm.yyyy", func(t *testing.T) {
		d, err := ParseDate("31.12.2026")
		require.NoError(t, err)
		assert.Equal(t, 2026, d.Year())
		assert.Equal(t, time.December, d.Month())
		assert.Equal(t, 31, d.Day())
	})

	t.Run("slash and dash separators", func(t *testing.T) {
		for _, s := range []string{"5/1/2027", "5-1-2027"} {
			d, err := ParseDate(s)
			require.NoError(t, err)
			assert.Equal(t, time.January, d.Month())
			assert.Equal(t, 5, d.Day())
		}
	})

	t.Run("end of day so the deadline covers the whole date", func(t *testing.T) {
		d, err := ParseDate("31.12.2026")
		require.NoError(t, err)
		assert.Equal(t, 23, d.Hour())
		assert.Equal(t, 59, d.Minute())
	})

	t.Run("rejects garbage", func(t *testing.T) {
		for _, s := range []string{"tomorrow", "2026-12-31", "31.12", ""} {
			_, err := ParseDate(s)
			assert.Error(t, err, s)
		}
	})
}
