package bot

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notocbot/backend/internal/models"
	"github.com/notocbot/backend/internal/services"
)

func TestCandidateKeyboard(t *testing.T) {
	candidates := []services.Candidate{
		{Debtor: models.Debtor{ID: 3, Name: "Tuan"}, Score: 75},
		{Debtor: models.Debtor{ID: 9, Name: "Tuan Anh"}, Score: 67},
	}

	kb := candidateKeyboard("bal", candidates)
	require.Len(t, kb.InlineKeyboard, 3)

	require.Len(t, kb.InlineKeyboard[0], 1)
	assert.Equal(t, "Tuan (75%)", kb.InlineKeyboard[0][0].Text)
	require.NotNil(t, kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "bal:3", *kb.InlineKeyboard[0][0].CallbackData)

	require.NotNil(t, kb.InlineKeyboard[1][0].CallbackData)
	assert.Equal(t, "bal:9", *kb.InlineKeyboard[1][0].CallbackData)

	// Last row is always the cancel escape hatch.
	cancel := kb.InlineKeyboard[2][0]
	require.NotNil(t, cancel.CallbackData)
	assert.Equal(t, "noop", *cancel.CallbackData)

	kb = candidateKeyboard("hist", candidates[:1])
	require.NotNil(t, kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "hist:3", *kb.InlineKeyboard[0][0].CallbackData)
}

func TestCandidateKeyboardCapsAtFive(t *testing.T) {
	var candidates []services.Candidate
	for i := 0; i < 8; i++ {
		candidates = append(candidates, services.Candidate{
			Debtor: models.Debtor{ID: int64(i + 1), Name: fmt.Sprintf("Debtor %d", i+1)},
			Score:  90 - i,
		})
	}

	kb := candidateKeyboard("delwho", candidates)
	// Five candidates plus the cancel row.
	require.Len(t, kb.InlineKeyboard, maxCandidateButtons+1)
	require.NotNil(t, kb.InlineKeyboard[4][0].CallbackData)
	assert.Equal(t, "delwho:5", *kb.InlineKeyboard[4][0].CallbackData)
	assert.Equal(t, "noop", *kb.InlineKeyboard[5][0].CallbackData)
}

func TestDeleteDebtorPrompt(t *testing.T) {
	text, kb := deleteDebtorPrompt(&models.Debtor{ID: 7, Name: "Tuan"})
	assert.Contains(t, text, "Tuan")

	require.Len(t, kb.InlineKeyboard, 1)
	require.Len(t, kb.InlineKeyboard[0], 2)
	require.NotNil(t, kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "deldebtor:7", *kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "noop", *kb.InlineKeyboard[0][1].CallbackData)
}
