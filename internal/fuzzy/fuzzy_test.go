package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRatio(t *testing.T) {
	t.Run("identical strings", func(t *testing.T) {
		assert.Equal(t, 100, Ratio("tuan", "tuan"))
	})

	t.Run("both empty", func(t *testing.T) {
		assert.Equal(t, 100, Ratio("", ""))
	})

	t.Run("completely different", func(t *testing.T) {
		assert.Equal(t, 0, Ratio("abc", "xyz"))
	})

	t.Run("single edit", func(t *testing.T) {
		// distance 1 over max length 4
		assert.Equal(t, 75, Ratio("tun", "tuan"))
	})

	t.Run("rune aware", func(t *testing.T) {
		// one diacritic substitution over 4 runes, not bytes
		assert.Equal(t, 75, Ratio("tuấn", "tuan"))
	})
}

func TestPartialRatio(t *testing.T) {
	t.Run("exact substring scores 100", func(t *testing.T) {
		assert.Equal(t, 100, PartialRatio("khanh", "khanh duy"))
	})

	t.Run("partial query against longer name", func(t *testing.T) {
		// best window of "tuan" for "tun" is "tua" or "uan", distance 1
		assert.Equal(t, 67, PartialRatio("tun", "tuan"))
	})

	t.Run("order independent of argument order", func(t *testing.T) {
		assert.Equal(t, PartialRatio("tun", "tuan"), PartialRatio("tuan", "tun"))
	})

	t.Run("empty query", func(t *testing.T) {
		assert.Equal(t, 0, PartialRatio("", "tuan"))
	})
}

func TestTokenSortRatio(t *testing.T) {
	t.Run("reordered words score 100", func(t *testing.T) {
		assert.Equal(t, 100, TokenSortRatio("duy khanh", "khanh duy"))
	})

	t.Run("reordered with typo", func(t *testing.T) {
		score := TokenSortRatio("duy khan", "khanh duy")
		assert.Greater(t, score, 80)
		assert.Less(t, score, 100)
	})
}

func TestScore(t *testing.T) {
	t.Run("case insensitive", func(t *testing.T) {
		assert.Equal(t, 100, Score("TUAN", "tuan"))
	})

	t.Run("exact match signals 100", func(t *testing.T) {
		assert.Equal(t, 100, Score("Khanh Duy", "khanh duy"))
	})

	t.Run("substring query meets default threshold", func(t *testing.T) {
		// "Tun" against "Tuan" must survive the 60 threshold
		assert.GreaterOrEqual(t, Score("Tun", "Tuan"), 60)
	})

	t.Run("reordered multi-word name", func(t *testing.T) {
		assert.Equal(t, 100, Score("Duy Khanh", "Khanh Duy"))
	})

	t.Run("takes maximum of all metrics", func(t *testing.T) {
		score := Score("tun", "tuan")
		assert.GreaterOrEqual(t, score, Ratio("tun", "tuan"))
		assert.GreaterOrEqual(t, score, PartialRatio("tun", "tuan"))
		assert.GreaterOrEqual(t, score, TokenSortRatio("tun", "tuan"))
	})

	t.Run("bounded to 0-100", func(t *testing.T) {
		for _, pair := range [][2]string{
			{"", ""}, {"a", ""}, {"", "b"}, {"áé", "xyz"}, {"long name here", "x"},
		} {
			s := Score(pair[0], pair[1])
			assert.GreaterOrEqual(t, s, 0)
			assert.LessOrEqual(t, s, 100)
		}
	})
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "khanh duy", Normalize("  Khanh   Duy "))
	assert.Equal(t, "", Normalize("   "))
}
