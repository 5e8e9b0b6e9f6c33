package curator

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	t.Parallel()

	t.Run("short strings pass through", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, "descrição curta", Truncate("descrição curta", 500))
	})

	t.Run("ascii cut at the limit", func(t *testing.T) {
		t.Parallel()
		got := Truncate(strings.Repeat("a", 600), 500)
		require.Len(t, got, 500)
	})

	t.Run("multibyte rune straddling the limit stays intact", func(t *testing.T) {
		t.Parallel()
		// "ç" occupies bytes 499-500; a byte slice would split it
		got := Truncate(strings.Repeat("a", 499)+"ção interessante", 500)
		require.True(t, utf8.ValidString(got))
		require.Equal(t, 500, utf8.RuneCountInString(got))
		require.True(t, strings.HasSuffix(got, "ç"))
	})

	t.Run("limit counts runes not bytes", func(t *testing.T) {
		t.Parallel()
		// 300 runes but 600 bytes: under the limit, unchanged
		s := strings.Repeat("ã", 300)
		require.Equal(t, s, Truncate(s, 500))
	})
}
