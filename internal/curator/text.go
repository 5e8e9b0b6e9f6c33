package curator

import "unicode/utf8"

// Truncate caps s at max runes. Cutting happens on rune boundaries so
// multibyte text is never left with a dangling partial sequence.
func Truncate(s string, max int) string {
	if len(s) <= max || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
