package dataprocessing

import (
	"strings"
	"unicode"
)

// BuildProductID derives the join key from the level 1 and level 4 fields.
// All whitespace is removed from level 1; level 4 is trimmed and loses one
// trailing ".0" left by numeric coercion upstream. Quotes are dropped from
// both. Either part being empty yields "".
func BuildProductID(level1, level4 string) string {
	l1 := strings.Map(func(r rune) rune {
		if r == '"' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, level1)

	l4 := strings.TrimSpace(strings.ReplaceAll(level4, `"`, ""))
	l4 = strings.TrimSuffix(l4, ".0")

	if l1 == "" || l4 == "" {
		return ""
	}
	return l1 + l4
}
