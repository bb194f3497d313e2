package dataprocessing

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParseNumber converts a raw cell value into a finite float. Quotes and all
// whitespace (thousands separators included) are removed and commas become
// decimal points. The longest numeric prefix is parsed; anything that does
// not start with a number yields 0.
func ParseNumber(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" || s == "null" || s == `""` {
		return 0
	}

	s = strings.Map(func(r rune) rune {
		if r == '"' || r == '\uFEFF' || unicode.IsSpace(r) {
			return -1
		}
		if r == ',' {
			return '.'
		}
		return r
	}, s)

	prefix := numericPrefix(s)
	if prefix == "" {
		return 0
	}

	f, err := strconv.ParseFloat(prefix, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// numericPrefix returns the longest leading part of s that forms a decimal
// floating point literal: optional sign, digits with an optional fraction and
// an optional exponent.
func numericPrefix(s string) string {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}

	start := i
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	intDigits := i - start

	fracDigits := 0
	if i < len(s) && s[i] == '.' {
		j := i + 1
		for j < len(s) && isDigit(s[j]) {
			j++
		}
		fracDigits = j - i - 1
		if intDigits > 0 || fracDigits > 0 {
			i = j
		}
	}

	if intDigits == 0 && fracDigits == 0 {
		return ""
	}

	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		k := j
		for k < len(s) && isDigit(s[k]) {
			k++
		}
		if k > j {
			i = k
		}
	}

	return s[:i]
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// FormatNumber renders f in its shortest round-trippable form.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
