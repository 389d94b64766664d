package plugin

import (
	"strings"
	"unicode/utf8"
)

// Truncate cuts s to at most MaxStringLength-1 bytes without splitting a rune.
func Truncate(s string) string {
	return truncateTo(s, MaxStringLength-1)
}

func truncateTo(s string, n int) string {
	if n < 0 {
		n = 0
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// normalizePath returns p with exactly one leading slash and no trailing slash.
// The empty path and "/" both normalize to the root "/".
func normalizePath(p string) string {
	p = strings.TrimRight(p, "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return Truncate(p)
}
