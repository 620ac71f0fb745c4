package util

import (
	"strings"
	"unicode/utf8"
)

// OneLine collapses line breaks and trims s to at most max bytes without
// splitting a UTF-8 sequence. max <= 0 means no limit.
func OneLine(s string, max int) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// ErrorText is OneLine applied to err's message. A nil error yields "".
func ErrorText(err error, max int) string {
	if err == nil {
		return ""
	}
	return OneLine(err.Error(), max)
}
