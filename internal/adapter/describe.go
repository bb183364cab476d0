package adapter

import "unicode/utf8"

// MaxDescriptionBytes bounds tool descriptions for hosts with a hard limit.
const MaxDescriptionBytes = 1024

// Truncate cuts s to at most limit bytes without splitting a UTF-8 sequence.
func Truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	if limit <= 0 {
		return ""
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
