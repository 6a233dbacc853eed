package contact

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	minNameLen    = 2
	minMessageLen = 10
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Validate checks the submitted fields in priority order and returns the
// first failing kind, or the empty kind when all pass.
func Validate(name, email, message string) ErrorKind {
	if utf8.RuneCountInString(strings.TrimSpace(name)) < minNameLen {
		return KindNameTooShort
	}
	if !emailPattern.MatchString(strings.TrimSpace(email)) {
		return KindInvalidEmail
	}
	if utf8.RuneCountInString(strings.TrimSpace(message)) < minMessageLen {
		return KindMessageTooShort
	}
	return ""
}
