package service

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// emailPattern is the local@domain.tld shape: no whitespace, exactly one @,
// and a dot somewhere in the domain.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func validEmail(s string) bool {
	return emailPattern.MatchString(s)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

const maxPasswordBytes = 72

// PasswordPolicy is the length/complexity rule applied to new passwords.
type PasswordPolicy struct {
	Name      string
	MinLength int
	// RequireLetterAndDigit demands at least one ASCII letter and one digit.
	RequireLetterAndDigit bool
}

var (
	StandardPolicy = PasswordPolicy{Name: "standard", MinLength: 6}
	StrictPolicy   = PasswordPolicy{Name: "strict", MinLength: 8, RequireLetterAndDigit: true}
)

// ParsePasswordPolicy maps a configuration value to a policy.
func ParsePasswordPolicy(name string) (PasswordPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StandardPolicy.Name:
		return StandardPolicy, nil
	case StrictPolicy.Name:
		return StrictPolicy, nil
	}
	return PasswordPolicy{}, fmt.Errorf("service: unknown password policy %q", name)
}

// TooShortMessage is the length message for this policy.
func (p PasswordPolicy) TooShortMessage() string {
	return fmt.Sprintf(MsgPasswordTooShort, p.MinLength)
}

// LongEnough compares the length in characters, not bytes.
func (p PasswordPolicy) LongEnough(pw string) bool {
	return len([]rune(pw)) >= p.MinLength
}

// Check returns every rule pw breaks, in a stable order.
func (p PasswordPolicy) Check(pw string) []string {
	var msgs []string
	if !p.LongEnough(pw) {
		msgs = append(msgs, p.TooShortMessage())
	}
	if p.RequireLetterAndDigit && !hasLetterAndDigit(pw) {
		msgs = append(msgs, MsgPasswordMix)
	}
	// bcrypt ignores everything past 72 bytes.
	if len(pw) > maxPasswordBytes {
		msgs = append(msgs, MsgPasswordTooLong)
	}
	return msgs
}

func hasLetterAndDigit(s string) bool {
	var letter, digit bool
	for _, r := range s {
		switch {
		case r < unicode.MaxASCII && unicode.IsLetter(r):
			letter = true
		case r < unicode.MaxASCII && unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && digit
}
