package sanitize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// PasswordMinLength is the minimum rune count accepted by [Password].
const PasswordMinLength = 8

// PasswordSpecialChars is the punctuation set that satisfies [RuleSpecial].
const PasswordSpecialChars = `!@#$%^&*(),.?":{}|<>`

// PasswordRule identifies one password-strength requirement.
type PasswordRule uint8

const (
	RuleMinLength PasswordRule = iota
	RuleUppercase
	RuleLowercase
	RuleDigit
	RuleSpecial
)

var ruleMessages = [...]string{
	RuleMinLength: "Password must be at least 8 characters long",
	RuleUppercase: "Password must contain at least one uppercase letter",
	RuleLowercase: "Password must contain at least one lowercase letter",
	RuleDigit:     "Password must contain at least one number",
	RuleSpecial:   "Password must contain at least one special character",
}

// Message returns the user-facing text for the rule.
func (r PasswordRule) Message() string {
	if int(r) >= len(ruleMessages) {
		return "Password is invalid"
	}
	return ruleMessages[r]
}

// PasswordResult is the outcome of [Password]. Violations keep rule order.
type PasswordResult struct {
	Valid      bool
	Violations []PasswordRule
}

// Messages returns the messages of every violated rule, in rule order.
func (r PasswordResult) Messages() []string {
	out := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		out = append(out, v.Message())
	}
	return out
}

// FirstMessage returns the message of the first violated rule, or "".
func (r PasswordResult) FirstMessage() string {
	if len(r.Violations) == 0 {
		return ""
	}
	return r.Violations[0].Message()
}

// Required reports whether s has non-whitespace content.
func Required(s string) bool {
	return len(trimSpace(s)) > 0
}

// ValidEmail reports whether s matches the address pattern used by [Email].
// It does not trim or lower-case.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// Password checks s against every strength rule and reports all violations.
func Password(s string) PasswordResult {
	var upper, lower, digit, special bool
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case unicode.IsDigit(r) && r < utf8.RuneSelf:
			digit = true
		case strings.ContainsRune(PasswordSpecialChars, r):
			special = true
		}
	}

	var violations []PasswordRule
	if utf8.RuneCountInString(s) < PasswordMinLength {
		violations = append(violations, RuleMinLength)
	}
	if !upper {
		violations = append(violations, RuleUppercase)
	}
	if !lower {
		violations = append(violations, RuleLowercase)
	}
	if !digit {
		violations = append(violations, RuleDigit)
	}
	if !special {
		violations = append(violations, RuleSpecial)
	}

	return PasswordResult{
		Valid:      len(violations) == 0,
		Violations: violations,
	}
}
