package sanitize

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MaxInputLength is the rune cap applied by [Input].
	MaxInputLength = 1000
	// MaxNameLength is the rune cap applied by [Name].
	MaxNameLength = 50
	// MaxPhoneLength is the rune cap applied by [Phone].
	MaxPhoneLength = 20
)

var (
	angleBrackets   = regexp.MustCompile(`[<>]`)
	javascriptProto = regexp.MustCompile(`(?i)javascript:`)
	dataProto       = regexp.MustCompile(`(?i)data:`)
	vbscriptProto   = regexp.MustCompile(`(?i)vbscript:`)
	eventHandler    = regexp.MustCompile(`(?i)on\w+=`)
	scriptWord      = regexp.MustCompile(`(?i)script`)
	iframeWord      = regexp.MustCompile(`(?i)iframe`)
	objectWord      = regexp.MustCompile(`(?i)object`)
	embedWord       = regexp.MustCompile(`(?i)embed`)
	quotes          = regexp.MustCompile(`['"]`)
	backslashes     = regexp.MustCompile(`\\`)

	emailPattern  = regexp.MustCompile(`^[^` + spaceClass + `@]+@[^` + spaceClass + `@]+\.[^` + spaceClass + `@]+$`)
	nameDisallow  = regexp.MustCompile(`[^a-zA-Z` + spaceClass + `'-]`)
	phoneDisallow = regexp.MustCompile(`[^0-9+\-` + spaceClass + `()]`)
)

// spaceClass is the whitespace set used by patterns and trimming: ASCII
// whitespace, vertical tab, no-break spaces, the Unicode space separators and
// the byte order mark. RE2's \s alone covers only the ASCII part.
const spaceClass = `\t\n\v\f\r \x{00A0}\x{1680}\x{2000}-\x{200A}\x{2028}\x{2029}\x{202F}\x{205F}\x{3000}\x{FEFF}`

func isSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ',
		0x00A0, 0x1680, 0x2028, 0x2029, 0x202F, 0x205F, 0x3000, 0xFEFF:
		return true
	}
	return r >= 0x2000 && r <= 0x200A
}

func trimSpace(s string) string {
	return strings.TrimFunc(s, isSpace)
}

// inputPipeline is applied in order; later steps see the output of earlier ones.
var inputPipeline = []*regexp.Regexp{
	angleBrackets,
	javascriptProto,
	dataProto,
	vbscriptProto,
	eventHandler,
	scriptWord,
	iframeWord,
	objectWord,
	embedWord,
	quotes,
	backslashes,
}

// Input cleans a free-text field. See the package documentation for the
// substring-removal caveat.
//
// The pipeline is reapplied until the output stops shrinking, so removals
// cannot splice a stripped token back together ("<scr<script>ipt>").
func Input(s string) string {
	if s == "" {
		return ""
	}

	out := trimSpace(s)
	for {
		next := out
		for _, re := range inputPipeline {
			next = re.ReplaceAllString(next, "")
		}
		if next == out {
			break
		}
		out = next
	}
	return truncate(out, MaxInputLength)
}

// Email trims and lower-cases s, returning "" when the result is not a
// local@domain.tld shaped address.
func Email(s string) string {
	if s == "" {
		return ""
	}

	out := strings.ToLower(trimSpace(s))
	if !emailPattern.MatchString(out) {
		return ""
	}
	return out
}

// Name keeps letters, whitespace, hyphens and apostrophes.
func Name(s string) string {
	if s == "" {
		return ""
	}

	out := nameDisallow.ReplaceAllString(trimSpace(s), "")
	return truncate(out, MaxNameLength)
}

// Phone keeps digits and the usual phone punctuation. It does not trim.
func Phone(s string) string {
	if s == "" {
		return ""
	}

	out := phoneDisallow.ReplaceAllString(s, "")
	return truncate(out, MaxPhoneLength)
}

// EscapeHTML returns s with HTML metacharacters escaped, for callers that need
// to render user text verbatim rather than strip it.
func EscapeHTML(s string) string {
	if s == "" {
		return ""
	}
	return html.EscapeString(s)
}

// OwnsResource reports whether the authenticated user may access a resource
// owned by resourceUserID. Empty ids never match.
func OwnsResource(currentUserID, resourceUserID string) bool {
	if currentUserID == "" || resourceUserID == "" {
		return false
	}
	return currentUserID == resourceUserID
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}

	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
