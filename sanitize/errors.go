package sanitize

import "strings"

// GenericErrorMessage replaces any error text that is not known to be safe.
const GenericErrorMessage = "An error occurred. Please try again."

// safeMessages are matched case-insensitively as substrings.
var safeMessages = []string{
	"invalid credentials",
	"user not found",
	"email already exists",
	"network error",
	"session expired",
}

// ErrorMessage returns err's text when it contains one of the known-safe
// phrases, and [GenericErrorMessage] otherwise. Internal details such as status
// codes, stack fragments or SQL never survive.
func ErrorMessage(err error) string {
	if err == nil {
		return GenericErrorMessage
	}
	return Message(err.Error())
}

// Message applies the same allow-list to a raw message string.
func Message(msg string) string {
	if msg == "" {
		return GenericErrorMessage
	}

	lower := strings.ToLower(msg)
	for _, safe := range safeMessages {
		if strings.Contains(lower, safe) {
			return msg
		}
	}
	return GenericErrorMessage
}
