package external

import "strings"

// RedactEmail masks an email address for safe logging by replacing all but
// the first character of the local part: "jane@example.gov.uk" becomes
// "j***@example.gov.uk". A string without an "@" is masked entirely.
func RedactEmail(email string) string {
	if email == "" {
		return ""
	}

	parts := strings.SplitN(email, "@", 2)
	if len(parts) != 2 {
		return "***"
	}

	local, domain := parts[0], parts[1]
	if local == "" {
		return "***@" + domain
	}

	return string(local[0]) + "***@" + domain
}
