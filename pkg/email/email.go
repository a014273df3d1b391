package email

import (
	"strings"
	"unicode"
)

// DeriveNameFromEmail splits an address's local part into a first/last name
// pair for welcome emails when the registration form omitted a name.
func DeriveNameFromEmail(email string) (string, string) {
	localPart := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		localPart = email[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})

	if len(parts) == 0 {
		return "User", "User"
	}

	first := capitalize(parts[0])
	last := "User"
	if len(parts) > 1 {
		last = capitalize(parts[len(parts)-1])
	}

	return first, last
}

// Normalize lowercases and trims an address so rate-limit keys and store
// lookups treat case variants as the same identifier.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Valid is a cheap structural check; real validation happens at the
// transactional email provider.
func Valid(email string) bool {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return false
	}
	return strings.IndexByte(email[at+1:], '.') > 0
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
