// Package redact strips credentials from strings before they are logged.
// Errors from the database driver and the reasoning service can echo
// connection strings or API keys back to the caller.
package redact

import (
	"regexp"
)

// Placeholders substituted for redacted values
const (
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedTokenPlaceholder      = "[REDACTED_TOKEN]"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Rules run in order; earlier rules see the unmodified input.
var rules = []rule{
	// userinfo in connection URLs, keeping the scheme and the host
	{regexp.MustCompile(`(?i)\b((?:postgres|postgresql|mysql|mongodb|redis)://)[^@\s/]+@`), "${1}" + RedactedCredentialPlaceholder + "@"},
	// Google API keys, including those passed as ?key= query parameters
	{regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`), RedactedKeyPlaceholder},
	{regexp.MustCompile(`(?i)([?&]key=)[^&\s"']+`), "${1}" + RedactedKeyPlaceholder},
	// bearer tokens in echoed headers
	{regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9_\-.~+/]+=*`), "${1}" + RedactedTokenPlaceholder},
	// key=value style secrets
	{regexp.MustCompile(`(?i)\b(password|passwd|pwd)(\s*[=:]\s*['"]?)[^'"&\s]+`), "${1}${2}" + RedactedCredentialPlaceholder},
	{regexp.MustCompile(`(?i)\b(api[_-]?key|secret|token)(\s*[=:]\s*['"]?)[A-Za-z0-9_\-.~+/]{8,}`), "${1}${2}" + RedactedKeyPlaceholder},
}

// String redacts credentials from the input string.
func String(input string) string {
	if input == "" {
		return input
	}
	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.replacement)
	}
	return result
}

// Error redacts credentials from an error's Error() output.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
