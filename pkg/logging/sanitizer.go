package logging

import (
	"regexp"
	"strings"
)

const (
	// MaxTitleLogLength is the maximum length of an idea title to log
	MaxTitleLogLength = 80
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// Matches password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Matches user:pass@host in URLs
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@`)

	// Matches bearer tokens in provider error bodies
	bearerPattern = regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]+`)

	// Matches OpenAI-style secret keys (sk-..., sk-proj-...)
	secretKeyPattern = regexp.MustCompile(`sk-[A-Za-z0-9_-]{8,}`)
)

// SanitizeConnectionString removes credentials from a database or Redis URL.
// Use this before logging any connection string.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	return connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@")
}

// SanitizeError strips credentials and API keys from an error message.
// Embedding provider errors sometimes echo request headers back.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(err.Error(), "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@")
	sanitized = bearerPattern.ReplaceAllString(sanitized, "Bearer "+RedactedText)
	return secretKeyPattern.ReplaceAllString(sanitized, "sk-"+RedactedText)
}

// MaskEmail keeps the first character of the local part and the domain,
// e.g. "jane@acme.com" -> "j***@acme.com". Voter emails are never logged in full.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return RedactedText
	}
	return email[:1] + "***" + email[at:]
}

// TruncateString truncates a string to maxLen runes and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
