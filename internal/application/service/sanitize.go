package service

import (
	"regexp"
	"unicode/utf8"

	"integrations/internal/application/common"
)

const (
	maxErrorMessage = 512
	truncatedSuffix = "... (truncated)"
)

var redactions = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9\-._~+/]+=*`), "${1}[REDACTED]"},
	{regexp.MustCompile(`(?i)((?:api[_-]?key|x-auth-token|token|secret|password|authorization)["']?\s*[:=]\s*["']?)[^\s"',&]+`), "${1}[REDACTED]"},
	{regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`), "[REDACTED KEY]"},
	{regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`), "[email]"},
}

// SanitizeErrorMessage текст ошибки для error_message: без секретов и адресов, не длиннее 512 рун
func SanitizeErrorMessage(msg string) string {
	for _, r := range redactions {
		msg = r.re.ReplaceAllString(msg, r.repl)
	}
	if utf8.RuneCountInString(msg) <= maxErrorMessage {
		return msg
	}
	return common.Truncate(msg, maxErrorMessage-utf8.RuneCountInString(truncatedSuffix), truncatedSuffix)
}
