// Package redact scrubs credentials and other sensitive fragments from
// strings before they are logged or returned in error responses. Errors from
// the blob store can echo presigned URLs and endpoint credentials, and
// database errors can echo connection strings and SQL.
package redact

import (
	"regexp"
)

// Placeholders substituted for redacted fragments.
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// rules are applied in order; earlier rules see the unmodified input.
var rules = []rule{
	// Presigned URL query parameters
	{
		regexp.MustCompile(`(?i)\b(X-Amz-(?:Signature|Credential|Security-Token))=[^&\s"']+`),
		"${1}=" + RedactionPlaceholder,
	},
	// user:password@ in connection URLs
	{
		regexp.MustCompile(`(?i)\b(postgres(?:ql)?|mysql|redis|amqp|s3|https?)://[^@/\s]+@`),
		"${1}://" + RedactedCredentialPlaceholder + "@",
	},
	{
		regexp.MustCompile(`(?i)\b(password|passwd|pwd)=[^&\s'"]+`),
		"${1}=" + RedactedCredentialPlaceholder,
	},
	{
		regexp.MustCompile(`(?i)\b(secret[_-]?access[_-]?key|secret[_-]?key)(["'\s:=]+)[A-Za-z0-9/+=]{16,}`),
		"${1}${2}" + RedactedKeyPlaceholder,
	},
	// AWS access key IDs
	{
		regexp.MustCompile(`\b(?:AKIA|ASIA)[A-Z0-9]{16}\b`),
		RedactedKeyPlaceholder,
	},
	{
		regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`),
		"[STACK_TRACE_REDACTED]",
	},
	{
		regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		"[REDACTED_EMAIL]",
	},
	{
		regexp.MustCompile(
			`(?i)\b(SELECT|INSERT|UPDATE|DELETE)\b[\s\w,*()$.:']+?\b(FROM|INTO|SET)\b[\s\w,*()$=<>.:']*`,
		),
		"[REDACTED_SQL]",
	},
	// Absolute local paths, e.g. multipart spill files
	{
		regexp.MustCompile(`(^|[\s"'(=])(?:/[\w.-]+){2,}`),
		"${1}" + RedactedPathPlaceholder,
	},
}

// String returns input with every sensitive fragment replaced by a placeholder.
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

// Error returns the redacted message of err, or "" for a nil error.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
