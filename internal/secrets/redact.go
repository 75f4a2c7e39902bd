// Package secrets handles masking, redaction, and at-rest storage of the
// broker credential (phone + pin) and anything else that must never reach a
// log line or error payload in the clear.
package secrets

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Redactor scrubs sensitive substrings out of strings, byte slices, and JSON
// payloads before they reach a logger or an error response.
type Redactor struct {
	patterns    []*regexp.Regexp
	replacement string
}

// NewRedactor builds a Redactor covering the shapes of secret this engine
// actually handles: bearer/basic auth headers, JWTs, generic key=value
// credential assignments, and phone numbers outside the explicit masking path.
func NewRedactor() *Redactor {
	defaults := []string{
		`(?i)(?:api[_-]?key|token|secret|password|pwd|pin)["\s]*[:=]["\s]*[^\s"',}]+`,
		`(?i)bearer\s+[a-zA-Z0-9\-\._~\+/]+=*`,
		`(?i)basic\s+[a-zA-Z0-9\+/]+=*`,
		`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`,
		`\b(?:\+?\d[-.\s]?){7,}\d\b`,
	}
	patterns := make([]*regexp.Regexp, len(defaults))
	for i, p := range defaults {
		patterns[i] = regexp.MustCompile(p)
	}
	return &Redactor{patterns: patterns, replacement: "[REDACTED]"}
}

// RedactString scrubs every matching pattern from input.
func (r *Redactor) RedactString(input string) string {
	result := input
	for _, p := range r.patterns {
		result = p.ReplaceAllString(result, r.replacement)
	}
	return result
}

// RedactBytes scrubs input in place semantics, returning a new slice.
func (r *Redactor) RedactBytes(input []byte) []byte {
	return []byte(r.RedactString(string(input)))
}

// RedactJSON redacts sensitive values and sensitive-named keys from a JSON
// document, preserving its shape. Non-JSON input is treated as a bare string.
func (r *Redactor) RedactJSON(input []byte) ([]byte, error) {
	var data interface{}
	if err := json.Unmarshal(input, &data); err != nil {
		return r.RedactBytes(input), nil
	}
	return json.Marshal(r.redactValue(data))
}

// RedactMap redacts both sensitive-named keys and their nested values.
func (r *Redactor) RedactMap(input map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(input))
	for k, v := range input {
		if isSensitiveKey(k) {
			out[k] = r.replacement
			continue
		}
		out[k] = r.redactValue(v)
	}
	return out
}

func (r *Redactor) redactValue(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		return r.RedactString(v)
	case map[string]interface{}:
		return r.RedactMap(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, val := range v {
			out[i] = r.redactValue(val)
		}
		return out
	default:
		return value
	}
}

var sensitiveKeys = []string{
	"pin", "password", "pwd", "secret", "token", "auth", "credential",
	"session_cookie", "bearer", "authorization", "api_key",
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// MaskPhone renders a phone number as the last four digits, per the protocol
// invariant that phone is "masked to ***<last 4 digits> in all logs".
func MaskPhone(phone string) string {
	digits := make([]byte, 0, len(phone))
	for i := 0; i < len(phone); i++ {
		if phone[i] >= '0' && phone[i] <= '9' {
			digits = append(digits, phone[i])
		}
	}
	if len(digits) == 0 {
		return "***"
	}
	if len(digits) <= 4 {
		return "***" + string(digits)
	}
	return "***" + string(digits[len(digits)-4:])
}
