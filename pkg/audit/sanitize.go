package audit

import "strings"

const redacted = "[REDACTED]"

var sensitiveKeys = map[string]bool{
	"password":      true,
	"secret":        true,
	"token":         true,
	"api_key":       true,
	"apikey":        true,
	"authorization": true,
	"credentials":   true,
	"jwt":           true,
}

// SanitizeDetails returns a copy of details with sensitive values redacted.
// Nested maps are sanitized too.
func SanitizeDetails(details map[string]any) map[string]any {
	if details == nil {
		return nil
	}

	sanitized := make(map[string]any, len(details))
	for k, v := range details {
		if sensitiveKeys[strings.ToLower(k)] {
			sanitized[k] = redacted
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			sanitized[k] = SanitizeDetails(nested)
			continue
		}
		sanitized[k] = v
	}
	return sanitized
}
