package cleanup

import (
	"encoding/json"

	"github.com/wasilibs/go-re2"
	"golang.org/x/text/unicode/norm"
)

// Placeholder tokens substituted for personal data.
const (
	tokenEmail = "[EMAIL]"
	tokenPhone = "[PHONE]"
	tokenName  = "[NAME]"
)

// piiPatterns match email-like, phone-like and proper-name-like substrings.
// Order matters: emails and phones first, so a redacted address is not
// half-matched again by the name pattern.
var piiPatterns = []struct {
	pattern     *re2.Regexp
	replacement string
}{
	{re2.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`), tokenEmail},
	{re2.MustCompile(`\+?\d[\d\s().-]{7,}\d`), tokenPhone},
	{re2.MustCompile(`\b[A-Z][a-z]+\s+[A-Z][a-z]+\b`), tokenName},
}

// AnonymizeText replaces personal data in a plain string with placeholder
// tokens. Input is NFKC-normalized first so visually equivalent characters
// cannot dodge the patterns.
func AnonymizeText(s string) string {
	result := norm.NFKC.String(s)
	for _, p := range piiPatterns {
		result = p.pattern.ReplaceAllString(result, p.replacement)
	}
	return result
}

// Anonymize redacts personal data recursively through nested JSON
// structures. Non-JSON input is treated as plain text.
func Anonymize(data string) string {
	var parsed any
	if err := json.Unmarshal([]byte(data), &parsed); err != nil {
		return AnonymizeText(data)
	}

	redacted := anonymizeValue(parsed)
	out, err := json.Marshal(redacted)
	if err != nil {
		return AnonymizeText(data)
	}
	return string(out)
}

// anonymizeValue walks maps, slices and strings; numbers and booleans pass
// through untouched.
func anonymizeValue(v any) any {
	switch val := v.(type) {
	case string:
		return AnonymizeText(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = anonymizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = anonymizeValue(item)
		}
		return out
	default:
		return v
	}
}
