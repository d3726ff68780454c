package config

import "strings"

// MaskSecret masks a secret for display, keeping only the first and last
// four characters. Short secrets are masked entirely.
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) < 8 {
		return "***"
	}
	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}
