package provider

import (
	"fmt"
	"strings"

	"github.com/edupulse/notify/internal/domain"
)

// NormalizePhone reduces raw input to a digits-only E.164-like number.
// A bare 10-digit local mobile number (leading digit 6–9) gets the configured
// country code prepended; anything shorter than 10 digits is rejected as a
// permanent recipient error.
func NormalizePhone(raw, countryCode string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if len(digits) < 10 {
		return "", fmt.Errorf("phone %q: %w", raw, domain.ErrInvalidRecipient)
	}
	if len(digits) == 10 && digits[0] >= '6' && digits[0] <= '9' {
		return countryCode + digits, nil
	}
	return digits, nil
}
