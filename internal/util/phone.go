// Package util provides small helpers shared across components.
package util

import (
	"strings"

	"github.com/huntworks/huntrelay/internal/models"
)

// NormalizePhone canonicalizes a free-form caller id into +1XXXXXXXXXX form.
// All non-digit characters are stripped; an 11-digit number with a leading
// country-code 1 loses that digit; anything that does not leave exactly 10
// digits is rejected with models.ErrInvalidPhoneNumber.
func NormalizePhone(raw string) (string, error) {
	var digits strings.Builder
	digits.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	d := digits.String()
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	if len(d) != 10 {
		return "", models.ErrInvalidPhoneNumber
	}
	return "+1" + d, nil
}
