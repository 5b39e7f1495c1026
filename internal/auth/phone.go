package auth

import (
	"strings"

	pkgerrors "github.com/angelmondragon/kirana-backend/pkg/errors"
)

const indiaPrefix = "+91"

// NormalizePhone accepts a ten digit Indian mobile number with an optional
// +91, 91 or 0 prefix and returns it as +91XXXXXXXXXX.
func NormalizePhone(raw string) (string, error) {
	var digits strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '+':
		default:
			return "", invalidPhone()
		}
	}
	d := digits.String()
	switch {
	case len(d) == 12 && strings.HasPrefix(d, "91"):
		d = d[2:]
	case len(d) == 11 && strings.HasPrefix(d, "0"):
		d = d[1:]
	}
	if len(d) != 10 || d[0] < '6' {
		return "", invalidPhone()
	}
	return indiaPrefix + d, nil
}

func invalidPhone() error {
	return pkgerrors.New(pkgerrors.CodeValidation, "enter a valid 10 digit mobile number")
}
