package enums

import (
	"fmt"
	"strings"
)

// Locale is a display language code.
type Locale string

const (
	LocaleEnglish Locale = "en"
	LocaleHindi   Locale = "hi"
)

// DefaultLocale is used when a request carries no usable locale.
const DefaultLocale = LocaleEnglish

var validLocales = []Locale{
	LocaleEnglish,
	LocaleHindi,
}

// String implements fmt.Stringer.
func (l Locale) String() string {
	return string(l)
}

// IsValid reports whether the value is a supported Locale.
func (l Locale) IsValid() bool {
	for _, candidate := range validLocales {
		if candidate == l {
			return true
		}
	}
	return false
}

// ParseLocale normalizes values such as "HI" or "en-IN".
func ParseLocale(value string) (Locale, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if idx := strings.IndexAny(v, "-_"); idx > 0 {
		v = v[:idx]
	}
	for _, candidate := range validLocales {
		if string(candidate) == v {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid locale %q", value)
}

// LocaleOrDefault parses value and falls back to DefaultLocale.
func LocaleOrDefault(value string) Locale {
	if locale, err := ParseLocale(value); err == nil {
		return locale
	}
	return DefaultLocale
}
