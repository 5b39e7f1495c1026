package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	pkgerrors "github.com/angelmondragon/kirana-backend/pkg/errors"
)

const (
	maxSKULen            = 64
	MaxSearchLen         = 100
	MaxCategorySlugLen   = 64
	MaxIdempotencyKeyLen = 128
)

// SanitizeString trims input, drops control characters, folds whitespace
// runs to one space and cuts the result to at most maxLen bytes without
// splitting a rune. Output is NFC so Hindi typed on different keyboards
// compares equal.
func SanitizeString(input string, maxLen int) string {
	var b strings.Builder
	space := false
	for _, r := range norm.NFC.String(strings.TrimSpace(input)) {
		switch {
		case unicode.IsSpace(r):
			space = true
			continue
		case unicode.IsControl(r) || r == utf8.RuneError:
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return truncateRunes(b.String(), maxLen)
}

// SanitizeSearch prepares a catalog ?q= value.
func SanitizeSearch(input string) string {
	return SanitizeString(input, MaxSearchLen)
}

// SanitizeSlug lowercases a category slug and drops anything outside
// [a-z0-9-].
func SanitizeSlug(input string) string {
	slug := strings.Map(func(r rune) rune {
		r = unicode.ToLower(r)
		if r == '-' || ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') {
			return r
		}
		return -1
	}, strings.TrimSpace(input))
	return truncateRunes(slug, MaxCategorySlugLen)
}

// SanitizeSKU returns the trimmed SKU, or "" when it holds characters no
// product SKU uses.
func SanitizeSKU(input string) string {
	sku := strings.TrimSpace(input)
	if len(sku) > maxSKULen {
		return ""
	}
	for _, r := range sku {
		if !isSKURune(r) {
			return ""
		}
	}
	return sku
}

func isSKURune(r rune) bool {
	switch {
	case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9':
		return true
	}
	return r == '-' || r == '_' || r == '.'
}

// ParseIdempotencyKey validates an Idempotency-Key header. Keys are never
// truncated: two long keys sharing a prefix would replay each other's order.
func ParseIdempotencyKey(raw string) (string, error) {
	key := strings.TrimSpace(raw)
	if len(key) > MaxIdempotencyKeyLen {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key too long").
			WithDetails(map[string]any{"field": "Idempotency-Key", "max": MaxIdempotencyKeyLen})
	}
	for i := 0; i < len(key); i++ {
		if key[i] < 0x21 || key[i] > 0x7e {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key must be printable ascii").
				WithDetails(map[string]any{"field": "Idempotency-Key"})
		}
	}
	return key, nil
}

func truncateRunes(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.TrimSpace(s[:cut])
}
