package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/angelmondragon/kirana-backend/pkg/enums"
)

// LocalizedText maps a locale code to display text. It is stored as a json
// object and resolved once per request.
type LocalizedText map[enums.Locale]string

// NewLocalizedText builds a LocalizedText from english and hindi values,
// skipping blanks.
func NewLocalizedText(en, hi string) LocalizedText {
	text := LocalizedText{}
	if v := strings.TrimSpace(en); v != "" {
		text[enums.LocaleEnglish] = v
	}
	if v := strings.TrimSpace(hi); v != "" {
		text[enums.LocaleHindi] = v
	}
	return text
}

// Resolve returns the text for locale, then english, then any non-empty
// value in a stable order.
func (t LocalizedText) Resolve(locale enums.Locale) string {
	if len(t) == 0 {
		return ""
	}
	if v := t[locale]; v != "" {
		return v
	}
	if v := t[enums.LocaleEnglish]; v != "" {
		return v
	}
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := t[enums.Locale(k)]; v != "" {
			return v
		}
	}
	return ""
}

// Contains reports whether any translation contains needle, ignoring case.
func (t LocalizedText) Contains(needle string) bool {
	needle = strings.ToLower(strings.TrimSpace(needle))
	if needle == "" {
		return true
	}
	for _, v := range t {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}

// Value stores the map as json.
func (t LocalizedText) Value() (driver.Value, error) {
	if t == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(map[enums.Locale]string(t))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan decodes a json object column.
func (t *LocalizedText) Scan(value interface{}) error {
	if value == nil {
		*t = LocalizedText{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("localized text: unsupported type %T", value)
	}
	if len(raw) == 0 {
		*t = LocalizedText{}
		return nil
	}
	decoded := map[enums.Locale]string{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("localized text: %w", err)
	}
	*t = decoded
	return nil
}
