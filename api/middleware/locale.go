package middleware

import (
	"net/http"

	"golang.org/x/text/language"

	"github.com/angelmondragon/kirana-backend/pkg/enums"
)

var (
	supportedTags = []language.Tag{language.English, language.Hindi}
	localeMatcher = language.NewMatcher(supportedTags)
	tagLocales    = map[language.Tag]enums.Locale{
		language.English: enums.LocaleEnglish,
		language.Hindi:   enums.LocaleHindi,
	}
)

// Locale reads ?locale= or negotiates Accept-Language against en and hi.
// Requests with neither fall through to the token locale or the default.
func Locale() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Accept-Language")
			if locale, ok := requestedLocale(r); ok {
				w.Header().Set("Content-Language", string(locale))
				r = r.WithContext(WithLocale(r.Context(), locale))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestedLocale(r *http.Request) (enums.Locale, bool) {
	if raw := r.URL.Query().Get("locale"); raw != "" {
		if locale, err := enums.ParseLocale(raw); err == nil {
			return locale, true
		}
	}
	return negotiateLocale(r.Header.Get("Accept-Language"))
}

// negotiateLocale honours q-values. A header naming only unsupported
// languages yields no locale rather than the matcher's fallback.
func negotiateLocale(header string) (enums.Locale, bool) {
	if header == "" {
		return "", false
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return "", false
	}
	_, index, confidence := localeMatcher.Match(tags...)
	if confidence == language.No {
		return "", false
	}
	return tagLocales[supportedTags[index]], true
}
