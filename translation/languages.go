package translation

import (
	"sort"
	"strings"
)

// languageNames maps base language codes onto display names for the
// /speech/languages endpoint.
var languageNames = map[string]string{
	"ar": "Arabic",
	"as": "Assamese",
	"bn": "Bengali",
	"de": "German",
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"gu": "Gujarati",
	"hi": "Hindi",
	"it": "Italian",
	"ja": "Japanese",
	"kn": "Kannada",
	"ko": "Korean",
	"ml": "Malayalam",
	"mr": "Marathi",
	"ne": "Nepali",
	"or": "Odia",
	"pa": "Punjabi",
	"pt": "Portuguese",
	"ru": "Russian",
	"sa": "Sanskrit",
	"ta": "Tamil",
	"te": "Telugu",
	"ur": "Urdu",
	"zh": "Chinese",
}

// LanguageName returns the display name for a language code, falling back to
// the uppercased code itself for anything unmapped.
func LanguageName(code string) string {
	normalized := strings.ToLower(strings.TrimSpace(code))
	if idx := strings.IndexAny(normalized, "-_"); idx > 0 {
		normalized = normalized[:idx]
	}
	if name, ok := languageNames[normalized]; ok {
		return name
	}
	return strings.ToUpper(normalized)
}

// KnownLanguages lists every mapped code in sorted order.
func KnownLanguages() []string {
	out := make([]string, 0, len(languageNames))
	for code := range languageNames {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
