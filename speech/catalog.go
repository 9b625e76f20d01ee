package speech

import (
	"encoding/json"
	"log"
	"os"
	"sort"
	"strings"
)

// VoiceCatalog is the static (language, gender) -> neural voice table. It is
// loaded once at startup and never mutated afterwards, so lookups are safe
// for concurrent use without locking.
type VoiceCatalog struct {
	entries map[string]map[string]string
}

// NewVoiceCatalogFromEnv builds the catalog from the built-in neural voice
// table, letting SPEECH_VOICE_CATALOG (a JSON object of language code to
// gender/voice pairs) replace it wholesale.
func NewVoiceCatalogFromEnv() *VoiceCatalog {
	entries := defaultNeuralCatalog()

	if raw := strings.TrimSpace(os.Getenv("SPEECH_VOICE_CATALOG")); raw != "" {
		var custom map[string]map[string]string
		if err := json.Unmarshal([]byte(raw), &custom); err != nil {
			log.Printf("speech: failed to parse SPEECH_VOICE_CATALOG: %v", err)
		} else if len(custom) > 0 {
			entries = normalizeCatalog(custom)
		}
	}

	return &VoiceCatalog{entries: entries}
}

// NewVoiceCatalog builds a catalog from explicit entries. Mainly useful for
// tests and embedders.
func NewVoiceCatalog(entries map[string]map[string]string) *VoiceCatalog {
	return &VoiceCatalog{entries: normalizeCatalog(entries)}
}

// Resolve returns the configured voice identifier for the language and
// gender. A missing gender falls back to female, then male, then the first
// configured voice in deterministic order. ErrNotConfigured is returned when
// the language has no voices at all.
func (c *VoiceCatalog) Resolve(language string, gender Gender) (string, error) {
	if c == nil {
		return "", ErrNotConfigured
	}

	voices := c.entries[strings.ToLower(strings.TrimSpace(language))]
	if len(voices) == 0 {
		return "", ErrNotConfigured
	}

	genderKey := strings.ToLower(strings.TrimSpace(string(gender)))
	if voice := voices[genderKey]; voice != "" {
		return voice, nil
	}
	if voice := voices[string(GenderFemale)]; voice != "" {
		return voice, nil
	}
	if voice := voices[string(GenderMale)]; voice != "" {
		return voice, nil
	}

	keys := make([]string, 0, len(voices))
	for key := range voices {
		if voices[key] != "" {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return "", ErrNotConfigured
	}
	sort.Strings(keys)
	return voices[keys[0]], nil
}

// Genders returns the gender -> voice pairs configured for a language.
func (c *VoiceCatalog) Genders(language string) map[string]string {
	if c == nil {
		return nil
	}
	voices := c.entries[strings.ToLower(strings.TrimSpace(language))]
	if len(voices) == 0 {
		return nil
	}
	out := make(map[string]string, len(voices))
	for gender, voice := range voices {
		if voice != "" {
			out[gender] = voice
		}
	}
	return out
}

// Languages lists the configured language codes in sorted order.
func (c *VoiceCatalog) Languages() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.entries))
	for lang := range c.entries {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// LanguageSet returns the catalog languages as a set of base codes, used as
// the bounded supported-language set of the neural provider.
func (c *VoiceCatalog) LanguageSet() map[string]struct{} {
	if c == nil {
		return map[string]struct{}{}
	}
	out := make(map[string]struct{}, len(c.entries))
	for lang := range c.entries {
		out[baseLanguage(lang)] = struct{}{}
	}
	return out
}

func normalizeCatalog(entries map[string]map[string]string) map[string]map[string]string {
	out := make(map[string]map[string]string, len(entries))
	for lang, voices := range entries {
		langKey := strings.ToLower(strings.TrimSpace(lang))
		if langKey == "" || len(voices) == 0 {
			continue
		}
		normalized := make(map[string]string, len(voices))
		for gender, voice := range voices {
			genderKey := strings.ToLower(strings.TrimSpace(gender))
			trimmedVoice := strings.TrimSpace(voice)
			if genderKey == "" || trimmedVoice == "" {
				continue
			}
			normalized[genderKey] = trimmedVoice
		}
		if len(normalized) > 0 {
			out[langKey] = normalized
		}
	}
	return out
}

func defaultNeuralCatalog() map[string]map[string]string {
	return map[string]map[string]string{
		"as": {"female": "as-IN-GitanjaliNeural", "male": "as-IN-ManishNeural"},
		"bn": {"female": "bn-IN-TanishaaNeural", "male": "bn-IN-BashkarNeural"},
		"en": {"female": "en-IN-NeerjaNeural", "male": "en-IN-PrabhatNeural"},
		"gu": {"female": "gu-IN-DhwaniNeural", "male": "gu-IN-NiranjanNeural"},
		"hi": {"female": "hi-IN-SwaraNeural", "male": "hi-IN-MadhurNeural"},
		"kn": {"female": "kn-IN-SapnaNeural", "male": "kn-IN-GaganNeural"},
		"ml": {"female": "ml-IN-SobhanaNeural", "male": "ml-IN-MidhunNeural"},
		"mr": {"female": "mr-IN-AarohiNeural", "male": "mr-IN-ManoharNeural"},
		"or": {"female": "or-IN-KalpanaNeural", "male": "or-IN-SubhenduNeural"},
		"pa": {"female": "pa-IN-GurpreetNeural", "male": "pa-IN-ManinderNeural"},
		"ta": {"female": "ta-IN-PallaviNeural", "male": "ta-IN-ValluvarNeural"},
		"te": {"female": "te-IN-ShrutiNeural", "male": "te-IN-MohanNeural"},
		"ur": {"female": "ur-IN-UditaNeural", "male": "ur-IN-AsadNeural"},
	}
}
