package speech

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogResolve(t *testing.T) {
	catalog := NewVoiceCatalog(map[string]map[string]string{
		"te": {"female": "te-IN-ShrutiNeural", "male": "te-IN-MohanNeural"},
		"hi": {"male": "hi-IN-MadhurNeural"},
		"kn": {"neutral": "kn-IN-GaganNeural"},
	})

	tests := []struct {
		name     string
		language string
		gender   Gender
		want     string
	}{
		{"exact gender match", "te", GenderMale, "te-IN-MohanNeural"},
		{"female preferred by default", "te", GenderFemale, "te-IN-ShrutiNeural"},
		{"missing gender falls back to male", "hi", GenderFemale, "hi-IN-MadhurNeural"},
		{"neutral falls back to any configured voice", "kn", GenderFemale, "kn-IN-GaganNeural"},
		{"case and whitespace insensitive", " TE ", GenderMale, "te-IN-MohanNeural"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			voice, err := catalog.Resolve(tt.language, tt.gender)
			require.NoError(t, err)
			assert.Equal(t, tt.want, voice)
		})
	}
}

func TestCatalogResolveUnknownLanguage(t *testing.T) {
	catalog := NewVoiceCatalog(map[string]map[string]string{
		"te": {"female": "te-IN-ShrutiNeural"},
	})

	_, err := catalog.Resolve("fr", GenderFemale)
	assert.ErrorIs(t, err, ErrNotConfigured)

	var nilCatalog *VoiceCatalog
	_, err = nilCatalog.Resolve("te", GenderFemale)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCatalogLanguagesSorted(t *testing.T) {
	catalog := NewVoiceCatalog(map[string]map[string]string{
		"te": {"female": "a"},
		"as": {"female": "b"},
		"hi": {"female": "c"},
	})

	assert.Equal(t, []string{"as", "hi", "te"}, catalog.Languages())
}

func TestCatalogLanguageSetUsesBaseCodes(t *testing.T) {
	catalog := NewVoiceCatalog(map[string]map[string]string{
		"hi-IN": {"female": "hi-IN-SwaraNeural"},
		"te":    {"female": "te-IN-ShrutiNeural"},
	})

	set := catalog.LanguageSet()
	assert.Contains(t, set, "hi")
	assert.Contains(t, set, "te")
}

func TestDefaultCatalogCoversIndicLanguages(t *testing.T) {
	catalog := NewVoiceCatalog(defaultNeuralCatalog())

	for _, lang := range []string{"as", "bn", "en", "gu", "hi", "kn", "ml", "mr", "or", "pa", "ta", "te", "ur"} {
		voice, err := catalog.Resolve(lang, GenderFemale)
		require.NoError(t, err, "language %s", lang)
		assert.NotEmpty(t, voice)
	}
}
