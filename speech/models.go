package speech

import (
	"context"
	"strings"
)

const (
	EngineCloudNeural            = "cloud-neural"
	EngineLegacyCloud            = "legacy-cloud"
	EngineLocalBinary            = "local-binary"
	EngineOpenSourceMultilingual = "open-source-multilingual"
	EngineExperimental           = "experimental"
)

type Gender string

const (
	GenderFemale  Gender = "female"
	GenderMale    Gender = "male"
	GenderNeutral Gender = "neutral"
)

type AgeTone string

const (
	AgeChild  AgeTone = "child"
	AgeAdult  AgeTone = "adult"
	AgeSenior AgeTone = "senior"
)

// SynthesisRequest carries one caller-facing synthesis request. Text is
// expected to already be in the target language; translation happens in the
// handler layer before the router is invoked.
type SynthesisRequest struct {
	Text           string
	LanguageCode   string
	VoiceGender    Gender
	AgeTone        AgeTone
	PitchSemitones int
	RatePercent    int
	Engine         string
}

// SynthesisResult is the single normalized outcome shape for every provider.
// On failure AudioBytes is nil and Message is populated; on success AudioBytes
// is present and Message describes the engine that produced it.
type SynthesisResult struct {
	Success        bool        `json:"success"`
	AudioBytes     []byte      `json:"-"`
	EngineUsed     string      `json:"engine_used,omitempty"`
	VoiceUsed      string      `json:"voice_used,omitempty"`
	NormalizedText string      `json:"normalized_text,omitempty"`
	Filename       string      `json:"filename,omitempty"`
	FromCache      bool        `json:"from_cache,omitempty"`
	FailureKind    FailureKind `json:"failure_kind,omitempty"`
	Message        string      `json:"message"`
}

// ProviderRequest is the normalized payload handed to a provider after the
// router has resolved engine, language and voice.
type ProviderRequest struct {
	Text           string
	Language       string
	Voice          string
	PitchSemitones int
	RatePercent    int
}

// ProviderAudio is what a successful provider call yields.
type ProviderAudio struct {
	Bytes          []byte
	Format         string
	NormalizedText string
	VoiceUsed      string
}

// Provider is a synthesis backend. Implementations are constructed once from
// static configuration and must be safe for concurrent use; configuration is
// read-only after construction.
type Provider interface {
	EngineKey() string
	OutputFormat() string
	// SupportedLanguages returns the bounded set of base language codes the
	// provider can serve, or nil when the provider is unbounded.
	SupportedLanguages() map[string]struct{}
	// NativePitch reports whether the provider applies pitch adjustments
	// itself; when false the router runs the waveform shifter afterwards.
	NativePitch() bool
	Enabled() bool
	Synthesize(ctx context.Context, req ProviderRequest) (*ProviderAudio, error)
}

// languageDenylister is implemented by providers that are unbounded except
// for a hand-maintained set of languages they cannot serve. The router
// consults it before invoking the provider.
type languageDenylister interface {
	DeniesLanguage(lang string) bool
}

// EngineStatus describes one registered provider for the /speech/engines
// endpoint.
type EngineStatus struct {
	Key          string `json:"key"`
	Enabled      bool   `json:"enabled"`
	OutputFormat string `json:"output_format,omitempty"`
	Languages    int    `json:"languages,omitempty"`
	Error        string `json:"error,omitempty"`
}

// NormalizeEngineID maps the aliases accepted over the wire onto canonical
// engine keys. offline-fallback is a historical alias for the open-source
// multilingual engine.
func NormalizeEngineID(value string) string {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	switch trimmed {
	case "", "cloud-neural", "cloud_neural", "neural":
		return EngineCloudNeural
	case "legacy-cloud", "legacy_cloud", "legacy", "persona":
		return EngineLegacyCloud
	case "local-binary", "local_binary", "binary":
		return EngineLocalBinary
	case "open-source-multilingual", "open_source_multilingual", "open-source", "offline-fallback", "offline_fallback":
		return EngineOpenSourceMultilingual
	case "experimental", "pluggable":
		return EngineExperimental
	default:
		return trimmed
	}
}

// NormalizeGender folds arbitrary caller input onto the three supported
// gender values, defaulting to female.
func NormalizeGender(value string) Gender {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "male", "m":
		return GenderMale
	case "neutral", "n":
		return GenderNeutral
	default:
		return GenderFemale
	}
}

// NormalizeAgeTone folds caller input onto the supported age tones,
// defaulting to adult.
func NormalizeAgeTone(value string) AgeTone {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "child", "kid":
		return AgeChild
	case "senior", "elder":
		return AgeSenior
	default:
		return AgeAdult
	}
}

// baseLanguage strips a locale suffix, so "hi-IN" becomes "hi".
func baseLanguage(lang string) string {
	trimmed := strings.ToLower(strings.TrimSpace(lang))
	if idx := strings.IndexAny(trimmed, "-_"); idx > 0 {
		return trimmed[:idx]
	}
	return trimmed
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
