package speech

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const defaultProviderTimeout = 60 * time.Second

// Registry holds the constructed providers by engine key. Engines that fail
// to construct are remembered with their error so requests naming them get
// the original diagnosis instead of "unknown engine".
type Registry struct {
	providers        map[string]Provider
	constructionErrs map[string]error
	fallbackKey      string
}

// NewRegistryFromEnv constructs every known engine from the environment.
// Providers are registered even when disabled; Enabled() gates them at
// request time so a later credential rotation only needs a restart.
func NewRegistryFromEnv(httpClient *http.Client, catalog *VoiceCatalog, audio *AudioToolchain) *Registry {
	registry := &Registry{
		providers:        make(map[string]Provider),
		constructionErrs: make(map[string]error),
	}

	registry.providers[EngineCloudNeural] = newNeuralProviderFromEnv(httpClient, catalog.LanguageSet(), audio)
	registry.providers[EngineLegacyCloud] = newPersonaProviderFromEnv(httpClient)
	registry.providers[EngineLocalBinary] = newLocalBinaryProviderFromEnv()
	registry.providers[EngineOpenSourceMultilingual] = newBasicProviderFromEnv(httpClient)

	if experimental, err := newExperimentalFromEnv(); err != nil {
		registry.constructionErrs[EngineExperimental] = err
		log.Printf("speech: experimental engine unavailable: %v", err)
	} else {
		registry.providers[EngineExperimental] = experimental
	}

	fallback := NormalizeEngineID(os.Getenv("SPEECH_FALLBACK_ENGINE"))
	if _, ok := registry.providers[fallback]; !ok {
		if fallback != EngineOpenSourceMultilingual && strings.TrimSpace(os.Getenv("SPEECH_FALLBACK_ENGINE")) != "" {
			log.Printf("speech: fallback engine %q is not registered, using %s", fallback, EngineOpenSourceMultilingual)
		}
		fallback = EngineOpenSourceMultilingual
	}
	registry.fallbackKey = fallback

	return registry
}

// Provider returns the provider for an already-normalized engine key.
func (r *Registry) Provider(key string) (Provider, bool) {
	if r == nil {
		return nil, false
	}
	provider, ok := r.providers[key]
	return provider, ok
}

// Statuses reports every known engine in deterministic order for the
// /speech/engines endpoint.
func (r *Registry) Statuses() []EngineStatus {
	if r == nil {
		return nil
	}

	keys := make([]string, 0, len(r.providers)+len(r.constructionErrs))
	for key := range r.providers {
		keys = append(keys, key)
	}
	for key := range r.constructionErrs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]EngineStatus, 0, len(keys))
	for _, key := range keys {
		if err, failed := r.constructionErrs[key]; failed {
			out = append(out, EngineStatus{Key: key, Enabled: false, Error: err.Error()})
			continue
		}
		provider := r.providers[key]
		out = append(out, EngineStatus{
			Key:          key,
			Enabled:      provider.Enabled(),
			OutputFormat: provider.OutputFormat(),
			Languages:    len(provider.SupportedLanguages()),
		})
	}
	return out
}

// Router drives one synthesis request through engine resolution, capability
// checks, the cache, the chosen provider and pitch post-processing. It never
// returns a Go error: every failure is folded into the result with
// Success=false so callers render one shape.
type Router struct {
	registry *Registry
	catalog  *VoiceCatalog
	store    *AudioStore
	audio    *AudioToolchain
	timeout  time.Duration
}

func NewRouter(registry *Registry, catalog *VoiceCatalog, store *AudioStore, audio *AudioToolchain) *Router {
	return &Router{
		registry: registry,
		catalog:  catalog,
		store:    store,
		audio:    audio,
		timeout:  providerTimeoutFromEnv(),
	}
}

func providerTimeoutFromEnv() time.Duration {
	raw := strings.TrimSpace(os.Getenv("SPEECH_PROVIDER_TIMEOUT"))
	if raw == "" {
		return defaultProviderTimeout
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		log.Printf("speech: invalid SPEECH_PROVIDER_TIMEOUT %q, using %s", raw, defaultProviderTimeout)
		return defaultProviderTimeout
	}
	return parsed
}

// Synthesize runs the full routing pipeline. At most one engine substitution
// happens per request: either a capability reroute before any provider call,
// or a quota reroute after the primary reported exhaustion. Never both.
func (r *Router) Synthesize(ctx context.Context, req SynthesisRequest) SynthesisResult {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return failureResult(newFailure(FailureInvalidRequest, "text cannot be empty"))
	}
	language := strings.ToLower(strings.TrimSpace(req.LanguageCode))
	if language == "" {
		return failureResult(newFailure(FailureInvalidRequest, "language code cannot be empty"))
	}

	engineKey := NormalizeEngineID(req.Engine)
	provider, ok := r.registry.Provider(engineKey)
	if !ok {
		if constructionErr, failed := r.registry.constructionErrs[engineKey]; failed {
			return failureResult(asFailure(constructionErr))
		}
		return failureResult(newFailure(FailureUnknownEngine, "unknown engine %q", req.Engine))
	}

	substituted := false
	if !providerServesLanguage(provider, language) {
		fallback, fallbackOK := r.registry.Provider(r.registry.fallbackKey)
		if !fallbackOK || fallback.EngineKey() == provider.EngineKey() || !providerServesLanguage(fallback, language) {
			return failureResult(newFailure(FailureUnsupportedLanguage,
				"language %q is not supported by engine %s or its fallback", req.LanguageCode, engineKey))
		}
		log.Printf("speech: engine %s cannot serve language %s, rerouting to %s", engineKey, language, fallback.EngineKey())
		provider = fallback
		engineKey = fallback.EngineKey()
		substituted = true
	}

	voice, failure := r.resolveVoice(provider, language, req.VoiceGender, req.AgeTone)
	if failure != nil {
		return failureResult(failure)
	}

	settings := VoiceSettings{
		Gender:         req.VoiceGender,
		AgeTone:        req.AgeTone,
		PitchSemitones: req.PitchSemitones,
		RatePercent:    req.RatePercent,
		Engine:         engineKey,
		Voice:          voice,
	}
	cacheKey := r.store.Key(text, language, settings)

	if filename, data, hit := r.store.Lookup(ctx, cacheKey); hit {
		finalName, finalData, pitchFailure := r.applyPitch(provider, filename, data, req.PitchSemitones)
		if pitchFailure != nil {
			return failureResult(pitchFailure)
		}
		return SynthesisResult{
			Success:        true,
			AudioBytes:     finalData,
			EngineUsed:     engineKey,
			VoiceUsed:      voice,
			NormalizedText: text,
			Filename:       finalName,
			FromCache:      true,
			Message:        "served from cache",
		}
	}

	providerReq := ProviderRequest{
		Text:           text,
		Language:       language,
		Voice:          voice,
		PitchSemitones: req.PitchSemitones,
		RatePercent:    req.RatePercent,
	}

	audio, failure := r.invoke(ctx, provider, providerReq)
	if failure != nil && failure.Kind == FailureQuota && !substituted {
		fallback, fallbackOK := r.registry.Provider(r.registry.fallbackKey)
		if fallbackOK && fallback.EngineKey() != provider.EngineKey() && providerServesLanguage(fallback, language) {
			log.Printf("speech: engine %s reported quota exhaustion, rerouting to %s", engineKey, fallback.EngineKey())
			provider = fallback
			engineKey = fallback.EngineKey()
			voice, failure = r.resolveVoice(provider, language, req.VoiceGender, req.AgeTone)
			if failure != nil {
				return failureResult(failure)
			}
			settings.Engine = engineKey
			settings.Voice = voice
			providerReq.Voice = voice
			cacheKey = r.store.Key(text, language, settings)
			audio, failure = r.invoke(ctx, provider, providerReq)
		}
	}
	if failure != nil {
		return failureResult(failure)
	}

	if audio == nil || len(audio.Bytes) == 0 {
		return failureResult(newFailure(FailureInternal, "engine %s reported success but produced no audio", engineKey))
	}
	if audio.VoiceUsed != "" {
		voice = audio.VoiceUsed
	}

	filename, err := r.store.Store(ctx, cacheKey, language, audio.Format, audio.Bytes)
	if err != nil {
		return failureResult(asFailure(err))
	}

	finalName, finalData, pitchFailure := r.applyPitch(provider, filename, audio.Bytes, req.PitchSemitones)
	if pitchFailure != nil {
		return failureResult(pitchFailure)
	}

	return SynthesisResult{
		Success:        true,
		AudioBytes:     finalData,
		EngineUsed:     engineKey,
		VoiceUsed:      voice,
		NormalizedText: audio.NormalizedText,
		Filename:       finalName,
		Message:        "synthesized with " + engineKey,
	}
}

func (r *Router) invoke(ctx context.Context, provider Provider, req ProviderRequest) (*ProviderAudio, *Failure) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	audio, err := provider.Synthesize(callCtx, req)
	if err != nil {
		return nil, asFailure(err)
	}
	return audio, nil
}

// resolveVoice picks the provider-specific voice identity before the cache
// probe so equivalent requests share a key regardless of how they spelled
// their settings.
func (r *Router) resolveVoice(provider Provider, language string, gender Gender, age AgeTone) (string, *Failure) {
	switch provider.EngineKey() {
	case EngineCloudNeural:
		voice, err := r.catalog.Resolve(baseLanguage(language), gender)
		if err != nil {
			if errors.Is(err, ErrNotConfigured) {
				return "", newFailure(FailureUnsupportedLanguage, "no cloud-neural voice configured for language %q", language)
			}
			return "", asFailure(err)
		}
		return voice, nil
	case EngineLegacyCloud:
		return PersonaFor(gender, age), nil
	default:
		return "", nil
	}
}

// applyPitch runs the waveform shifter for providers without native pitch
// support. The derivative path is deterministic, so a shifted copy produced
// by an earlier request is reused without invoking ffmpeg again.
func (r *Router) applyPitch(provider Provider, filename string, data []byte, semitones int) (string, []byte, *Failure) {
	if semitones == 0 || provider.NativePitch() {
		return filename, data, nil
	}

	path, ok := r.store.Path(filename)
	if !ok {
		return "", nil, newFailure(FailureInternal, "cached filename %q failed validation", filename)
	}

	shiftedPath := ShiftedPath(path, semitones)
	if _, err := os.Stat(shiftedPath); err != nil {
		produced, shiftErr := r.audio.Shift(path, semitones)
		if shiftErr != nil {
			return "", nil, asFailure(shiftErr)
		}
		shiftedPath = produced
	}

	shifted, err := os.ReadFile(shiftedPath)
	if err != nil {
		return "", nil, asFailure(upstreamError(err, "read pitch-shifted audio"))
	}
	return filepath.Base(shiftedPath), shifted, nil
}

// providerServesLanguage applies the two capability models: a bounded
// supported set keyed by base language, or an open set with a denylist.
func providerServesLanguage(provider Provider, language string) bool {
	base := baseLanguage(language)

	if denylister, ok := provider.(languageDenylister); ok && denylister.DeniesLanguage(base) {
		return false
	}

	supported := provider.SupportedLanguages()
	if supported == nil {
		return true
	}
	if _, ok := supported[base]; ok {
		return true
	}
	_, ok := supported[strings.ToLower(strings.TrimSpace(language))]
	return ok
}

func failureResult(failure *Failure) SynthesisResult {
	return SynthesisResult{
		Success:     false,
		FailureKind: failure.Kind,
		Message:     failure.Message,
	}
}
