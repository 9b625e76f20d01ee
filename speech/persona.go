package speech

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
)

// personaVoices maps gender and age tone onto the symbolic persona names the
// legacy cloud backend understands. The backend has no pitch or rate
// controls; voice choice is the only knob.
var personaVoices = map[Gender]map[AgeTone]string{
	GenderFemale: {
		AgeChild:  "nova",
		AgeAdult:  "shimmer",
		AgeSenior: "shimmer",
	},
	GenderMale: {
		AgeChild:  "echo",
		AgeAdult:  "onyx",
		AgeSenior: "onyx",
	},
	GenderNeutral: {
		AgeChild:  "alloy",
		AgeAdult:  "alloy",
		AgeSenior: "fable",
	},
}

// PersonaFor resolves the persona voice for the requested gender and age
// tone, falling back to nova/onyx/alloy when the combination is unmapped.
func PersonaFor(gender Gender, age AgeTone) string {
	if byAge, ok := personaVoices[gender]; ok {
		if voice := byAge[age]; voice != "" {
			return voice
		}
	}
	switch gender {
	case GenderFemale:
		return "nova"
	case GenderMale:
		return "onyx"
	default:
		return "alloy"
	}
}

// personaProvider is the legacy general-purpose cloud backend: plain
// text-in/audio-out, persona voice names, no prosody controls. It keeps a
// hand-maintained denylist of languages it cannot serve so the router can
// pick an alternate before any network call happens.
type personaProvider struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	denylist   map[string]struct{}
	enabled    bool
}

func newPersonaProviderFromEnv(httpClient *http.Client) *personaProvider {
	baseURL := strings.TrimSpace(firstNonEmpty(
		os.Getenv("SPEECH_LEGACY_API_BASE_URL"),
		os.Getenv("OPENAI_API_BASE_URL"),
	))
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	apiKey := firstNonEmpty(
		os.Getenv("SPEECH_LEGACY_API_KEY"),
		os.Getenv("OPENAI_API_KEY"),
	)

	model := strings.TrimSpace(os.Getenv("SPEECH_LEGACY_MODEL"))
	if model == "" {
		model = "tts-1"
	}

	return &personaProvider{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		denylist:   parseDenylistEnv("SPEECH_LEGACY_DENYLIST", "as", "or", "pa"),
		enabled:    apiKey != "",
	}
}

func (p *personaProvider) EngineKey() string    { return EngineLegacyCloud }
func (p *personaProvider) OutputFormat() string { return "mp3" }
func (p *personaProvider) NativePitch() bool    { return false }

func (p *personaProvider) Enabled() bool {
	return p != nil && p.enabled
}

// SupportedLanguages is nil: the backend is multilingual and unbounded
// except for the denylist.
func (p *personaProvider) SupportedLanguages() map[string]struct{} { return nil }

func (p *personaProvider) DeniesLanguage(lang string) bool {
	if p == nil {
		return false
	}
	_, denied := p.denylist[baseLanguage(lang)]
	return denied
}

func (p *personaProvider) Synthesize(ctx context.Context, req ProviderRequest) (*ProviderAudio, error) {
	if !p.Enabled() {
		return nil, configurationError("legacy-cloud API key is missing; set SPEECH_LEGACY_API_KEY")
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, newFailure(FailureInvalidRequest, "text cannot be empty")
	}

	if p.DeniesLanguage(req.Language) {
		return nil, newFailure(FailureUnsupportedLanguage, "language %q is on the legacy-cloud denylist", req.Language)
	}

	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		voice = "alloy"
	}

	payload, err := json.Marshal(map[string]any{
		"model": p.model,
		"input": text,
		"voice": voice,
	})
	if err != nil {
		return nil, upstreamError(err, "encode legacy-cloud request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/audio/speech", strings.NewReader(string(payload)))
	if err != nil {
		return nil, upstreamError(err, "build legacy-cloud request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	client := p.httpClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, upstreamError(err, "legacy-cloud request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, upstreamError(err, "read legacy-cloud response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		if isQuotaFailure(resp.StatusCode, snippet) {
			return nil, newFailure(FailureQuota, "legacy-cloud quota exhausted: %s", snippet)
		}
		return nil, newFailure(FailureUpstream, "legacy-cloud synthesis failed: %s %s", resp.Status, snippet)
	}

	return &ProviderAudio{
		Bytes:          body,
		Format:         "mp3",
		NormalizedText: text,
		VoiceUsed:      voice,
	}, nil
}

// isQuotaFailure distinguishes quota and rate-limit responses so the router
// can decide between falling back and failing fast.
func isQuotaFailure(status int, body string) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	lowered := strings.ToLower(body)
	return strings.Contains(lowered, "insufficient_quota") || strings.Contains(lowered, "quota")
}

func parseDenylistEnv(key string, defaults ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(defaults))
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		for _, code := range defaults {
			out[code] = struct{}{}
		}
		return out
	}
	for _, code := range strings.Split(raw, ",") {
		trimmed := strings.ToLower(strings.TrimSpace(code))
		if trimmed != "" {
			out[trimmed] = struct{}{}
		}
	}
	return out
}
