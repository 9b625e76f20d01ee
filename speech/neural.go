package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

const neuralOutputFormat = "audio-16khz-32kbitrate-mono-mp3"

// neuralProvider wraps a cloud neural synthesis backend driven by SSML
// prosody markup. It needs an endpoint key and a region; both missing keys
// and unrecognized response encodings are configuration errors, never
// fallback triggers.
type neuralProvider struct {
	httpClient *http.Client
	key        string
	region     string
	endpoint   string
	languages  map[string]struct{}
	audio      *AudioToolchain
	enabled    bool
}

func newNeuralProviderFromEnv(httpClient *http.Client, languages map[string]struct{}, audio *AudioToolchain) *neuralProvider {
	key := firstNonEmpty(
		os.Getenv("SPEECH_NEURAL_KEY"),
		os.Getenv("AZURE_SPEECH_KEY"),
	)
	region := firstNonEmpty(
		os.Getenv("SPEECH_NEURAL_REGION"),
		os.Getenv("AZURE_SPEECH_REGION"),
	)

	endpoint := strings.TrimSpace(os.Getenv("SPEECH_NEURAL_ENDPOINT"))
	if endpoint == "" && region != "" {
		endpoint = fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", region)
	}

	return &neuralProvider{
		httpClient: httpClient,
		key:        key,
		region:     region,
		endpoint:   strings.TrimRight(endpoint, "/"),
		languages:  languages,
		audio:      audio,
		enabled:    key != "" && region != "",
	}
}

func (p *neuralProvider) EngineKey() string    { return EngineCloudNeural }
func (p *neuralProvider) OutputFormat() string { return "mp3" }
func (p *neuralProvider) NativePitch() bool    { return true }

func (p *neuralProvider) Enabled() bool {
	return p != nil && p.enabled
}

func (p *neuralProvider) SupportedLanguages() map[string]struct{} {
	if p == nil {
		return map[string]struct{}{}
	}
	return p.languages
}

func (p *neuralProvider) Synthesize(ctx context.Context, req ProviderRequest) (*ProviderAudio, error) {
	if !p.Enabled() {
		return nil, configurationError("cloud-neural credentials are missing; set SPEECH_NEURAL_KEY and SPEECH_NEURAL_REGION")
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, newFailure(FailureInvalidRequest, "text cannot be empty")
	}
	if strings.TrimSpace(req.Voice) == "" {
		return nil, configurationError("cloud-neural requires a resolved voice for language %q", req.Language)
	}

	ssml := buildProsodyMarkup(text, req.Voice, req.PitchSemitones, req.RatePercent)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(ssml))
	if err != nil {
		return nil, upstreamError(err, "build cloud-neural request")
	}
	httpReq.Header.Set("Content-Type", "application/ssml+xml")
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", p.key)
	httpReq.Header.Set("X-Microsoft-OutputFormat", neuralOutputFormat)
	httpReq.Header.Set("User-Agent", "speechroute")

	client := p.httpClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, upstreamError(err, "cloud-neural request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, upstreamError(err, "read cloud-neural response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, newFailure(FailureQuota, "cloud-neural quota exhausted: %s %s", resp.Status, snippet)
		}
		return nil, newFailure(FailureUpstream, "cloud-neural synthesis cancelled: %s %s", resp.Status, snippet)
	}

	audioBytes, err := p.ensureMP3(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}

	return &ProviderAudio{
		Bytes:          audioBytes,
		Format:         "mp3",
		NormalizedText: text,
		VoiceUsed:      req.Voice,
	}, nil
}

// ensureMP3 passes MP3 payloads through and transcodes RIFF/PCM responses.
// Any other encoding means the deployment is misconfigured.
func (p *neuralProvider) ensureMP3(body []byte, contentType string) ([]byte, error) {
	lowered := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.Contains(lowered, "mpeg"), strings.Contains(lowered, "mp3"):
		return body, nil
	case lowered == "", bytes.HasPrefix(body, []byte("ID3")):
		return body, nil
	case strings.Contains(lowered, "wav"), strings.Contains(lowered, "riff"), strings.Contains(lowered, "pcm"):
		converted, err := p.audio.TranscodeToMP3(body, "wav")
		if err != nil {
			return nil, err
		}
		return converted, nil
	default:
		return nil, configurationError("cloud-neural returned unrecognized audio encoding %q", contentType)
	}
}

// buildProsodyMarkup renders the SSML payload the neural backend expects,
// with pitch and rate expressed as prosody directives.
func buildProsodyMarkup(text, voice string, pitchSemitones, ratePercent int) string {
	locale := voiceLocale(voice)
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf(`<speak version="1.0" xml:lang=%q xmlns="http://www.w3.org/2001/10/synthesis">`, locale))
	builder.WriteString(fmt.Sprintf(`<voice name=%q xml:lang=%q>`, voice, locale))
	builder.WriteString(fmt.Sprintf(`<prosody pitch=%q rate=%q>`, formatPitch(pitchSemitones), formatRate(ratePercent)))
	builder.WriteString(escapeMarkupText(text))
	builder.WriteString(`</prosody></voice></speak>`)
	return builder.String()
}

// formatPitch clamps to the [-3,+3] semitone window the neural backend
// accepts and renders zero as "default".
func formatPitch(semitones int) string {
	clamped := clampInt(semitones, -3, 3)
	if clamped == 0 {
		return "default"
	}
	return fmt.Sprintf("%+dst", clamped)
}

// formatRate clamps to [-50,+50] percent and renders zero as "default".
func formatRate(percent int) string {
	clamped := clampInt(percent, -50, 50)
	if clamped == 0 {
		return "default"
	}
	return fmt.Sprintf("%+d%%", clamped)
}

// voiceLocale derives the locale from a neural voice name, so
// "te-IN-ShrutiNeural" yields "te-IN".
func voiceLocale(voice string) string {
	parts := strings.Split(voice, "-")
	if len(parts) >= 2 {
		return parts[0] + "-" + parts[1]
	}
	return "en-US"
}

var markupEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escapeMarkupText(text string) string {
	return markupEscaper.Replace(text)
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
