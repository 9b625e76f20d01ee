package speech

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// basicProvider is the open-source multilingual fallback: a plain synthesis
// endpoint keyed only by base language, with no voice, pitch or rate
// controls. Languages on its denylist fail with an instruction to configure
// the neural provider rather than degrading silently.
type basicProvider struct {
	httpClient *http.Client
	baseURL    string
	denylist   map[string]struct{}
}

func newBasicProviderFromEnv(httpClient *http.Client) *basicProvider {
	baseURL := strings.TrimSpace(os.Getenv("SPEECH_BASIC_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://translate.google.com/translate_tts"
	}

	return &basicProvider{
		httpClient: httpClient,
		baseURL:    baseURL,
		denylist:   parseDenylistEnv("SPEECH_BASIC_DENYLIST", "as", "or", "pa"),
	}
}

func (p *basicProvider) EngineKey() string    { return EngineOpenSourceMultilingual }
func (p *basicProvider) OutputFormat() string { return "mp3" }
func (p *basicProvider) NativePitch() bool    { return false }

func (p *basicProvider) Enabled() bool { return p != nil }

// SupportedLanguages is nil: the engine is broadly multilingual, bounded
// only by its denylist.
func (p *basicProvider) SupportedLanguages() map[string]struct{} { return nil }

func (p *basicProvider) DeniesLanguage(lang string) bool {
	if p == nil {
		return false
	}
	_, denied := p.denylist[baseLanguage(lang)]
	return denied
}

func (p *basicProvider) Synthesize(ctx context.Context, req ProviderRequest) (*ProviderAudio, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, newFailure(FailureInvalidRequest, "text cannot be empty")
	}

	lang := baseLanguage(req.Language)
	if p.DeniesLanguage(lang) {
		return nil, newFailure(FailureUnsupportedLanguage,
			"language %q is not supported by the open-source engine; configure the cloud-neural provider for %s support", req.Language, req.Language)
	}

	query := url.Values{}
	query.Set("ie", "UTF-8")
	query.Set("client", "tw-ob")
	query.Set("tl", lang)
	query.Set("q", text)

	endpoint := fmt.Sprintf("%s?%s", p.baseURL, query.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, upstreamError(err, "build open-source request")
	}

	client := p.httpClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, upstreamError(err, "open-source request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, newFailure(FailureUpstream, "open-source synthesis failed: %s %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	audioBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, upstreamError(err, "read open-source response")
	}

	return &ProviderAudio{
		Bytes:          audioBytes,
		Format:         "mp3",
		NormalizedText: text,
		VoiceUsed:      "default-" + lang,
	}, nil
}
