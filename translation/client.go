package translation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Client talks to the public translation endpoint used for pre-synthesis
// translation. Both detection and translation degrade gracefully: on any
// upstream problem the caller gets a usable default instead of an error, so
// synthesis is never blocked by translation trouble.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClientFromEnv builds the client. SPEECH_TRANSLATE_API_BASE_URL
// overrides the endpoint for tests and self-hosted deployments.
func NewClientFromEnv(httpClient *http.Client) *Client {
	baseURL := strings.TrimSpace(os.Getenv("SPEECH_TRANSLATE_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://translate.googleapis.com/translate_a/single"
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

// Detect guesses the language of text, returning "en" whenever the upstream
// cannot be reached or gives an unusable answer.
func (c *Client) Detect(ctx context.Context, text string) string {
	detected, _, err := c.call(ctx, "auto", "en", text)
	if err != nil {
		log.Printf("translation: language detection failed, assuming en: %v", err)
		return "en"
	}
	if detected == "" {
		return "en"
	}
	return detected
}

// Translate converts text into the target language. The original text is
// returned unchanged when source and target match or the upstream fails.
func (c *Client) Translate(ctx context.Context, text, sourceLang, targetLang string) string {
	source := strings.ToLower(strings.TrimSpace(sourceLang))
	target := strings.ToLower(strings.TrimSpace(targetLang))
	if target == "" || source == target {
		return text
	}
	if source == "" {
		source = "auto"
	}

	_, translated, err := c.call(ctx, source, target, text)
	if err != nil {
		log.Printf("translation: translate %s -> %s failed, using original text: %v", source, target, err)
		return text
	}
	if translated == "" {
		return text
	}
	return translated
}

// call performs one request against the translate endpoint. The response is
// the endpoint's nested-array shape: segment pairs first, detected language
// at index 2.
func (c *Client) call(ctx context.Context, source, target, text string) (detected, translated string, err error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", "", fmt.Errorf("translation: text is empty")
	}

	query := url.Values{}
	query.Set("client", "gtx")
	query.Set("sl", source)
	query.Set("tl", target)
	query.Set("dt", "t")
	query.Set("q", trimmed)

	callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return "", "", fmt.Errorf("translation: build request: %w", err)
	}

	client := c.httpClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("translation: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", fmt.Errorf("translation: upstream returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", "", fmt.Errorf("translation: read response: %w", err)
	}

	return parseResponse(body)
}

// parseResponse unpacks the endpoint's untyped JSON array: element 0 holds
// [translated, original, ...] segment tuples, element 2 the detected
// language code.
func parseResponse(body []byte) (detected, translated string, err error) {
	var payload []any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", "", fmt.Errorf("translation: decode response: %w", err)
	}
	if len(payload) == 0 {
		return "", "", fmt.Errorf("translation: empty response")
	}

	if segments, ok := payload[0].([]any); ok {
		var builder strings.Builder
		for _, segment := range segments {
			tuple, ok := segment.([]any)
			if !ok || len(tuple) == 0 {
				continue
			}
			if piece, ok := tuple[0].(string); ok {
				builder.WriteString(piece)
			}
		}
		translated = builder.String()
	}

	if len(payload) > 2 {
		if lang, ok := payload[2].(string); ok {
			detected = strings.ToLower(strings.TrimSpace(lang))
		}
	}

	return detected, translated, nil
}
