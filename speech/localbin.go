package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// localBinaryProvider shells out to a piper-style synthesis executable with
// a per-language model table. The most specific model wins: full locale
// ("hi-IN"), then base language ("hi"), then the default model. A missing
// binary or model file is a configuration error.
type localBinaryProvider struct {
	binary       string
	defaultModel string
	models       map[string]string
	languages    map[string]struct{}
}

func newLocalBinaryProviderFromEnv() *localBinaryProvider {
	binary := strings.TrimSpace(os.Getenv("SPEECH_PIPER_BINARY"))
	if binary == "" {
		binary = "piper"
	}

	defaultModel := strings.TrimSpace(os.Getenv("SPEECH_PIPER_MODEL"))

	models := map[string]string{}
	if raw := strings.TrimSpace(os.Getenv("SPEECH_PIPER_MODELS")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &models); err != nil {
			log.Printf("speech: failed to parse SPEECH_PIPER_MODELS: %v", err)
			models = map[string]string{}
		}
	}

	return newLocalBinaryProvider(binary, defaultModel, models)
}

func newLocalBinaryProvider(binary, defaultModel string, models map[string]string) *localBinaryProvider {
	normalized := make(map[string]string, len(models))
	languages := make(map[string]struct{}, len(models))
	for lang, path := range models {
		key := strings.ToLower(strings.TrimSpace(lang))
		trimmedPath := strings.TrimSpace(path)
		if key == "" || trimmedPath == "" {
			continue
		}
		normalized[key] = trimmedPath
		languages[key] = struct{}{}
		languages[baseLanguage(key)] = struct{}{}
	}

	return &localBinaryProvider{
		binary:       binary,
		defaultModel: defaultModel,
		models:       normalized,
		languages:    languages,
	}
}

func (p *localBinaryProvider) EngineKey() string    { return EngineLocalBinary }
func (p *localBinaryProvider) OutputFormat() string { return "wav" }
func (p *localBinaryProvider) NativePitch() bool    { return false }

func (p *localBinaryProvider) Enabled() bool {
	if p == nil {
		return false
	}
	_, err := exec.LookPath(p.binary)
	return err == nil
}

// SupportedLanguages is derived from the model table; with no models
// configured the set is empty and every request routes to the fallback.
func (p *localBinaryProvider) SupportedLanguages() map[string]struct{} {
	if p == nil {
		return map[string]struct{}{}
	}
	return p.languages
}

// resolveModel picks the model for a language: full locale first, then base
// language, then the default model. Empty when nothing matches.
func (p *localBinaryProvider) resolveModel(lang string) string {
	full := strings.ToLower(strings.TrimSpace(lang))
	for _, candidate := range []string{full, baseLanguage(full)} {
		if candidate == "" {
			continue
		}
		if path, ok := p.models[candidate]; ok {
			return path
		}
	}
	return p.defaultModel
}

func (p *localBinaryProvider) Synthesize(ctx context.Context, req ProviderRequest) (*ProviderAudio, error) {
	binaryPath, err := exec.LookPath(p.binary)
	if err != nil {
		return nil, configurationError("local-binary executable %q not found on the search path; install it or set SPEECH_PIPER_BINARY", p.binary)
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, newFailure(FailureInvalidRequest, "text cannot be empty")
	}

	model := p.resolveModel(req.Language)
	if model == "" {
		return nil, configurationError("no local-binary model configured for language %q; set SPEECH_PIPER_MODELS or SPEECH_PIPER_MODEL", req.Language)
	}
	if _, err := os.Stat(model); err != nil {
		return nil, configurationError("local-binary model not found at %q", model)
	}

	output, err := os.CreateTemp("", "speechroute-*.wav")
	if err != nil {
		return nil, upstreamError(err, "create local-binary output file")
	}
	outputPath := output.Name()
	output.Close()
	defer os.Remove(outputPath)

	cmd := exec.CommandContext(ctx, binaryPath,
		"--model", model,
		"--output_file", outputPath,
	)
	cmd.Stdin = bytes.NewBufferString(text + "\n")

	if out, err := cmd.CombinedOutput(); err != nil {
		snippet := strings.TrimSpace(string(out))
		if len(snippet) > 512 {
			snippet = snippet[len(snippet)-512:]
		}
		return nil, upstreamError(err, "local-binary synthesis failed: %s", snippet)
	}

	audioBytes, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, upstreamError(err, "read local-binary output")
	}
	if len(audioBytes) == 0 {
		return nil, newFailure(FailureInternal, "local-binary produced an empty audio file")
	}

	return &ProviderAudio{
		Bytes:          audioBytes,
		Format:         "wav",
		NormalizedText: text,
		VoiceUsed:      filepath.Base(model),
	}, nil
}
