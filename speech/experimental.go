package speech

import (
	"os"
	"strings"
)

// newExperimentalFromEnv constructs the pluggable experimental engine. It is
// an extension point rather than a shipped backend: the deployment must point
// SPEECH_EXPERIMENTAL_BINARY and SPEECH_EXPERIMENTAL_MODEL at a piper-
// compatible engine, and an absent dependency is reported here at
// construction time, never at call time.
func newExperimentalFromEnv() (Provider, error) {
	binary := strings.TrimSpace(os.Getenv("SPEECH_EXPERIMENTAL_BINARY"))
	model := strings.TrimSpace(os.Getenv("SPEECH_EXPERIMENTAL_MODEL"))
	if binary == "" || model == "" {
		return nil, configurationError("experimental engine is not configured; set SPEECH_EXPERIMENTAL_BINARY and SPEECH_EXPERIMENTAL_MODEL")
	}

	models := map[string]string{}
	if raw := strings.TrimSpace(os.Getenv("SPEECH_EXPERIMENTAL_MODELS")); raw != "" {
		models = parseModelTable(raw)
	}

	inner := newLocalBinaryProvider(binary, model, models)
	if !inner.Enabled() {
		return nil, configurationError("experimental engine binary %q not found on the search path", binary)
	}
	return &experimentalProvider{localBinaryProvider: inner}, nil
}

// experimentalProvider reuses the local-binary mechanics under its own
// engine key. It declares no bounded language set; the configured model is
// assumed multilingual.
type experimentalProvider struct {
	*localBinaryProvider
}

func (p *experimentalProvider) EngineKey() string { return EngineExperimental }

func (p *experimentalProvider) SupportedLanguages() map[string]struct{} { return nil }

func parseModelTable(raw string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		lang := strings.ToLower(strings.TrimSpace(parts[0]))
		path := strings.TrimSpace(parts[1])
		if lang != "" && path != "" {
			out[lang] = path
		}
	}
	return out
}
