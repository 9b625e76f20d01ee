package speech

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveModel(t *testing.T) {
	provider := newLocalBinaryProvider("piper", "/models/default.onnx", map[string]string{
		"hi-IN": "/models/hi_IN.onnx",
		"te":    "/models/te.onnx",
	})

	tests := []struct {
		lang string
		want string
	}{
		{"hi-IN", "/models/hi_IN.onnx"},
		{"hi-in", "/models/hi_IN.onnx"},
		{"te-IN", "/models/te.onnx"},
		{"te", "/models/te.onnx"},
		{"fr", "/models/default.onnx"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, provider.resolveModel(tt.lang), "language %s", tt.lang)
	}
}

func TestLocalBinaryLanguageSet(t *testing.T) {
	provider := newLocalBinaryProvider("piper", "", map[string]string{
		"hi-IN": "/models/hi_IN.onnx",
	})

	languages := provider.SupportedLanguages()
	assert.Contains(t, languages, "hi-in")
	assert.Contains(t, languages, "hi")
	assert.NotContains(t, languages, "te")
}

func TestLocalBinaryEmptyModelTable(t *testing.T) {
	provider := newLocalBinaryProvider("piper", "", nil)

	assert.Empty(t, provider.SupportedLanguages())
	assert.Equal(t, "", provider.resolveModel("hi"))
}

func TestLocalBinaryMissingExecutable(t *testing.T) {
	provider := newLocalBinaryProvider("definitely-not-a-real-binary-4817", "/models/x.onnx", nil)

	assert.False(t, provider.Enabled())

	_, err := provider.Synthesize(context.Background(), ProviderRequest{Text: "hello", Language: "en"})
	failure := asFailure(err)
	require.NotNil(t, failure)
	assert.Equal(t, FailureConfiguration, failure.Kind)
	assert.Contains(t, failure.Message, "definitely-not-a-real-binary-4817")
}
