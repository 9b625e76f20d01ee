package speech

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicSynthesize(t *testing.T) {
	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte("basic-mp3"))
	}))
	defer server.Close()

	provider := &basicProvider{
		httpClient: server.Client(),
		baseURL:    server.URL,
		denylist:   map[string]struct{}{},
	}

	audio, err := provider.Synthesize(context.Background(), ProviderRequest{Text: " hello ", Language: "hi-IN"})
	require.NoError(t, err)
	assert.Equal(t, []byte("basic-mp3"), audio.Bytes)
	assert.Equal(t, "hello", audio.NormalizedText)
	assert.Equal(t, "default-hi", audio.VoiceUsed)
	assert.Equal(t, []string{"hi"}, gotQuery["tl"])
	assert.Equal(t, []string{"hello"}, gotQuery["q"])
	assert.Equal(t, []string{"tw-ob"}, gotQuery["client"])
}

func TestBasicDenylistMessagePointsAtNeural(t *testing.T) {
	provider := &basicProvider{denylist: map[string]struct{}{"as": {}, "or": {}, "pa": {}}}

	_, err := provider.Synthesize(context.Background(), ProviderRequest{Text: "hello", Language: "or"})
	failure := asFailure(err)
	require.NotNil(t, failure)
	assert.Equal(t, FailureUnsupportedLanguage, failure.Kind)
	assert.Contains(t, failure.Message, "cloud-neural")
}

func TestBasicUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer server.Close()

	provider := &basicProvider{httpClient: server.Client(), baseURL: server.URL}

	_, err := provider.Synthesize(context.Background(), ProviderRequest{Text: "hello", Language: "en"})
	failure := asFailure(err)
	require.NotNil(t, failure)
	assert.Equal(t, FailureUpstream, failure.Kind)
}

func TestParseDenylistEnv(t *testing.T) {
	t.Setenv("SPEECH_TEST_DENYLIST", "")
	defaults := parseDenylistEnv("SPEECH_TEST_DENYLIST", "as", "or")
	assert.Contains(t, defaults, "as")
	assert.Contains(t, defaults, "or")

	t.Setenv("SPEECH_TEST_DENYLIST", "FR, de ,")
	custom := parseDenylistEnv("SPEECH_TEST_DENYLIST", "as")
	assert.Contains(t, custom, "fr")
	assert.Contains(t, custom, "de")
	assert.NotContains(t, custom, "as")
}
