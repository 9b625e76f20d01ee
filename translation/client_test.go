package translation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponse(t *testing.T) {
	body := []byte(`[[["నమస్కారం","hello",null,null,10]],null,"en",null,null,null,null,[]]`)

	detected, translated, err := parseResponse(body)
	require.NoError(t, err)
	assert.Equal(t, "en", detected)
	assert.Equal(t, "నమస్కారం", translated)
}

func TestParseResponseMultipleSegments(t *testing.T) {
	body := []byte(`[[["Bonjour ","Hello "],["le monde","world"]],null,"en"]`)

	_, translated, err := parseResponse(body)
	require.NoError(t, err)
	assert.Equal(t, "Bonjour le monde", translated)
}

func TestParseResponseGarbage(t *testing.T) {
	_, _, err := parseResponse([]byte("<html>blocked</html>"))
	assert.Error(t, err)

	_, _, err = parseResponse([]byte("[]"))
	assert.Error(t, err)
}

func TestDetect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "auto", r.URL.Query().Get("sl"))
		w.Write([]byte(`[[["hello","hello"]],null,"te"]`))
	}))
	defer server.Close()

	client := &Client{httpClient: server.Client(), baseURL: server.URL}
	assert.Equal(t, "te", client.Detect(context.Background(), "నమస్కారం"))
}

func TestDetectFallsBackToEnglish(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := &Client{httpClient: server.Client(), baseURL: server.URL}
	assert.Equal(t, "en", client.Detect(context.Background(), "whatever"))
}

func TestTranslate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "en", r.URL.Query().Get("sl"))
		assert.Equal(t, "te", r.URL.Query().Get("tl"))
		w.Write([]byte(`[[["నమస్కారం","hello"]],null,"en"]`))
	}))
	defer server.Close()

	client := &Client{httpClient: server.Client(), baseURL: server.URL}
	assert.Equal(t, "నమస్కారం", client.Translate(context.Background(), "hello", "en", "te"))
}

func TestTranslateSameLanguageSkipsNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected when source equals target")
	}))
	defer server.Close()

	client := &Client{httpClient: server.Client(), baseURL: server.URL}
	assert.Equal(t, "hello", client.Translate(context.Background(), "hello", "en", "en"))
}

func TestTranslateReturnsOriginalOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := &Client{httpClient: server.Client(), baseURL: server.URL}
	assert.Equal(t, "hello", client.Translate(context.Background(), "hello", "en", "te"))
}

func TestLanguageName(t *testing.T) {
	assert.Equal(t, "Telugu", LanguageName("te"))
	assert.Equal(t, "Hindi", LanguageName("hi-IN"))
	assert.Equal(t, "Telugu", LanguageName(" TE "))
	assert.Equal(t, "XX", LanguageName("xx"))
}

func TestKnownLanguagesSorted(t *testing.T) {
	languages := KnownLanguages()
	require.NotEmpty(t, languages)
	for i := 1; i < len(languages); i++ {
		assert.Less(t, languages[i-1], languages[i])
	}
	assert.Contains(t, languages, "te")
	assert.Contains(t, languages, "hi")
}
