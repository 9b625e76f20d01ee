package speech

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speechroute_back/translation"
)

func newTestModule(t *testing.T, providers ...*stubProvider) (*Module, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := &Registry{
		providers:        make(map[string]Provider, len(providers)),
		constructionErrs: map[string]error{},
		fallbackKey:      EngineOpenSourceMultilingual,
	}
	for _, provider := range providers {
		if provider.format == "" {
			provider.format = "mp3"
		}
		registry.providers[provider.key] = provider
	}

	catalog := NewVoiceCatalog(map[string]map[string]string{
		"te": {"female": "te-IN-ShrutiNeural", "male": "te-IN-MohanNeural"},
	})
	store, err := NewAudioStore(t.TempDir(), nil)
	require.NoError(t, err)

	module := &Module{
		catalog:    catalog,
		registry:   registry,
		router:     NewRouter(registry, catalog, store, &AudioToolchain{}),
		store:      store,
		translator: translation.NewClientFromEnv(nil),
	}

	engine := gin.New()
	group := engine.Group("/speech")
	group.POST("/synthesize", module.handleSynthesize)
	group.GET("/audio/:filename", module.handleAudio)
	group.GET("/download/:filename", module.handleDownload)
	group.GET("/voices", module.handleVoices)
	group.GET("/engines", module.handleEngines)
	group.GET("/languages", module.handleLanguages)
	group.GET("/history", module.handleHistory)

	return module, engine
}

func TestHandleSynthesize(t *testing.T) {
	provider := &stubProvider{key: EngineOpenSourceMultilingual}
	_, engine := newTestModule(t, provider)

	payload := `{"text":"hello","language_code":"en","engine":"open-source-multilingual","translate":false}`
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/speech/synthesize", strings.NewReader(payload))
	request.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, EngineOpenSourceMultilingual, body["engine_used"])
	assert.Contains(t, body["audio_url"], "/speech/audio/")

	decoded, err := base64.StdEncoding.DecodeString(body["audio_base64"].(string))
	require.NoError(t, err)
	assert.Equal(t, []byte("stub-audio-"+EngineOpenSourceMultilingual), decoded)
}

func TestHandleSynthesizeMissingText(t *testing.T) {
	_, engine := newTestModule(t, &stubProvider{key: EngineOpenSourceMultilingual})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/speech/synthesize", strings.NewReader(`{"language_code":"en"}`))
	request.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestHandleSynthesizeUnknownEngine(t *testing.T) {
	_, engine := newTestModule(t, &stubProvider{key: EngineOpenSourceMultilingual})

	payload := `{"text":"hello","language_code":"en","engine":"warp-drive","translate":false}`
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/speech/synthesize", strings.NewReader(payload))
	request.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "warp-drive")
}

func TestHandleAudioRejectsTraversal(t *testing.T) {
	_, engine := newTestModule(t, &stubProvider{key: EngineOpenSourceMultilingual})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/speech/audio/..%2f..%2fetc%2fpasswd", nil)
	engine.ServeHTTP(recorder, request)

	assert.Contains(t, []int{http.StatusBadRequest, http.StatusNotFound}, recorder.Code)
}

func TestHandleAudioNotFound(t *testing.T) {
	_, engine := newTestModule(t, &stubProvider{key: EngineOpenSourceMultilingual})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/speech/audio/speech_te_abcd1234.mp3", nil)
	engine.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestHandleVoices(t *testing.T) {
	_, engine := newTestModule(t, &stubProvider{key: EngineOpenSourceMultilingual})

	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/speech/voices", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "te-IN-ShrutiNeural")
	assert.Contains(t, recorder.Body.String(), "Telugu")
}

func TestHandleEngines(t *testing.T) {
	_, engine := newTestModule(t,
		&stubProvider{key: EngineOpenSourceMultilingual},
		&stubProvider{key: EngineCloudNeural, languages: map[string]struct{}{"te": {}}, native: true},
	)

	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/speech/engines", nil))

	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		Engines     []EngineStatus `json:"engines"`
		Fallback    string         `json:"fallback"`
		SharedCache *bool          `json:"shared_cache"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, EngineOpenSourceMultilingual, body.Fallback)
	assert.Len(t, body.Engines, 2)
	require.NotNil(t, body.SharedCache, "engines payload must report shared cache availability")
	assert.False(t, *body.SharedCache)
}

func TestHandleLanguages(t *testing.T) {
	_, engine := newTestModule(t, &stubProvider{key: EngineOpenSourceMultilingual})

	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/speech/languages", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Telugu")
	assert.Contains(t, recorder.Body.String(), "neural_voice")
}

func TestHandleHistoryDisabled(t *testing.T) {
	_, engine := newTestModule(t, &stubProvider{key: EngineOpenSourceMultilingual})

	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/speech/history", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"enabled":false`)
}

func TestStatusForFailure(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusForFailure(FailureInvalidRequest))
	assert.Equal(t, http.StatusBadRequest, statusForFailure(FailureUnknownEngine))
	assert.Equal(t, http.StatusUnprocessableEntity, statusForFailure(FailureUnsupportedLanguage))
	assert.Equal(t, http.StatusServiceUnavailable, statusForFailure(FailureConfiguration))
	assert.Equal(t, http.StatusServiceUnavailable, statusForFailure(FailureQuota))
	assert.Equal(t, http.StatusBadGateway, statusForFailure(FailureUpstream))
	assert.Equal(t, http.StatusInternalServerError, statusForFailure(FailureInternal))
}
