package speech

import (
	"context"
	"encoding/base64"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"speechroute_back/cache"
	"speechroute_back/storage"
	"speechroute_back/translation"
)

// Module wires the catalog, the engine registry, the cache, translation and
// history behind the /speech route group.
type Module struct {
	catalog    *VoiceCatalog
	registry   *Registry
	router     *Router
	store      *AudioStore
	history    *historyStore
	archive    *storage.AudioArchive
	translator *translation.Client
}

func RegisterRoutes(r *gin.Engine) (*Module, error) {
	httpClient := &http.Client{Timeout: 45 * time.Second}

	catalog := NewVoiceCatalogFromEnv()
	audio := NewAudioToolchainFromEnv()
	registry := NewRegistryFromEnv(httpClient, catalog, audio)

	redisClient, err := cache.GetRedisClient()
	if err != nil {
		log.Printf("speech: redis unavailable, cache index stays local: %v", err)
		redisClient = nil
	}

	outputDir := strings.TrimSpace(os.Getenv("SPEECH_OUTPUT_DIR"))
	if outputDir == "" {
		outputDir = "output"
	}
	store, err := NewAudioStore(outputDir, redisClient)
	if err != nil {
		return nil, err
	}

	history, err := newHistoryStoreFromEnv()
	if err != nil {
		return nil, err
	}

	archive, err := storage.NewAudioArchiveFromEnv()
	if err != nil {
		return nil, err
	}

	module := &Module{
		catalog:    catalog,
		registry:   registry,
		router:     NewRouter(registry, catalog, store, audio),
		store:      store,
		history:    history,
		archive:    archive,
		translator: translation.NewClientFromEnv(httpClient),
	}

	group := r.Group("/speech")
	group.POST("/synthesize", module.handleSynthesize)
	group.GET("/audio/:filename", module.handleAudio)
	group.GET("/download/:filename", module.handleDownload)
	group.GET("/voices", module.handleVoices)
	group.GET("/engines", module.handleEngines)
	group.GET("/languages", module.handleLanguages)
	group.GET("/history", module.handleHistory)
	group.GET("/stream", module.handleStream)

	return module, nil
}

type synthesizeRequest struct {
	Text           string `json:"text" binding:"required"`
	LanguageCode   string `json:"language_code"`
	VoiceGender    string `json:"voice_gender"`
	AgeTone        string `json:"age_tone"`
	PitchSemitones int    `json:"pitch_semitones"`
	RatePercent    int    `json:"rate_percent"`
	Engine         string `json:"engine"`
	Translate      *bool  `json:"translate"`
}

func (m *Module) handleSynthesize(c *gin.Context) {
	var req synthesizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request payload"})
		return
	}

	ctx := c.Request.Context()
	target := strings.ToLower(strings.TrimSpace(req.LanguageCode))
	if target == "" {
		target = "en"
	}

	text := req.Text
	detected := ""
	if req.Translate == nil || *req.Translate {
		detected = m.translator.Detect(ctx, text)
		if baseLanguage(detected) != baseLanguage(target) {
			text = m.translator.Translate(ctx, text, detected, target)
		}
	}

	synthesisReq := SynthesisRequest{
		Text:           text,
		LanguageCode:   target,
		VoiceGender:    NormalizeGender(req.VoiceGender),
		AgeTone:        NormalizeAgeTone(req.AgeTone),
		PitchSemitones: req.PitchSemitones,
		RatePercent:    req.RatePercent,
		Engine:         req.Engine,
	}

	result := m.router.Synthesize(ctx, synthesisReq)
	m.history.Record(ctx, synthesisReq, result)

	if !result.Success {
		c.JSON(statusForFailure(result.FailureKind), gin.H{
			"success": false,
			"message": result.Message,
		})
		return
	}

	response := gin.H{
		"success":         true,
		"message":         result.Message,
		"audio_base64":    base64.StdEncoding.EncodeToString(result.AudioBytes),
		"audio_url":       "/speech/audio/" + result.Filename,
		"download_url":    "/speech/download/" + result.Filename,
		"filename":        result.Filename,
		"engine_used":     result.EngineUsed,
		"voice_used":      result.VoiceUsed,
		"from_cache":      result.FromCache,
		"translated_text": text,
		"normalized_text": result.NormalizedText,
		"language": gin.H{
			"code": target,
			"name": translation.LanguageName(target),
		},
	}
	if detected != "" {
		response["detected_language"] = gin.H{
			"code": detected,
			"name": translation.LanguageName(detected),
		}
	}

	// Signing is local, so the URL is ready even while the async upload is
	// still in flight.
	if m.archive.Enabled() {
		archiveURL, err := m.archive.PresignedURL(ctx, result.Filename, 15*time.Minute)
		if err != nil {
			log.Printf("speech: presign archive URL for %s failed: %v", result.Filename, err)
		} else {
			response["archive_url"] = archiveURL
		}
	}

	m.archiveAsync(result)

	c.JSON(http.StatusOK, response)
}

// archiveAsync mirrors fresh artifacts to object storage without holding up
// the response. Cache hits were archived when first produced.
func (m *Module) archiveAsync(result SynthesisResult) {
	if !m.archive.Enabled() || result.FromCache || result.Filename == "" {
		return
	}

	filename := result.Filename
	data := result.AudioBytes
	contentType := contentTypeForFilename(filename)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := m.archive.Upload(ctx, filename, data, contentType); err != nil {
			log.Printf("speech: archive upload for %s failed: %v", filename, err)
		}
	}()
}

func (m *Module) handleAudio(c *gin.Context) {
	m.serveArtifact(c, false)
}

func (m *Module) handleDownload(c *gin.Context) {
	m.serveArtifact(c, true)
}

func (m *Module) serveArtifact(c *gin.Context, asAttachment bool) {
	filename := c.Param("filename")
	path, ok := m.store.Path(filename)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid filename"})
		return
	}
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "audio file not found"})
		return
	}

	if asAttachment {
		c.FileAttachment(path, filename)
		return
	}
	c.Header("Content-Type", contentTypeForFilename(filename))
	c.File(path)
}

func (m *Module) handleVoices(c *gin.Context) {
	languages := make([]gin.H, 0)
	for _, code := range m.catalog.Languages() {
		languages = append(languages, gin.H{
			"code":   code,
			"name":   translation.LanguageName(code),
			"voices": m.catalog.Genders(code),
		})
	}
	personas := make(map[string]map[string]string, len(personaVoices))
	for gender, byAge := range personaVoices {
		entry := make(map[string]string, len(byAge))
		for age, voice := range byAge {
			entry[string(age)] = voice
		}
		personas[string(gender)] = entry
	}

	c.JSON(http.StatusOK, gin.H{"languages": languages, "personas": personas})
}

func (m *Module) handleEngines(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"engines":      m.registry.Statuses(),
		"fallback":     m.registry.fallbackKey,
		"shared_cache": cache.Enabled(),
	})
}

func (m *Module) handleLanguages(c *gin.Context) {
	neural := m.catalog.LanguageSet()
	languages := make([]gin.H, 0)
	for _, code := range translation.KnownLanguages() {
		_, hasNeuralVoice := neural[code]
		languages = append(languages, gin.H{
			"code":         code,
			"name":         translation.LanguageName(code),
			"neural_voice": hasNeuralVoice,
		})
	}
	c.JSON(http.StatusOK, gin.H{"languages": languages})
}

func (m *Module) handleHistory(c *gin.Context) {
	if m.history == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false, "records": []SynthesisRecord{}})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := m.history.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to load history"})
		return
	}
	if records == nil {
		records = []SynthesisRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"enabled": true, "records": records})
}

// statusForFailure maps the failure taxonomy onto HTTP statuses.
func statusForFailure(kind FailureKind) int {
	switch kind {
	case FailureInvalidRequest, FailureUnknownEngine:
		return http.StatusBadRequest
	case FailureUnsupportedLanguage:
		return http.StatusUnprocessableEntity
	case FailureConfiguration, FailureQuota:
		return http.StatusServiceUnavailable
	case FailureUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func contentTypeForFilename(filename string) string {
	lowered := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lowered, ".wav"):
		return "audio/wav"
	case strings.HasSuffix(lowered, ".ogg"):
		return "audio/ogg"
	default:
		return "audio/mpeg"
	}
}
