package speech

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const streamChunkSize = 32 * 1024

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: streamChunkSize,
	// The HTTP layer already runs behind permissive CORS; the socket follows.
	CheckOrigin: func(*http.Request) bool { return true },
}

type streamRequest struct {
	Text           string `json:"text"`
	LanguageCode   string `json:"language_code"`
	VoiceGender    string `json:"voice_gender"`
	AgeTone        string `json:"age_tone"`
	PitchSemitones int    `json:"pitch_semitones"`
	RatePercent    int    `json:"rate_percent"`
	Engine         string `json:"engine"`
}

type streamFinal struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	EngineUsed string `json:"engine_used,omitempty"`
	VoiceUsed  string `json:"voice_used,omitempty"`
	Filename   string `json:"filename,omitempty"`
	FromCache  bool   `json:"from_cache,omitempty"`
	Bytes      int    `json:"bytes"`
}

// handleStream serves one synthesis per connection: a JSON request in, the
// audio as binary chunks out, then a JSON summary frame before close.
// Chunking keeps memory on constrained clients bounded even for long texts.
func (m *Module) handleStream(c *gin.Context) {
	conn, err := streamUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("speech: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	session := uuid.NewString()

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))

	var req streamRequest
	if err := conn.ReadJSON(&req); err != nil {
		log.Printf("speech: stream %s rejected malformed request: %v", session, err)
		writeStreamFinal(conn, streamFinal{Success: false, Message: "invalid request payload"})
		return
	}

	synthesisReq := SynthesisRequest{
		Text:           req.Text,
		LanguageCode:   strings.ToLower(strings.TrimSpace(req.LanguageCode)),
		VoiceGender:    NormalizeGender(req.VoiceGender),
		AgeTone:        NormalizeAgeTone(req.AgeTone),
		PitchSemitones: req.PitchSemitones,
		RatePercent:    req.RatePercent,
		Engine:         req.Engine,
	}
	if synthesisReq.LanguageCode == "" {
		synthesisReq.LanguageCode = "en"
	}

	result := m.router.Synthesize(c.Request.Context(), synthesisReq)
	m.history.Record(c.Request.Context(), synthesisReq, result)

	if !result.Success {
		log.Printf("speech: stream %s synthesis failed: %s", session, result.Message)
		writeStreamFinal(conn, streamFinal{Success: false, Message: result.Message})
		return
	}

	log.Printf("speech: stream %s sending %d bytes via %s", session, len(result.AudioBytes), result.EngineUsed)

	for offset := 0; offset < len(result.AudioBytes); offset += streamChunkSize {
		end := offset + streamChunkSize
		if end > len(result.AudioBytes) {
			end = len(result.AudioBytes)
		}
		conn.SetWriteDeadline(time.Now().Add(15 * time.Second))
		if err := conn.WriteMessage(websocket.BinaryMessage, result.AudioBytes[offset:end]); err != nil {
			log.Printf("speech: stream %s aborted mid-transfer: %v", session, err)
			return
		}
	}

	writeStreamFinal(conn, streamFinal{
		Success:    true,
		Message:    result.Message,
		EngineUsed: result.EngineUsed,
		VoiceUsed:  result.VoiceUsed,
		Filename:   result.Filename,
		FromCache:  result.FromCache,
		Bytes:      len(result.AudioBytes),
	})
}

func writeStreamFinal(conn *websocket.Conn, final streamFinal) {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(final); err != nil {
		log.Printf("speech: write stream summary failed: %v", err)
	}
}
