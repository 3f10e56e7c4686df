package handlers

import (
	"bytes"
	"fmt"
	"log"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/codebuildervaibhav/voice-transcription/internal/config"
	"github.com/codebuildervaibhav/voice-transcription/internal/queue"
	"github.com/codebuildervaibhav/voice-transcription/internal/types"
)

// StreamHandler buffers WebSocket audio frames in memory and enqueues
// the whole recording when the client signals END.
type StreamHandler struct {
	workerPool *queue.WorkerPool
	cfg        *config.Config
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(workerPool *queue.WorkerPool, cfg *config.Config) *StreamHandler {
	return &StreamHandler{workerPool: workerPool, cfg: cfg}
}

// Handle processes one WebSocket connection. Text frames carry control
// data (the recording name, or "END" to finish); binary frames carry
// audio.
func (h *StreamHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	var (
		buffer      bytes.Buffer
		requestName string
		jobID       = uuid.New().String()
		maxSize     = h.cfg.Limits.MaxFileSizeMB * 1024 * 1024
	)

	log.Printf("WebSocket connection established: %s", jobID)

	for {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			log.Printf("WebSocket read error: %v", err)
			break
		}

		if messageType == websocket.TextMessage {
			msgStr := string(message)
			if msgStr == "END" {
				log.Printf("Received END signal, processing stream...")
				break
			}
			if len(msgStr) > 0 && len(msgStr) < 200 {
				requestName = msgStr
				log.Printf("Stream name set to: %s", requestName)
			}
			continue
		}

		if messageType == websocket.BinaryMessage {
			if buffer.Len()+len(message) > maxSize {
				log.Printf("Stream %s exceeded %dMB limit, dropping connection", jobID, h.cfg.Limits.MaxFileSizeMB)
				c.WriteMessage(websocket.TextMessage,
					[]byte(fmt.Sprintf(`{"error":"stream too large (max %dMB)","code":"ERR_FILE_TOO_LARGE"}`, h.cfg.Limits.MaxFileSizeMB)))
				return
			}
			buffer.Write(message)
		}
	}

	if buffer.Len() == 0 {
		log.Printf("No audio data received in stream %s", jobID)
		return
	}

	if requestName == "" {
		requestName = "stream_recording"
	}

	settings := settingsFromForm(func(key string) string {
		return c.Query(key)
	}, h.cfg)

	job := queue.NewJob(jobID, requestName, types.SourceStream,
		types.AudioBlob{Data: buffer.Bytes(), MIME: "audio/webm"}, settings)

	h.workerPool.EnqueueJob(job)

	c.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf(`{"job_id":"%s","status":"queued"}`, jobID)))
}
