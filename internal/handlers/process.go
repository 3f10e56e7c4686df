package handlers

import (
	"fmt"
	"io"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/codebuildervaibhav/voice-transcription/internal/config"
	"github.com/codebuildervaibhav/voice-transcription/internal/queue"
	"github.com/codebuildervaibhav/voice-transcription/internal/types"
)

// TranscribeHandler accepts audio uploads and enqueues them.
type TranscribeHandler struct {
	workerPool *queue.WorkerPool
	cfg        *config.Config
}

// NewTranscribeHandler creates a new upload handler.
func NewTranscribeHandler(workerPool *queue.WorkerPool, cfg *config.Config) *TranscribeHandler {
	return &TranscribeHandler{workerPool: workerPool, cfg: cfg}
}

// settingsFromForm builds the per-request settings snapshot, falling
// back to configured defaults for anything the client omitted.
func settingsFromForm(get func(string) string, cfg *config.Config) types.Settings {
	s := types.Settings{
		Mode:     get("mode"),
		Style:    get("style"),
		Language: get("language"),
		Pool:     get("pool"),
		Custom:   get("custom_prompt"),
		Model:    get("model"),
	}
	if s.Mode == "" {
		s.Mode = cfg.Defaults.Mode
	}
	if s.Style == "" {
		s.Style = cfg.Defaults.Style
	}
	if s.Language == "" {
		s.Language = cfg.Defaults.Language
	}
	if s.Pool == "" {
		s.Pool = cfg.Defaults.Pool
	}
	return s
}

// Handle processes the upload request.
func (h *TranscribeHandler) Handle(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "No file uploaded",
			"code":  "ERR_NO_FILE",
		})
	}

	requestName := c.FormValue("name")
	if requestName == "" {
		requestName = "untitled"
	}

	maxSize := int64(h.cfg.Limits.MaxFileSizeMB) * 1024 * 1024
	if file.Size > maxSize {
		return c.Status(400).JSON(fiber.Map{
			"error": fmt.Sprintf("File too large (max %dMB)", h.cfg.Limits.MaxFileSizeMB),
			"code":  "ERR_FILE_TOO_LARGE",
		})
	}

	if !ValidateAudioFormat(file.Filename) {
		return c.Status(400).JSON(fiber.Map{
			"error": "Unsupported audio format",
			"code":  "ERR_INVALID_FORMAT",
		})
	}

	src, err := file.Open()
	if err != nil {
		log.Printf("Failed to open uploaded file: %v", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to read file",
			"code":  "ERR_READ_FAILED",
		})
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		log.Printf("Failed to read uploaded file: %v", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to read file",
			"code":  "ERR_READ_FAILED",
		})
	}

	jobID := uuid.New().String()
	job := queue.NewJob(jobID, requestName, types.SourceUpload,
		types.AudioBlob{Data: data, MIME: MIMEForFilename(file.Filename)},
		settingsFromForm(func(key string) string { return c.FormValue(key) }, h.cfg))

	h.workerPool.EnqueueJob(job)

	return c.JSON(fiber.Map{
		"job_id":  jobID,
		"status":  "queued",
		"message": "File uploaded successfully, processing started",
	})
}

// JobsHandler exposes job status lookups.
type JobsHandler struct {
	registry *queue.Registry
}

// NewJobsHandler creates a job status handler over the registry.
func NewJobsHandler(registry *queue.Registry) *JobsHandler {
	return &JobsHandler{registry: registry}
}

// Get returns one job's snapshot.
func (h *JobsHandler) Get(c *fiber.Ctx) error {
	view, ok := h.registry.Snapshot(c.Params("id"))
	if !ok {
		return c.Status(404).JSON(fiber.Map{
			"error": "Job not found",
			"code":  "ERR_JOB_NOT_FOUND",
		})
	}
	return c.JSON(view)
}

// List returns all known jobs, newest first.
func (h *JobsHandler) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"jobs": h.registry.List()})
}
