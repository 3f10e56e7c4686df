package handlers

import (
	"os"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/voice-transcription/internal/backend"
	"github.com/codebuildervaibhav/voice-transcription/internal/orchestrator"
	"github.com/codebuildervaibhav/voice-transcription/internal/storage"
)

// SystemHandler serves health, synthesis and transcript lookups.
type SystemHandler struct {
	health *orchestrator.HealthCache
	local  *backend.LocalClient
	cloud  *backend.CloudClient
	db     *storage.MetadataDB
}

// NewSystemHandler creates the system endpoints handler. db may be nil.
func NewSystemHandler(health *orchestrator.HealthCache, local *backend.LocalClient, cloud *backend.CloudClient, db *storage.MetadataDB) *SystemHandler {
	return &SystemHandler{health: health, local: local, cloud: cloud, db: db}
}

// Health reports the server plus both transcription backends.
func (h *SystemHandler) Health(c *fiber.Ctx) error {
	report, checkedAt := h.health.Snapshot()

	sidecar := fiber.Map{"available": false}
	if report != nil {
		sidecar = fiber.Map{
			"available": report.Status == "healthy",
			"status":    report.Status,
			"version":   report.Version,
			"models":    report.Models,
		}
	} else if reason, at := h.local.LastFailure(); reason != "" {
		sidecar["error"] = reason
		sidecar["failed_at"] = at.Format(time.RFC3339)
	}
	if !checkedAt.IsZero() {
		sidecar["checked_at"] = checkedAt.Format(time.RFC3339)
	}

	return c.JSON(fiber.Map{
		"status":  "healthy",
		"version": "1.0.0",
		"sidecar": sidecar,
		"cloud": fiber.Map{
			"configured": h.cloud.Configured(),
		},
	})
}

// Synthesize proxies text-to-speech requests to the sidecar and streams
// the audio back.
func (h *SystemHandler) Synthesize(c *fiber.Ctx) error {
	var req backend.SynthesizeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
			"code":  "ERR_INVALID_BODY",
		})
	}
	if req.Text == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "Text is required",
			"code":  "ERR_NO_TEXT",
		})
	}

	audio, err := h.local.Synthesize(c.Context(), req)
	if err != nil {
		return c.Status(502).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "ERR_SYNTHESIS_FAILED",
		})
	}

	c.Set("Content-Type", "audio/wav")
	return c.Send(audio)
}

// Transcripts lists saved transcript metadata.
func (h *SystemHandler) Transcripts(c *fiber.Ctx) error {
	if h.db == nil {
		return c.JSON([]storage.TranscriptMeta{})
	}
	limit := c.QueryInt("limit", 50)
	transcripts, err := h.db.ListTranscripts(limit)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(transcripts)
}

// TranscriptText returns the raw text of one saved transcript.
func (h *SystemHandler) TranscriptText(c *fiber.Ctx) error {
	if h.db == nil {
		return c.Status(404).JSON(fiber.Map{"error": "Transcript not found"})
	}

	transcript, err := h.db.GetTranscript(c.Params("id"))
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "Transcript not found"})
	}
	if transcript.LocalPath == "" {
		return c.Status(404).JSON(fiber.Map{"error": "Transcript file path not found"})
	}

	content, err := os.ReadFile(transcript.LocalPath)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to read transcript file"})
	}
	return c.SendString(string(content))
}
