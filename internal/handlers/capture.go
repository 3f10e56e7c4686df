package handlers

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/codebuildervaibhav/voice-transcription/internal/config"
	"github.com/codebuildervaibhav/voice-transcription/internal/queue"
	"github.com/codebuildervaibhav/voice-transcription/internal/types"
)

const captureTimeout = 30 * time.Minute

// CaptureHandler records audio from a web page URL (YouTube and
// similar) and feeds it into the transcription queue.
type CaptureHandler struct {
	workerPool *queue.WorkerPool
	cfg        *config.Config
}

// NewCaptureHandler creates a new page-capture handler.
func NewCaptureHandler(workerPool *queue.WorkerPool, cfg *config.Config) *CaptureHandler {
	return &CaptureHandler{workerPool: workerPool, cfg: cfg}
}

// CaptureRequest is the request body for POST /capture.
type CaptureRequest struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// Handle starts an asynchronous capture. The download can take minutes
// for long videos, so the job ID is returned immediately.
func (h *CaptureHandler) Handle(c *fiber.Ctx) error {
	var req CaptureRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
			"code":  "ERR_INVALID_BODY",
		})
	}

	if req.URL == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "URL is required",
			"code":  "ERR_NO_URL",
		})
	}

	jobID := uuid.New().String()
	settings := settingsFromForm(func(key string) string { return c.Query(key) }, h.cfg)

	go h.capture(jobID, req, settings)

	return c.JSON(fiber.Map{
		"job_id":  jobID,
		"status":  "capturing",
		"message": "Page audio capture started (this may take a few minutes for long videos)",
	})
}

// capture downloads the page audio, then enqueues the transcription job.
func (h *CaptureHandler) capture(jobID string, req CaptureRequest, settings types.Settings) {
	name := req.Name
	if name == "" {
		if title := h.pageTitle(req.URL); title != "" {
			name = title
		} else {
			name = "captured_page"
		}
	}

	tempPath := filepath.Join(h.cfg.Storage.TempDir, fmt.Sprintf("%s.opus", jobID))
	if err := h.downloadAudio(req.URL, tempPath); err != nil {
		log.Printf("Failed to capture page audio for job %s: %v", jobID, err)
		return
	}
	defer os.Remove(tempPath)

	data, err := os.ReadFile(tempPath)
	if err != nil {
		log.Printf("Failed to read captured audio for job %s: %v", jobID, err)
		return
	}

	job := queue.NewJob(jobID, name, types.SourceCapture,
		types.AudioBlob{Data: data, MIME: "audio/ogg"}, settings)
	h.workerPool.EnqueueJob(job)
}

// pageTitle loads the page in headless Chrome and reads its title, used
// to name captures when the client did not supply one.
func (h *CaptureHandler) pageTitle(url string) string {
	ctx, cancel := chromedp.NewContext(context.Background())
	defer cancel()
	ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var title string
	err := chromedp.Run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Evaluate(`document.title`, &title, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
	)
	if err != nil {
		log.Printf("Could not resolve page title for %s: %v", url, err)
		return ""
	}
	return strings.TrimSpace(title)
}

// downloadAudio extracts the page's audio track with yt-dlp.
func (h *CaptureHandler) downloadAudio(url, outputPath string) error {
	ctx, cancel := context.WithTimeout(context.Background(), captureTimeout)
	defer cancel()

	log.Printf("Using yt-dlp to download: %s", url)

	cmd := exec.CommandContext(ctx, "yt-dlp",
		"-x",
		"--audio-format", "opus",
		"-o", outputPath,
		url,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("yt-dlp failed: %v\nOutput: %s", err, string(output))
	}

	log.Printf("Page audio downloaded successfully")
	return nil
}
