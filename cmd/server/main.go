package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/codebuildervaibhav/voice-transcription/internal/analysis"
	"github.com/codebuildervaibhav/voice-transcription/internal/backend"
	"github.com/codebuildervaibhav/voice-transcription/internal/cleanup"
	"github.com/codebuildervaibhav/voice-transcription/internal/config"
	"github.com/codebuildervaibhav/voice-transcription/internal/handlers"
	"github.com/codebuildervaibhav/voice-transcription/internal/memory"
	"github.com/codebuildervaibhav/voice-transcription/internal/orchestrator"
	"github.com/codebuildervaibhav/voice-transcription/internal/prompt"
	"github.com/codebuildervaibhav/voice-transcription/internal/queue"
	"github.com/codebuildervaibhav/voice-transcription/internal/storage"
)

func main() {
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ensure directories exist
	if err := cleanup.EnsureTempDirExists(cfg.Storage.TempDir); err != nil {
		log.Fatalf("Failed to create temp directory: %v", err)
	}
	if err := os.MkdirAll(cfg.Storage.OutputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	if dir := filepath.Dir(cfg.Storage.Database); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create database directory: %v", err)
		}
	}

	// Custom logger setup
	logBuffer := &LogBuffer{
		lines: make([]string, 0, 1000),
	}
	multiWriter := io.MultiWriter(os.Stdout, logBuffer)
	log.SetOutput(multiWriter)

	log.Println("Initializing components...")

	// Key-value store backing templates, context pools and history.
	// Runs degraded (in-memory builtins, no persistence) if unavailable.
	kv := storage.OpenKV(cfg.Storage.Database)
	defer kv.Close()

	memoryStore := memory.NewStore(kv)
	if cfg.Storage.LegacyFile != "" {
		if err := memoryStore.MigrateLegacy(cfg.Storage.LegacyFile); err != nil {
			log.Printf("WARNING: legacy memory migration failed: %v", err)
		}
	}
	memoryStore.EnsureDefault()

	history := memory.NewHistory(kv)
	templateStore := prompt.NewStore(kv)
	resolver := prompt.NewResolver(templateStore, memoryStore)

	// Transcription backends
	localClient := backend.NewLocalClient(cfg.Sidecar.BaseURL, cfg.SidecarTimeout())
	cloudClient := backend.NewCloudClient(cfg.Cloud.APIKey, cfg.Cloud.BaseURL, cfg.Cloud.Model)
	if !cloudClient.Configured() {
		log.Println("No cloud API key configured - cloud transcription and fallback disabled")
	}

	healthCache := orchestrator.NewHealthCache(localClient, 0)
	healthCache.Start()
	defer healthCache.Stop()

	analyzer := analysis.New(cfg.Storage.TempDir)

	orch := orchestrator.New(localClient, cloudClient, resolver, memoryStore, history, analyzer, healthCache)

	// Local transcript storage
	localStorage := storage.NewLocalStorage(cfg.Storage.OutputDir)

	// Google Drive client (optional - may fail if credentials not set up)
	var driveClient *storage.DriveClient
	if _, err := os.Stat(cfg.GoogleDrive.CredentialsFile); err == nil {
		driveClient, err = storage.NewDriveClient(
			context.Background(),
			cfg.GoogleDrive.CredentialsFile,
			cfg.GoogleDrive.TokenFile,
			cfg.GoogleDrive.FolderName,
		)
		if err != nil {
			log.Printf("WARNING: Google Drive not available: %v", err)
			log.Println("Transcripts will only be saved locally")
			driveClient = nil
		} else {
			log.Println("Google Drive integration enabled")
		}
	} else {
		log.Println("Google Drive credentials not found - saving locally only")
	}

	// Transcript metadata database
	db, err := storage.NewMetadataDB(cfg.Storage.Database)
	if err != nil {
		log.Printf("WARNING: metadata database unavailable: %v", err)
		db = nil
	} else {
		defer db.Close()
	}

	// Worker pool
	registry := queue.NewRegistry()
	workerPool := queue.NewWorkerPool(
		cfg.Workers.Count,
		registry,
		orch,
		localStorage,
		driveClient,
		db,
	)
	workerPool.Start()

	// Cleanup scheduler
	cleanupScheduler := cleanup.NewScheduler(
		cfg.Storage.TempDir,
		cfg.Cleanup.IntervalMinutes,
		cfg.Cleanup.MaxAgeHours,
	)
	cleanupScheduler.Start()
	defer cleanupScheduler.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: cfg.Limits.MaxFileSizeMB * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	// Initialize handlers
	transcribeHandler := handlers.NewTranscribeHandler(workerPool, cfg)
	jobsHandler := handlers.NewJobsHandler(registry)
	streamHandler := handlers.NewStreamHandler(workerPool, cfg)
	captureHandler := handlers.NewCaptureHandler(workerPool, cfg)
	templatesHandler := handlers.NewTemplatesHandler(templateStore)
	poolsHandler := handlers.NewPoolsHandler(memoryStore, history)
	systemHandler := handlers.NewSystemHandler(healthCache, localClient, cloudClient, db)

	// Routes
	app.Get("/health", systemHandler.Health)

	app.Post("/transcribe", transcribeHandler.Handle)
	app.Post("/capture", captureHandler.Handle)
	app.Post("/synthesize", systemHandler.Synthesize)

	app.Get("/jobs", jobsHandler.List)
	app.Get("/jobs/:id", jobsHandler.Get)

	// WebSocket route
	app.Get("/ws/stream", websocket.New(streamHandler.Handle))

	// Prompt templates
	app.Get("/templates", templatesHandler.List)
	app.Post("/templates", templatesHandler.Create)
	app.Get("/templates/:id", templatesHandler.Get)
	app.Put("/templates/:id", templatesHandler.Update)
	app.Delete("/templates/:id", templatesHandler.Delete)
	app.Post("/templates/:id/duplicate", templatesHandler.Duplicate)
	app.Post("/templates/:id/reset", templatesHandler.Reset)

	// Context pools and history
	app.Get("/pools", poolsHandler.List)
	app.Post("/pools", poolsHandler.Create)
	app.Get("/pools/:name", poolsHandler.Get)
	app.Get("/history", poolsHandler.History)

	// Saved transcripts
	app.Get("/transcripts", systemHandler.Transcripts)
	app.Get("/transcripts/:id/text", systemHandler.TranscriptText)

	// Get server logs
	app.Get("/logs", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"logs": logBuffer.GetLogs(),
		})
	})

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	log.Println("Endpoints:")
	log.Println("   POST /transcribe  - Upload audio file")
	log.Println("   POST /capture     - Capture page audio")
	log.Println("   POST /synthesize  - Text to speech via sidecar")
	log.Println("   GET  /ws/stream   - WebSocket audio streaming")
	log.Println("   GET  /jobs/:id    - Job status")
	log.Println("   GET  /templates   - Prompt templates")
	log.Println("   GET  /pools       - Context pools")
	log.Println("   GET  /history     - Transcription history")
	log.Println("   GET  /transcripts - List saved transcripts")
	log.Println("   GET  /logs        - View server logs")
	log.Println("   GET  /health      - Health check")

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down gracefully...")
		app.Shutdown()
	}()

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// LogBuffer captures logs in memory
type LogBuffer struct {
	lines []string
	mu    sync.Mutex
}

func (lb *LogBuffer) Write(p []byte) (n int, err error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.lines = append(lb.lines, string(p))

	// Keep last 1000 lines
	if len(lb.lines) > 1000 {
		lb.lines = lb.lines[len(lb.lines)-1000:]
	}

	return len(p), nil
}

func (lb *LogBuffer) GetLogs() []string {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	logs := make([]string, len(lb.lines))
	copy(logs, lb.lines)
	return logs
}
