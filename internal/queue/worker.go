package queue

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"github.com/codebuildervaibhav/voice-transcription/internal/orchestrator"
	"github.com/codebuildervaibhav/voice-transcription/internal/storage"
	"github.com/codebuildervaibhav/voice-transcription/internal/types"
)

const jobQueueDepth = 100

// WorkerPool manages a pool of workers processing transcription jobs.
type WorkerPool struct {
	jobQueue     chan *Job
	workerCount  int
	registry     *Registry
	orch         *orchestrator.Orchestrator
	localStorage *storage.LocalStorage
	driveClient  *storage.DriveClient
	db           *storage.MetadataDB
}

// NewWorkerPool creates a new worker pool. driveClient and db may be
// nil; the corresponding persistence steps are skipped.
func NewWorkerPool(
	workerCount int,
	registry *Registry,
	orch *orchestrator.Orchestrator,
	localStorage *storage.LocalStorage,
	driveClient *storage.DriveClient,
	db *storage.MetadataDB,
) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &WorkerPool{
		jobQueue:     make(chan *Job, jobQueueDepth),
		workerCount:  workerCount,
		registry:     registry,
		orch:         orch,
		localStorage: localStorage,
		driveClient:  driveClient,
		db:           db,
	}
}

// Start initializes all workers.
func (wp *WorkerPool) Start() {
	log.Printf("Starting worker pool with %d workers", wp.workerCount)
	for i := 0; i < wp.workerCount; i++ {
		go wp.worker(i)
	}
}

// EnqueueJob registers the job and adds it to the queue.
func (wp *WorkerPool) EnqueueJob(job *Job) {
	job.Status = types.StatusQueued
	wp.registry.Add(job)
	wp.jobQueue <- job
	log.Printf("Job %s enqueued (source: %s, name: %s, %d bytes)",
		job.ID, job.SourceType, job.RequestName, job.Blob.Size())
}

// worker processes jobs from the queue.
func (wp *WorkerPool) worker(id int) {
	log.Printf("Worker %d started", id)

	for job := range wp.jobQueue {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("Worker %d: PANIC processing job %s: %v\n%s",
						id, job.ID, r, string(debug.Stack()))
					wp.registry.update(job.ID, func(j *Job) {
						j.Status = types.StatusFailed
						j.Error = fmt.Sprintf("worker panic: %v", r)
						j.CompletedAt = time.Now()
					})
				}
			}()

			wp.processJob(id, job)
		}()
	}
}

// processJob runs the full pipeline for one job and persists the result.
func (wp *WorkerPool) processJob(workerID int, job *Job) {
	log.Printf("Worker %d: Processing job %s", workerID, job.ID)
	wp.registry.update(job.ID, func(j *Job) { j.Status = types.StatusProcessing })

	outcome, err := wp.orch.Process(context.Background(), job.Blob, job.Settings)
	if err != nil {
		log.Printf("Worker %d: Transcription failed for job %s: %v", workerID, job.ID, err)
		wp.registry.update(job.ID, func(j *Job) {
			j.Status = types.StatusFailed
			j.Error = err.Error()
			j.CompletedAt = time.Now()
		})
		return
	}

	rec := storage.TranscriptRecord{
		JobID:       job.ID,
		RequestName: job.RequestName,
		SourceType:  job.SourceType,
		Backend:     outcome.Backend,
		Result:      outcome.Result,
		Stats:       outcome.Stats,
		Metrics:     outcome.Metrics,
		CreatedAt:   time.Now(),
	}

	localPath, err := wp.localStorage.SaveTranscript(rec)
	if err != nil {
		log.Printf("Worker %d: Local save failed for job %s: %v", workerID, job.ID, err)
		wp.registry.update(job.ID, func(j *Job) {
			j.Status = types.StatusFailed
			j.Error = fmt.Sprintf("local save failed: %v", err)
			j.Outcome = outcome
			j.CompletedAt = time.Now()
		})
		return
	}

	var driveURL string
	if wp.driveClient != nil {
		for attempt := 1; attempt <= 3; attempt++ {
			driveURL, err = wp.driveClient.Upload(rec)
			if err == nil {
				rec.GDriveURL = driveURL
				break
			}
			log.Printf("Worker %d: Google Drive upload attempt %d/3 failed: %v", workerID, attempt, err)
			if attempt < 3 {
				time.Sleep(time.Duration(attempt*attempt) * time.Second)
			}
		}
		if err != nil {
			log.Printf("Worker %d: WARNING - Google Drive upload failed after 3 attempts, continuing with local save only", workerID)
		}
	}

	if wp.db != nil {
		meta := storage.TranscriptMeta{
			JobID:       job.ID,
			RequestName: job.RequestName,
			SourceType:  job.SourceType,
			Backend:     outcome.Backend,
			Style:       outcome.Stats.AppliedStyle,
			GDriveURL:   driveURL,
			LocalPath:   localPath,
			CreatedAt:   rec.CreatedAt,
			Duration:    outcome.Stats.AudioDurationSeconds,
			WordCount:   outcome.Stats.WordCount,
		}
		if outcome.Metrics != nil {
			meta.Clarity = outcome.Metrics.ClarityScore
		}
		if err := wp.db.SaveTranscript(meta); err != nil {
			log.Printf("Worker %d: Database save failed: %v", workerID, err)
		}
	}

	wp.registry.update(job.ID, func(j *Job) {
		j.Status = types.StatusCompleted
		j.Outcome = outcome
		j.LocalPath = localPath
		j.GDriveURL = driveURL
		j.CompletedAt = time.Now()
	})
	log.Printf("Worker %d: Job %s completed via %s backend (local: %s)",
		workerID, job.ID, outcome.Backend, localPath)
}
