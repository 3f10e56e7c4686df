// Package queue holds the in-memory job queue and the worker pool that
// drains it. Jobs carry the audio payload itself; nothing is spooled to
// disk between enqueue and processing.
package queue

import (
	"sort"
	"sync"
	"time"

	"github.com/codebuildervaibhav/voice-transcription/internal/orchestrator"
	"github.com/codebuildervaibhav/voice-transcription/internal/types"
)

// Job represents one queued transcription request and its lifecycle.
type Job struct {
	ID          string
	RequestName string
	SourceType  string
	Blob        types.AudioBlob
	Settings    types.Settings

	Status      string
	Error       string
	Outcome     *orchestrator.Outcome
	LocalPath   string
	GDriveURL   string
	CreatedAt   time.Time
	CompletedAt time.Time
}

// NewJob creates a queued job.
func NewJob(id, requestName, sourceType string, blob types.AudioBlob, settings types.Settings) *Job {
	return &Job{
		ID:          id,
		RequestName: requestName,
		SourceType:  sourceType,
		Blob:        blob,
		Settings:    settings,
		Status:      types.StatusQueued,
		CreatedAt:   time.Now(),
	}
}

// JobView is the externally visible snapshot of a job.
type JobView struct {
	ID           string                     `json:"job_id"`
	RequestName  string                     `json:"request_name"`
	SourceType   string                     `json:"source_type"`
	Status       string                     `json:"status"`
	Error        string                     `json:"error,omitempty"`
	Result       *types.TranscriptionResult `json:"result,omitempty"`
	Metrics      *types.AudioMetrics        `json:"metrics,omitempty"`
	Stats        *types.ProcessingStats     `json:"stats,omitempty"`
	Backend      string                     `json:"backend,omitempty"`
	UsedFallback bool                       `json:"used_fallback,omitempty"`
	LocalPath    string                     `json:"local_path,omitempty"`
	GDriveURL    string                     `json:"gdrive_url,omitempty"`
	CreatedAt    time.Time                  `json:"created_at"`
	CompletedAt  *time.Time                 `json:"completed_at,omitempty"`
}

// Registry tracks jobs by ID so handlers can poll status while workers
// mutate them. All mutation goes through registry methods.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

// Add registers a job.
func (r *Registry) Add(job *Job) {
	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()
}

// Snapshot returns a copy of the job's visible state, or false when the
// ID is unknown.
func (r *Registry) Snapshot(id string) (JobView, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return JobView{}, false
	}
	return viewOf(job), true
}

// List returns snapshots of every known job, newest first.
func (r *Registry) List() []JobView {
	r.mu.RLock()
	defer r.mu.RUnlock()

	views := make([]JobView, 0, len(r.jobs))
	for _, job := range r.jobs {
		views = append(views, viewOf(job))
	}
	sort.Slice(views, func(i, j int) bool {
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})
	return views
}

// update applies fn under the registry lock.
func (r *Registry) update(id string, fn func(*Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		fn(job)
	}
}

func viewOf(job *Job) JobView {
	v := JobView{
		ID:          job.ID,
		RequestName: job.RequestName,
		SourceType:  job.SourceType,
		Status:      job.Status,
		Error:       job.Error,
		LocalPath:   job.LocalPath,
		GDriveURL:   job.GDriveURL,
		CreatedAt:   job.CreatedAt,
	}
	if job.Outcome != nil {
		result := job.Outcome.Result
		v.Result = &result
		v.Metrics = job.Outcome.Metrics
		stats := job.Outcome.Stats
		v.Stats = &stats
		v.Backend = job.Outcome.Backend
		v.UsedFallback = job.Outcome.UsedFallback
	}
	if !job.CompletedAt.IsZero() {
		completed := job.CompletedAt
		v.CompletedAt = &completed
	}
	return v
}
