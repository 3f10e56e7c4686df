package queue

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/codebuildervaibhav/voice-transcription/internal/analysis"
	"github.com/codebuildervaibhav/voice-transcription/internal/backend"
	"github.com/codebuildervaibhav/voice-transcription/internal/memory"
	"github.com/codebuildervaibhav/voice-transcription/internal/orchestrator"
	"github.com/codebuildervaibhav/voice-transcription/internal/prompt"
	"github.com/codebuildervaibhav/voice-transcription/internal/storage"
	"github.com/codebuildervaibhav/voice-transcription/internal/types"
)

func newTestPool(t *testing.T, localURL string) (*WorkerPool, *Registry, *storage.MetadataDB, string) {
	t.Helper()

	kv := storage.OpenKV(filepath.Join(t.TempDir(), "kv.db"))
	t.Cleanup(func() { kv.Close() })

	mem := memory.NewStore(kv)
	hist := memory.NewHistory(kv)
	pstore := prompt.NewStore(kv)

	orch := orchestrator.New(
		backend.NewLocalClient(localURL, 2*time.Second),
		backend.NewCloudClient("", "http://127.0.0.1:1", "m"),
		prompt.NewResolver(pstore, mem),
		mem, hist,
		analysis.New(t.TempDir()),
		nil,
	)

	db, err := storage.NewMetadataDB(filepath.Join(t.TempDir(), "meta.db"))
	if err != nil {
		t.Fatalf("NewMetadataDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	outputDir := t.TempDir()
	registry := NewRegistry()
	pool := NewWorkerPool(1, registry, orch, storage.NewLocalStorage(outputDir), nil, db)
	return pool, registry, db, outputDir
}

func waitForTerminal(t *testing.T, registry *Registry, jobID string) JobView {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		view, ok := registry.Snapshot(jobID)
		if ok && (view.Status == types.StatusCompleted || view.Status == types.StatusFailed) {
			return view
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal state", jobID)
	return JobView{}
}

func TestWorkerCompletesJob(t *testing.T) {
	local := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(types.TranscriptionResult{Text: "stand up notes", Duration: 3})
	}))
	defer local.Close()

	pool, registry, db, _ := newTestPool(t, local.URL)
	pool.Start()

	job := NewJob("job-1", "standup", types.SourceUpload,
		types.AudioBlob{Data: []byte("bytes"), MIME: "audio/webm"},
		types.Settings{Mode: types.ModeLocal, Style: "verbatim"})
	pool.EnqueueJob(job)

	view := waitForTerminal(t, registry, "job-1")
	if view.Status != types.StatusCompleted {
		t.Fatalf("status = %s (error: %s)", view.Status, view.Error)
	}
	if view.Result == nil || view.Result.Text != "stand up notes" {
		t.Fatalf("result = %+v", view.Result)
	}
	if view.Backend != "local" {
		t.Errorf("backend = %q", view.Backend)
	}
	if view.LocalPath == "" {
		t.Fatal("transcript was not saved locally")
	}
	content, err := os.ReadFile(view.LocalPath)
	if err != nil {
		t.Fatalf("reading saved transcript: %v", err)
	}
	if string(content) != "stand up notes" {
		t.Errorf("saved transcript = %q", content)
	}

	meta, err := db.GetTranscript("job-1")
	if err != nil {
		t.Fatalf("metadata row missing: %v", err)
	}
	if meta.WordCount != 3 || meta.Backend != "local" {
		t.Errorf("metadata = %+v", meta)
	}
}

func TestWorkerRecordsFailure(t *testing.T) {
	// No sidecar, no cloud credential: the job must fail cleanly.
	pool, registry, _, _ := newTestPool(t, "http://127.0.0.1:1")
	pool.Start()

	job := NewJob("job-2", "doomed", types.SourceUpload,
		types.AudioBlob{Data: []byte("bytes"), MIME: "audio/webm"},
		types.Settings{Mode: types.ModeLocal, Style: "verbatim"})
	pool.EnqueueJob(job)

	view := waitForTerminal(t, registry, "job-2")
	if view.Status != types.StatusFailed {
		t.Fatalf("status = %s, want FAILED", view.Status)
	}
	if view.Error == "" {
		t.Error("failed job carries no error message")
	}
	if view.Result != nil {
		t.Error("failed job carries a result")
	}
}

func TestRegistryUnknownJob(t *testing.T) {
	registry := NewRegistry()
	if _, ok := registry.Snapshot("ghost"); ok {
		t.Error("unknown job reported as present")
	}
}

func TestRegistryListNewestFirst(t *testing.T) {
	registry := NewRegistry()

	first := NewJob("a", "one", types.SourceUpload, types.AudioBlob{}, types.Settings{})
	first.CreatedAt = time.Now().Add(-time.Minute)
	second := NewJob("b", "two", types.SourceUpload, types.AudioBlob{}, types.Settings{})
	registry.Add(first)
	registry.Add(second)

	views := registry.List()
	if len(views) != 2 {
		t.Fatalf("list length = %d", len(views))
	}
	if views[0].ID != "b" || views[1].ID != "a" {
		t.Errorf("order = %s, %s; want newest first", views[0].ID, views[1].ID)
	}
}
