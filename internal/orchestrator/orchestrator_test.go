package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/codebuildervaibhav/voice-transcription/internal/analysis"
	"github.com/codebuildervaibhav/voice-transcription/internal/backend"
	"github.com/codebuildervaibhav/voice-transcription/internal/memory"
	"github.com/codebuildervaibhav/voice-transcription/internal/prompt"
	"github.com/codebuildervaibhav/voice-transcription/internal/storage"
	"github.com/codebuildervaibhav/voice-transcription/internal/types"
)

func testBlob() types.AudioBlob {
	return types.AudioBlob{Data: []byte("not-real-audio-bytes"), MIME: "audio/webm"}
}

type testEnv struct {
	orch *Orchestrator
	mem  *memory.Store
	hist *memory.History
}

func newTestEnv(t *testing.T, localURL, cloudURL, apiKey string) *testEnv {
	t.Helper()
	kv := storage.OpenKV(filepath.Join(t.TempDir(), "kv.db"))
	t.Cleanup(func() { kv.Close() })

	mem := memory.NewStore(kv)
	hist := memory.NewHistory(kv)
	pstore := prompt.NewStore(kv)
	resolver := prompt.NewResolver(pstore, mem)

	local := backend.NewLocalClient(localURL, 2*time.Second)
	cloud := backend.NewCloudClient(apiKey, cloudURL, "gemini-2.0-flash")
	analyzer := analysis.New(t.TempDir())

	return &testEnv{
		orch: New(local, cloud, resolver, mem, hist, analyzer, nil),
		mem:  mem,
		hist: hist,
	}
}

func cloudServer(t *testing.T, text string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
			},
		})
	}))
}

func localServer(t *testing.T, result types.TranscriptionResult) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcribe" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(result)
	}))
}

func TestProcessCloudEndToEnd(t *testing.T) {
	cloud := cloudServer(t, "  hello world from cloud  ")
	defer cloud.Close()

	env := newTestEnv(t, "http://127.0.0.1:1", cloud.URL, "test-key")
	out, err := env.orch.Process(context.Background(), testBlob(), types.Settings{
		Mode: types.ModeCloud, Style: "verbatim",
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if out.Backend != "cloud" || out.UsedFallback {
		t.Fatalf("expected direct cloud run, got backend=%q fallback=%v", out.Backend, out.UsedFallback)
	}
	if out.Result.Text != "hello world from cloud" {
		t.Errorf("text not trimmed: %q", out.Result.Text)
	}
	if out.Stats.WordCount != 4 {
		t.Errorf("word count = %d, want 4", out.Stats.WordCount)
	}
	if out.Stats.CharCount != len("hello world from cloud") {
		t.Errorf("char count = %d", out.Stats.CharCount)
	}
	if out.Stats.ReadingTime != "1 min" {
		t.Errorf("reading time = %q", out.Stats.ReadingTime)
	}
	if out.Stats.AppliedStyle != "Verbatim" {
		t.Errorf("applied style = %q", out.Stats.AppliedStyle)
	}
	if out.Stats.InputSizeBytes != len(testBlob().Data) {
		t.Errorf("input size = %d", out.Stats.InputSizeBytes)
	}

	if env.hist.Len() != 1 {
		t.Fatalf("history length = %d, want 1", env.hist.Len())
	}
	if env.hist.Items()[0].Text != "hello world from cloud" {
		t.Errorf("history text = %q", env.hist.Items()[0].Text)
	}

	mem, err := env.mem.Get(memory.DefaultPool)
	if err != nil {
		t.Fatalf("Get pool: %v", err)
	}
	if !strings.HasSuffix(mem, "hello world from cloud") {
		t.Errorf("pool memory does not end with transcript: %q", mem)
	}
}

func TestProcessLocalMode(t *testing.T) {
	local := localServer(t, types.TranscriptionResult{Text: "raw local words", Duration: 2.5})
	defer local.Close()

	env := newTestEnv(t, local.URL, "http://127.0.0.1:1", "")
	out, err := env.orch.Process(context.Background(), testBlob(), types.Settings{
		Mode: types.ModeLocal, Style: "verbatim",
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if out.Backend != "local" {
		t.Fatalf("backend = %q, want local", out.Backend)
	}
	if out.Result.Text != "raw local words" {
		t.Errorf("text = %q", out.Result.Text)
	}
	if out.Stats.AudioDurationSeconds != 2.5 {
		t.Errorf("duration = %v, want sidecar-reported 2.5", out.Stats.AudioDurationSeconds)
	}
}

func TestProcessPrefersSidecarRefinedText(t *testing.T) {
	ok := true
	local := localServer(t, types.TranscriptionResult{
		Text:            "raw words",
		RefinedText:     "polished words",
		RefineSucceeded: &ok,
	})
	defer local.Close()

	// Cloud must not be contacted on a successful sidecar round trip.
	cloud := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("cloud backend contacted during successful local run")
		http.Error(w, "unexpected", http.StatusInternalServerError)
	}))
	defer cloud.Close()

	env := newTestEnv(t, local.URL, cloud.URL, "test-key")
	out, err := env.orch.Process(context.Background(), testBlob(), types.Settings{
		Mode: types.ModeLocal, Style: "concise",
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if out.Result.Text != "polished words" {
		t.Errorf("text = %q, want refined text", out.Result.Text)
	}
}

func TestProcessFallbackToCloud(t *testing.T) {
	local := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"model not loaded"}`, http.StatusInternalServerError)
	}))
	defer local.Close()
	cloud := cloudServer(t, "rescued by cloud")
	defer cloud.Close()

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	env := newTestEnv(t, local.URL, cloud.URL, "test-key")
	out, err := env.orch.Process(context.Background(), testBlob(), types.Settings{
		Mode: types.ModeLocal, Style: "verbatim",
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if out.Backend != "cloud" || !out.UsedFallback {
		t.Fatalf("expected fallback to cloud, got backend=%q fallback=%v", out.Backend, out.UsedFallback)
	}
	if out.Result.Text != "rescued by cloud" {
		t.Errorf("text = %q", out.Result.Text)
	}
	if n := strings.Count(buf.String(), "falling back to cloud"); n != 1 {
		t.Errorf("fallback logged %d times, want exactly 1", n)
	}
}

func TestProcessLocalFailureWithoutCredential(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1", "http://127.0.0.1:1", "")
	_, err := env.orch.Process(context.Background(), testBlob(), types.Settings{
		Mode: types.ModeLocal, Style: "verbatim",
	})
	if !errors.Is(err, types.ErrNoBackendAvailable) {
		t.Fatalf("error = %v, want ErrNoBackendAvailable", err)
	}
	if env.hist.Len() != 0 {
		t.Errorf("history recorded a failed run")
	}
}

func TestProcessCloudModeWithoutCredential(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1", "http://127.0.0.1:1", "")
	_, err := env.orch.Process(context.Background(), testBlob(), types.Settings{
		Mode: types.ModeCloud, Style: "verbatim",
	})
	if !errors.Is(err, types.ErrMissingCredential) {
		t.Fatalf("error = %v, want ErrMissingCredential", err)
	}
}

func TestProcessUnknownStyle(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1", "http://127.0.0.1:1", "")
	_, err := env.orch.Process(context.Background(), testBlob(), types.Settings{
		Mode: types.ModeLocal, Style: "no-such-style",
	})
	if !errors.Is(err, types.ErrUnknownStyle) {
		t.Fatalf("error = %v, want ErrUnknownStyle", err)
	}
}

func TestProcessCloudFailureWrapped(t *testing.T) {
	cloud := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"quota exceeded"}}`, http.StatusTooManyRequests)
	}))
	defer cloud.Close()

	env := newTestEnv(t, "http://127.0.0.1:1", cloud.URL, "test-key")
	_, err := env.orch.Process(context.Background(), testBlob(), types.Settings{
		Mode: types.ModeCloud, Style: "verbatim",
	})
	var tfe *types.TranscriptionFailedError
	if !errors.As(err, &tfe) {
		t.Fatalf("error = %v, want TranscriptionFailedError", err)
	}
	var rle *types.RateLimitOrServerError
	if !errors.As(err, &rle) {
		t.Fatalf("cause = %v, want RateLimitOrServerError", tfe.Cause)
	}
}

func TestProcessAutoPrefersHealthySidecar(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(backend.HealthReport{Status: "healthy"})
	})
	mux.HandleFunc("/transcribe", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(types.TranscriptionResult{Text: "from sidecar"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	kv := storage.OpenKV(filepath.Join(t.TempDir(), "kv.db"))
	defer kv.Close()
	mem := memory.NewStore(kv)
	pstore := prompt.NewStore(kv)
	local := backend.NewLocalClient(srv.URL, 2*time.Second)
	hc := NewHealthCache(local, time.Hour)
	hc.Refresh(context.Background())
	if !hc.Healthy() {
		t.Fatal("health cache did not record healthy sidecar")
	}

	orch := New(local, backend.NewCloudClient("test-key", "http://127.0.0.1:1", "m"),
		prompt.NewResolver(pstore, mem), mem, memory.NewHistory(kv), analysis.New(t.TempDir()), hc)

	out, err := orch.Process(context.Background(), testBlob(), types.Settings{
		Mode: types.ModeAuto, Style: "verbatim",
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if out.Backend != "local" {
		t.Errorf("auto mode with healthy sidecar chose %q", out.Backend)
	}
}

func TestProcessAutoUnhealthyGoesToCloud(t *testing.T) {
	cloud := cloudServer(t, "cloud answer")
	defer cloud.Close()

	env := newTestEnv(t, "http://127.0.0.1:1", cloud.URL, "test-key")
	out, err := env.orch.Process(context.Background(), testBlob(), types.Settings{
		Mode: types.ModeAuto, Style: "verbatim",
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if out.Backend != "cloud" {
		t.Errorf("auto mode with no probe chose %q", out.Backend)
	}
	if out.UsedFallback {
		t.Errorf("direct cloud dispatch should not count as fallback")
	}
}
