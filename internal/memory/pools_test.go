package memory

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/codebuildervaibhav/voice-transcription/internal/storage"
	"github.com/codebuildervaibhav/voice-transcription/internal/types"
)

func newTestKV(t *testing.T) *storage.KV {
	t.Helper()
	kv := storage.OpenKV(filepath.Join(t.TempDir(), "kv.db"))
	t.Cleanup(func() { kv.Close() })
	return kv
}

func TestAppendCreatesPoolOnDemand(t *testing.T) {
	s := NewStore(newTestKV(t))

	mem, err := s.Append("Work", "first note")
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if mem != "first note" {
		t.Errorf("memory = %q", mem)
	}

	mem, err = s.Append("Work", "second note")
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if mem != "first note\nsecond note" {
		t.Errorf("memory = %q, want newline-joined entries", mem)
	}
}

func TestAppendTruncatesFromHead(t *testing.T) {
	s := NewStore(newTestKV(t))

	old := strings.Repeat("a", 4000)
	recent := strings.Repeat("b", 2000)

	if _, err := s.Append("Work", old); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	mem, err := s.Append("Work", recent)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if len(mem) != 5000 {
		t.Fatalf("memory length = %d, want 5000", len(mem))
	}
	if !strings.HasSuffix(mem, recent) {
		t.Errorf("newest content was truncated instead of oldest")
	}
	if strings.HasPrefix(mem, old) {
		t.Errorf("oldest content survived truncation intact")
	}
}

func TestGetUnknownPoolIsEmpty(t *testing.T) {
	s := NewStore(newTestKV(t))

	mem, err := s.Get("Nowhere")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if mem != "" {
		t.Errorf("memory = %q, want empty", mem)
	}
}

func TestCreatePoolDuplicate(t *testing.T) {
	s := NewStore(newTestKV(t))

	if err := s.CreatePool("Work"); err != nil {
		t.Fatalf("CreatePool failed: %v", err)
	}
	if err := s.CreatePool("Work"); !errors.Is(err, types.ErrDuplicateName) {
		t.Fatalf("error = %v, want ErrDuplicateName", err)
	}
}

func TestEnsureDefaultSeedsGeneralOnce(t *testing.T) {
	s := NewStore(newTestKV(t))

	s.EnsureDefault()
	if s.Count() != 1 {
		t.Fatalf("pool count = %d, want 1", s.Count())
	}
	if _, err := s.Append(DefaultPool, "kept"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// A second call must not wipe existing pools.
	s.EnsureDefault()
	mem, _ := s.Get(DefaultPool)
	if mem != "kept" {
		t.Errorf("EnsureDefault clobbered existing memory: %q", mem)
	}
}

func TestMigrateLegacy(t *testing.T) {
	legacyPath := filepath.Join(t.TempDir(), "memory.json")
	legacy := map[string]string{
		"General": "old general notes",
		"Work":    strings.Repeat("w", 6000),
	}
	data, _ := json.Marshal(legacy)
	if err := os.WriteFile(legacyPath, data, 0644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(newTestKV(t))
	if err := s.MigrateLegacy(legacyPath); err != nil {
		t.Fatalf("MigrateLegacy failed: %v", err)
	}

	mem, _ := s.Get("General")
	if mem != "old general notes" {
		t.Errorf("General memory = %q", mem)
	}
	workMem, _ := s.Get("Work")
	if len(workMem) != 5000 {
		t.Errorf("migrated memory not truncated: %d chars", len(workMem))
	}

	// Second migration is a no-op once pools exist.
	if _, err := s.Append("General", "newer"); err != nil {
		t.Fatal(err)
	}
	if err := s.MigrateLegacy(legacyPath); err != nil {
		t.Fatalf("repeat MigrateLegacy failed: %v", err)
	}
	mem, _ = s.Get("General")
	if !strings.Contains(mem, "newer") {
		t.Errorf("repeat migration overwrote live memory: %q", mem)
	}
}

func TestMigrateLegacyMissingFile(t *testing.T) {
	s := NewStore(newTestKV(t))
	if err := s.MigrateLegacy(filepath.Join(t.TempDir(), "absent.json")); err != nil {
		t.Fatalf("missing legacy file should be silent, got %v", err)
	}
}
