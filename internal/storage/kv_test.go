package storage

import (
	"path/filepath"
	"testing"
)

func TestKVPutGetDelete(t *testing.T) {
	kv := OpenKV(filepath.Join(t.TempDir(), "kv.db"))
	defer kv.Close()

	if !kv.Available() {
		t.Fatal("store not available")
	}

	if err := kv.Put("pools", "General", "notes"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	v, ok := kv.Get("pools", "General")
	if !ok || v != "notes" {
		t.Fatalf("Get = (%q, %v)", v, ok)
	}

	// Upsert replaces.
	if err := kv.Put("pools", "General", "newer notes"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if v, _ := kv.Get("pools", "General"); v != "newer notes" {
		t.Errorf("Get after upsert = %q", v)
	}

	if err := kv.Delete("pools", "General"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := kv.Get("pools", "General"); ok {
		t.Error("key still present after delete")
	}
	// Deleting a missing key is not an error.
	if err := kv.Delete("pools", "General"); err != nil {
		t.Errorf("repeat delete failed: %v", err)
	}
}

func TestKVStoresAreIsolated(t *testing.T) {
	kv := OpenKV(filepath.Join(t.TempDir(), "kv.db"))
	defer kv.Close()

	kv.Put("pools", "a", "1")
	kv.Put("templates", "a", "2")
	kv.Put("templates", "b", "3")

	if n := kv.Count("pools"); n != 1 {
		t.Errorf("pools count = %d, want 1", n)
	}
	if n := kv.Count("templates"); n != 2 {
		t.Errorf("templates count = %d, want 2", n)
	}
	all := kv.GetAll("templates")
	if len(all) != 2 || all["a"] != "2" || all["b"] != "3" {
		t.Errorf("GetAll = %v", all)
	}
}

func TestKVDegradedMode(t *testing.T) {
	// A path inside a nonexistent directory cannot be created; the
	// store must degrade, not fail.
	kv := OpenKV(filepath.Join(t.TempDir(), "no", "such", "dir", "kv.db"))
	defer kv.Close()

	if kv.Available() {
		t.Fatal("store should be degraded")
	}
	if err := kv.Put("pools", "General", "x"); err != nil {
		t.Errorf("degraded Put returned error: %v", err)
	}
	if _, ok := kv.Get("pools", "General"); ok {
		t.Error("degraded Get returned a value")
	}
	if n := kv.Count("pools"); n != 0 {
		t.Errorf("degraded Count = %d", n)
	}
}
