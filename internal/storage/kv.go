package storage

import (
	"database/sql"
	"fmt"
	"log"

	_ "modernc.org/sqlite"
)

// KV is the durable key-value collaborator used by context pools, prompt
// templates and history. Values are opaque strings (usually JSON).
//
// A KV opened against an unavailable database degrades instead of
// failing: reads return nothing and writes are dropped, so callers keep
// working with in-memory state only.
type KV struct {
	db *sql.DB
}

// OpenKV opens (or creates) the backing SQLite database. On failure it
// logs once and returns a degraded, never-nil store.
func OpenKV(dbPath string) *KV {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		log.Printf("WARNING: key-value store unavailable (%v), running without persistence", err)
		return &KV{}
	}

	createSQL := `
	CREATE TABLE IF NOT EXISTS kv (
		store TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (store, key)
	);
	`
	if _, err := db.Exec(createSQL); err != nil {
		log.Printf("WARNING: key-value store init failed (%v), running without persistence", err)
		db.Close()
		return &KV{}
	}

	return &KV{db: db}
}

// Available reports whether the store is backed by a live database.
func (kv *KV) Available() bool { return kv.db != nil }

// Get returns the value for key within store, and whether it exists.
func (kv *KV) Get(store, key string) (string, bool) {
	if kv.db == nil {
		return "", false
	}
	var value string
	err := kv.db.QueryRow(
		`SELECT value FROM kv WHERE store = ? AND key = ?`, store, key,
	).Scan(&value)
	if err != nil {
		return "", false
	}
	return value, true
}

// Put inserts or replaces the value for key within store.
func (kv *KV) Put(store, key, value string) error {
	if kv.db == nil {
		return nil
	}
	_, err := kv.db.Exec(
		`INSERT INTO kv (store, key, value, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(store, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		store, key, value,
	)
	if err != nil {
		return fmt.Errorf("kv put %s/%s: %v", store, key, err)
	}
	return nil
}

// Delete removes key from store. Deleting a missing key is not an error.
func (kv *KV) Delete(store, key string) error {
	if kv.db == nil {
		return nil
	}
	if _, err := kv.db.Exec(`DELETE FROM kv WHERE store = ? AND key = ?`, store, key); err != nil {
		return fmt.Errorf("kv delete %s/%s: %v", store, key, err)
	}
	return nil
}

// GetAll returns every key-value pair within store.
func (kv *KV) GetAll(store string) map[string]string {
	out := make(map[string]string)
	if kv.db == nil {
		return out
	}
	rows, err := kv.db.Query(`SELECT key, value FROM kv WHERE store = ?`, store)
	if err != nil {
		return out
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			continue
		}
		out[k] = v
	}
	return out
}

// Count returns the number of keys within store.
func (kv *KV) Count(store string) int {
	if kv.db == nil {
		return 0
	}
	var n int
	if err := kv.db.QueryRow(`SELECT COUNT(*) FROM kv WHERE store = ?`, store).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Close closes the backing database.
func (kv *KV) Close() error {
	if kv.db == nil {
		return nil
	}
	return kv.db.Close()
}
