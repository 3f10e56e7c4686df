// Package memory holds the rolling cross-session state: named context
// pools feeding prompt continuity, and the bounded transcription history.
package memory

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/codebuildervaibhav/voice-transcription/internal/storage"
	"github.com/codebuildervaibhav/voice-transcription/internal/types"
)

const (
	kvPools = "pools"

	// maxMemoryChars bounds each pool's memory; older content drops
	// from the head when exceeded.
	maxMemoryChars = 5000

	// DefaultPool always exists.
	DefaultPool = "General"
)

// Store is the context memory store. Appends and truncation happen
// atomically under one lock per store, so readers never observe an
// unbounded intermediate state.
type Store struct {
	kv *storage.KV
	mu sync.Mutex
}

// NewStore creates the context memory store over the KV collaborator.
func NewStore(kv *storage.KV) *Store {
	return &Store{kv: kv}
}

// Append adds text to the named pool's memory, truncating to the most
// recent 5000 characters, and returns the new memory text. Missing
// pools are created on demand.
func (s *Store) Append(pool, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, _ := s.read(pool)
	if p.Name == "" {
		p = types.ContextPool{Name: pool}
	}

	if p.Memory == "" {
		p.Memory = text
	} else {
		p.Memory = p.Memory + "\n" + text
	}
	p.Memory = tail(p.Memory, maxMemoryChars)
	p.LastUpdated = time.Now()

	if err := s.write(p); err != nil {
		return "", err
	}
	return p.Memory, nil
}

// Get returns the pool's memory text, or empty for an unknown pool.
func (s *Store) Get(pool string) (string, error) {
	p, ok := s.read(pool)
	if !ok {
		return "", nil
	}
	return p.Memory, nil
}

// CreatePool registers a new empty pool. Fails with
// types.ErrDuplicateName when the name is taken.
func (s *Store) CreatePool(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.read(name); ok {
		return fmt.Errorf("pool %q: %w", name, types.ErrDuplicateName)
	}
	return s.write(types.ContextPool{Name: name, LastUpdated: time.Now()})
}

// List returns all pools ordered by name.
func (s *Store) List() []types.ContextPool {
	all := s.kv.GetAll(kvPools)
	out := make([]types.ContextPool, 0, len(all))
	for _, raw := range all {
		var p types.ContextPool
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the number of pools.
func (s *Store) Count() int {
	return s.kv.Count(kvPools)
}

// MigrateLegacy copies pools from the legacy flat JSON file into the KV
// collaborator. It runs only when the collaborator holds no pools yet,
// which makes it idempotent across restarts.
func (s *Store) MigrateLegacy(path string) error {
	if path == "" {
		return nil
	}
	if s.Count() > 0 {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading legacy pool file: %v", err)
	}

	var legacy map[string]string
	if err := json.Unmarshal(data, &legacy); err != nil {
		return fmt.Errorf("parsing legacy pool file: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, mem := range legacy {
		p := types.ContextPool{
			Name:        name,
			Memory:      tail(mem, maxMemoryChars),
			LastUpdated: time.Now(),
		}
		if err := s.write(p); err != nil {
			return err
		}
	}
	log.Printf("Migrated %d context pool(s) from legacy storage", len(legacy))
	return nil
}

// EnsureDefault seeds the General pool when no pools exist.
func (s *Store) EnsureDefault() {
	if s.Count() == 0 {
		if err := s.CreatePool(DefaultPool); err != nil {
			log.Printf("Failed to seed default context pool: %v", err)
		}
	}
}

func (s *Store) read(name string) (types.ContextPool, bool) {
	raw, ok := s.kv.Get(kvPools, name)
	if !ok {
		return types.ContextPool{}, false
	}
	var p types.ContextPool
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return types.ContextPool{}, false
	}
	return p, true
}

func (s *Store) write(p types.ContextPool) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode pool: %v", err)
	}
	return s.kv.Put(kvPools, p.Name, string(raw))
}

// tail returns the last n characters of text.
func tail(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[len(runes)-n:])
}
