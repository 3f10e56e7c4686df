package memory

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/voice-transcription/internal/storage"
	"github.com/codebuildervaibhav/voice-transcription/internal/types"
)

const (
	kvHistory    = "history"
	kvHistoryKey = "items"

	// maxHistoryItems bounds the history; the oldest entry is evicted
	// first, newest stays at the front.
	maxHistoryItems = 500
)

// History is the bounded transcription history, newest first.
type History struct {
	kv *storage.KV

	mu    sync.Mutex
	items []types.HistoryItem
}

// NewHistory loads persisted history from the KV collaborator.
func NewHistory(kv *storage.KV) *History {
	h := &History{kv: kv}
	if raw, ok := kv.Get(kvHistory, kvHistoryKey); ok {
		if err := json.Unmarshal([]byte(raw), &h.items); err != nil {
			log.Printf("Discarding unreadable history snapshot: %v", err)
			h.items = nil
		}
	}
	if len(h.items) > maxHistoryItems {
		h.items = h.items[:maxHistoryItems]
	}
	return h
}

// Add prepends a new entry, evicting the oldest past the cap, and
// persists the snapshot.
func (h *History) Add(text string) types.HistoryItem {
	item := types.HistoryItem{
		ID:   uuid.New().String(),
		Text: text,
		Date: time.Now().UTC().Format(time.RFC3339),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.items = append([]types.HistoryItem{item}, h.items...)
	if len(h.items) > maxHistoryItems {
		h.items = h.items[:maxHistoryItems]
	}

	if raw, err := json.Marshal(h.items); err == nil {
		if err := h.kv.Put(kvHistory, kvHistoryKey, string(raw)); err != nil {
			log.Printf("Failed to persist history: %v", err)
		}
	}
	return item
}

// Items returns a copy of the history, newest first.
func (h *History) Items() []types.HistoryItem {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]types.HistoryItem, len(h.items))
	copy(out, h.items)
	return out
}

// Len returns the current number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.items)
}
