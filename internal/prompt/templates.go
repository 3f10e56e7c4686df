// Package prompt maps a chosen output style to the concrete instruction
// and temperature handed to the refinement model, backed by an editable
// template store.
package prompt

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/codebuildervaibhav/voice-transcription/internal/storage"
	"github.com/codebuildervaibhav/voice-transcription/internal/types"
)

const kvTemplates = "templates"

// Style family membership. Styles not listed in either set belong to the
// literary family.
var (
	verbatimStyles = map[string]bool{
		"verbatim":       true,
		"clean-verbatim": true,
	}
	structuredStyles = map[string]bool{
		"prompt-xml":      true,
		"prompt-markdown": true,
	}
)

// builtinTemplates are the factory defaults seeded on first run.
func builtinTemplates() []types.PromptTemplate {
	return []types.PromptTemplate{
		{
			ID:          "verbatim",
			Name:        "Verbatim",
			Instruction: "Transcribe the audio exactly as spoken. Remove only obvious filler sounds (uh, um, hm). Normalize punctuation and capitalization; change nothing else.",
			Temperature: 0.1,
			Builtin:     true,
		},
		{
			ID:          "clean-verbatim",
			Name:        "Clean Verbatim",
			Instruction: "Transcribe the audio faithfully. Remove filler words, false starts and immediate self-corrections, keeping every remaining word as spoken. Normalize punctuation.",
			Temperature: 0.1,
			Builtin:     true,
		},
		{
			ID:          "prompt-xml",
			Name:        "Prompt (XML)",
			Instruction: "Rewrite the spoken content as a precise, imperative prompt. Wrap the entire output in <prompt> and </prompt> tags. Use <context>, <task> and <constraints> tags for the sections. Do not add commentary outside the tags.",
			Temperature: 0.2,
			Builtin:     true,
		},
		{
			ID:          "prompt-markdown",
			Name:        "Prompt (Markdown)",
			Instruction: "Rewrite the spoken content as a precise, imperative prompt. Structure the output with the headings ## Context, ## Task and ## Constraints, in that order. Do not add commentary outside these sections.",
			Temperature: 0.2,
			Builtin:     true,
		},
		{
			ID:          "concise",
			Name:        "Concise",
			Instruction: "Tighten the text: drop repetition and detours, keep every decision and fact.",
			Temperature: 0.4,
			Builtin:     true,
		},
		{
			ID:          "formal",
			Name:        "Formal",
			Instruction: "Raise the register to formal written language without changing the meaning.",
			Temperature: 0.4,
			Builtin:     true,
		},
		{
			ID:          "email",
			Name:        "Email",
			Instruction: "Shape the text as a ready-to-send email: greeting, short paragraphs, closing.",
			Temperature: 0.4,
			Builtin:     true,
		},
		{
			ID:          "custom",
			Name:        "Custom",
			Instruction: "",
			Temperature: 0.4,
			Builtin:     true,
		},
	}
}

// Store keeps prompt templates in the durable KV collaborator. Builtins
// are seeded on first run and can be edited or reset, never deleted.
type Store struct {
	kv *storage.KV
	mu sync.Mutex
}

// NewStore creates the template store and seeds any missing builtins.
func NewStore(kv *storage.KV) *Store {
	s := &Store{kv: kv}
	for _, tpl := range builtinTemplates() {
		if _, ok := s.Get(tpl.ID); !ok {
			tpl.UpdatedAt = time.Now()
			s.write(tpl)
		}
	}
	return s
}

// Get returns the template with the given id.
func (s *Store) Get(id string) (types.PromptTemplate, bool) {
	raw, ok := s.kv.Get(kvTemplates, id)
	if !ok {
		return types.PromptTemplate{}, false
	}
	var tpl types.PromptTemplate
	if err := json.Unmarshal([]byte(raw), &tpl); err != nil {
		return types.PromptTemplate{}, false
	}
	return tpl, true
}

// List returns all templates ordered by name.
func (s *Store) List() []types.PromptTemplate {
	all := s.kv.GetAll(kvTemplates)
	out := make([]types.PromptTemplate, 0, len(all))
	for _, raw := range all {
		var tpl types.PromptTemplate
		if err := json.Unmarshal([]byte(raw), &tpl); err != nil {
			continue
		}
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Create adds a new custom template. The name must be unique.
func (s *Store) Create(name, instruction string, temperature float64) (types.PromptTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nameTaken(name, "") {
		return types.PromptTemplate{}, types.ErrDuplicateName
	}

	tpl := types.PromptTemplate{
		ID:          fmt.Sprintf("custom-%d", time.Now().UnixNano()),
		Name:        name,
		Instruction: instruction,
		Temperature: temperature,
		UpdatedAt:   time.Now(),
	}
	if err := s.write(tpl); err != nil {
		return types.PromptTemplate{}, err
	}
	return tpl, nil
}

// Update edits an existing template's name, instruction and temperature.
func (s *Store) Update(id, name, instruction string, temperature float64) (types.PromptTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tpl, ok := s.Get(id)
	if !ok {
		return types.PromptTemplate{}, fmt.Errorf("template %s not found", id)
	}
	if name != "" && name != tpl.Name {
		if s.nameTaken(name, id) {
			return types.PromptTemplate{}, types.ErrDuplicateName
		}
		tpl.Name = name
	}
	if instruction != "" {
		tpl.Instruction = instruction
	}
	if temperature > 0 {
		tpl.Temperature = temperature
	}
	tpl.UpdatedAt = time.Now()
	if err := s.write(tpl); err != nil {
		return types.PromptTemplate{}, err
	}
	return tpl, nil
}

// Duplicate copies a template under a new unique name. The copy is
// always a custom template, even when the source is builtin.
func (s *Store) Duplicate(id, newName string) (types.PromptTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.Get(id)
	if !ok {
		return types.PromptTemplate{}, fmt.Errorf("template %s not found", id)
	}
	if s.nameTaken(newName, "") {
		return types.PromptTemplate{}, types.ErrDuplicateName
	}

	copyTpl := types.PromptTemplate{
		ID:          fmt.Sprintf("custom-%d", time.Now().UnixNano()),
		Name:        newName,
		Instruction: src.Instruction,
		Temperature: src.Temperature,
		UpdatedAt:   time.Now(),
	}
	if err := s.write(copyTpl); err != nil {
		return types.PromptTemplate{}, err
	}
	return copyTpl, nil
}

// Delete removes a custom template. Builtins cannot be deleted.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tpl, ok := s.Get(id)
	if !ok {
		return fmt.Errorf("template %s not found", id)
	}
	if tpl.Builtin {
		return fmt.Errorf("builtin template %s cannot be deleted", id)
	}
	return s.kv.Delete(kvTemplates, id)
}

// Reset restores a builtin template to its factory default.
func (s *Store) Reset(id string) (types.PromptTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tpl := range builtinTemplates() {
		if tpl.ID == id {
			tpl.UpdatedAt = time.Now()
			if err := s.write(tpl); err != nil {
				return types.PromptTemplate{}, err
			}
			return tpl, nil
		}
	}
	return types.PromptTemplate{}, fmt.Errorf("template %s is not builtin", id)
}

func (s *Store) nameTaken(name, excludeID string) bool {
	for _, tpl := range s.List() {
		if tpl.Name == name && tpl.ID != excludeID {
			return true
		}
	}
	return false
}

func (s *Store) write(tpl types.PromptTemplate) error {
	raw, err := json.Marshal(tpl)
	if err != nil {
		return fmt.Errorf("encode template: %v", err)
	}
	return s.kv.Put(kvTemplates, tpl.ID, string(raw))
}
