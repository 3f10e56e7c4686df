package prompt

import (
	"fmt"
	"strings"

	"github.com/codebuildervaibhav/voice-transcription/internal/types"
)

// Family temperatures. The verbatim and structured families pin their
// temperature regardless of template edits; literary styles use the
// template value.
const (
	verbatimTemperature   = 0.1
	structuredTemperature = 0.2
	literaryTemperature   = 0.4

	// memoryInjectLimit is how much of the active pool's memory tail is
	// carried into every instruction.
	memoryInjectLimit = 2000
)

// MemoryReader supplies the active context pool's memory text.
type MemoryReader interface {
	Get(pool string) (string, error)
}

// Resolved is the outcome of policy resolution for one request.
type Resolved struct {
	Instruction string
	Temperature float64
	StyleName   string
}

// Resolver turns (style, language, custom text) into the final system
// instruction and temperature.
type Resolver struct {
	store  *Store
	memory MemoryReader
}

// NewResolver creates a resolver over the template store and context memory.
func NewResolver(store *Store, memory MemoryReader) *Resolver {
	return &Resolver{store: store, memory: memory}
}

// IsVerbatim reports whether the style belongs to the verbatim family,
// which never goes through cloud refinement.
func IsVerbatim(styleID string) bool { return verbatimStyles[styleID] }

// Resolve builds the instruction for the given settings. An unknown
// style fails with types.ErrUnknownStyle; callers must surface it rather
// than substituting a default.
func (r *Resolver) Resolve(s types.Settings) (Resolved, error) {
	tpl, ok := r.store.Get(s.Style)
	if !ok {
		return Resolved{}, fmt.Errorf("style %q: %w", s.Style, types.ErrUnknownStyle)
	}

	var b strings.Builder
	temperature := literaryTemperature

	switch {
	case verbatimStyles[s.Style]:
		temperature = verbatimTemperature
		b.WriteString(tpl.Instruction)

	case structuredStyles[s.Style]:
		temperature = structuredTemperature
		b.WriteString(tpl.Instruction)

	default:
		if tpl.Temperature > 0 {
			temperature = tpl.Temperature
		}
		b.WriteString(tonePreservation(s.Language))
		micro := tpl.Instruction
		if s.Style == "custom" && strings.TrimSpace(s.Custom) != "" {
			micro = strings.TrimSpace(s.Custom)
		}
		if micro != "" {
			b.WriteString("\n\n")
			b.WriteString(micro)
		}
	}

	if lang := languageDirective(s.Language); lang != "" {
		b.WriteString("\n\n")
		b.WriteString(lang)
	}

	if r.memory != nil && s.Pool != "" {
		if mem, err := r.memory.Get(s.Pool); err == nil && mem != "" {
			b.WriteString("\n\nContext from earlier sessions (most recent last):\n")
			b.WriteString(tail(mem, memoryInjectLimit))
		}
	}

	// Structural contract, applied to every family.
	b.WriteString("\n\nOutput format: the first line must be a short suggested filename for this text. The second line must be blank. Everything from the third line on is the content itself.")

	return Resolved{
		Instruction: b.String(),
		Temperature: temperature,
		StyleName:   tpl.Name,
	}, nil
}

// tonePreservation is the literary-family preamble, phrased per output
// language.
func tonePreservation(language string) string {
	switch language {
	case "pt":
		return "Reescreva o texto transcrito preservando a voz e a intencao de quem fala. Nao invente conteudo novo."
	case "es":
		return "Reescribe el texto transcrito preservando la voz y la intencion del hablante. No inventes contenido nuevo."
	default:
		return "Rewrite the transcribed text preserving the speaker's voice and intent. Do not invent new content."
	}
}

func languageDirective(language string) string {
	switch language {
	case "pt":
		return "Responda em portugues."
	case "en":
		return "Respond in English."
	case "es":
		return "Responde en espanol."
	default:
		return ""
	}
}

// tail returns the last n characters of s.
func tail(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
