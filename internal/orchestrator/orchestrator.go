// Package orchestrator coordinates one transcription run: backend
// dispatch, local-to-cloud fallback, prompt resolution, statistics and
// context memory updates. It is the only place where retry-vs-fallback
// decisions are made.
package orchestrator

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/codebuildervaibhav/voice-transcription/internal/analysis"
	"github.com/codebuildervaibhav/voice-transcription/internal/backend"
	"github.com/codebuildervaibhav/voice-transcription/internal/memory"
	"github.com/codebuildervaibhav/voice-transcription/internal/prompt"
	"github.com/codebuildervaibhav/voice-transcription/internal/types"
)

// wordsPerMinute feeds the reading-time estimate.
const wordsPerMinute = 200

// Outcome is the full result of one Process run.
type Outcome struct {
	Result       types.TranscriptionResult `json:"result"`
	Metrics      *types.AudioMetrics       `json:"metrics,omitempty"`
	Stats        types.ProcessingStats     `json:"stats"`
	Backend      string                    `json:"backend"`
	UsedFallback bool                      `json:"used_fallback"`
}

// Orchestrator is stateless between invocations apart from the injected
// health cache; concurrent Process calls are independent.
type Orchestrator struct {
	local    *backend.LocalClient
	cloud    *backend.CloudClient
	resolver *prompt.Resolver
	memory   *memory.Store
	history  *memory.History
	analyzer *analysis.Analyzer
	health   *HealthCache
}

// New wires the orchestrator. health may be nil, in which case "auto"
// mode treats the sidecar as unprobed.
func New(
	local *backend.LocalClient,
	cloud *backend.CloudClient,
	resolver *prompt.Resolver,
	mem *memory.Store,
	hist *memory.History,
	analyzer *analysis.Analyzer,
	health *HealthCache,
) *Orchestrator {
	return &Orchestrator{
		local:    local,
		cloud:    cloud,
		resolver: resolver,
		memory:   mem,
		history:  hist,
		analyzer: analyzer,
		health:   health,
	}
}

// Process runs the full pipeline for one audio blob. Terminal failures
// leave history and context memory untouched.
func (o *Orchestrator) Process(ctx context.Context, blob types.AudioBlob, s types.Settings) (*Outcome, error) {
	started := time.Now()

	resolved, err := o.resolver.Resolve(s)
	if err != nil {
		return nil, err
	}

	if s.Mode == types.ModeCloud && !o.cloud.Configured() {
		return nil, types.ErrMissingCredential
	}

	// Metrics analysis is independent of transcription; run it alongside
	// the backend call. A decode failure only costs us the report.
	metricsCh := make(chan *types.AudioMetrics, 1)
	go func() {
		m, err := o.analyzer.Analyze(blob)
		if err != nil {
			log.Printf("Audio analysis skipped: %v", err)
			metricsCh <- nil
			return
		}
		metricsCh <- m
	}()

	outcome, err := o.dispatch(ctx, blob, s, resolved)
	metrics := <-metricsCh
	if err != nil {
		return nil, err
	}
	outcome.Metrics = metrics

	o.finalize(outcome, blob, s, resolved, started)
	return outcome, nil
}

// dispatch picks the backend per mode and drives the attempt/fallback
// sequence.
func (o *Orchestrator) dispatch(ctx context.Context, blob types.AudioBlob, s types.Settings, resolved prompt.Resolved) (*Outcome, error) {
	useLocal := false
	switch s.Mode {
	case types.ModeLocal:
		useLocal = true
	case types.ModeCloud:
		useLocal = false
	default: // auto: prefer local when the last probe saw it healthy
		if o.health != nil && o.health.Healthy() {
			useLocal = true
		} else if !o.cloud.Configured() {
			// Local is the only possible path; try it regardless.
			useLocal = true
		}
	}

	if useLocal {
		return o.localAttempt(ctx, blob, s, resolved)
	}
	return o.cloudAttempt(ctx, blob, s, resolved, false)
}

// localAttempt calls the sidecar and falls back to the cloud on any
// failure when a credential exists.
func (o *Orchestrator) localAttempt(ctx context.Context, blob types.AudioBlob, s types.Settings, resolved prompt.Resolved) (*Outcome, error) {
	refine := o.cloud.Configured() && !prompt.IsVerbatim(s.Style)

	req := types.TranscriptionRequest{
		AudioBase64: base64.StdEncoding.EncodeToString(blob.Data),
		Format:      formatTag(blob.MIME),
		Language:    s.Language,
		Refine:      refine,
		Style:       s.Style,
	}

	result, err := o.local.Transcribe(ctx, req)
	if err != nil {
		if o.cloud.Configured() {
			log.Printf("WARNING: local transcription failed (%v), falling back to cloud", err)
			return o.cloudAttempt(ctx, blob, s, resolved, true)
		}
		return nil, fmt.Errorf("%w: local failed (%v) and no cloud credential configured", types.ErrNoBackendAvailable, err)
	}

	// Prefer the sidecar's own refined text when it handled refinement
	// in the same round trip.
	if refine && result.RefineSucceeded != nil && *result.RefineSucceeded && result.RefinedText != "" {
		result.Text = result.RefinedText
	}

	return &Outcome{Result: *result, Backend: "local"}, nil
}

// cloudAttempt is terminal: there is nowhere left to fall back to.
func (o *Orchestrator) cloudAttempt(ctx context.Context, blob types.AudioBlob, s types.Settings, resolved prompt.Resolved, viaFallback bool) (*Outcome, error) {
	text, err := o.cloud.Generate(ctx, blob, resolved.Instruction, resolved.Temperature, s.Model)
	if err != nil {
		return nil, &types.TranscriptionFailedError{Cause: err}
	}

	return &Outcome{
		Result: types.TranscriptionResult{
			Text:     text,
			Language: s.Language,
		},
		Backend:      "cloud",
		UsedFallback: viaFallback,
	}, nil
}

// finalize trims the text, computes statistics and records the run in
// context memory and history. Persistence failures are logged, never
// returned: the transcription itself already succeeded.
func (o *Orchestrator) finalize(outcome *Outcome, blob types.AudioBlob, s types.Settings, resolved prompt.Resolved, started time.Time) {
	text := strings.TrimSpace(outcome.Result.Text)
	outcome.Result.Text = text

	duration := outcome.Result.Duration
	if duration == 0 && outcome.Metrics != nil {
		duration = outcome.Metrics.Duration
	}

	words := len(strings.Fields(text))
	outcome.Stats = types.ProcessingStats{
		ProcessingTimeMs:     time.Since(started).Milliseconds(),
		AudioDurationSeconds: duration,
		InputSizeBytes:       blob.Size(),
		WordCount:            words,
		CharCount:            utf8.RuneCountInString(text),
		ReadingTime:          readingTime(words),
		AppliedStyle:         resolved.StyleName,
	}

	pool := s.Pool
	if pool == "" {
		pool = memory.DefaultPool
	}
	if text != "" {
		if _, err := o.memory.Append(pool, text); err != nil {
			log.Printf("Failed to update context pool %q: %v", pool, err)
		}
	}

	o.history.Add(text)
}

func readingTime(words int) string {
	minutes := int(math.Ceil(float64(words) / wordsPerMinute))
	return fmt.Sprintf("%d min", minutes)
}

// formatTag maps a MIME type to the sidecar's format enum.
func formatTag(mime string) string {
	switch {
	case strings.Contains(mime, "wav"):
		return "wav"
	case strings.Contains(mime, "mpeg"), strings.Contains(mime, "mp3"):
		return "mp3"
	case strings.Contains(mime, "ogg"):
		return "ogg"
	case strings.Contains(mime, "mp4"), strings.Contains(mime, "m4a"):
		return "m4a"
	default:
		return "webm"
	}
}
