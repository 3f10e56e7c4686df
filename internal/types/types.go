package types

import "time"

// Job status constants
const (
	StatusQueued     = "QUEUED"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Source type constants
const (
	SourceUpload  = "upload"
	SourceStream  = "stream"
	SourceCapture = "capture"
)

// Backend mode constants select where transcription runs.
const (
	ModeLocal = "local"
	ModeCloud = "cloud"
	ModeAuto  = "auto"
)

// AudioBlob is an opaque recorded audio payload. The pipeline never
// mutates Data.
type AudioBlob struct {
	Data []byte
	MIME string
}

// Size returns the payload size in bytes.
func (b AudioBlob) Size() int { return len(b.Data) }

// AudioMetrics is the acoustic quality report produced once per blob.
// All dB fields are finite (clamped to -100) and ClarityScore is in [0,100].
type AudioMetrics struct {
	Duration         float64 `json:"duration_seconds"`
	SampleRate       int     `json:"sample_rate"`
	Channels         int     `json:"channels"`
	RMSDB            float64 `json:"rms_db"`
	PeakDB           float64 `json:"peak_db"`
	SilenceRatio     float64 `json:"silence_ratio"`
	ZeroCrossingRate float64 `json:"zero_crossing_rate"`
	AvgPitchHz       float64 `json:"avg_pitch_hz"`
	ClarityScore     float64 `json:"clarity_score"`
}

// TranscriptionRequest is the payload sent to the local sidecar.
type TranscriptionRequest struct {
	AudioBase64 string `json:"audio"`
	Format      string `json:"format"`
	Language    string `json:"language,omitempty"`
	Refine      bool   `json:"refine"`
	Style       string `json:"style,omitempty"`
}

// Segment represents a timestamped segment of transcription
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptionResult represents the output of a transcription backend
type TranscriptionResult struct {
	Text            string    `json:"text"`
	RefinedText     string    `json:"refined_text,omitempty"`
	Language        string    `json:"language"`
	Confidence      float64   `json:"confidence"`
	Duration        float64   `json:"duration"`
	Segments        []Segment `json:"segments,omitempty"`
	RefineSucceeded *bool     `json:"refine_succeeded,omitempty"`
	RefineError     string    `json:"refine_error,omitempty"`
}

// ProcessingStats is derived once per run and returned with the result.
type ProcessingStats struct {
	ProcessingTimeMs     int64   `json:"processing_time_ms"`
	AudioDurationSeconds float64 `json:"audio_duration_seconds"`
	InputSizeBytes       int     `json:"input_size_bytes"`
	WordCount            int     `json:"word_count"`
	CharCount            int     `json:"char_count"`
	ReadingTime          string  `json:"reading_time"`
	AppliedStyle         string  `json:"applied_style"`
}

// HistoryItem is one entry in the bounded transcription history.
type HistoryItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Date string `json:"date"`
}

// PromptTemplate shapes the instruction sent to the refinement model.
// Builtins can be edited or reset but never deleted.
type PromptTemplate struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Instruction string    `json:"instruction"`
	Temperature float64   `json:"temperature"`
	Builtin     bool      `json:"builtin"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ContextPool is a named rolling memory buffer shared across sessions.
type ContextPool struct {
	Name        string    `json:"name"`
	Memory      string    `json:"memory"`
	LastUpdated time.Time `json:"last_updated"`
}

// Settings is the immutable per-request configuration snapshot. Handlers
// build it from the request plus config defaults and pass it by value.
type Settings struct {
	Mode     string // local, cloud or auto
	Style    string // prompt template id
	Language string // "pt", "en", "es" or "" for auto-detect
	Pool     string // active context pool name
	Custom   string // free-text instruction for the custom style
	Model    string // cloud model id
}
