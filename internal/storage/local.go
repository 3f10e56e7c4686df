package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codebuildervaibhav/voice-transcription/internal/types"
)

// TranscriptRecord bundles everything worth persisting about one
// completed run.
type TranscriptRecord struct {
	JobID       string                    `json:"job_id"`
	RequestName string                    `json:"request_name"`
	SourceType  string                    `json:"source_type"`
	Backend     string                    `json:"backend"`
	Result      types.TranscriptionResult `json:"result"`
	Stats       types.ProcessingStats     `json:"stats"`
	Metrics     *types.AudioMetrics       `json:"metrics,omitempty"`
	CreatedAt   time.Time                 `json:"created_at"`
	GDriveURL   string                    `json:"gdrive_url,omitempty"`
}

// LocalStorage writes transcripts into a dated directory tree under
// outputDir, e.g. outputs/2026/09/01/.
type LocalStorage struct {
	outputDir string
}

// NewLocalStorage creates a local transcript store rooted at outputDir.
func NewLocalStorage(outputDir string) *LocalStorage {
	return &LocalStorage{outputDir: outputDir}
}

// SaveTranscript writes the transcript text plus a metadata JSON sidecar
// and returns the path of the text file.
func (ls *LocalStorage) SaveTranscript(rec TranscriptRecord) (string, error) {
	now := rec.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	dateDir := filepath.Join(ls.outputDir,
		fmt.Sprintf("%d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()))

	if err := os.MkdirAll(dateDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create date directory: %v", err)
	}

	timestamp := now.Format("20060102_150405")
	baseFilename := fmt.Sprintf("%s_%s", timestamp, SanitizeFilename(rec.RequestName))

	txtPath := filepath.Join(dateDir, baseFilename+".txt")
	metaPath := filepath.Join(dateDir, baseFilename+"_meta.json")

	if err := os.WriteFile(txtPath, []byte(rec.Result.Text), 0644); err != nil {
		return "", fmt.Errorf("failed to save transcript: %v", err)
	}

	metaJSON, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %v", err)
	}
	if err := os.WriteFile(metaPath, metaJSON, 0644); err != nil {
		return "", fmt.Errorf("failed to save metadata: %v", err)
	}

	return txtPath, nil
}

// SanitizeFilename strips path separators and characters that are
// invalid on common filesystems, and caps the length.
func SanitizeFilename(name string) string {
	result := filepath.Base(name)
	for _, ch := range []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"} {
		result = strings.ReplaceAll(result, ch, "_")
	}
	result = strings.TrimSpace(result)
	if result == "" || result == "." {
		result = "untitled"
	}
	if len(result) > 100 {
		result = result[:100]
	}
	return result
}
