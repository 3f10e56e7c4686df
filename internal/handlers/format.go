// Package handlers contains the HTTP and WebSocket surface of the
// server. Handlers validate input, build a settings snapshot and hand
// work to the queue; they never run transcription themselves.
package handlers

import (
	"path/filepath"
	"strings"
)

var supportedFormats = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".opus": "audio/ogg",
	".flac": "audio/flac",
	".webm": "audio/webm",
	".aac":  "audio/aac",
	".wma":  "audio/x-ms-wma",
}

// ValidateAudioFormat checks if the file format is supported.
func ValidateAudioFormat(filename string) bool {
	_, ok := supportedFormats[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// MIMEForFilename maps a filename to its audio MIME type, defaulting to
// webm for unknown extensions.
func MIMEForFilename(filename string) string {
	if mime, ok := supportedFormats[strings.ToLower(filepath.Ext(filename))]; ok {
		return mime
	}
	return "audio/webm"
}
