// Package backend holds the two transcription transports: the local
// speech-recognition sidecar and the cloud generation API. Both clients
// map transport failures to the shared error taxonomy and never retry;
// retry and fallback policy belongs to the orchestrator.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/codebuildervaibhav/voice-transcription/internal/types"
)

const healthTimeout = 5 * time.Second

// ModelStatus describes one model hosted by the sidecar.
type ModelStatus struct {
	Status string `json:"status"`
	Model  string `json:"model"`
}

// HealthReport is the sidecar's /health response.
type HealthReport struct {
	Status  string                 `json:"status"`
	Version string                 `json:"version"`
	Models  map[string]ModelStatus `json:"models"`
	Error   string                 `json:"error,omitempty"`
}

// SynthesizeRequest is the sidecar's /synthesize payload.
type SynthesizeRequest struct {
	Text       string `json:"text"`
	Voice      string `json:"voice,omitempty"`
	Preprocess bool   `json:"preprocess"`
	Profile    string `json:"profile,omitempty"`
	VoiceRef   string `json:"voice_ref,omitempty"`
}

// LocalClient talks to the local speech-recognition sidecar. It is
// stateless apart from the last recorded health failure.
type LocalClient struct {
	baseURL string
	timeout time.Duration
	client  *http.Client

	mu            sync.Mutex
	lastFailure   string
	lastFailureAt time.Time
}

// NewLocalClient creates a sidecar client. timeout bounds transcribe and
// synthesize calls; health checks are always bounded at 5 seconds.
func NewLocalClient(baseURL string, timeout time.Duration) *LocalClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &LocalClient{
		baseURL: baseURL,
		timeout: timeout,
		client:  &http.Client{},
	}
}

// Health probes the sidecar. It returns nil on any failure (network,
// timeout, non-2xx) and records the reason; it never returns an error.
func (c *LocalClient) Health(ctx context.Context) *HealthReport {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		c.recordFailure(err.Error())
		return nil
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.recordFailure(err.Error())
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.recordFailure(fmt.Sprintf("health returned HTTP %d", resp.StatusCode))
		return nil
	}

	var report HealthReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		c.recordFailure(fmt.Sprintf("invalid health payload: %v", err))
		return nil
	}
	return &report
}

// LastFailure returns the most recent health failure reason and when it
// was recorded.
func (c *LocalClient) LastFailure() (string, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastFailure, c.lastFailureAt
}

func (c *LocalClient) recordFailure(reason string) {
	c.mu.Lock()
	c.lastFailure = reason
	c.lastFailureAt = time.Now()
	c.mu.Unlock()
}

// Transcribe sends audio to the sidecar. Failures come back as
// *types.TimeoutError, *types.BackendError or *types.ConnectionError.
func (c *LocalClient) Transcribe(ctx context.Context, treq types.TranscriptionRequest) (*types.TranscriptionResult, error) {
	body, err := json.Marshal(treq)
	if err != nil {
		return nil, &types.ConnectionError{Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", bytes.NewReader(body))
	if err != nil {
		return nil, &types.ConnectionError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, &types.TimeoutError{Op: "transcribe", Limit: c.timeout}
		}
		return nil, &types.ConnectionError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &types.BackendError{Status: resp.StatusCode, Detail: readDetail(resp.Body)}
	}

	var result types.TranscriptionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &types.BackendError{Status: resp.StatusCode, Detail: fmt.Sprintf("invalid JSON response: %v", err)}
	}
	return &result, nil
}

// Synthesize asks the sidecar to render text to speech and returns the
// raw audio bytes.
func (c *LocalClient) Synthesize(ctx context.Context, sreq SynthesizeRequest) ([]byte, error) {
	body, err := json.Marshal(sreq)
	if err != nil {
		return nil, &types.ConnectionError{Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, &types.ConnectionError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, &types.TimeoutError{Op: "synthesize", Limit: c.timeout}
		}
		return nil, &types.ConnectionError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &types.BackendError{Status: resp.StatusCode, Detail: readDetail(resp.Body)}
	}

	return io.ReadAll(resp.Body)
}

// readDetail extracts the sidecar's {"detail": ...} error message.
func readDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	return ""
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
