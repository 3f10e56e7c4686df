package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/codebuildervaibhav/voice-transcription/internal/types"
)

// CloudClient calls the multimodal generate-content API used for cloud
// transcription and refinement. One request carries the audio inline
// (base64) plus the resolved instruction text.
type CloudClient struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewCloudClient creates a cloud client. An empty apiKey leaves the
// client unconfigured; Generate then fails with *types.AuthError.
func NewCloudClient(apiKey, baseURL, defaultModel string) *CloudClient {
	return &CloudClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   defaultModel,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// Configured reports whether a credential is present.
func (c *CloudClient) Configured() bool { return c.apiKey != "" }

type generatePart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *generateInline `json:"inline_data,omitempty"`
}

type generateInline struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateRequest struct {
	Contents []struct {
		Parts []generatePart `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		Temperature float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends the audio and instruction in one round trip and returns
// the produced text. modelID overrides the default model when non-empty.
func (c *CloudClient) Generate(ctx context.Context, blob types.AudioBlob, instruction string, temperature float64, modelID string) (string, error) {
	if c.apiKey == "" {
		return "", &types.AuthError{Detail: "no API key configured"}
	}
	if modelID == "" {
		modelID = c.model
	}

	var greq generateRequest
	greq.Contents = make([]struct {
		Parts []generatePart `json:"parts"`
	}, 1)
	greq.Contents[0].Parts = []generatePart{
		{Text: instruction},
		{InlineData: &generateInline{
			MIMEType: blob.MIME,
			Data:     base64.StdEncoding.EncodeToString(blob.Data),
		}},
	}
	greq.GenerationConfig.Temperature = temperature

	body, err := json.Marshal(greq)
	if err != nil {
		return "", &types.MalformedResponseError{Detail: fmt.Sprintf("encode request: %v", err)}
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, modelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &types.RateLimitOrServerError{Status: 0, Detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &types.RateLimitOrServerError{Status: 0, Detail: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", &types.RateLimitOrServerError{Status: resp.StatusCode, Detail: err.Error()}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", &types.AuthError{Detail: apiErrorMessage(data, resp.StatusCode)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &types.RateLimitOrServerError{Status: resp.StatusCode, Detail: apiErrorMessage(data, resp.StatusCode)}
	}

	var gresp generateResponse
	if err := json.Unmarshal(data, &gresp); err != nil {
		return "", &types.MalformedResponseError{Detail: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if len(gresp.Candidates) == 0 || len(gresp.Candidates[0].Content.Parts) == 0 ||
		gresp.Candidates[0].Content.Parts[0].Text == "" {
		return "", &types.MalformedResponseError{Detail: "response carries no text part"}
	}

	return gresp.Candidates[0].Content.Parts[0].Text, nil
}

func apiErrorMessage(data []byte, status int) string {
	var payload generateResponse
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return fmt.Sprintf("HTTP %d", status)
}
