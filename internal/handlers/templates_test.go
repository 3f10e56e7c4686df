package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/voice-transcription/internal/prompt"
	"github.com/codebuildervaibhav/voice-transcription/internal/storage"
	"github.com/codebuildervaibhav/voice-transcription/internal/types"
)

func newTemplatesApp(t *testing.T) *fiber.App {
	t.Helper()
	kv := storage.OpenKV(filepath.Join(t.TempDir(), "kv.db"))
	t.Cleanup(func() { kv.Close() })

	h := NewTemplatesHandler(prompt.NewStore(kv))
	app := fiber.New()
	app.Get("/templates", h.List)
	app.Post("/templates", h.Create)
	app.Get("/templates/:id", h.Get)
	app.Put("/templates/:id", h.Update)
	app.Delete("/templates/:id", h.Delete)
	app.Post("/templates/:id/duplicate", h.Duplicate)
	app.Post("/templates/:id/reset", h.Reset)
	return app
}

func jsonRequest(method, path string, body any) *http.Request {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestTemplatesListIncludesBuiltins(t *testing.T) {
	app := newTemplatesApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/templates", nil), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	var body struct {
		Templates []types.PromptTemplate `json:"templates"`
	}
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if len(body.Templates) != 8 {
		t.Errorf("template count = %d, want 8 builtins", len(body.Templates))
	}
}

func TestTemplateCreateAndConflict(t *testing.T) {
	app := newTemplatesApp(t)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/templates", templateBody{
		Name: "Notes", Instruction: "Take notes.", Temperature: 0.3,
	}), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 201 {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	resp, err = app.Test(jsonRequest(http.MethodPost, "/templates", templateBody{
		Name: "Notes", Instruction: "different",
	}), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 409 {
		t.Errorf("duplicate status = %d, want 409", resp.StatusCode)
	}
}

func TestTemplateDeleteBuiltinRejected(t *testing.T) {
	app := newTemplatesApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/templates/verbatim", nil), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestTemplateNotFound(t *testing.T) {
	app := newTemplatesApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/templates/ghost", nil), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 404 {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}

	resp, err = app.Test(jsonRequest(http.MethodPut, "/templates/ghost", templateBody{Name: "x"}), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 404 {
		t.Errorf("update status = %d, want 404", resp.StatusCode)
	}
}
