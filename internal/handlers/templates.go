package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/voice-transcription/internal/prompt"
	"github.com/codebuildervaibhav/voice-transcription/internal/types"
)

// TemplatesHandler exposes CRUD over prompt templates.
type TemplatesHandler struct {
	store *prompt.Store
}

// NewTemplatesHandler creates a template CRUD handler.
func NewTemplatesHandler(store *prompt.Store) *TemplatesHandler {
	return &TemplatesHandler{store: store}
}

type templateBody struct {
	Name        string  `json:"name"`
	Instruction string  `json:"instruction"`
	Temperature float64 `json:"temperature"`
}

// List returns every template ordered by name.
func (h *TemplatesHandler) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"templates": h.store.List()})
}

// Get returns one template.
func (h *TemplatesHandler) Get(c *fiber.Ctx) error {
	tpl, ok := h.store.Get(c.Params("id"))
	if !ok {
		return c.Status(404).JSON(fiber.Map{
			"error": "Template not found",
			"code":  "ERR_TEMPLATE_NOT_FOUND",
		})
	}
	return c.JSON(tpl)
}

// Create adds a custom template.
func (h *TemplatesHandler) Create(c *fiber.Ctx) error {
	var body templateBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
			"code":  "ERR_INVALID_BODY",
		})
	}
	if strings.TrimSpace(body.Name) == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "Template name is required",
			"code":  "ERR_NO_NAME",
		})
	}

	tpl, err := h.store.Create(body.Name, body.Instruction, body.Temperature)
	if err != nil {
		return templateError(c, err)
	}
	return c.Status(201).JSON(tpl)
}

// Update edits a template in place.
func (h *TemplatesHandler) Update(c *fiber.Ctx) error {
	var body templateBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
			"code":  "ERR_INVALID_BODY",
		})
	}

	tpl, err := h.store.Update(c.Params("id"), body.Name, body.Instruction, body.Temperature)
	if err != nil {
		return templateError(c, err)
	}
	return c.JSON(tpl)
}

// Duplicate copies a template under a new name.
func (h *TemplatesHandler) Duplicate(c *fiber.Ctx) error {
	var body templateBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
			"code":  "ERR_INVALID_BODY",
		})
	}
	if strings.TrimSpace(body.Name) == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "New template name is required",
			"code":  "ERR_NO_NAME",
		})
	}

	tpl, err := h.store.Duplicate(c.Params("id"), body.Name)
	if err != nil {
		return templateError(c, err)
	}
	return c.Status(201).JSON(tpl)
}

// Delete removes a custom template.
func (h *TemplatesHandler) Delete(c *fiber.Ctx) error {
	if err := h.store.Delete(c.Params("id")); err != nil {
		return templateError(c, err)
	}
	return c.JSON(fiber.Map{"status": "deleted"})
}

// Reset restores a builtin template to its factory default.
func (h *TemplatesHandler) Reset(c *fiber.Ctx) error {
	tpl, err := h.store.Reset(c.Params("id"))
	if err != nil {
		return templateError(c, err)
	}
	return c.JSON(tpl)
}

// templateError maps store errors onto HTTP statuses.
func templateError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, types.ErrDuplicateName):
		return c.Status(409).JSON(fiber.Map{
			"error": "A template with that name already exists",
			"code":  "ERR_DUPLICATE_NAME",
		})
	case strings.Contains(err.Error(), "not found"):
		return c.Status(404).JSON(fiber.Map{
			"error": "Template not found",
			"code":  "ERR_TEMPLATE_NOT_FOUND",
		})
	case strings.Contains(err.Error(), "builtin"):
		return c.Status(400).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "ERR_BUILTIN_TEMPLATE",
		})
	default:
		return c.Status(500).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "ERR_TEMPLATE_STORE",
		})
	}
}
