package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/voice-transcription/internal/memory"
	"github.com/codebuildervaibhav/voice-transcription/internal/types"
)

// PoolsHandler exposes context pools and the transcription history.
type PoolsHandler struct {
	memory  *memory.Store
	history *memory.History
}

// NewPoolsHandler creates a handler over context memory and history.
func NewPoolsHandler(mem *memory.Store, hist *memory.History) *PoolsHandler {
	return &PoolsHandler{memory: mem, history: hist}
}

// List returns every context pool with its memory contents.
func (h *PoolsHandler) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"pools": h.memory.List()})
}

// Get returns one pool's memory text.
func (h *PoolsHandler) Get(c *fiber.Ctx) error {
	name := c.Params("name")
	mem, err := h.memory.Get(name)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "ERR_POOL_READ",
		})
	}
	return c.JSON(fiber.Map{"name": name, "memory": mem})
}

// Create adds a new empty pool.
func (h *PoolsHandler) Create(c *fiber.Ctx) error {
	var body struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
			"code":  "ERR_INVALID_BODY",
		})
	}
	if strings.TrimSpace(body.Name) == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "Pool name is required",
			"code":  "ERR_NO_NAME",
		})
	}

	if err := h.memory.CreatePool(body.Name); err != nil {
		if errors.Is(err, types.ErrDuplicateName) {
			return c.Status(409).JSON(fiber.Map{
				"error": "A pool with that name already exists",
				"code":  "ERR_DUPLICATE_NAME",
			})
		}
		return c.Status(500).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "ERR_POOL_CREATE",
		})
	}
	return c.Status(201).JSON(fiber.Map{"name": body.Name, "status": "created"})
}

// History returns the bounded transcription history, newest first.
func (h *PoolsHandler) History(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"history": h.history.Items()})
}
