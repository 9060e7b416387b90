package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/speaker-diarization/internal/apperr"
	"github.com/codebuildervaibhav/speaker-diarization/internal/storage"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// HistoryHandler serves recorded diarizations
type HistoryHandler struct {
	history HistoryStore
	archive ResultArchive
}

// NewHistoryHandler creates a history handler. Either store may be nil.
func NewHistoryHandler(history HistoryStore, archive ResultArchive) *HistoryHandler {
	return &HistoryHandler{history: history, archive: archive}
}

// List serves GET /diarizations
func (h *HistoryHandler) List(c *fiber.Ctx) error {
	if h.history == nil {
		return apperr.NotFound("diarization history", "")
	}

	limit := c.QueryInt("limit", defaultListLimit)
	if limit < 1 {
		return apperr.InvalidInput("limit", "must be a positive integer")
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	records, err := h.history.ListDiarizations(c.UserContext(), limit)
	if err != nil {
		return apperr.Internal("", err)
	}
	return c.JSON(records)
}

// Get serves GET /diarizations/:id
func (h *HistoryHandler) Get(c *fiber.Ctx) error {
	if h.history == nil {
		return apperr.NotFound("diarization history", "")
	}

	id := c.Params("id")
	rec, err := h.history.GetDiarization(c.UserContext(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("diarization", id)
	}
	if err != nil {
		return apperr.Internal("", err)
	}
	return c.JSON(rec)
}

// Result serves GET /diarizations/:id/result
func (h *HistoryHandler) Result(c *fiber.Ctx) error {
	if h.history == nil || h.archive == nil {
		return apperr.NotFound("diarization result", "")
	}

	id := c.Params("id")
	rec, err := h.history.GetDiarization(c.UserContext(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("diarization", id)
	}
	if err != nil {
		return apperr.Internal("", err)
	}

	data, err := h.archive.LoadResult(rec.ID, rec.CreatedAt)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("diarization result", id)
	}
	if err != nil {
		return apperr.Internal("", err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.Send(data)
}
