package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/FlavioCFOliveira/upifraud/internal/dataset"
	"github.com/FlavioCFOliveira/upifraud/internal/fraud"
	"github.com/FlavioCFOliveira/upifraud/internal/session"
	"github.com/FlavioCFOliveira/upifraud/internal/stream"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, fraud.ErrInsufficientData):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, fraud.ErrUntrainedModel):
		return fiber.StatusPreconditionFailed
	case errors.Is(err, session.ErrTrainingInProgress), errors.Is(err, stream.ErrAlreadyRunning):
		return fiber.StatusConflict
	case errors.Is(err, fraud.ErrUnknownArchitecture),
		errors.Is(err, dataset.ErrEmptyInput),
		errors.Is(err, dataset.ErrMissingColumns),
		errors.Is(err, session.ErrNoDataset),
		errors.Is(err, stream.ErrNoData),
		errors.Is(err, fraud.ErrVocabularyDrift):
		return fiber.StatusBadRequest
	case errors.Is(err, context.Canceled):
		// nginx's "client closed request"; here it means the run was cancelled.
		return 499
	default:
		return fiber.StatusInternalServerError
	}
}

func (h *Handler) errorHandler(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		h.Log.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   err.Error(),
	})
}
