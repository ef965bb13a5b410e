package routes

import (
	"errors"

	"github.com/go2school/go2school/pkg/boarding"
	"github.com/go2school/go2school/pkg/store"
	"github.com/gofiber/fiber/v2"
)

func errorStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrUnknownCollection):
		return fiber.StatusNotFound
	case errors.Is(err, store.ErrInvalidFields):
		return fiber.StatusBadRequest
	case errors.Is(err, store.ErrDuplicate), errors.Is(err, boarding.ErrInvalidTransition):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func sendError(c *fiber.Ctx, err error) error {
	c.Status(errorStatus(err))
	return c.JSON(fiber.Map{
		"error": err.Error(),
	})
}

func sendBadRequest(c *fiber.Ctx, message string) error {
	c.Status(fiber.StatusBadRequest)
	return c.JSON(fiber.Map{
		"error": message,
	})
}
