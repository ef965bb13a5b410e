package routes

import (
	"github.com/go2school/go2school/pkg/fleet"
	"github.com/gofiber/fiber/v2"
)

func APIVersion(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"version":     "v0.1",
		"collections": fleet.CollectionNames(),
	})
}
