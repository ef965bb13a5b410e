package routes

import (
	"github.com/go2school/go2school/pkg/fleet"
	"github.com/go2school/go2school/pkg/store"
	"github.com/go2school/go2school/pkg/tracker"
	"github.com/go2school/go2school/pkg/views"
	"github.com/gofiber/fiber/v2"
)

func FleetRouter(router fiber.Router, engine *tracker.Engine) {
	router.Get("/summary", getFleetSummary(engine))
}

func getFleetSummary(engine *tracker.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		summary := views.FleetSummary(
			store.Items[*fleet.Vehicle](engine.GetSnapshot(fleet.CollectionVehicles)),
			store.Items[*fleet.Occupant](engine.GetSnapshot(fleet.CollectionOccupants)),
		)

		return c.JSON(summary)
	}
}
