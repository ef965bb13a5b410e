package routes

import (
	"github.com/go2school/go2school/pkg/fleet"
	"github.com/go2school/go2school/pkg/tracker"
	"github.com/go2school/go2school/pkg/views"
	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
)

func UsersRouter(router fiber.Router, engine *tracker.Engine) {
	router.Get("/:id/dashboard", getDashboard(engine))
}

// getDashboard scopes every collection to the user. Only admins see detailed fields.
func getDashboard(engine *tracker.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := engine.User(c.Params("id"))
		if err != nil {
			return sendError(c, err)
		}

		bundle := views.NewBundle(
			engine.GetSnapshot(fleet.CollectionVehicles),
			engine.GetSnapshot(fleet.CollectionRoutes),
			engine.GetSnapshot(fleet.CollectionOccupants),
			engine.GetSnapshot(fleet.CollectionNotifications),
		)
		dashboard := views.ForUser(user, bundle)

		groups := viewGroups["basic"]
		if user.Role == fleet.RoleAdmin {
			groups = viewGroups["detailed"]
		}

		reduced, err := sheriff.Marshal(&sheriff.Options{
			Groups: groups,
		}, dashboard)
		if err != nil {
			c.Status(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Sherrif could not reduce Dashboard",
			})
		}

		etas := map[string]string{}
		for _, vehicle := range dashboard.Vehicles {
			etas[vehicle.ID] = engine.ETA(vehicle.ID).String()
		}

		return c.JSON(fiber.Map{
			"dashboard": reduced,
			"eta":       etas,
		})
	}
}
