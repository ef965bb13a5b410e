package routes

import (
	"github.com/go2school/go2school/pkg/boarding"
	"github.com/go2school/go2school/pkg/fleet"
	"github.com/go2school/go2school/pkg/store"
	"github.com/go2school/go2school/pkg/tracker"
	"github.com/go2school/go2school/pkg/views"
	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
)

var viewGroups = map[string][]string{
	"basic":    {"basic"},
	"detailed": {"basic", "detailed"},
}

func VehiclesRouter(router fiber.Router, engine *tracker.Engine, boardingService *boarding.Service) {
	router.Get("/", listVehicles(engine))
	router.Get("/:id", getVehicle(engine))
	router.Get("/:id/eta", getVehicleETA(engine))
	router.Get("/:id/conditions", getVehicleConditions(engine))
	router.Post("/:id/distress", raiseDistress(engine))
	router.Post("/:id/board-all", boardAll(boardingService))
}

func listVehicles(engine *tracker.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		groups, ok := viewGroups[c.Query("view", "basic")]
		if !ok {
			return sendBadRequest(c, "view must be basic or detailed")
		}

		vehicles := views.Fleet(store.Items[*fleet.Vehicle](engine.GetSnapshot(fleet.CollectionVehicles)))

		rect, filtered, err := getBoundsQuery(c)
		if err != nil {
			return sendBadRequest(c, err.Error())
		}
		if filtered {
			vehicles = withinBounds(vehicles, rect)
		}

		reduced, err := sheriff.Marshal(&sheriff.Options{
			Groups: groups,
		}, vehicles)
		if err != nil {
			c.Status(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Sherrif could not reduce Vehicles",
			})
		}

		return c.JSON(reduced)
	}
}

func getVehicle(engine *tracker.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		vehicle, err := engine.Vehicle(c.Params("id"))
		if err != nil {
			return sendError(c, err)
		}

		return c.JSON(vehicle)
	}
}

func getVehicleETA(engine *tracker.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		estimate := engine.ETA(c.Params("id"))

		return c.JSON(fiber.Map{
			"vehicle":  c.Params("id"),
			"estimate": estimate,
			"display":  estimate.String(),
		})
	}
}

func getVehicleConditions(engine *tracker.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		vehicle, err := engine.Vehicle(c.Params("id"))
		if err != nil {
			return sendError(c, err)
		}

		evaluator := engine.Evaluator()

		return c.JSON(fiber.Map{
			"vehicle":     vehicle.ID,
			"speedAlert":  evaluator.SpeedAlert(vehicle.Speed),
			"safetyTier":  evaluator.SafetyTier(vehicle.SafetyScore),
			"conditions":  evaluator.Conditions(vehicle),
			"safetyScore": vehicle.SafetyScore,
			"speed":       vehicle.Speed,
		})
	}
}

type distressRequest struct {
	Message string `json:"message"`
}

func raiseDistress(engine *tracker.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var request distressRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&request); err != nil {
				return sendBadRequest(c, "Request body must be a JSON object")
			}
		}

		notification, err := engine.RaiseDistress(c.Params("id"), request.Message)
		if err != nil {
			return sendError(c, err)
		}

		c.Status(fiber.StatusCreated)
		return c.JSON(notification)
	}
}

func boardAll(boardingService *boarding.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		boarded, err := boardingService.BoardAll(c.Params("id"))
		if err != nil {
			return sendError(c, err)
		}

		return c.JSON(boarded)
	}
}
