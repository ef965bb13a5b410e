package routes

import (
	"time"

	"github.com/go2school/go2school/pkg/boarding"
	"github.com/go2school/go2school/pkg/fleet"
	"github.com/go2school/go2school/pkg/store"
	"github.com/go2school/go2school/pkg/tracker"
	"github.com/go2school/go2school/pkg/views"
	"github.com/gocarina/gocsv"
	"github.com/gofiber/fiber/v2"
	"github.com/jinzhu/copier"
)

func OccupantsRouter(router fiber.Router, engine *tracker.Engine, boardingService *boarding.Service) {
	router.Get("/", listOccupants(engine))
	router.Get("/attendance.csv", attendanceExport(engine))

	for _, action := range []boarding.Action{boarding.ActionBoard, boarding.ActionDeboard, boarding.ActionReset, boarding.ActionCorrect} {
		router.Post("/:id/"+string(action), applyBoardingAction(boardingService, action))
	}
}

func listOccupants(engine *tracker.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		occupants := store.Items[*fleet.Occupant](engine.GetSnapshot(fleet.CollectionOccupants))

		if guardian := c.Query("guardian"); guardian != "" {
			occupants = views.FilterByGuardianID(occupants, guardian)
		}

		return c.JSON(occupants)
	}
}

func applyBoardingAction(boardingService *boarding.Service, action boarding.Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		occupant, err := boardingService.Apply(c.Params("id"), action)
		if err != nil {
			return sendError(c, err)
		}

		return c.JSON(occupant)
	}
}

type attendanceRow struct {
	ID         string `csv:"occupant_id"`
	Name       string `csv:"name"`
	GuardianID string `csv:"guardian_id"`
	VehicleID  string `csv:"vehicle_id"`
	StopID     string `csv:"stop_id"`
	Status     string `csv:"status"`
	BoardedAt  string `csv:"boarded_at"`
}

func attendanceExport(engine *tracker.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		occupants := store.Items[*fleet.Occupant](engine.GetSnapshot(fleet.CollectionOccupants))

		rows := []*attendanceRow{}
		if err := copier.Copy(&rows, &occupants); err != nil {
			return sendError(c, err)
		}

		for i, occupant := range occupants {
			if occupant.BoardTime != nil {
				rows[i].BoardedAt = occupant.BoardTime.Format(time.RFC3339)
			}
		}

		body, err := gocsv.MarshalBytes(&rows)
		if err != nil {
			return sendError(c, err)
		}

		c.Set(fiber.HeaderContentType, "text/csv")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="attendance.csv"`)
		return c.Send(body)
	}
}
