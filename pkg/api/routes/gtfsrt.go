package routes

import (
	"time"

	"github.com/go2school/go2school/pkg/fleet"
	"github.com/go2school/go2school/pkg/gtfsrt"
	"github.com/go2school/go2school/pkg/store"
	"github.com/go2school/go2school/pkg/tracker"
	"github.com/gofiber/fiber/v2"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

func GTFSRealtimeRouter(router fiber.Router, engine *tracker.Engine) {
	router.Get("/vehicle-positions", getVehiclePositions(engine))
}

func getVehiclePositions(engine *tracker.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		vehicles := store.Items[*fleet.Vehicle](engine.GetSnapshot(fleet.CollectionVehicles))
		feed := gtfsrt.VehiclePositions(vehicles, time.Now())

		if c.Query("format") == "json" {
			body, err := protojson.Marshal(feed)
			if err != nil {
				return sendError(c, err)
			}

			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Send(body)
		}

		body, err := proto.Marshal(feed)
		if err != nil {
			return sendError(c, err)
		}

		c.Set(fiber.HeaderContentType, "application/x-protobuf")
		return c.Send(body)
	}
}
