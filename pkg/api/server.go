package api

import (
	"github.com/go2school/go2school/pkg/api/routes"
	"github.com/go2school/go2school/pkg/boarding"
	"github.com/go2school/go2school/pkg/tracker"
	"github.com/gofiber/fiber/v2"
)

func NewApp(engine *tracker.Engine, boardingService *boarding.Service) *fiber.App {
	webApp := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	webApp.Use(NewLogger())

	group := webApp.Group("/core")

	group.Get("version", routes.APIVersion)

	routes.CollectionsRouter(group.Group("/collections"), engine)
	routes.StreamRouter(group.Group("/stream"), engine)

	routes.VehiclesRouter(group.Group("/vehicles"), engine, boardingService)
	routes.OccupantsRouter(group.Group("/occupants"), engine, boardingService)
	routes.UsersRouter(group.Group("/users"), engine)
	routes.FleetRouter(group.Group("/fleet"), engine)

	routes.GTFSRealtimeRouter(group.Group("/gtfs-rt"), engine)

	return webApp
}

func SetupServer(listen string, engine *tracker.Engine, boardingService *boarding.Service) error {
	return NewApp(engine, boardingService).Listen(listen)
}
