package api

import (
	"fmt"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/trackmate/trackmate/pkg/api/routes"
	"github.com/trackmate/trackmate/pkg/realtime/snapshot"
)

func SetupServer(listen string) error {
	webApp := fiber.New()
	webApp.Use(NewLogger())

	startTime := time.Now()
	webApp.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString(fmt.Sprintf("pong, up %s", time.Since(startTime).Round(time.Second)))
	})

	webApp.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	snapshots := snapshot.NewCache()

	group := webApp.Group("/core")

	group.Get("version", routes.APIVersion)

	routes.TripsRouter(group.Group("/trips"), snapshots)

	routes.StopEventsRouter(group.Group("/stop_events", EnsureValidToken()))

	group.Get("/vehicle_positions", routes.VehiclePositionsRoute(snapshots))

	return webApp.Listen(listen)
}
