package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rouenrt/rouenrt/pkg/gtfsrt"
	"github.com/rouenrt/rouenrt/pkg/store"
)

const protobufContentType = "application/x-protobuf"

// SetupServer publishes the realtime store as GTFS-RT documents.
func SetupServer(listen string, realtimeStore *store.Store) error {
	return newApp(realtimeStore).Listen(listen)
}

// newApp wires the routes. Each request serialises a fresh snapshot so
// consumers always see the latest reconciled state.
func newApp(realtimeStore *store.Store) *fiber.App {
	webApp := fiber.New()
	webApp.Use(NewLogger())

	webApp.Get("/version", APIVersion)

	webApp.Get("/trip-updates", func(c *fiber.Ctx) error {
		feed := gtfsrt.BuildFeed(realtimeStore.TripUpdates(), nil)
		payload, err := gtfsrt.Encode(feed)
		if err != nil {
			return err
		}

		c.Set(fiber.HeaderContentType, protobufContentType)
		return c.Send(payload)
	})

	webApp.Get("/trip-updates.json", func(c *fiber.Ctx) error {
		feed := gtfsrt.BuildFeed(realtimeStore.TripUpdates(), nil)
		payload, err := gtfsrt.EncodeJSON(feed)
		if err != nil {
			return err
		}

		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(payload)
	})

	webApp.Get("/vehicle-positions", func(c *fiber.Ctx) error {
		feed := gtfsrt.BuildFeed(nil, realtimeStore.VehiclePositions())
		payload, err := gtfsrt.Encode(feed)
		if err != nil {
			return err
		}

		c.Set(fiber.HeaderContentType, protobufContentType)
		return c.Send(payload)
	})

	webApp.Get("/vehicle-positions.json", func(c *fiber.Ctx) error {
		feed := gtfsrt.BuildFeed(nil, realtimeStore.VehiclePositions())
		payload, err := gtfsrt.EncodeJSON(feed)
		if err != nil {
			return err
		}

		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(payload)
	})

	webApp.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	return webApp
}

func APIVersion(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"version": "v0.1",
	})
}
