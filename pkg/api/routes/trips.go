package routes

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	"github.com/rs/zerolog/log"
	"github.com/trackmate/trackmate/pkg/database"
	"github.com/trackmate/trackmate/pkg/realtime/snapshot"
	"github.com/trackmate/trackmate/pkg/tmdf"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TripsRouter(router fiber.Router, snapshots *snapshot.Cache) {
	router.Get("/", listActiveTrips)
	router.Get("/:identifier", getTrip)
	router.Get("/:identifier/snapshot", getTripSnapshot(snapshots))
	router.Get("/:identifier/events", getTripStopEvents)
}

func listActiveTrips(c *fiber.Ctx) error {
	trips := []tmdf.Trip{}

	tripsCollection := database.GetCollection("trips")
	cursor, _ := tripsCollection.Find(context.Background(), bson.M{"status": tmdf.TripStatusActive})

	for cursor.Next(context.TODO()) {
		var trip *tmdf.Trip
		err := cursor.Decode(&trip)
		if err != nil {
			log.Error().Err(err).Msg("Failed to decode Trip")
			continue
		}

		trips = append(trips, *trip)
	}

	tripsReduced, err := sheriff.Marshal(&sheriff.Options{
		Groups: []string{"basic"},
	}, trips)

	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Sherrif could not reduce trips",
		})
	}

	return c.JSON(tripsReduced)
}

func getTrip(c *fiber.Ctx) error {
	identifier := c.Params("identifier")

	tripsCollection := database.GetCollection("trips")
	var trip *tmdf.Trip
	tripsCollection.FindOne(context.Background(), bson.M{"primaryidentifier": identifier}).Decode(&trip)

	if trip == nil {
		c.SendStatus(fiber.StatusNotFound)
		return c.JSON(fiber.Map{
			"error": "Could not find Trip matching Trip Identifier",
		})
	}

	tripReduced, err := sheriff.Marshal(&sheriff.Options{
		Groups: []string{"basic"},
	}, trip)

	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Sherrif could not reduce Trip",
		})
	}

	return c.JSON(tripReduced)
}

func getTripSnapshot(snapshots *snapshot.Cache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := c.Params("identifier")

		snap, err := snapshots.Get(identifier)
		if err != nil || snap == nil {
			c.SendStatus(fiber.StatusNotFound)
			return c.JSON(fiber.Map{
				"error": "No live snapshot for Trip Identifier",
			})
		}

		return c.JSON(snap)
	}
}

func getTripStopEvents(c *fiber.Ctx) error {
	identifier := c.Params("identifier")

	stopEventsCollection := database.GetCollection("stop_events")

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(100)
	cursor, _ := stopEventsCollection.Find(context.Background(), bson.M{"tripid": identifier}, opts)

	stopEvents := []tmdf.StopEvent{}
	for cursor.Next(context.TODO()) {
		var stopEvent *tmdf.StopEvent
		err := cursor.Decode(&stopEvent)
		if err != nil {
			log.Error().Err(err).Msg("Failed to decode StopEvent")
			continue
		}

		stopEvents = append(stopEvents, *stopEvent)
	}

	stopEventsReduced, err := sheriff.Marshal(&sheriff.Options{
		Groups: []string{"basic"},
	}, stopEvents)

	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Sherrif could not reduce stop events",
		})
	}

	return c.JSON(stopEventsReduced)
}
