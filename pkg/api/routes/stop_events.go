package routes

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	"github.com/rs/zerolog/log"
	"github.com/trackmate/trackmate/pkg/database"
	"github.com/trackmate/trackmate/pkg/tmdf"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func StopEventsRouter(router fiber.Router) {
	router.Get("/", listRecentStopEvents)
}

// listRecentStopEvents is the operator view over the whole fleet, newest
// first
func listRecentStopEvents(c *fiber.Ctx) error {
	limit, err := strconv.ParseInt(c.Query("limit", "50"), 10, 64)
	if err != nil || limit < 1 || limit > 500 {
		limit = 50
	}

	query := bson.M{}
	if tripID := c.Query("trip"); tripID != "" {
		query["tripid"] = tripID
	}
	if status := c.Query("status"); status != "" {
		query["status"] = status
	}

	stopEventsCollection := database.GetCollection("stop_events")
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(limit)
	cursor, _ := stopEventsCollection.Find(context.Background(), query, opts)

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
		Groups: []string{"basic", "internal"},
	}, stopEvents)

	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Sherrif could not reduce stop events",
		})
	}

	return c.JSON(stopEventsReduced)
}
