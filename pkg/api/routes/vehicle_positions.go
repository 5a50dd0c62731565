package routes

import (
	"context"
	"fmt"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/trackmate/trackmate/pkg/database"
	"github.com/trackmate/trackmate/pkg/realtime/snapshot"
	"github.com/trackmate/trackmate/pkg/tmdf"
	"go.mongodb.org/mongo-driver/bson"
	"google.golang.org/protobuf/proto"
)

const feedVersion = "2.0"

// VehiclePositionsRoute serves the last known position of every active trip
// as a GTFS-RT FeedMessage for external map consumers
func VehiclePositionsRoute(snapshots *snapshot.Cache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tripsCollection := database.GetCollection("trips")
		cursor, _ := tripsCollection.Find(context.Background(), bson.M{"status": tmdf.TripStatusActive})

		now := time.Now()
		feed := gtfs.FeedMessage{
			Header: &gtfs.FeedHeader{
				GtfsRealtimeVersion: proto.String(feedVersion),
				Incrementality:      gtfs.FeedHeader_FULL_DATASET.Enum(),
				Timestamp:           proto.Uint64(uint64(now.Unix())),
			},
		}

		for cursor.Next(context.TODO()) {
			var trip *tmdf.Trip
			if err := cursor.Decode(&trip); err != nil {
				log.Error().Err(err).Msg("Failed to decode Trip")
				continue
			}

			snap, err := snapshots.Get(trip.PrimaryIdentifier)
			if err != nil || snap == nil {
				continue
			}

			entityID := fmt.Sprintf("%s-%d", trip.PrimaryIdentifier, snap.Position.Timestamp.Unix())
			feed.Entity = append(feed.Entity, &gtfs.FeedEntity{
				Id: proto.String(entityID),
				Vehicle: &gtfs.VehiclePosition{
					Trip: &gtfs.TripDescriptor{
						TripId:  proto.String(trip.PrimaryIdentifier),
						RouteId: proto.String(trip.RouteID),
					},
					Vehicle: &gtfs.VehicleDescriptor{
						Id: proto.String(trip.BusID),
					},
					Position: &gtfs.Position{
						Latitude:  proto.Float32(float32(snap.Position.Latitude)),
						Longitude: proto.Float32(float32(snap.Position.Longitude)),
						Bearing:   proto.Float32(float32(snap.Position.Heading)),
						Speed:     proto.Float32(float32(snap.Position.Speed)),
					},
					Timestamp: proto.Uint64(uint64(snap.Position.Timestamp.Unix())),
				},
			})
		}

		feedBytes, err := proto.Marshal(&feed)
		if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Could not marshal vehicle positions feed",
			})
		}

		c.Set(fiber.HeaderContentType, "application/x-protobuf")
		return c.Send(feedBytes)
	}
}
