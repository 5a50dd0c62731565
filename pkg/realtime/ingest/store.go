package ingest

import (
	"context"

	"github.com/trackmate/trackmate/pkg/database"
	"github.com/trackmate/trackmate/pkg/tmdf"
	"go.mongodb.org/mongo-driver/bson"
)

// MongoTripStore reads trips from the trips collection. The core never
// writes trips - lifecycle belongs to the CRUD layer.
type MongoTripStore struct{}

func (s MongoTripStore) GetActiveTrip(ctx context.Context, tripID string) (*tmdf.Trip, error) {
	tripsCollection := database.GetCollection("trips")

	var trip *tmdf.Trip
	err := tripsCollection.FindOne(ctx, bson.M{
		"primaryidentifier": tripID,
		"status":            tmdf.TripStatusActive,
	}).Decode(&trip)
	if err != nil {
		return nil, err
	}

	return trip, nil
}
