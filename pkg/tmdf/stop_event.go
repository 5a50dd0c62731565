package tmdf

import "time"

type StopEventStatus string

const (
	StopEventStatusArrived StopEventStatus = "ARRIVED"
	StopEventStatusLeft    StopEventStatus = "LEFT"
)

type StopEvent struct {
	TripID string `json:"tripId" groups:"basic" bson:"tripid"`

	StopIndex int    `json:"stopIndex" groups:"basic" bson:"stopindex"`
	StopName  string `json:"stopName" groups:"basic" bson:"stopname"`

	Status StopEventStatus `json:"status" groups:"basic" bson:"status"`

	Location *Location `json:"location,omitempty" groups:"basic" bson:"location,omitempty"`

	Timestamp time.Time `json:"timestamp" groups:"basic" bson:"timestamp"`

	Source string `json:"source,omitempty" groups:"internal" bson:"source,omitempty"`
}

type SOSAlert struct {
	TripID   string    `json:"tripId" groups:"basic" bson:"tripid"`
	Location *Location `json:"location,omitempty" groups:"basic" bson:"location,omitempty"`
	Message  string    `json:"message" groups:"basic" bson:"message"`

	Timestamp time.Time `json:"timestamp" groups:"basic" bson:"timestamp"`
}
