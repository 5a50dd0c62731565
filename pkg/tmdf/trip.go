package tmdf

import "time"

type TripStatus string

const (
	TripStatusActive TripStatus = "active"
	TripStatusEnded  TripStatus = "ended"
)

type Trip struct {
	PrimaryIdentifier string `groups:"basic" bson:",omitempty"`

	BusID    string `groups:"basic" bson:",omitempty"`
	DriverID string `groups:"internal" bson:",omitempty"`
	RouteID  string `groups:"basic" bson:",omitempty"`

	Stops []RouteStop `groups:"basic" bson:",omitempty"`

	StartTime time.Time  `groups:"basic" bson:",omitempty"`
	EndTime   *time.Time `groups:"basic" json:",omitempty" bson:",omitempty"`

	// CurrentStopIndex is the sequence of the last stop the bus arrived at,
	// -1 when no stop has been reached yet
	CurrentStopIndex int `groups:"basic"`

	Status TripStatus `groups:"basic" bson:",omitempty"`
}

type RouteStop struct {
	Sequence    int       `groups:"basic"`
	PrimaryName string    `groups:"basic" bson:",omitempty"`
	Location    *Location `groups:"basic" bson:",omitempty"`
}

type Route struct {
	PrimaryIdentifier string `groups:"basic" bson:",omitempty"`

	PrimaryName string `groups:"basic" bson:",omitempty"`

	Stops []RouteStop `groups:"basic" bson:",omitempty"`
}

type Bus struct {
	PrimaryIdentifier string `groups:"basic" bson:",omitempty"`

	Registration string `groups:"basic" bson:",omitempty"`
	Capacity     int    `groups:"basic" bson:",omitempty"`
}
