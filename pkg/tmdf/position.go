package tmdf

import "time"

// PositionSample is a single GPS report from a driver. Ephemeral - only the
// latest accepted sample per trip is retained.
type PositionSample struct {
	DriverID string `json:"driverId" validate:"required"`
	TripID   string `json:"tripId" validate:"required"`
	BusID    string `json:"busId"`

	Latitude  float64 `json:"lat" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"lng" validate:"gte=-180,lte=180"`

	Accuracy float64 `json:"accuracy" validate:"gte=0"`
	Speed    float64 `json:"speed"` // metres per second
	Heading  float64 `json:"heading"`

	Timestamp time.Time `json:"timestamp"`

	// Force bypasses throttling and stop ordering, used for manual
	// repositioning and simulation
	Force bool `json:"force,omitempty"`
}

func (s *PositionSample) Location() *Location {
	return NewLocation(s.Latitude, s.Longitude)
}

// NormalizedPosition is the authoritative last-known position republished to
// subscribers.
type NormalizedPosition struct {
	Latitude  float64   `json:"lat" groups:"basic"`
	Longitude float64   `json:"lng" groups:"basic"`
	Speed     float64   `json:"speed" groups:"basic"`
	Heading   float64   `json:"heading" groups:"basic"`
	Timestamp time.Time `json:"timestamp" groups:"basic"`
}

func (s *PositionSample) Normalize() NormalizedPosition {
	return NormalizedPosition{
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		Speed:     s.Speed,
		Heading:   s.Heading,
		Timestamp: s.Timestamp,
	}
}
