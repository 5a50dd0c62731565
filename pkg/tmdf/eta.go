package tmdf

import "time"

type ETASource string

const (
	ETASourceServer   ETASource = "server"
	ETASourceFallback ETASource = "fallback"
)

type StopETA struct {
	StopID string `json:"stopId" groups:"basic"`
	ETAMs  int64  `json:"etaMs" groups:"basic"`
}

// ETASet holds the estimates for every remaining stop of a trip. Superseded
// by each newer set, never persisted.
type ETASet struct {
	TripID string `json:"tripId" groups:"basic"`

	// ETAs is keyed by stop sequence; integer keys marshal as strings so the
	// wire shape matches { [stopSeq]: etaMs }
	ETAs map[int]int64 `json:"etasMap" groups:"basic"`

	List []StopETA `json:"etas,omitempty" groups:"basic"`

	Source     ETASource `json:"source" groups:"basic"`
	ComputedAt time.Time `json:"computedAt" groups:"basic"`
}
