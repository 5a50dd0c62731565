package driver

import (
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/trackmate/trackmate/pkg/tmdf"
	"gopkg.in/yaml.v3"
)

// Duration accepts human friendly values like "3s" in route files
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return err
	}

	*d = Duration(parsed)
	return nil
}

// SimulatedRoute is a YAML description of a journey to replay through the
// real driver client
type SimulatedRoute struct {
	Name string `yaml:"name"`

	TripID   string `yaml:"trip"`
	BusID    string `yaml:"bus"`
	DriverID string `yaml:"driver"`

	// Speed in metres per second
	Speed float64 `yaml:"speed"`

	Interval Duration `yaml:"interval"`

	Stops []SimulatedStop `yaml:"stops"`
}

type SimulatedStop struct {
	Name      string  `yaml:"name"`
	Latitude  float64 `yaml:"lat"`
	Longitude float64 `yaml:"lng"`

	// Dwell is how long the bus waits at the stop before moving on
	Dwell Duration `yaml:"dwell"`
}

func LoadSimulatedRoute(path string) (*SimulatedRoute, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	route := &SimulatedRoute{
		Speed:    8,
		Interval: Duration(1 * time.Second),
	}
	if err := yaml.Unmarshal(contents, route); err != nil {
		return nil, err
	}

	return route, nil
}

// Samples expands the route into the position samples a real device would
// produce, one per interval, interpolated between stops at the configured
// speed
func (r *SimulatedRoute) Samples() []tmdf.PositionSample {
	var samples []tmdf.PositionSample
	timestamp := time.Now()
	interval := time.Duration(r.Interval)

	appendSample := func(lat float64, lon float64) {
		samples = append(samples, tmdf.PositionSample{
			DriverID:  r.DriverID,
			TripID:    r.TripID,
			BusID:     r.BusID,
			Latitude:  lat,
			Longitude: lon,
			Speed:     r.Speed,
			Timestamp: timestamp,
		})
		timestamp = timestamp.Add(interval)
	}

	for i := 0; i < len(r.Stops)-1; i++ {
		from := r.Stops[i]
		to := r.Stops[i+1]

		appendSample(from.Latitude, from.Longitude)

		for dwell := time.Duration(0); dwell < time.Duration(from.Dwell); dwell += interval {
			appendSample(from.Latitude, from.Longitude)
		}

		distance := tmdf.NewLocation(from.Latitude, from.Longitude).
			Distance(tmdf.NewLocation(to.Latitude, to.Longitude))

		stepMetres := r.Speed * interval.Seconds()
		steps := int(distance / stepMetres)

		for step := 1; step < steps; step++ {
			fraction := float64(step) / float64(steps)
			appendSample(
				from.Latitude+(to.Latitude-from.Latitude)*fraction,
				from.Longitude+(to.Longitude-from.Longitude)*fraction,
			)
		}
	}

	if len(r.Stops) > 0 {
		last := r.Stops[len(r.Stops)-1]
		appendSample(last.Latitude, last.Longitude)
	}

	return samples
}

// Replay feeds the expanded samples through the client in real time
func (r *SimulatedRoute) Replay(client *Client) {
	samples := r.Samples()

	log.Info().
		Str("route", r.Name).
		Str("trip", r.TripID).
		Int("samples", len(samples)).
		Msg("Replaying simulated route")

	for _, sample := range samples {
		sample.Timestamp = time.Now()
		client.Report(sample)

		time.Sleep(time.Duration(r.Interval))
	}

	log.Info().
		Str("route", r.Name).
		Int("buffered", client.Buffered()).
		Msg("Simulated route complete")
}
