package driver

import (
	"github.com/rs/zerolog/log"
	"github.com/trackmate/trackmate/pkg/tmdf"
)

const DefaultBufferCapacity = 500

// OfflineBuffer holds position samples that could not be delivered, in the
// order they were produced. It is bounded; at capacity the oldest entry is
// dropped so the buffer always holds the most recent window of the journey.
//
// Not safe for concurrent use - the client serializes all access under its
// own lock.
type OfflineBuffer struct {
	capacity int
	entries  []tmdf.PositionSample
}

func NewOfflineBuffer(capacity int) *OfflineBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}

	return &OfflineBuffer{capacity: capacity}
}

// Push appends a sample, evicting the oldest entry when full
func (b *OfflineBuffer) Push(sample tmdf.PositionSample) {
	if len(b.entries) >= b.capacity {
		b.entries = b.entries[1:]
		log.Debug().Str("trip", sample.TripID).Msg("Offline buffer full, dropping oldest sample")
	}

	b.entries = append(b.entries, sample)
}

// Pop removes and returns the oldest sample
func (b *OfflineBuffer) Pop() (tmdf.PositionSample, bool) {
	if len(b.entries) == 0 {
		return tmdf.PositionSample{}, false
	}

	sample := b.entries[0]
	b.entries = b.entries[1:]
	return sample, true
}

// Requeue puts a sample back at the front after a failed redelivery so FIFO
// order is preserved
func (b *OfflineBuffer) Requeue(sample tmdf.PositionSample) {
	if len(b.entries) >= b.capacity {
		return
	}

	b.entries = append([]tmdf.PositionSample{sample}, b.entries...)
}

func (b *OfflineBuffer) Len() int {
	return len(b.entries)
}
