package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trackmate/trackmate/pkg/tmdf"
)

func numberedSample(n int) tmdf.PositionSample {
	return tmdf.PositionSample{
		DriverID: "driver-1",
		TripID:   "trip-1",
		Latitude: float64(n),
	}
}

func TestBufferFIFO(t *testing.T) {
	buffer := NewOfflineBuffer(10)

	for i := 0; i < 3; i++ {
		buffer.Push(numberedSample(i))
	}

	require.Equal(t, 3, buffer.Len())

	for i := 0; i < 3; i++ {
		sample, ok := buffer.Pop()
		require.True(t, ok)
		assert.Equal(t, float64(i), sample.Latitude)
	}

	_, ok := buffer.Pop()
	assert.False(t, ok)
}

func TestBufferDropsOldestAtCapacity(t *testing.T) {
	buffer := NewOfflineBuffer(3)

	for i := 0; i < 5; i++ {
		buffer.Push(numberedSample(i))
	}

	require.Equal(t, 3, buffer.Len())

	sample, _ := buffer.Pop()
	assert.Equal(t, float64(2), sample.Latitude)
}

func TestBufferRequeuePreservesOrder(t *testing.T) {
	buffer := NewOfflineBuffer(10)

	buffer.Push(numberedSample(0))
	buffer.Push(numberedSample(1))

	sample, ok := buffer.Pop()
	require.True(t, ok)

	buffer.Requeue(sample)

	next, _ := buffer.Pop()
	assert.Equal(t, float64(0), next.Latitude)
}
