package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/trackmate/trackmate/pkg/redis_client"
	"github.com/trackmate/trackmate/pkg/tmdf"
)

// Snapshot is the latest authoritative state of a trip, served to
// reconnecting subscribers in place of the missed event stream
type Snapshot struct {
	TripID string `json:"tripId"`

	Position tmdf.NormalizedPosition `json:"position"`
	ETAs     *tmdf.ETASet            `json:"etas,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

type Cache struct {
	cache *cache.Cache[string]
}

// NewCache creates a snapshot cache on the shared redis client. Entries
// expire on their own so an ended trip's position disappears without a
// cleanup pass.
func NewCache() *Cache {
	redisStore := redisstore.NewRedis(redis_client.Client, store.WithExpiration(10*time.Minute))

	return &Cache{
		cache: cache.New[string](redisStore),
	}
}

func snapshotKey(tripID string) string {
	return fmt.Sprintf("snapshot/trip/%s", tripID)
}

func (c *Cache) Store(snap Snapshot) error {
	encoded, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	return c.cache.Set(context.Background(), snapshotKey(snap.TripID), string(encoded))
}

func (c *Cache) Get(tripID string) (*Snapshot, error) {
	encoded, err := c.cache.Get(context.Background(), snapshotKey(tripID))
	if err != nil {
		return nil, err
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(encoded), &snap); err != nil {
		return nil, err
	}

	return &snap, nil
}
