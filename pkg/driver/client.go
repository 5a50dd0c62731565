package driver

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/trackmate/trackmate/pkg/realtime/gateway"
	"github.com/trackmate/trackmate/pkg/realtime/registry"
	"github.com/trackmate/trackmate/pkg/tmdf"
)

// pendingRetry is one in-flight retry chain for a single sample. Only one
// chain exists at a time; a newer sample supersedes it.
type pendingRetry struct {
	sample  tmdf.PositionSample
	attempt int
	backoff *backoff.ExponentialBackOff
	timer   *time.Timer
}

// Client is the driver-side publisher. Samples are dispatched immediately
// while connected; transient failures are retried with exponential backoff up
// to MaxRetries and then buffered; while known-offline every sample goes
// straight to the buffer. Whenever the buffer is non-empty while connected a
// single drain goroutine redelivers it in FIFO order, paced so the burst does
// not collide with the server throttle window.
type Client struct {
	config Config

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	buffer    *OfflineBuffer
	retry     *pendingRetry
	draining  bool

	// sendFrame is swappable for tests
	sendFrame func(event string, payload any) error
}

func NewClient(config Config) *Client {
	client := &Client{
		config: config,
		buffer: NewOfflineBuffer(config.BufferCapacity),
	}
	client.sendFrame = client.writeFrame

	return client
}

// Connect dials the gateway, performs the auth handshake, and drains any
// buffered samples from a previous connection
func (c *Client) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.config.URL, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.sendFrame(gateway.EventAuthToken, map[string]string{"token": c.config.Token}); err != nil {
		c.markOffline()
		return err
	}

	go c.readLoop(conn)

	c.mu.Lock()
	c.startDrainLocked()
	c.mu.Unlock()

	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelRetryLocked()
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Report queues or dispatches one position sample. A newer sample always
// supersedes a pending retry chain: the superseded sample is buffered so
// FIFO order is kept, and its timer is cancelled before anything else
// happens.
func (c *Client) Report(sample tmdf.PositionSample) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.retry != nil {
		superseded := c.retry.sample
		c.cancelRetryLocked()
		c.buffer.Push(superseded)
	}

	if !c.connected || c.buffer.Len() > 0 {
		c.buffer.Push(sample)
		if c.connected {
			c.startDrainLocked()
		}
		return
	}

	c.dispatchLocked(sample, 0, nil)
}

// Buffered reports how many samples are waiting for redelivery
func (c *Client) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.buffer.Len()
}

// dispatchLocked sends one sample, scheduling a backoff retry on failure.
// Caller holds c.mu.
func (c *Client) dispatchLocked(sample tmdf.PositionSample, attempt int, retryBackoff *backoff.ExponentialBackOff) {
	err := c.sendFrame(gateway.EventDriverLocation, sample)
	if err == nil {
		return
	}

	if attempt+1 >= c.config.MaxRetries {
		log.Warn().Err(err).Str("trip", sample.TripID).Msg("Dispatch retries exhausted, buffering sample")
		c.buffer.Push(sample)
		if c.connected {
			c.startDrainLocked()
		}
		return
	}

	if retryBackoff == nil {
		retryBackoff = backoff.NewExponentialBackOff()
		retryBackoff.InitialInterval = 200 * time.Millisecond
		retryBackoff.MaxInterval = 2 * time.Second
	}

	retry := &pendingRetry{
		sample:  sample,
		attempt: attempt + 1,
		backoff: retryBackoff,
	}
	retry.timer = time.AfterFunc(retryBackoff.NextBackOff(), func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		// A newer sample may have superseded this chain already
		if c.retry != retry {
			return
		}
		c.retry = nil

		c.dispatchLocked(retry.sample, retry.attempt, retry.backoff)
	})

	c.retry = retry
}

// cancelRetryLocked stops any pending retry timer. Caller holds c.mu.
func (c *Client) cancelRetryLocked() {
	if c.retry == nil {
		return
	}

	c.retry.timer.Stop()
	c.retry = nil
}

// startDrainLocked spawns the drain goroutine unless one is already running.
// Caller holds c.mu.
func (c *Client) startDrainLocked() {
	if c.draining {
		return
	}

	c.draining = true
	go c.drain()
}

// drain redelivers buffered samples in FIFO order, pacing sends so a backlog
// does not land inside one server throttle window
func (c *Client) drain() {
	pace := 500 * time.Millisecond
	if c.config.PublishInterval < pace {
		pace = c.config.PublishInterval
	}

	for {
		c.mu.Lock()
		if !c.connected {
			c.draining = false
			c.mu.Unlock()
			return
		}

		sample, ok := c.buffer.Pop()
		if !ok {
			c.draining = false
			c.mu.Unlock()
			return
		}

		if err := c.sendFrame(gateway.EventDriverLocation, sample); err != nil {
			c.buffer.Requeue(sample)
			c.draining = false
			c.mu.Unlock()

			c.markOffline()
			return
		}
		c.mu.Unlock()

		time.Sleep(pace)
	}
}

func (c *Client) markOffline() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.connected = false
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			log.Info().Err(err).Msg("Gateway connection lost")
			c.markOffline()
			return
		}

		var envelope gateway.Envelope
		if err := json.Unmarshal(frame, &envelope); err != nil {
			continue
		}

		if envelope.Event == registry.EventAuthReady {
			log.Debug().Msg("Authenticated with gateway")
		}
	}
}

func (c *Client) writeFrame(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return c.conn.WriteJSON(gateway.Envelope{Event: event, Data: data})
}
