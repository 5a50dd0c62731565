package gateway

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/trackmate/trackmate/pkg/stats"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096
	sendBufferSize = 64
)

var (
	errSendBufferFull   = errors.New("connection send buffer full")
	errConnectionClosed = errors.New("connection closed")
)

// Envelope is the wire frame for every gateway message in both directions
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// socket owns one websocket connection. All writes go through the buffered
// send channel and a single writePump goroutine; a full buffer means the
// subscriber is too slow and the frame is dropped rather than blocking the
// fan-out.
type socket struct {
	id   string
	conn *websocket.Conn

	send chan []byte
	done chan struct{}
}

func newSocket(id string, conn *websocket.Conn) *socket {
	return &socket{
		id:   id,
		conn: conn,

		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

// Send marshals one event frame and queues it without blocking
func (s *socket) Send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return err
	}

	select {
	case <-s.done:
		return errConnectionClosed
	default:
	}

	select {
	case s.send <- frame:
		return nil
	default:
		stats.BroadcastsDropped.Inc()
		return errSendBufferFull
	}
}

func (s *socket) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case frame := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

// readPump decodes inbound frames and hands them to the dispatcher one at a
// time, preserving per-connection ordering
func (s *socket) readPump(dispatch func(envelope Envelope)) {
	defer close(s.done)

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("connection", s.id).Msg("Websocket closed unexpectedly")
			}
			return
		}

		var envelope Envelope
		if err := json.Unmarshal(frame, &envelope); err != nil {
			log.Debug().Err(err).Str("connection", s.id).Msg("Dropping malformed frame")
			continue
		}

		dispatch(envelope)
	}
}
