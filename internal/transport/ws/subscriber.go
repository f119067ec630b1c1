package ws

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var errSubscriberClosed = errors.New("subscriber connection closed")
var errSendBufferFull = errors.New("subscriber send buffer full")

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// Inbound frames are ignored; the read loop only detects closure.
	maxMessageSize = 512
)

// subscriber adapts one WebSocket connection to the broadcast.Subscriber
// contract. Send never blocks: payloads are queued on a buffered channel
// drained by a dedicated writer goroutine, so one slow connection cannot
// stall a broadcast.
type subscriber struct {
	id           string
	conn         *websocket.Conn
	send         chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
	logger       *slog.Logger
}

func newSubscriber(id string, conn *websocket.Conn, bufferSize int, writeTimeout time.Duration, logger *slog.Logger) *subscriber {
	return &subscriber{
		id:           id,
		conn:         conn,
		send:         make(chan []byte, bufferSize),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

func (s *subscriber) ID() string {
	return s.id
}

// Send queues a payload for delivery. It fails instead of blocking when
// the connection is closed or the subscriber has fallen behind.
func (s *subscriber) Send(payload []byte) error {
	select {
	case <-s.done:
		return errSubscriberClosed
	default:
	}
	select {
	case s.send <- payload:
		return nil
	default:
		return errSendBufferFull
	}
}

// Close signals the pumps to shut the connection down. Idempotent.
func (s *subscriber) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// writePump drains the send queue onto the connection and keeps the
// connection alive with pings. It owns all writes.
func (s *subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case payload := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.logger.Debug("Subscriber write failed", "subscriber_id", s.id, "error", err)
				s.Close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// readPump consumes inbound frames solely to detect the transport's
// close or error signal; onClose prunes the registry entry eagerly.
func (s *subscriber) readPump(onClose func()) {
	defer func() {
		onClose()
		s.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("Subscriber read failed", "subscriber_id", s.id, "error", err)
			}
			return
		}
	}
}
