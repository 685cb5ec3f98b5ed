package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// MaxPayloadSize bounds the first message, which carries a base64 frame.
	MaxPayloadSize = 20 << 20
)

var ErrClosed = errors.New("websocket: session closed")

// Conn is the part of *websocket.Conn a Session needs.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Session is one question/answer exchange over a websocket. The client
// sends a single payload message and then only listens; outbound messages
// go through a buffered queue drained by WritePump.
type Session struct {
	conn Conn
	send chan []byte

	done     chan struct{}
	doneOnce sync.Once

	closeOnce sync.Once
	flushed   chan struct{}
}

func NewSession(conn Conn) *Session {
	return &Session{
		conn:    conn,
		send:    make(chan []byte, 32),
		done:    make(chan struct{}),
		flushed: make(chan struct{}),
	}
}

// ReadPayload decodes the first client message into v.
func (s *Session) ReadPayload(v interface{}) error {
	s.conn.SetReadLimit(MaxPayloadSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Done is closed once the peer is gone or a write failed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) shutdown() {
	s.doneOnce.Do(func() { close(s.done) })
}

// SendJSON queues v for the peer. It fails once the session is done.
func (s *Session) SendJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.SendText(data)
}

func (s *Session) SendText(data []byte) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.send <- data:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

// ReadPump watches for the peer going away and calls onClose when it does.
// Run it in its own goroutine after ReadPayload.
func (s *Session) ReadPump(onClose func()) {
	defer func() {
		s.shutdown()
		if onClose != nil {
			onClose()
		}
	}()
	s.conn.SetReadLimit(512)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// WritePump writes queued messages and keeps the connection alive with
// pings until Close is called or a write fails.
func (s *Session) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
		close(s.flushed)
	}()

	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.shutdown()
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.shutdown()
				return
			}
		}
	}
}

// Close flushes queued messages, sends a close frame and waits for
// WritePump to exit. Call it once no more messages will be sent.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.send) })
	<-s.flushed
}
