package server

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Seednode/feudbox/internal/room"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	sendBuffer = 256
)

var (
	errConnClosed = errors.New("connection closed")
	errConnSlow   = errors.New("send buffer full")
)

// Conn is one websocket client. Outbound frames are queued and written by a
// single goroutine, so frames reach the client in the order they were
// queued.
type Conn struct {
	ws  *websocket.Conn
	log zerolog.Logger

	mu      sync.Mutex
	send    chan []byte
	closing bool
	rooms   map[string]*room.Room

	done     chan struct{}
	doneOnce sync.Once
}

func newConn(ws *websocket.Conn, log zerolog.Logger) *Conn {
	return &Conn{
		ws:    ws,
		log:   log,
		send:  make(chan []byte, sendBuffer),
		rooms: make(map[string]*room.Room),
		done:  make(chan struct{}),
	}
}

// Send queues msg without blocking. A client that lets its queue fill up
// has missed a frame, so it is disconnected and must get back in for a
// fresh snapshot.
func (c *Conn) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closing {
		return errConnClosed
	}

	select {
	case c.send <- msg:
		return nil
	default:
		c.log.Warn().Int("queued", len(c.send)).Msg("send buffer full, closing connection")
		c.closeLocked()
		return errConnSlow
	}
}

// Close flushes whatever is already queued, then closes the socket.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closeLocked()
	return nil
}

func (c *Conn) closeLocked() {
	if !c.closing {
		c.closing = true
		close(c.send)
	}
}

// Done is closed once the client is gone.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) bind(r *room.Room) {
	c.mu.Lock()
	c.rooms[r.Code()] = r
	c.mu.Unlock()
}

// release detaches the connection from every room it joined.
func (c *Conn) release() {
	_ = c.Close()
	c.doneOnce.Do(func() { close(c.done) })

	c.mu.Lock()
	rooms := make([]*room.Room, 0, len(c.rooms))
	for _, r := range c.rooms {
		rooms = append(rooms, r)
	}
	c.mu.Unlock()

	for _, r := range rooms {
		r.Disconnect(c)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Debug().Err(err).Msg("write failed")
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump feeds inbound frames to handle until the socket fails.
func (c *Conn) readPump(limit int64, handle func(data []byte, binary bool)) {
	c.ws.SetReadLimit(limit)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("read failed")
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))

		handle(data, kind == websocket.BinaryMessage)
	}
}
