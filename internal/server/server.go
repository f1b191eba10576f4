/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

// Package server speaks the room protocol over websockets.
package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Seednode/feudbox/internal/assets"
	"github.com/Seednode/feudbox/internal/content"
	"github.com/Seednode/feudbox/internal/room"
)

// DefaultMaxPayload bounds a single inbound frame.
const DefaultMaxPayload = 5 << 20

type Options struct {
	Rooms    room.Registry
	Content  *content.Loader
	Assets   *assets.Store
	Logger   zerolog.Logger
	Recorder Recorder

	MaxPayload int64
	// CheckOrigin vets the Origin of upgrade requests; any origin is
	// accepted when nil.
	CheckOrigin func(r *http.Request) bool
	// NewID names game window connections; uuid.NewString by default.
	NewID func() string
}

type Server struct {
	rooms    room.Registry
	content  *content.Loader
	assets   *assets.Store
	log      zerolog.Logger
	metrics  Recorder
	limit    int64
	newID    func() string
	upgrader websocket.Upgrader
}

func New(opts Options) *Server {
	s := &Server{
		rooms:   opts.Rooms,
		content: opts.Content,
		assets:  opts.Assets,
		log:     opts.Logger,
		metrics: opts.Recorder,
		limit:   opts.MaxPayload,
		newID:   opts.NewID,
	}
	if s.metrics == nil {
		s.metrics = NopRecorder{}
	}
	if s.limit <= 0 {
		s.limit = DefaultMaxPayload
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}

	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin,
	}

	return s
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	c := newConn(ws, s.log.With().Str("conn", uuid.NewString()).Logger())
	c.log.Debug().Str("remote", r.RemoteAddr).Msg("connection opened")
	s.metrics.ConnectionOpened()

	defer func() {
		c.release()
		s.metrics.ConnectionClosed()
		c.log.Debug().Msg("connection closed")
	}()

	go c.writePump()
	c.readPump(s.limit, func(data []byte, binary bool) {
		s.dispatch(c, data, binary)
	})
}
