package server

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"

	"github.com/Seednode/feudbox/internal/assets"
	"github.com/Seednode/feudbox/internal/content"
	"github.com/Seednode/feudbox/internal/game"
	"github.com/Seednode/feudbox/internal/protocol"
	"github.com/Seednode/feudbox/internal/room"
)

func (s *Server) lookup(code string) (*room.Room, error) {
	return s.rooms.Lookup(code)
}

func (s *Server) hostRoom(c *Conn) error {
	r, err := s.rooms.Create()
	if err != nil {
		return err
	}
	s.metrics.RoomCreated()

	if _, err := r.RegisterHost(c); err != nil {
		return err
	}
	c.bind(r)

	return nil
}

func (s *Server) joinRoom(c *Conn, env *protocol.Envelope) error {
	r, err := s.lookup(env.Room)
	if err != nil {
		return err
	}

	if _, err := r.RegisterPlayer(c, env.Name); err != nil {
		return err
	}
	c.bind(r)

	return nil
}

// parseSession reports malformed tokens as an unknown session so the client
// falls back to joining anew.
func parseSession(token string) (game.Session, error) {
	sess, err := game.ParseSession(token)
	if err != nil {
		return game.Session{}, protocol.Errorf(protocol.CodeSessionNotFound, "%v", err)
	}
	return sess, nil
}

func (s *Server) getBackIn(c *Conn, env *protocol.Envelope) error {
	sess, err := parseSession(env.Session)
	if err != nil {
		return err
	}

	r, err := s.lookup(sess.Room)
	if err != nil {
		return err
	}

	if err := r.Resume(c, sess.ID, sess.Team); err != nil {
		return err
	}
	c.bind(r)

	return nil
}

func (s *Server) gameWindow(c *Conn, env *protocol.Envelope) error {
	sess, err := parseSession(env.Session)
	if err != nil {
		return err
	}

	r, err := s.lookup(sess.Room)
	if err != nil {
		return err
	}

	if _, err := r.AttachWindow(c, s.newID()); err != nil {
		return err
	}
	c.bind(r)

	return nil
}

func (s *Server) loadGame(env *protocol.Envelope) error {
	r, err := s.lookup(env.Room)
	if err != nil {
		return err
	}

	var c game.Content
	if env.File != "" {
		c, err = s.content.Load(env.Lang, env.File)
	} else {
		c, err = content.Parse("", env.Data)
	}
	if err != nil {
		return contentError(err)
	}

	return r.LoadGame(c)
}

// contentError classifies loader failures. A file that could not be read is
// a server fault; anything wrong with the request or the file body is a
// parse error.
func contentError(err error) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return err
	}
	return protocol.Errorf(protocol.CodeParseError, "%v", err)
}

func (s *Server) quit(env *protocol.Envelope) error {
	r, err := s.lookup(env.Room)
	if err != nil {
		return err
	}

	if !env.Host {
		return r.QuitPlayer(env.ID)
	}

	s.log.Info().Str("room", r.Code()).Msg("host quit")
	s.rooms.Delete(r.Code(),
		protocol.NewSimple(protocol.Quit),
		protocol.NewErrorCode(protocol.CodeHostQuit),
	)

	return nil
}

func (s *Server) data(env *protocol.Envelope) error {
	r, err := s.lookup(env.Room)
	if err != nil {
		return err
	}
	return r.MergeData(env.Data)
}

func (s *Server) registerBuzz(c *Conn, env *protocol.Envelope) error {
	r, err := s.lookup(env.Room)
	if err != nil {
		return err
	}

	if err := r.RegisterBuzzer(c, env.ID, env.Team); err != nil {
		return err
	}
	c.bind(r)

	return nil
}

func (s *Server) registerSpectator(c *Conn, env *protocol.Envelope) error {
	r, err := s.lookup(env.Room)
	if err != nil {
		return err
	}
	return r.RegisterSpectator(c, env.ID)
}

func (s *Server) pong(env *protocol.Envelope) error {
	r, err := s.lookup(env.Room)
	if err != nil {
		return err
	}
	return r.Pong(env.ID)
}

func (s *Server) buzz(c *Conn, env *protocol.Envelope) error {
	r, err := s.lookup(env.Room)
	if err != nil {
		return err
	}

	if err := r.Buzz(c, env.ID); err != nil {
		return err
	}
	s.metrics.Buzz()

	return nil
}

func (s *Server) clearBuzzers(env *protocol.Envelope) error {
	r, err := s.lookup(env.Room)
	if err != nil {
		return err
	}
	return r.ClearBuzzers()
}

func (s *Server) changeLang(env *protocol.Envelope) error {
	r, err := s.lookup(env.Room)
	if err != nil {
		return err
	}

	lang, err := env.DataString()
	if err != nil {
		return protocol.Errorf(protocol.CodeParseError, "%v", err)
	}

	files, err := s.content.List(lang)
	if errors.Is(err, content.ErrInvalidPath) {
		return protocol.Errorf(protocol.CodeParseError, "%v", err)
	}
	if err != nil {
		return err
	}

	return s.broadcast(r.Code(), protocol.NewChangeLang(lang, files))
}

func (s *Server) logoUpload(env *protocol.Envelope) error {
	r, err := s.lookup(env.Room)
	if err != nil {
		return err
	}

	encoded, err := env.DataString()
	if err != nil {
		return protocol.Errorf(protocol.CodeParseError, "%v", err)
	}

	var (
		name string
		size int64
	)
	err = r.Exclusive(func() error {
		var err error
		name, size, err = s.assets.SaveLogo(r.Code(), encoded, env.Mimetype)
		return err
	})
	var corrupt base64.CorruptInputError
	switch {
	case errors.As(err, &corrupt):
		return protocol.Errorf(protocol.CodeParseError, "logo: %v", err)
	case errors.Is(err, assets.ErrTooLarge):
		return protocol.Errorf(protocol.CodeImageTooLarge, "logo exceeds %d bytes", s.assets.MaxSize())
	case errors.Is(err, assets.ErrUnknownType):
		return protocol.ErrUnknownFileType
	case err != nil:
		return err
	}

	s.log.Info().Str("room", r.Code()).Str("file", name).Int64("bytes", size).Msg("logo stored")

	return nil
}

func (s *Server) delLogoUpload(env *protocol.Envelope) error {
	r, err := s.lookup(env.Room)
	if err != nil {
		return err
	}
	return r.Exclusive(func() error {
		return s.assets.Remove(r.Code())
	})
}

func (s *Server) relay(env *protocol.Envelope) error {
	r, err := s.lookup(env.Room)
	if err != nil {
		return err
	}
	return s.broadcast(r.Code(), env.Raw)
}

// broadcast fans msg out by room code. A room that vanished since it was
// looked up is reported to the sender.
func (s *Server) broadcast(code string, msg []byte) error {
	if !s.rooms.Broadcast(code, msg) {
		return fmt.Errorf("room %s: %w", code, protocol.ErrRoomNotFound)
	}
	return nil
}
