package server

import (
	"time"

	"github.com/Seednode/feudbox/internal/protocol"
)

// dispatch decodes one inbound frame and routes it. Every failure, panics
// included, is answered on c alone.
func (s *Server) dispatch(c *Conn, data []byte, binary bool) {
	start := time.Now()
	action := protocol.Action("unknown")

	defer func() {
		if v := recover(); v != nil {
			c.log.Error().Interface("panic", v).Str("action", string(action)).Msg("handler panicked")
			s.fail(c, action, start, protocol.Errorf(protocol.CodeServerError, "%v", v))
		}
	}()

	env, err := protocol.Decode(data, binary)
	if err != nil {
		s.fail(c, action, start, err)
		return
	}

	s.touch(c, env)

	if err := env.Validate(); err != nil {
		if known(env.Action) {
			action = env.Action
		}
		s.fail(c, action, start, err)
		return
	}
	action = env.Action

	if err := s.handle(c, env); err != nil {
		s.fail(c, action, start, err)
		return
	}

	s.metrics.MessageHandled(action, "", time.Since(start))
}

// touch refreshes the activity tick of the room a message names.
func (s *Server) touch(c *Conn, env *protocol.Envelope) {
	if env.Room == "" {
		return
	}
	r, err := s.rooms.Lookup(env.Room)
	if err != nil {
		return
	}
	r.Touch()

	if env.Action != protocol.Pong {
		c.log.Debug().Str("room", env.Room).Str("action", string(env.Action)).Msg("tick")
	}
}

func (s *Server) fail(c *Conn, action protocol.Action, start time.Time, err error) {
	pe := protocol.ErrorFrom(err)

	ev := c.log.Warn()
	if pe.Code == protocol.CodeServerError {
		ev = c.log.Error()
	}
	ev.Err(err).Str("action", string(action)).Str("code", string(pe.Code)).Msg("request failed")

	if sendErr := c.Send(protocol.NewError(pe)); sendErr != nil {
		c.log.Debug().Err(sendErr).Msg("error reply dropped")
	}

	s.metrics.MessageHandled(action, pe.Code, time.Since(start))
}

func (s *Server) handle(c *Conn, env *protocol.Envelope) error {
	switch env.Action {
	case protocol.HostRoom:
		return s.hostRoom(c)
	case protocol.JoinRoom:
		return s.joinRoom(c, env)
	case protocol.GetBackIn:
		return s.getBackIn(c, env)
	case protocol.LoadGame:
		return s.loadGame(env)
	case protocol.GameWindow:
		return s.gameWindow(c, env)
	case protocol.Quit:
		return s.quit(env)
	case protocol.Data:
		return s.data(env)
	case protocol.RegisterBuzz:
		return s.registerBuzz(c, env)
	case protocol.RegisterSpectator:
		return s.registerSpectator(c, env)
	case protocol.Pong:
		return s.pong(env)
	case protocol.Buzz:
		return s.buzz(c, env)
	case protocol.ClearBuzzers:
		return s.clearBuzzers(env)
	case protocol.ChangeLang:
		return s.changeLang(env)
	case protocol.LogoUpload:
		return s.logoUpload(env)
	case protocol.DelLogoUpload:
		return s.delLogoUpload(env)
	case protocol.Mistake, protocol.ShowMistake, protocol.Reveal, protocol.FinalReveal,
		protocol.Duplicate, protocol.FinalSubmit, protocol.FinalWrong, protocol.SetTimer,
		protocol.StopTimer, protocol.StartTimer, protocol.TimerComplete:
		return s.relay(env)
	case protocol.ErrorAction, protocol.Ping, protocol.Registered, protocol.Buzzed:
		return protocol.Errorf(protocol.CodeParseError, "%s is server issued", env.Action)
	default:
		return protocol.Errorf(protocol.CodeParseError, "unknown action %q", env.Action)
	}
}

// known reports whether a is part of the protocol, keeping metric labels
// bounded.
func known(a protocol.Action) bool {
	switch a {
	case protocol.HostRoom, protocol.JoinRoom, protocol.GetBackIn, protocol.LoadGame,
		protocol.GameWindow, protocol.Quit, protocol.Data, protocol.RegisterBuzz,
		protocol.RegisterSpectator, protocol.Pong, protocol.Buzz, protocol.ClearBuzzers,
		protocol.ChangeLang, protocol.LogoUpload, protocol.DelLogoUpload:
		return true
	}
	return a.IsRelay()
}
