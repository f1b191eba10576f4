package game

import (
	"errors"
	"strconv"
	"strings"
)

var ErrMalformedSession = errors.New("malformed session token")

// Session is the client-held token used to get back into a room after a
// reload: "ROOM:playerID[:team]".
type Session struct {
	Room string
	ID   string
	Team *int
}

func ParseSession(token string) (Session, error) {
	parts := strings.Split(token, ":")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Session{}, ErrMalformedSession
	}

	s := Session{
		Room: strings.ToUpper(parts[0]),
		ID:   parts[1],
	}
	if len(parts) > 2 {
		if team, err := strconv.Atoi(parts[2]); err == nil {
			s.Team = &team
		}
	}
	return s, nil
}

func (s Session) String() string {
	token := s.Room + ":" + s.ID
	if s.Team != nil {
		token += ":" + strconv.Itoa(*s.Team)
	}
	return token
}
