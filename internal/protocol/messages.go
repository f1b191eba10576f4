package protocol

import (
	"encoding/json"

	"github.com/Seednode/feudbox/internal/game"
)

// Outbound messages are always JSON text frames.

type RoomMessage struct {
	Action Action     `json:"action"`
	Room   string     `json:"room"`
	Game   *game.Game `json:"game"`
	ID     string     `json:"id"`
}

type GetBackInMessage struct {
	Action Action         `json:"action"`
	Room   string         `json:"room"`
	Game   *game.Game     `json:"game"`
	ID     string         `json:"id"`
	Player *game.Identity `json:"player"`
	Team   *int           `json:"team"`
}

type DataMessage struct {
	Action Action `json:"action"`
	Data   any    `json:"data"`
}

type ErrorMessage struct {
	Action  Action `json:"action"`
	Code    Code   `json:"code"`
	Message string `json:"message,omitempty"`
}

type IDMessage struct {
	Action Action `json:"action"`
	ID     string `json:"id"`
}

type SimpleMessage struct {
	Action Action `json:"action"`
}

type ChangeLangMessage struct {
	Action Action   `json:"action"`
	Data   string   `json:"data"`
	Games  []string `json:"games"`
}

func encode(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// Every outbound type is marshalable; a failure here is a programming error.
		panic("protocol: encode: " + err.Error())
	}
	return b
}

func NewRoomMessage(action Action, room string, g *game.Game, id string) []byte {
	return encode(RoomMessage{Action: action, Room: room, Game: g, ID: id})
}

func NewGetBackIn(room string, g *game.Game, id string, player *game.Identity, team *int) []byte {
	return encode(GetBackInMessage{
		Action: GetBackIn,
		Room:   room,
		Game:   g,
		ID:     id,
		Player: player,
		Team:   team,
	})
}

// NewData wraps a game snapshot. A nil game encodes as an empty object,
// which clients treat as "no game".
func NewData(g *game.Game) []byte {
	if g == nil {
		return encode(DataMessage{Action: Data, Data: struct{}{}})
	}
	return encode(DataMessage{Action: Data, Data: g})
}

func NewError(e *Error) []byte {
	return encode(ErrorMessage{Action: ErrorAction, Code: e.Code, Message: e.Message})
}

func NewErrorCode(code Code) []byte {
	return encode(ErrorMessage{Action: ErrorAction, Code: code})
}

func NewPing(id string) []byte {
	return encode(IDMessage{Action: Ping, ID: id})
}

func NewRegistered(id string) []byte {
	return encode(IDMessage{Action: Registered, ID: id})
}

func NewSimple(action Action) []byte {
	return encode(SimpleMessage{Action: action})
}

func NewChangeLang(lang string, games []string) []byte {
	if games == nil {
		games = []string{}
	}
	return encode(ChangeLangMessage{Action: ChangeLang, Data: lang, Games: games})
}
