/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

// Package protocol defines the tagged envelopes exchanged over a room's
// websocket connections.
package protocol

// Action tags every envelope, inbound or outbound.
type Action string

const (
	HostRoom          Action = "host_room"
	JoinRoom          Action = "join_room"
	GetBackIn         Action = "get_back_in"
	LoadGame          Action = "load_game"
	GameWindow        Action = "game_window"
	Quit              Action = "quit"
	Data              Action = "data"
	RegisterBuzz      Action = "registerbuzz"
	RegisterSpectator Action = "registerspectator"
	Pong              Action = "pong"
	Buzz              Action = "buzz"
	ClearBuzzers      Action = "clearbuzzers"
	ChangeLang        Action = "change_lang"
	LogoUpload        Action = "logo_upload"
	DelLogoUpload     Action = "del_logo_upload"

	// Server issued.
	ErrorAction Action = "error"
	Ping        Action = "ping"
	Registered  Action = "registered"
	Buzzed      Action = "buzzed"

	// Presentation cues the server relays to the whole room untouched.
	Mistake       Action = "mistake"
	ShowMistake   Action = "show_mistake"
	Reveal        Action = "reveal"
	FinalReveal   Action = "final_reveal"
	Duplicate     Action = "duplicate"
	FinalSubmit   Action = "final_submit"
	FinalWrong    Action = "final_wrong"
	SetTimer      Action = "set_timer"
	StopTimer     Action = "stop_timer"
	StartTimer    Action = "start_timer"
	TimerComplete Action = "timer_complete"
)

// IsRelay reports whether a is a presentation cue broadcast verbatim.
func (a Action) IsRelay() bool {
	switch a {
	case Mistake, ShowMistake, Reveal, FinalReveal, Duplicate,
		FinalSubmit, FinalWrong, SetTimer, StopTimer, StartTimer, TimerComplete:
		return true
	}
	return false
}
