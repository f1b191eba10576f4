/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

// Package game holds the shared state of a single feud room: the board the
// host drives, the registered identities and the ordered buzz sequence.
package game

import (
	"encoding/json"
	"fmt"
)

// Answer is a single survey answer on a round board.
type Answer struct {
	Text    string `json:"ans"`
	Points  int    `json:"pnt"`
	Trigger bool   `json:"trig"`
}

type Round struct {
	Question string   `json:"question"`
	Answers  []Answer `json:"answers"`
	Multiply int      `json:"multiply"`
}

// FinalAnswer is encoded on the wire as a two element array: [text, points].
type FinalAnswer struct {
	Text   string
	Points int
}

func (a FinalAnswer) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{a.Text, a.Points})
}

func (a *FinalAnswer) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("final answer: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("final answer: want [text, points], got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &a.Text); err != nil {
		return fmt.Errorf("final answer text: %w", err)
	}
	if err := json.Unmarshal(pair[1], &a.Points); err != nil {
		return fmt.Errorf("final answer points: %w", err)
	}
	return nil
}

type FinalRoundQuestion struct {
	Question  string        `json:"question"`
	Answers   []FinalAnswer `json:"answers"`
	Selection int           `json:"selection"`
	Input     string        `json:"input"`
	Revealed  bool          `json:"revealed"`
}

type Team struct {
	Name     string `json:"name"`
	Points   int    `json:"points"`
	Mistakes int    `json:"mistakes"`
}

type Settings struct {
	LogoURL         *string `json:"logo_url"`
	HideQuestions   bool    `json:"hide_questions"`
	Theme           string  `json:"theme"`
	FinalRoundTitle *string `json:"final_round_title"`
}

// Board is everything the host is allowed to overwrite with a data message.
type Board struct {
	Buzzed           []BuzzEntry          `json:"buzzed"`
	Settings         Settings             `json:"settings"`
	Teams            [2]Team              `json:"teams"`
	Title            bool                 `json:"title"`
	TitleText        string               `json:"title_text"`
	PointTracker     []int                `json:"point_tracker"`
	IsFinalRound     bool                 `json:"is_final_round"`
	IsFinalSecond    bool                 `json:"is_final_second"`
	HideFirstRound   bool                 `json:"hide_first_round"`
	Round            int                  `json:"round"`
	Rounds           []Round              `json:"rounds"`
	FinalRound       []FinalRoundQuestion `json:"final_round"`
	FinalRound2      []FinalRoundQuestion `json:"final_round_2"`
	FinalRoundTimers []int                `json:"final_round_timers"`
	GameCopy         []json.RawMessage    `json:"gameCopy"`
}

// Game is the authoritative snapshot broadcast to every connection in a room.
type Game struct {
	Board
	Room              string               `json:"room"`
	RegisteredPlayers map[string]*Identity `json:"registeredPlayers"`
}

// Content is the parsed result of a game file, as returned by a loader.
type Content struct {
	Rounds           []Round              `json:"rounds"`
	FinalRound       []FinalRoundQuestion `json:"final_round"`
	FinalRoundTimers []int                `json:"final_round_timers"`
}

func New(room string) *Game {
	return &Game{
		Board: Board{
			Buzzed: []BuzzEntry{},
			Settings: Settings{
				HideQuestions: true,
				Theme:         "default",
			},
			Teams: [2]Team{
				{Name: "Team 1"},
				{Name: "Team 2"},
			},
			Title:        true,
			PointTracker: []int{},
		},
		Room:              room,
		RegisteredPlayers: make(map[string]*Identity),
	}
}

// Load replaces the round content and resets scoring to the title screen.
func (g *Game) Load(c Content) {
	g.Teams[0].Points = 0
	g.Teams[1].Points = 0
	g.Round = 0
	g.Title = true
	g.Rounds = c.Rounds
	g.FinalRound = copyFinalRound(c.FinalRound)
	g.FinalRound2 = copyFinalRound(c.FinalRound)
	g.GameCopy = []json.RawMessage{}
	g.FinalRoundTimers = c.FinalRoundTimers
	g.PointTracker = make([]int, len(c.Rounds))
}

// Merge applies a full or partial board update sent by the host. Fields
// absent from data keep their current value and the identity map is never
// touched. It reports whether the round or title flag changed.
func (g *Game) Merge(data []byte) (changed bool, err error) {
	// Decode into a detached copy so a bad update leaves the board intact.
	cur, err := json.Marshal(&g.Board)
	if err != nil {
		return false, fmt.Errorf("merge board: %w", err)
	}
	var next Board
	if err := json.Unmarshal(cur, &next); err != nil {
		return false, fmt.Errorf("merge board: %w", err)
	}
	if err := json.Unmarshal(data, &next); err != nil {
		return false, fmt.Errorf("merge board: %w", err)
	}
	if next.Buzzed == nil {
		next.Buzzed = []BuzzEntry{}
	}

	changed = next.Round != g.Round || next.Title != g.Title
	g.Board = next

	return changed, nil
}

func copyFinalRound(src []FinalRoundQuestion) []FinalRoundQuestion {
	if src == nil {
		return nil
	}
	dst := make([]FinalRoundQuestion, len(src))
	for i, q := range src {
		dst[i] = q
		dst[i].Answers = append([]FinalAnswer(nil), q.Answers...)
	}
	return dst
}
