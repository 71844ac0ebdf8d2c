package game

import (
	"encoding/json"
	"fmt"
)

// State is the lifecycle stage of a game session.
type State string

const (
	StateCreated State = "created"
	StateStarted State = "started"
	StateInRound State = "inRound"
	StateScored  State = "scored"
	StateEnded   State = "ended"
)

// FaceValue is the label printed on a card.
type FaceValue string

const (
	Question FaceValue = "question"
	Skip     FaceValue = "skip"
	One      FaceValue = "one"
	Two      FaceValue = "two"
	Three    FaceValue = "three"
	Four     FaceValue = "four"
	Five     FaceValue = "five"
	Eight    FaceValue = "eight"
)

// faceValues is the closed card vocabulary in dealing order.
var faceValues = []FaceValue{Question, Skip, One, Two, Three, Four, Five, Eight}

// ParseFaceValue validates s against the card vocabulary.
func ParseFaceValue(s string) (FaceValue, error) {
	for _, fv := range faceValues {
		if string(fv) == s {
			return fv, nil
		}
	}
	return "", Newf(CodeValidation, "unknown face value %q", s)
}

func (fv FaceValue) Valid() bool {
	_, err := ParseFaceValue(string(fv))
	return err == nil
}

func (fv *FaceValue) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return Wrap(CodeValidation, "face value must be a string", err)
	}
	parsed, err := ParseFaceValue(s)
	if err != nil {
		return err
	}
	*fv = parsed
	return nil
}

// Card is a single estimation card. Identical cards are interchangeable.
type Card struct {
	FaceValue  FaceValue `json:"faceValue"`
	IsFaceDown bool      `json:"isFaceDown"`
}

// PointScale selects which numbered cards a session deals.
type PointScale string

const (
	Linear      PointScale = "linear"
	PowersOfTwo PointScale = "powersOfTwo"
	Fibonacci   PointScale = "fibonacci"
)

var scaleCards = map[PointScale][]FaceValue{
	Linear:      {One, Two, Three, Four, Five},
	PowersOfTwo: {One, Two, Four, Eight},
	Fibonacci:   {One, Two, Three, Five, Eight},
}

func ParsePointScale(s string) (PointScale, error) {
	ps := PointScale(s)
	if _, ok := scaleCards[ps]; !ok {
		return "", Newf(CodeValidation, "unknown point scale %q", s)
	}
	return ps, nil
}

func (ps *PointScale) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return Wrap(CodeValidation, "point scale must be a string", err)
	}
	parsed, err := ParsePointScale(s)
	if err != nil {
		return err
	}
	*ps = parsed
	return nil
}

// Deck returns the starting hand for the scale: the special cards followed by
// the scale's numbered cards, all face-up. Every call returns a fresh slice.
func (ps PointScale) Deck() []Card {
	numbered := scaleCards[ps]
	deck := make([]Card, 0, len(numbered)+2)
	deck = append(deck, Card{FaceValue: Question}, Card{FaceValue: Skip})
	for _, fv := range numbered {
		deck = append(deck, Card{FaceValue: fv})
	}
	return deck
}

// Allows reports whether fv is part of the scale's deck.
func (ps PointScale) Allows(fv FaceValue) bool {
	for _, c := range ps.Deck() {
		if c.FaceValue == fv {
			return true
		}
	}
	return false
}

// Player is a named participant and the cards they currently hold.
type Player struct {
	Name string `json:"name"`
	Hand []Card `json:"hand"`
}

// PlayerCard records a card played in the current round.
type PlayerCard struct {
	Player      Player `json:"-"`
	PlayingCard Card   `json:"playingCard"`
}

// MarshalJSON exposes only the player's name; hands never leave the session.
func (pc PlayerCard) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		PlayerName  string `json:"playerName"`
		PlayingCard Card   `json:"playingCard"`
	}{pc.Player.Name, pc.PlayingCard})
}

func (pc *PlayerCard) UnmarshalJSON(b []byte) error {
	var wire struct {
		PlayerName  string `json:"playerName"`
		PlayingCard Card   `json:"playingCard"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	pc.Player = Player{Name: wire.PlayerName}
	pc.PlayingCard = wire.PlayingCard
	return nil
}

// ScoredRound is an immutable scoreboard entry.
type ScoredRound struct {
	StoryName  string `json:"storyName"`
	PointValue string `json:"pointValue"`
}

// String renders the comma-joined form older clients expect.
func (sr ScoredRound) String() string {
	return fmt.Sprintf("%s,%s", sr.StoryName, sr.PointValue)
}

func copyCards(cards []Card) []Card {
	if cards == nil {
		return nil
	}
	out := make([]Card, len(cards))
	copy(out, cards)
	return out
}
