package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/robertwalker/planning-game-server/internal/game"
)

func envelope(t *testing.T, name string, payload any) []byte {
	t.Helper()
	inner, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	raw, err := json.Marshal(Envelope{ClientID: "c1", EventName: name, Event: string(inner)})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return raw
}

func TestDecodeDoubleEncodedCommand(t *testing.T) {
	raw := envelope(t, game.NamePlayACard, map[string]string{
		"gameID":     "g1",
		"playerName": "Bob",
		"faceValue":  "five",
	})
	env, err := DecodeEnvelope(raw)
	if err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.ClientID != "c1" {
		t.Fatalf("expected client c1, got %q", env.ClientID)
	}
	cmd, err := DecodeCommand(env)
	if err != nil {
		t.Fatalf("decode command: %v", err)
	}
	play, ok := cmd.(game.PlayACard)
	if !ok {
		t.Fatalf("expected PlayACard, got %T", cmd)
	}
	if play.GameID != "g1" || play.PlayerName != "Bob" || play.FaceValue != game.Five {
		t.Fatalf("unexpected command %+v", play)
	}
}

func TestDecodeEveryInboundName(t *testing.T) {
	payloads := map[string]any{
		game.NameFindGame:    map[string]string{"playerName": "Bob", "gameToken": "t"},
		game.NameStartGame:   map[string]string{"gameMasterName": "Alice", "pointScale": "fibonacci"},
		game.NameStartRound:  map[string]string{"gameID": "g", "storyName": "s"},
		game.NamePlayACard:   map[string]string{"gameID": "g", "playerName": "Bob", "faceValue": "one"},
		game.NameReplayRound: map[string]string{"gameID": "g", "storyName": "s"},
		game.NameScoreRound:  map[string]string{"gameID": "g", "faceValue": "skip"},
		game.NameEndGame:     map[string]string{"gameID": "g"},
	}
	for name, payload := range payloads {
		env, err := DecodeEnvelope(envelope(t, name, payload))
		if err != nil {
			t.Fatalf("%s: decode envelope: %v", name, err)
		}
		cmd, err := DecodeCommand(env)
		if err != nil {
			t.Fatalf("%s: decode command: %v", name, err)
		}
		if cmd.CommandName() != name {
			t.Fatalf("expected %s, got %s", name, cmd.CommandName())
		}
	}
}

func TestDecodeUnknownEventName(t *testing.T) {
	env, err := DecodeEnvelope(envelope(t, "Leave", map[string]string{}))
	if err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if _, err := DecodeCommand(env); !errors.Is(err, game.ErrValidation) {
		t.Fatalf("expected internal commands to be undecodable, got %v", err)
	}
	env.EventName = "GameStarted"
	if _, err := DecodeCommand(env); !errors.Is(err, game.ErrValidation) {
		t.Fatalf("expected outbound names to be rejected inbound, got %v", err)
	}
}

func TestDecodeRejectsBadPayloads(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{game.NamePlayACard, `{"gameID":"g","playerName":"Bob","faceValue":"seven"}`},
		{game.NamePlayACard, `{"gameID":"g","playerName":"Bob"}`},
		{game.NameStartGame, `{"gameMasterName":"Alice","pointScale":"tshirt"}`},
		{game.NameStartGame, `{"pointScale":"linear"}`},
		{game.NameStartRound, `not json`},
		{game.NameEndGame, ``},
		{game.NameFindGame, `{"playerName":"Bob"}`},
	}
	for _, c := range cases {
		_, err := DecodeCommand(Envelope{ClientID: "c1", EventName: c.name, Event: c.payload})
		if !errors.Is(err, game.ErrValidation) {
			t.Fatalf("%s %s: expected validation error, got %v", c.name, c.payload, err)
		}
	}
}

func TestDecodeEnvelopeErrors(t *testing.T) {
	if _, err := DecodeEnvelope([]byte(`{`)); !errors.Is(err, game.ErrValidation) {
		t.Fatalf("expected malformed envelope error, got %v", err)
	}
	if _, err := DecodeEnvelope([]byte(`{"eventName":"EndGame","event":"{}"}`)); !errors.Is(err, game.ErrValidation) {
		t.Fatalf("expected missing client id error, got %v", err)
	}
	if _, err := DecodeEnvelope([]byte(`{"clientID":"c1","event":"{}"}`)); !errors.Is(err, game.ErrValidation) {
		t.Fatalf("expected missing event name error, got %v", err)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	ev := game.GameEnded{GameID: "g1", Scoreboard: []game.ScoredRound{{StoryName: "Login page", PointValue: "five"}}}
	env, err := Encode("c9", ev)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if env.ClientID != "c9" || env.EventName != game.NameGameEnded {
		t.Fatalf("unexpected envelope %+v", env)
	}
	if env.Event != `{"gameID":"g1","scoreboard":[{"storyName":"Login page","pointValue":"five"}]}` {
		t.Fatalf("unexpected payload %s", env.Event)
	}

	raw, err := env.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back, err := DecodeEnvelope(raw)
	if err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	decoded, err := DecodeEvent(back)
	if err != nil {
		t.Fatalf("decode event: %v", err)
	}
	ended, ok := decoded.(*game.GameEnded)
	if !ok {
		t.Fatalf("expected *GameEnded, got %T", decoded)
	}
	if len(ended.Scoreboard) != 1 || ended.Scoreboard[0].StoryName != "Login page" {
		t.Fatalf("unexpected scoreboard %+v", ended.Scoreboard)
	}
}

func TestEncodeOmitsHandForOthers(t *testing.T) {
	env, err := Encode("host", game.PlayerPlayedACard{
		GameID:     "g1",
		PlayerName: "Bob",
		PlayerCards: []game.PlayerCard{{
			Player:      game.Player{Name: "Bob", Hand: []game.Card{{FaceValue: game.One}}},
			PlayingCard: game.Card{FaceValue: game.Five},
		}},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"gameID":"g1","playerName":"Bob","playerCards":[{"playerName":"Bob","playingCard":{"faceValue":"five","isFaceDown":false}}]}`
	if env.Event != want {
		t.Fatalf("expected %s, got %s", want, env.Event)
	}
}
