// Package protocol converts between the wire envelope and the game's typed
// commands and events. The event payload travels as a JSON string inside the
// envelope, so every message is decoded twice.
package protocol

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/robertwalker/planning-game-server/internal/game"
)

// Envelope is the message exchanged with clients in both directions.
type Envelope struct {
	ClientID  string `json:"clientID"`
	EventName string `json:"eventName"`
	Event     string `json:"event"`
}

// decoders is the closed inbound vocabulary.
var decoders = map[string]func(payload []byte) (game.Command, error){
	game.NameFindGame:    decodeAs[game.FindGame],
	game.NameStartGame:   decodeAs[game.StartGame],
	game.NameStartRound:  decodeAs[game.StartRound],
	game.NamePlayACard:   decodeAs[game.PlayACard],
	game.NameReplayRound: decodeAs[game.ReplayRound],
	game.NameScoreRound:  decodeAs[game.ScoreRound],
	game.NameEndGame:     decodeAs[game.EndGame],
}

func decodeAs[T game.Command](payload []byte) (game.Command, error) {
	var cmd T
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return nil, err
	}
	if v, ok := any(cmd).(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	return cmd, nil
}

// DecodeEnvelope parses the outer message. When the JSON is readable but
// incomplete, the partial envelope is returned alongside the error.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, game.Wrap(game.CodeValidation, "malformed message", err)
	}
	if strings.TrimSpace(env.ClientID) == "" {
		return env, game.New(game.CodeValidation, "clientID is required")
	}
	if env.EventName == "" {
		return env, game.New(game.CodeValidation, "eventName is required")
	}
	return env, nil
}

// DecodeCommand resolves the envelope's event name and decodes its payload.
// Unknown names fail here and never reach a session.
func DecodeCommand(env Envelope) (game.Command, error) {
	decode, ok := decoders[env.EventName]
	if !ok {
		return nil, game.Newf(game.CodeValidation, "unknown event %q", env.EventName)
	}
	payload := env.Event
	if strings.TrimSpace(payload) == "" {
		payload = "{}"
	}
	cmd, err := decode([]byte(payload))
	if err != nil {
		var ge *game.Error
		if errors.As(err, &ge) {
			return nil, ge
		}
		return nil, game.Wrap(game.CodeValidation, "malformed "+env.EventName+" payload", err)
	}
	return cmd, nil
}

// Encode wraps ev for delivery to clientID.
func Encode(clientID string, ev game.Event) (Envelope, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{ClientID: clientID, EventName: ev.EventName(), Event: string(payload)}, nil
}

// Marshal renders the envelope as it goes on the wire.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEvent is the client-side counterpart of Encode. It is used by tests
// and tooling that need to inspect outbound traffic.
func DecodeEvent(env Envelope) (game.Event, error) {
	var ev game.Event
	switch env.EventName {
	case game.NameGameStarted:
		ev = &game.GameStarted{}
	case game.NameGameFound:
		ev = &game.GameFound{}
	case game.NamePlayerJoined:
		ev = &game.PlayerJoined{}
	case game.NamePlayerQuit:
		ev = &game.PlayerQuit{}
	case game.NameRoundStarted:
		ev = &game.RoundStarted{}
	case game.NamePlayerPlayedACard:
		ev = &game.PlayerPlayedACard{}
	case game.NameRoundScored:
		ev = &game.RoundScored{}
	case game.NameGameEnded:
		ev = &game.GameEnded{}
	case game.NameSocketError:
		ev = &game.SocketError{}
	case game.NameGameError:
		ev = &game.GameError{}
	default:
		return nil, game.Newf(game.CodeValidation, "unknown event %q", env.EventName)
	}
	if err := json.Unmarshal([]byte(env.Event), ev); err != nil {
		return nil, game.Wrap(game.CodeValidation, "malformed "+env.EventName+" payload", err)
	}
	return ev, nil
}
