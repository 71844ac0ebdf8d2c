package game

// Event is an outbound notification produced by a session or the router.
type Event interface {
	EventName() string
}

// Outbound event names.
const (
	NameGameStarted       = "GameStarted"
	NameGameFound         = "GameFound"
	NamePlayerJoined      = "PlayerJoined"
	NamePlayerQuit        = "PlayerQuit"
	NameRoundStarted      = "RoundStarted"
	NamePlayerPlayedACard = "PlayerPlayedACard"
	NameRoundScored       = "RoundScored"
	NameGameEnded         = "GameEnded"
	NameSocketError       = "SocketError"
	NameGameError         = "GameError"
)

type GameStarted struct {
	GameID         string `json:"gameID"`
	GameToken      string `json:"gameToken"`
	GameMasterName string `json:"gameMasterName"`
}

type GameFound struct {
	GameID           string       `json:"gameID"`
	PlayerName       string       `json:"playerName"`
	GameMasterName   string       `json:"gameMasterName"`
	PlayerNames      []string     `json:"playerNames"`
	LobbyPlayerNames []string     `json:"lobbyPlayerNames"`
	Hand             []Card       `json:"hand"`
	PlayerCards      []PlayerCard `json:"playerCards"`
}

type PlayerJoined struct {
	GameID     string `json:"gameID"`
	PlayerName string `json:"playerName"`
	IsInLobby  bool   `json:"isInLobby"`
}

type PlayerQuit struct {
	GameID     string `json:"gameID"`
	PlayerName string `json:"playerName"`
}

// RoundStarted is personalised: Hand holds the recipient's own cards and is
// omitted for the host and lobby players.
type RoundStarted struct {
	GameID           string   `json:"gameID"`
	StoryName        string   `json:"storyName"`
	PlayerNames      []string `json:"playerNames"`
	LobbyPlayerNames []string `json:"lobbyPlayerNames"`
	Hand             []Card   `json:"hand,omitempty"`
}

// PlayerPlayedACard carries the acting player's remaining hand only in the
// copy sent to that player.
type PlayerPlayedACard struct {
	GameID      string       `json:"gameID"`
	PlayerName  string       `json:"playerName"`
	Hand        []Card       `json:"hand,omitempty"`
	PlayerCards []PlayerCard `json:"playerCards"`
}

type RoundScored struct {
	GameID    string    `json:"gameID"`
	FaceValue FaceValue `json:"faceValue"`
}

type GameEnded struct {
	GameID     string        `json:"gameID"`
	Scoreboard []ScoredRound `json:"scoreboard"`
}

// SocketError reports a message that could not be read at all.
type SocketError struct {
	FailedEventName string `json:"failedEventName"`
	ErrorMessage    string `json:"errorMessage"`
}

// GameError reports a rejected command to its originator.
type GameError struct {
	GameID          string `json:"gameID"`
	FailedEventName string `json:"failedEventName"`
	ErrorMessage    string `json:"errorMessage"`
	Code            Code   `json:"errorCode,omitempty"`
}

func (GameStarted) EventName() string       { return NameGameStarted }
func (GameFound) EventName() string         { return NameGameFound }
func (PlayerJoined) EventName() string      { return NamePlayerJoined }
func (PlayerQuit) EventName() string        { return NamePlayerQuit }
func (RoundStarted) EventName() string      { return NameRoundStarted }
func (PlayerPlayedACard) EventName() string { return NamePlayerPlayedACard }
func (RoundScored) EventName() string       { return NameRoundScored }
func (GameEnded) EventName() string         { return NameGameEnded }
func (SocketError) EventName() string       { return NameSocketError }
func (GameError) EventName() string         { return NameGameError }

// NewGameError converts err into the event returned to a command's sender.
func NewGameError(gameID, failedEventName string, err error) GameError {
	return GameError{
		GameID:          gameID,
		FailedEventName: failedEventName,
		ErrorMessage:    err.Error(),
		Code:            CodeOf(err),
	}
}

// Delivery addresses one event. An empty To broadcasts to every client
// attached to the session.
type Delivery struct {
	To    string
	Event Event
}

// Result is everything a session produced for one command. The router
// applies Subscribe before the deliveries and Unsubscribe after them.
type Result struct {
	GameID      string
	Subscribe   string
	Unsubscribe string
	Deliveries  []Delivery
	Ended       bool
}
