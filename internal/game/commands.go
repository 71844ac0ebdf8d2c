package game

// Command is an inbound request for a session. The set of implementations is
// closed; the wire decoder only ever produces the types below.
type Command interface {
	CommandName() string
}

// Inbound event names.
const (
	NameFindGame    = "FindGame"
	NameStartGame   = "StartGame"
	NameStartRound  = "StartRound"
	NamePlayACard   = "PlayACard"
	NameReplayRound = "ReplayRound"
	NameScoreRound  = "ScoreRound"
	NameEndGame     = "EndGame"
)

type StartGame struct {
	GameMasterName string     `json:"gameMasterName"`
	PointScale     PointScale `json:"pointScale"`
}

type FindGame struct {
	PlayerName string `json:"playerName"`
	GameToken  string `json:"gameToken"`
}

type StartRound struct {
	GameID    string `json:"gameID"`
	StoryName string `json:"storyName"`
}

type PlayACard struct {
	GameID     string    `json:"gameID"`
	PlayerName string    `json:"playerName"`
	FaceValue  FaceValue `json:"faceValue"`
}

type ReplayRound struct {
	GameID    string `json:"gameID"`
	StoryName string `json:"storyName"`
}

type ScoreRound struct {
	GameID    string    `json:"gameID"`
	FaceValue FaceValue `json:"faceValue"`
}

type EndGame struct {
	GameID string `json:"gameID"`
}

// Leave is raised by the router when a client's connection goes away. It has
// no wire name and cannot be sent by a client.
type Leave struct{}

func (StartGame) CommandName() string   { return NameStartGame }
func (FindGame) CommandName() string    { return NameFindGame }
func (StartRound) CommandName() string  { return NameStartRound }
func (PlayACard) CommandName() string   { return NamePlayACard }
func (ReplayRound) CommandName() string { return NameReplayRound }
func (ScoreRound) CommandName() string  { return NameScoreRound }
func (EndGame) CommandName() string     { return NameEndGame }
func (Leave) CommandName() string       { return "Leave" }

// TargetGameID returns the game a command addresses, or "" for commands that
// are routed some other way (StartGame creates, FindGame uses a token).
func TargetGameID(cmd Command) string {
	switch c := cmd.(type) {
	case StartRound:
		return c.GameID
	case PlayACard:
		return c.GameID
	case ReplayRound:
		return c.GameID
	case ScoreRound:
		return c.GameID
	case EndGame:
		return c.GameID
	}
	return ""
}

// Validate checks the fields a payload must carry before it is routed.
func (c StartGame) Validate() error {
	if c.GameMasterName == "" {
		return New(CodeValidation, "gameMasterName is required")
	}
	if _, err := ParsePointScale(string(c.PointScale)); err != nil {
		return err
	}
	return nil
}

func (c FindGame) Validate() error {
	if c.PlayerName == "" {
		return New(CodeValidation, "playerName is required")
	}
	if c.GameToken == "" {
		return New(CodeValidation, "gameToken is required")
	}
	return nil
}

func (c StartRound) Validate() error {
	if err := requireGameID(c.GameID); err != nil {
		return err
	}
	if c.StoryName == "" {
		return New(CodeValidation, "storyName is required")
	}
	return nil
}

func (c PlayACard) Validate() error {
	if err := requireGameID(c.GameID); err != nil {
		return err
	}
	if c.PlayerName == "" {
		return New(CodeValidation, "playerName is required")
	}
	if !c.FaceValue.Valid() {
		return New(CodeValidation, "faceValue is required")
	}
	return nil
}

func (c ReplayRound) Validate() error { return requireGameID(c.GameID) }

func (c ScoreRound) Validate() error {
	if err := requireGameID(c.GameID); err != nil {
		return err
	}
	if !c.FaceValue.Valid() {
		return New(CodeValidation, "faceValue is required")
	}
	return nil
}

func (c EndGame) Validate() error { return requireGameID(c.GameID) }

func requireGameID(id string) error {
	if id == "" {
		return New(CodeValidation, "gameID is required")
	}
	return nil
}
