package game

import "time"

// Game is the state machine of one planning-poker session. It is not safe for
// concurrent use; a session worker owns it and feeds it one command at a time.
type Game struct {
	ID        string
	Token     string
	CreatedAt time.Time

	state          State
	hostClient     string
	hostConnected  bool
	gameMasterName string
	scale          PointScale

	roster     *Roster
	round      Round
	scoreboard []ScoredRound

	clients map[string]string // clientID -> player name
	owners  map[string]string // player name -> clientID
}

// Snapshot is a read-only view of a game. Hands are never included.
type Snapshot struct {
	GameID           string        `json:"gameID"`
	State            State         `json:"state"`
	GameMasterName   string        `json:"gameMasterName"`
	PointScale       PointScale    `json:"pointScale"`
	PlayerNames      []string      `json:"playerNames"`
	LobbyPlayerNames []string      `json:"lobbyPlayerNames"`
	StoryName        string        `json:"storyName,omitempty"`
	PlayerCards      []PlayerCard  `json:"playerCards"`
	Scoreboard       []ScoredRound `json:"scoreboard"`
	Connected        int           `json:"connected"`
	CreatedAt        time.Time     `json:"createdAt"`
}

func NewGame(id, token string) *Game {
	return &Game{
		ID:        id,
		Token:     token,
		CreatedAt: time.Now().UTC(),
		state:     StateCreated,
		roster:    NewRoster(""),
		clients:   make(map[string]string),
		owners:    make(map[string]string),
	}
}

func (g *Game) State() State { return g.state }

func (g *Game) GameMasterName() string { return g.gameMasterName }

func (g *Game) PointScale() PointScale { return g.scale }

func (g *Game) Roster() *Roster { return g.roster }

// Scoreboard returns a copy of the scored rounds in order.
func (g *Game) Scoreboard() []ScoredRound {
	return append([]ScoredRound{}, g.scoreboard...)
}

// Connected counts the clients currently attached to the game.
func (g *Game) Connected() int {
	n := len(g.clients)
	if g.hostConnected {
		n++
	}
	return n
}

func (g *Game) Snapshot() Snapshot {
	s := Snapshot{
		GameID:           g.ID,
		State:            g.state,
		GameMasterName:   g.gameMasterName,
		PointScale:       g.scale,
		PlayerNames:      g.roster.Players(),
		LobbyPlayerNames: g.roster.Lobby(),
		PlayerCards:      g.round.Played(),
		Scoreboard:       g.Scoreboard(),
		Connected:        g.Connected(),
		CreatedAt:        g.CreatedAt,
	}
	if g.round.StoryName != "" {
		s.StoryName = g.round.StoryName
	}
	return s
}

// Apply validates cmd from clientID against the current state and applies it.
// On error nothing has changed.
func (g *Game) Apply(clientID string, cmd Command) (Result, error) {
	if clientID == "" {
		return Result{}, New(CodeValidation, "client id is required")
	}
	if _, ok := cmd.(Leave); ok {
		return g.leave(clientID), nil
	}
	if g.state == StateEnded {
		return Result{}, New(CodeInvalidStateTransition, "game has ended")
	}
	if id := TargetGameID(cmd); id != "" && id != g.ID {
		return Result{}, Newf(CodeValidation, "command addressed to game %q", id)
	}

	// A returning host is attached again once one of its commands succeeds.
	if g.hostClient != "" && clientID == g.hostClient && !g.hostConnected {
		g.hostConnected = true
		res, err := g.dispatch(clientID, cmd)
		if err != nil {
			g.hostConnected = false
			return Result{}, err
		}
		if res.Subscribe == "" {
			res.Subscribe = clientID
		}
		return res, nil
	}
	return g.dispatch(clientID, cmd)
}

func (g *Game) dispatch(clientID string, cmd Command) (Result, error) {
	switch c := cmd.(type) {
	case StartGame:
		return g.startGame(clientID, c)
	case FindGame:
		return g.findGame(clientID, c)
	case StartRound:
		return g.startRound(clientID, c)
	case PlayACard:
		return g.playACard(clientID, c)
	case ScoreRound:
		return g.scoreRound(clientID, c)
	case ReplayRound:
		return g.replayRound(clientID, c)
	case EndGame:
		return g.endGame(clientID)
	}
	return Result{}, Newf(CodeValidation, "unsupported command %s", cmd.CommandName())
}

func (g *Game) startGame(clientID string, c StartGame) (Result, error) {
	if g.state != StateCreated {
		return Result{}, New(CodeInvalidStateTransition, "game already started")
	}
	if c.GameMasterName == "" {
		return Result{}, New(CodeValidation, "game master name is required")
	}
	scale, err := ParsePointScale(string(c.PointScale))
	if err != nil {
		return Result{}, err
	}

	g.hostClient = clientID
	g.hostConnected = true
	g.gameMasterName = c.GameMasterName
	g.scale = scale
	g.roster = NewRoster(c.GameMasterName)
	g.state = StateStarted

	return Result{
		GameID:    g.ID,
		Subscribe: clientID,
		Deliveries: []Delivery{{Event: GameStarted{
			GameID:         g.ID,
			GameToken:      g.Token,
			GameMasterName: g.gameMasterName,
		}}},
	}, nil
}

func (g *Game) findGame(clientID string, c FindGame) (Result, error) {
	if err := g.requirePlayer(clientID); err != nil {
		return Result{}, err
	}
	if err := g.requireState(StateStarted, StateInRound, StateScored); err != nil {
		return Result{}, err
	}
	if c.GameToken != g.Token {
		return Result{}, New(CodeSessionNotFound, "unknown game token")
	}
	if name, ok := g.clients[clientID]; ok {
		return Result{}, Newf(CodeValidation, "client already joined as %q", name)
	}
	inLobby, err := g.roster.Join(c.PlayerName, g.state == StateInRound)
	if err != nil {
		return Result{}, err
	}
	g.clients[clientID] = c.PlayerName
	g.owners[c.PlayerName] = clientID

	found := GameFound{
		GameID:           g.ID,
		PlayerName:       c.PlayerName,
		GameMasterName:   g.gameMasterName,
		PlayerNames:      g.roster.Players(),
		LobbyPlayerNames: g.roster.Lobby(),
		Hand:             nonNilCards(g.roster.Hand(c.PlayerName)),
		PlayerCards:      g.round.Played(),
	}
	return Result{
		GameID:    g.ID,
		Subscribe: clientID,
		Deliveries: []Delivery{
			{To: clientID, Event: found},
			{Event: PlayerJoined{GameID: g.ID, PlayerName: c.PlayerName, IsInLobby: inLobby}},
		},
	}, nil
}

func (g *Game) startRound(clientID string, c StartRound) (Result, error) {
	if err := g.requireHost(clientID); err != nil {
		return Result{}, err
	}
	if err := g.requireState(StateStarted, StateScored); err != nil {
		return Result{}, err
	}
	if err := g.round.Start(c.StoryName, g.roster, g.scale.Deck()); err != nil {
		return Result{}, err
	}
	g.state = StateInRound
	return Result{GameID: g.ID, Deliveries: g.roundStarted()}, nil
}

func (g *Game) playACard(clientID string, c PlayACard) (Result, error) {
	if err := g.requirePlayer(clientID); err != nil {
		return Result{}, err
	}
	if err := g.requireState(StateInRound); err != nil {
		return Result{}, err
	}
	if !g.roster.IsActive(c.PlayerName) {
		return Result{}, Newf(CodePlayerNotActive, "player %q is not active in this round", c.PlayerName)
	}
	if g.owners[c.PlayerName] != clientID {
		return Result{}, Newf(CodeNotAuthorized, "client does not play as %q", c.PlayerName)
	}
	hand, err := g.round.Play(g.roster, c.PlayerName, c.FaceValue)
	if err != nil {
		return Result{}, err
	}

	played := g.round.Played()
	var out []Delivery
	for _, m := range g.members() {
		ev := PlayerPlayedACard{GameID: g.ID, PlayerName: c.PlayerName, PlayerCards: played}
		if m.clientID == clientID {
			ev.Hand = hand
		}
		out = append(out, Delivery{To: m.clientID, Event: ev})
	}
	return Result{GameID: g.ID, Deliveries: out}, nil
}

func (g *Game) scoreRound(clientID string, c ScoreRound) (Result, error) {
	if err := g.requireHost(clientID); err != nil {
		return Result{}, err
	}
	if err := g.requireState(StateInRound); err != nil {
		return Result{}, err
	}
	if !g.scale.Allows(c.FaceValue) {
		return Result{}, Newf(CodeValidation, "card %q is not part of the %s scale", c.FaceValue, g.scale)
	}
	scored, err := g.round.Score(g.roster, c.FaceValue)
	if err != nil {
		return Result{}, err
	}
	g.scoreboard = append(g.scoreboard, scored)
	g.state = StateScored
	return Result{
		GameID:     g.ID,
		Deliveries: []Delivery{{Event: RoundScored{GameID: g.ID, FaceValue: c.FaceValue}}},
	}, nil
}

func (g *Game) replayRound(clientID string, c ReplayRound) (Result, error) {
	if err := g.requireHost(clientID); err != nil {
		return Result{}, err
	}
	if err := g.requireState(StateScored); err != nil {
		return Result{}, err
	}
	if c.StoryName != "" && c.StoryName != g.round.StoryName {
		return Result{}, Newf(CodeValidation, "cannot replay %q, last round was %q", c.StoryName, g.round.StoryName)
	}
	if err := g.round.Replay(g.roster, g.scale.Deck()); err != nil {
		return Result{}, err
	}
	g.state = StateInRound
	return Result{GameID: g.ID, Deliveries: g.roundStarted()}, nil
}

func (g *Game) endGame(clientID string) (Result, error) {
	if err := g.requireHost(clientID); err != nil {
		return Result{}, err
	}
	g.state = StateEnded
	g.round.PlayedCards = nil
	return Result{
		GameID:     g.ID,
		Ended:      true,
		Deliveries: []Delivery{{Event: GameEnded{GameID: g.ID, Scoreboard: g.Scoreboard()}}},
	}, nil
}

func (g *Game) leave(clientID string) Result {
	res := Result{GameID: g.ID, Unsubscribe: clientID}
	if g.state == StateEnded {
		return res
	}
	if clientID == g.hostClient {
		g.hostConnected = false
		return res
	}
	name, ok := g.clients[clientID]
	if !ok {
		return res
	}
	delete(g.clients, clientID)
	delete(g.owners, name)
	if g.roster.Remove(name) {
		res.Deliveries = append(res.Deliveries, Delivery{Event: PlayerQuit{GameID: g.ID, PlayerName: name}})
	}
	return res
}

func (g *Game) requireHost(clientID string) error {
	if g.hostClient == "" || clientID != g.hostClient {
		return New(CodeNotAuthorized, "only the game master can do that")
	}
	return nil
}

func (g *Game) requirePlayer(clientID string) error {
	if clientID == g.hostClient {
		return New(CodeNotAuthorized, "the game master cannot act as a player")
	}
	return nil
}

func (g *Game) requireState(allowed ...State) error {
	for _, s := range allowed {
		if g.state == s {
			return nil
		}
	}
	return Newf(CodeInvalidStateTransition, "not allowed while game is %s", g.state)
}

type member struct {
	clientID string
	name     string
}

// members lists attached clients: the host first, then players in join order.
func (g *Game) members() []member {
	var out []member
	if g.hostConnected {
		out = append(out, member{clientID: g.hostClient, name: g.gameMasterName})
	}
	for _, name := range g.roster.AllNames() {
		if id, ok := g.owners[name]; ok {
			out = append(out, member{clientID: id, name: name})
		}
	}
	return out
}

func (g *Game) roundStarted() []Delivery {
	players := g.roster.Players()
	lobby := g.roster.Lobby()
	var out []Delivery
	for _, m := range g.members() {
		ev := RoundStarted{
			GameID:           g.ID,
			StoryName:        g.round.StoryName,
			PlayerNames:      players,
			LobbyPlayerNames: lobby,
		}
		if m.clientID != g.hostClient && g.roster.IsActive(m.name) {
			ev.Hand = g.roster.Hand(m.name)
		}
		out = append(out, Delivery{To: m.clientID, Event: ev})
	}
	return out
}

func nonNilCards(cards []Card) []Card {
	if cards == nil {
		return []Card{}
	}
	return cards
}
