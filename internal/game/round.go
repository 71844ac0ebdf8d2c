package game

// RoundState is the lifecycle of a single estimation round.
type RoundState string

const (
	RoundNotStarted RoundState = "notStarted"
	RoundInProgress RoundState = "inProgress"
	RoundDone       RoundState = "scored"
)

// Round owns one story's estimation cycle. Every method validates before it
// mutates, so a rejected call leaves the round and roster untouched.
type Round struct {
	StoryName   string
	PlayedCards []PlayerCard
	State       RoundState
}

// Start opens a round for storyName: lobby players are promoted and every
// active player receives a fresh copy of deck.
func (rd *Round) Start(storyName string, roster *Roster, deck []Card) error {
	if rd.State == RoundInProgress {
		return New(CodeInvalidStateTransition, "a round is already in progress")
	}
	if storyName == "" {
		return New(CodeValidation, "story name is required")
	}
	roster.PromoteLobby()
	roster.Deal(deck)
	rd.StoryName = storyName
	rd.PlayedCards = nil
	rd.State = RoundInProgress
	return nil
}

// Play moves fv from the player's hand onto the table and returns the
// player's remaining hand.
func (rd *Round) Play(roster *Roster, name string, fv FaceValue) ([]Card, error) {
	if rd.State != RoundInProgress {
		return nil, New(CodeInvalidStateTransition, "no round in progress")
	}
	if !roster.IsActive(name) {
		return nil, Newf(CodePlayerNotActive, "player %q is not active in this round", name)
	}
	hand := roster.Hand(name)
	at := -1
	for i, c := range hand {
		if c.FaceValue == fv {
			at = i
			break
		}
	}
	if at < 0 {
		return nil, Newf(CodeCardNotInHand, "card %q is not in %s's hand", fv, name)
	}
	played := hand[at]
	remaining := append(hand[:at:at], hand[at+1:]...)
	roster.setHand(name, remaining)
	rd.PlayedCards = append(rd.PlayedCards, PlayerCard{
		Player:      Player{Name: name, Hand: copyCards(remaining)},
		PlayingCard: played,
	})
	return copyCards(remaining), nil
}

// Score closes the round with fv as its estimate.
func (rd *Round) Score(roster *Roster, fv FaceValue) (ScoredRound, error) {
	if rd.State != RoundInProgress {
		return ScoredRound{}, New(CodeInvalidStateTransition, "no round in progress")
	}
	rd.PlayedCards = nil
	roster.ClearHands()
	rd.State = RoundDone
	return ScoredRound{StoryName: rd.StoryName, PointValue: string(fv)}, nil
}

// Replay re-deals the scored story.
func (rd *Round) Replay(roster *Roster, deck []Card) error {
	if rd.State != RoundDone {
		return New(CodeInvalidStateTransition, "only a scored round can be replayed")
	}
	roster.PromoteLobby()
	roster.Deal(deck)
	rd.PlayedCards = nil
	rd.State = RoundInProgress
	return nil
}

// Played returns a copy of the cards on the table.
func (rd *Round) Played() []PlayerCard {
	return append([]PlayerCard{}, rd.PlayedCards...)
}
