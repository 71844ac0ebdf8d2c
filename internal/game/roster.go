package game

// Roster tracks the host, lobby and active players of one session. The three
// sets are disjoint and ordered by join time.
type Roster struct {
	host    string
	players []string
	lobby   []string
	hands   map[string][]Card
}

func NewRoster(host string) *Roster {
	return &Roster{host: host, hands: make(map[string][]Card)}
}

func (r *Roster) Host() string { return r.host }

// Join adds name to the active players, or to the lobby when a round is in
// progress. It reports whether the name landed in the lobby.
func (r *Roster) Join(name string, roundInProgress bool) (bool, error) {
	if name == "" {
		return false, New(CodeValidation, "player name is required")
	}
	if r.Has(name) {
		return false, Newf(CodeDuplicateName, "name %q is already taken", name)
	}
	if roundInProgress {
		r.lobby = append(r.lobby, name)
		return true, nil
	}
	r.players = append(r.players, name)
	return false, nil
}

// PromoteLobby moves every lobby player into the active set.
func (r *Roster) PromoteLobby() []string {
	promoted := r.lobby
	r.players = append(r.players, r.lobby...)
	r.lobby = nil
	return promoted
}

// Remove drops name from whichever set holds it. It reports whether anything
// was removed; removing an absent name is a no-op.
func (r *Roster) Remove(name string) bool {
	if i := indexOf(r.players, name); i >= 0 {
		r.players = append(r.players[:i:i], r.players[i+1:]...)
		delete(r.hands, name)
		return true
	}
	if i := indexOf(r.lobby, name); i >= 0 {
		r.lobby = append(r.lobby[:i:i], r.lobby[i+1:]...)
		return true
	}
	return false
}

func (r *Roster) Has(name string) bool {
	return name == r.host || r.IsActive(name) || r.InLobby(name)
}

func (r *Roster) IsActive(name string) bool { return indexOf(r.players, name) >= 0 }

func (r *Roster) InLobby(name string) bool { return indexOf(r.lobby, name) >= 0 }

// Players returns a copy of the active player names.
func (r *Roster) Players() []string { return append([]string{}, r.players...) }

// Lobby returns a copy of the lobby player names.
func (r *Roster) Lobby() []string { return append([]string{}, r.lobby...) }

// AllNames returns players followed by lobby players.
func (r *Roster) AllNames() []string {
	out := make([]string, 0, len(r.players)+len(r.lobby))
	out = append(out, r.players...)
	return append(out, r.lobby...)
}

// Hand returns a copy of the named player's hand.
func (r *Roster) Hand(name string) []Card {
	return copyCards(r.hands[name])
}

// Player returns the named player with a copy of their hand.
func (r *Roster) Player(name string) Player {
	return Player{Name: name, Hand: r.Hand(name)}
}

// Deal replaces every active player's hand with a copy of deck.
func (r *Roster) Deal(deck []Card) {
	for _, name := range r.players {
		r.hands[name] = copyCards(deck)
	}
}

// ClearHands empties every hand.
func (r *Roster) ClearHands() {
	for name := range r.hands {
		r.hands[name] = []Card{}
	}
}

func (r *Roster) setHand(name string, hand []Card) {
	r.hands[name] = hand
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
