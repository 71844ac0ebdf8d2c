package game

import (
	"errors"
	"testing"
)

func newRoundFixture(t *testing.T) (*Round, *Roster) {
	t.Helper()
	r := NewRoster("Alice")
	if _, err := r.Join("Bob", false); err != nil {
		t.Fatalf("join: %v", err)
	}
	return &Round{}, r
}

func TestRoundStartDealsAndPromotes(t *testing.T) {
	rd, r := newRoundFixture(t)
	r.Join("Carol", true)

	if err := rd.Start("Login page", r, Fibonacci.Deck()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if rd.State != RoundInProgress {
		t.Fatalf("expected %s, got %s", RoundInProgress, rd.State)
	}
	if !r.IsActive("Carol") {
		t.Fatal("lobby player should be promoted at round start")
	}
	if len(r.Hand("Bob")) != len(Fibonacci.Deck()) || len(r.Hand("Carol")) != len(Fibonacci.Deck()) {
		t.Fatal("every active player should get the full deck")
	}

	if err := rd.Start("Other", r, Fibonacci.Deck()); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected invalid transition when already in progress, got %v", err)
	}
}

func TestRoundStartRequiresStory(t *testing.T) {
	rd, r := newRoundFixture(t)
	r.Join("Carol", true)
	if err := rd.Start("", r, Linear.Deck()); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !r.InLobby("Carol") {
		t.Fatal("failed start must not promote the lobby")
	}
}

func TestRoundPlay(t *testing.T) {
	rd, r := newRoundFixture(t)
	rd.Start("Login page", r, Fibonacci.Deck())

	hand, err := rd.Play(r, "Bob", Five)
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if len(hand) != len(Fibonacci.Deck())-1 {
		t.Fatalf("expected one card fewer, got %d", len(hand))
	}
	for _, c := range hand {
		if c.FaceValue == Five {
			t.Fatal("played card should leave the hand")
		}
	}
	if len(rd.PlayedCards) != 1 || rd.PlayedCards[0].Player.Name != "Bob" || rd.PlayedCards[0].PlayingCard.FaceValue != Five {
		t.Fatalf("unexpected played cards %+v", rd.PlayedCards)
	}

	if _, err := rd.Play(r, "Bob", Five); !errors.Is(err, ErrCardNotInHand) {
		t.Fatalf("expected card not in hand, got %v", err)
	}
	if _, err := rd.Play(r, "Zed", One); !errors.Is(err, ErrPlayerNotActive) {
		t.Fatalf("expected player not active, got %v", err)
	}
	if len(rd.PlayedCards) != 1 {
		t.Fatal("failed plays must not add played cards")
	}
}

func TestRoundPlayLobbyPlayerIsNotActive(t *testing.T) {
	rd, r := newRoundFixture(t)
	rd.Start("Login page", r, Linear.Deck())
	r.Join("Late", true)

	if _, err := rd.Play(r, "Late", One); !errors.Is(err, ErrPlayerNotActive) {
		t.Fatalf("expected lobby player to be rejected, got %v", err)
	}
}

func TestRoundScoreAndReplay(t *testing.T) {
	rd, r := newRoundFixture(t)
	if err := rd.Replay(r, Linear.Deck()); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected replay before scoring to fail, got %v", err)
	}
	rd.Start("Login page", r, Linear.Deck())
	rd.Play(r, "Bob", Three)

	scored, err := rd.Score(r, Three)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if scored != (ScoredRound{StoryName: "Login page", PointValue: "three"}) {
		t.Fatalf("unexpected scored round %+v", scored)
	}
	if len(rd.PlayedCards) != 0 || len(r.Hand("Bob")) != 0 {
		t.Fatal("scoring should clear played cards and hands")
	}
	if rd.State != RoundDone {
		t.Fatalf("expected %s, got %s", RoundDone, rd.State)
	}
	if _, err := rd.Score(r, Three); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected second score to fail, got %v", err)
	}

	if err := rd.Replay(r, Linear.Deck()); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if rd.StoryName != "Login page" || rd.State != RoundInProgress {
		t.Fatalf("replay should reopen the same story, got %q %s", rd.StoryName, rd.State)
	}
	if len(r.Hand("Bob")) != len(Linear.Deck()) {
		t.Fatal("replay should re-deal hands")
	}
}
