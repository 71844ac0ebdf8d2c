package session

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robertwalker/planning-game-server/internal/game"
	"github.com/rs/zerolog/log"
)

// Publisher receives the outcome of every command a session applies. It is
// called from the session's worker goroutine, one result at a time.
type Publisher interface {
	Publish(res game.Result)
	SessionClosed(gameID string)
}

type message struct {
	clientID string
	cmd      game.Command
	query    chan game.Snapshot
}

// Session is the actor around one game. All access to the game goes through
// the inbox; only the worker goroutine touches it.
type Session struct {
	ID    string
	Token string

	g     *game.Game
	inbox chan message

	mu     sync.RWMutex
	closed bool
	quit   chan struct{}
	done   chan struct{}

	state     atomic.Value // game.State
	connected atomic.Int32
	idleSince atomic.Int64 // unix nanos, 0 while clients are attached
}

// Info is a lock-free summary of a session.
type Info struct {
	GameID    string     `json:"gameID"`
	State     game.State `json:"state"`
	Connected int        `json:"connected"`
	CreatedAt time.Time  `json:"createdAt"`
}

func newSession(id, token string, queueSize int) *Session {
	s := &Session{
		ID:    id,
		Token: token,
		g:     game.NewGame(id, token),
		inbox: make(chan message, queueSize),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	s.state.Store(game.StateCreated)
	s.idleSince.Store(time.Now().UnixNano())
	return s
}

// Submit enqueues cmd without waiting for it to be applied. A full queue
// fails fast with SessionBusy.
func (s *Session) Submit(clientID string, cmd game.Command) error {
	return s.enqueue(message{clientID: clientID, cmd: cmd})
}

// SubmitWait is Submit for commands that must not be dropped. A full queue
// blocks the caller until the worker makes room or ctx expires.
func (s *Session) SubmitWait(ctx context.Context, clientID string, cmd game.Command) error {
	m := message{clientID: clientID, cmd: cmd}
	if err := s.enqueue(m); !errors.Is(err, game.ErrSessionBusy) {
		return err
	}
	select {
	case s.inbox <- m:
		return nil
	case <-s.quit:
		return game.Newf(game.CodeSessionNotFound, "game %s is closed", s.ID)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) enqueue(m message) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return game.Newf(game.CodeSessionNotFound, "game %s is closed", s.ID)
	}
	select {
	case s.inbox <- m:
		return nil
	default:
		return game.Newf(game.CodeSessionBusy, "game %s is busy, try again", s.ID)
	}
}

// Snapshot asks the worker for a read-only view of the game.
func (s *Session) Snapshot(ctx context.Context) (game.Snapshot, error) {
	reply := make(chan game.Snapshot, 1)
	if err := s.enqueue(message{query: reply}); err != nil {
		return game.Snapshot{}, err
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return game.Snapshot{}, ctx.Err()
	case <-s.done:
		select {
		case snap := <-reply:
			return snap, nil
		default:
		}
		return game.Snapshot{}, game.Newf(game.CodeSessionNotFound, "game %s is closed", s.ID)
	}
}

func (s *Session) State() game.State { return s.state.Load().(game.State) }

func (s *Session) Info() Info {
	return Info{
		GameID:    s.ID,
		State:     s.State(),
		Connected: int(s.connected.Load()),
		CreatedAt: s.g.CreatedAt,
	}
}

// IdleFor reports how long the session has had no attached clients.
func (s *Session) IdleFor(now time.Time) time.Duration {
	since := s.idleSince.Load()
	if since == 0 {
		return 0
	}
	return now.Sub(time.Unix(0, since))
}

// Done is closed once the worker has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.quit)
}

// run is the worker loop. It exits when the game ends, when the session is
// stopped (after draining what is already queued), or on a panic.
func (s *Session) run(pub Publisher, onExit func(*Session)) {
	defer close(s.done)
	defer onExit(s)
	for {
		select {
		case m := <-s.inbox:
			if s.handle(m, pub) {
				s.stop()
				return
			}
		case <-s.quit:
			for {
				select {
				case m := <-s.inbox:
					if s.handle(m, pub) {
						return
					}
				default:
					return
				}
			}
		}
	}
}

// handle applies one message and reports whether the worker must stop.
func (s *Session) handle(m message, pub Publisher) (stop bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("gameID", s.ID).Interface("panic", r).Bytes("stack", debug.Stack()).Msg("session worker crashed")
			if m.cmd != nil {
				pub.Publish(game.Result{GameID: s.ID, Deliveries: []game.Delivery{{
					To:    m.clientID,
					Event: game.NewGameError(s.ID, m.cmd.CommandName(), game.ErrInternal),
				}}})
			}
			stop = true
		}
	}()

	if m.query != nil {
		m.query <- s.g.Snapshot()
		return false
	}

	from := s.g.State()
	res, err := s.g.Apply(m.clientID, m.cmd)
	if err != nil {
		log.Debug().Str("gameID", s.ID).Str("clientID", m.clientID).Str("event", m.cmd.CommandName()).Err(err).Msg("command rejected")
		pub.Publish(game.Result{GameID: s.ID, Deliveries: []game.Delivery{{
			To:    m.clientID,
			Event: game.NewGameError(s.ID, m.cmd.CommandName(), err),
		}}})
		// A game whose StartGame was refused can never be reached again.
		_, isStart := m.cmd.(game.StartGame)
		return isStart && from == game.StateCreated
	}

	s.observe()
	if to := s.g.State(); to != from {
		log.Info().Str("gameID", s.ID).Str("from", string(from)).Str("to", string(to)).Msg("state transition")
	}
	pub.Publish(res)
	return res.Ended
}

func (s *Session) observe() {
	s.state.Store(s.g.State())
	n := s.g.Connected()
	s.connected.Store(int32(n))
	if n > 0 {
		s.idleSince.Store(0)
	} else if s.idleSince.Load() == 0 {
		s.idleSince.Store(time.Now().UnixNano())
	}
}
