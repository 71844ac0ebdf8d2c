package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robertwalker/planning-game-server/internal/archive"
	"github.com/robertwalker/planning-game-server/internal/game"
	"github.com/rs/zerolog/log"
)

const (
	DefaultQueueSize   = 64
	DefaultIdleTimeout = 30 * time.Minute
	archiveTimeout     = 5 * time.Second
)

var ErrShuttingDown = game.New(game.CodeSessionBusy, "server is shutting down")

// Registry owns every live session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool

	pub         Publisher
	archiver    archive.Archiver
	queueSize   int
	idleTimeout time.Duration
	newID       func() string
}

type Option func(*Registry)

func WithQueueSize(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.queueSize = n
		}
	}
}

func WithIdleTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.idleTimeout = d
		}
	}
}

func WithArchiver(a archive.Archiver) Option {
	return func(r *Registry) {
		if a != nil {
			r.archiver = a
		}
	}
}

func WithPublisher(p Publisher) Option {
	return func(r *Registry) { r.pub = p }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions:    make(map[string]*Session),
		pub:         nopPublisher{},
		archiver:    archive.Nop{},
		queueSize:   DefaultQueueSize,
		idleTimeout: DefaultIdleTimeout,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetPublisher must be called before the first Create; the router and the
// registry reference each other.
func (r *Registry) SetPublisher(p Publisher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pub = p
}

// Create starts a new session and queues cmd as its first command.
func (r *Registry) Create(hostClientID string, cmd game.StartGame) (*Session, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrShuttingDown
	}
	id := r.newID()
	for r.sessions[id] != nil {
		id = r.newID()
	}
	s := newSession(id, id, r.queueSize)
	r.sessions[id] = s
	pub := r.pub
	r.mu.Unlock()

	go s.run(pub, r.finish)
	log.Info().Str("gameID", id).Str("clientID", hostClientID).Msg("session created")

	if err := s.Submit(hostClientID, cmd); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *Registry) Get(gameID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.sessions[gameID]
	if s == nil {
		return nil, game.Newf(game.CodeSessionNotFound, "game %q not found", gameID)
	}
	return s, nil
}

func (r *Registry) FindByToken(token string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.Token == token {
			return s, nil
		}
	}
	return nil, game.New(game.CodeSessionNotFound, "no game for that token")
}

// List returns a summary of every live session, oldest first.
func (r *Registry) List() []Info {
	r.mu.RLock()
	out := make([]Info, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Info())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].GameID < out[j].GameID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Destroy stops a session after it has drained its queue and waits for the
// worker to exit. It reports false for an unknown id.
func (r *Registry) Destroy(gameID string) bool {
	r.mu.RLock()
	s := r.sessions[gameID]
	r.mu.RUnlock()
	if s == nil {
		return false
	}
	s.stop()
	<-s.done
	return true
}

// Reap destroys sessions that have had no attached clients for longer than
// the idle timeout and returns their ids.
func (r *Registry) Reap(now time.Time) []string {
	r.mu.RLock()
	var idle []string
	for id, s := range r.sessions {
		if s.IdleFor(now) > r.idleTimeout {
			idle = append(idle, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range idle {
		log.Info().Str("gameID", id).Msg("reaping idle session")
		r.Destroy(id)
	}
	return idle
}

// RunReaper calls Reap every interval until ctx is done.
func (r *Registry) RunReaper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			r.Reap(now)
		}
	}
}

// Shutdown refuses new sessions, then stops every live one. Each worker
// drains what it has already accepted before exiting.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	live := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		live = append(live, s)
	}
	r.mu.Unlock()

	for _, s := range live {
		s.stop()
	}
	for _, s := range live {
		select {
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// finish runs on the worker goroutine as it exits.
func (r *Registry) finish(s *Session) {
	r.mu.Lock()
	if r.sessions[s.ID] == s {
		delete(r.sessions, s.ID)
	}
	pub := r.pub
	r.mu.Unlock()

	if board := s.g.Scoreboard(); len(board) > 0 {
		rec := archive.Record{
			GameID:         s.ID,
			GameMasterName: s.g.GameMasterName(),
			PointScale:     s.g.PointScale(),
			PlayerNames:    s.g.Roster().AllNames(),
			Scoreboard:     board,
			Completed:      s.g.State() == game.StateEnded,
			StartedAt:      s.g.CreatedAt,
			EndedAt:        time.Now().UTC(),
		}
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		if err := r.archiver.Archive(ctx, rec); err != nil {
			log.Error().Err(err).Str("gameID", s.ID).Msg("failed to archive game")
		}
		cancel()
	}

	pub.SessionClosed(s.ID)
	log.Info().Str("gameID", s.ID).Str("state", string(s.g.State())).Msg("session closed")
}

type nopPublisher struct{}

func (nopPublisher) Publish(game.Result)  {}
func (nopPublisher) SessionClosed(string) {}
