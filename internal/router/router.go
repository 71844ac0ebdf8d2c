// Package router moves envelopes between client connections and sessions.
// It decodes inbound messages, hands commands to the owning session, and
// fans each session result out to the subscribed connections.
package router

import (
	"context"
	"sync"
	"time"

	"github.com/robertwalker/planning-game-server/internal/game"
	"github.com/robertwalker/planning-game-server/internal/protocol"
	"github.com/robertwalker/planning-game-server/internal/session"
	"github.com/rs/zerolog/log"
)

var (
	ErrClientMismatch = game.New(game.CodeValidation, "connection is bound to a different clientID")
	ErrClientInUse    = game.New(game.CodeValidation, "clientID is in use by another connection")
)

// leaveTimeout bounds how long a disconnect waits for room in a busy session.
const leaveTimeout = 5 * time.Second

// Conn is one live client connection. Send must not block.
type Conn interface {
	ID() string
	Send(env protocol.Envelope) error
}

type Router struct {
	reg *session.Registry

	mu       sync.RWMutex
	bound    map[string]string              // conn id -> clientID
	clients  map[string]Conn                // clientID -> conn
	subs     map[string]map[string]struct{} // gameID -> clientIDs
	attached map[string]map[string]struct{} // clientID -> gameIDs
}

// New returns a router for reg and registers itself as reg's publisher.
func New(reg *session.Registry) *Router {
	r := &Router{
		reg:      reg,
		bound:    make(map[string]string),
		clients:  make(map[string]Conn),
		subs:     make(map[string]map[string]struct{}),
		attached: make(map[string]map[string]struct{}),
	}
	reg.SetPublisher(r)
	return r
}

// Receive handles one inbound message from conn. It returns as soon as the
// command is queued; outcomes arrive later through Publish.
func (r *Router) Receive(conn Conn, raw []byte) {
	env, err := protocol.DecodeEnvelope(raw)
	if err != nil {
		r.socketError(conn, env, err)
		return
	}
	if err := r.bind(conn, env.ClientID); err != nil {
		r.socketError(conn, env, err)
		return
	}

	cmd, err := protocol.DecodeCommand(env)
	if err != nil {
		r.gameError(env.ClientID, "", env.EventName, err)
		return
	}

	var s *session.Session
	switch c := cmd.(type) {
	case game.StartGame:
		if _, err := r.reg.Create(env.ClientID, c); err != nil {
			r.gameError(env.ClientID, "", env.EventName, err)
		}
		return
	case game.FindGame:
		s, err = r.reg.FindByToken(c.GameToken)
	default:
		s, err = r.reg.Get(game.TargetGameID(cmd))
	}
	if err != nil {
		r.gameError(env.ClientID, game.TargetGameID(cmd), env.EventName, err)
		return
	}
	if err := s.Submit(env.ClientID, cmd); err != nil {
		r.gameError(env.ClientID, s.ID, env.EventName, err)
	}
}

// Disconnect forgets conn and tells every session its client was attached
// to that the client has left.
func (r *Router) Disconnect(conn Conn) {
	r.mu.Lock()
	clientID, ok := r.bound[conn.ID()]
	delete(r.bound, conn.ID())
	if !ok || r.clients[clientID] != conn {
		r.mu.Unlock()
		return
	}
	delete(r.clients, clientID)
	games := make([]string, 0, len(r.attached[clientID]))
	for gameID := range r.attached[clientID] {
		games = append(games, gameID)
	}
	r.mu.Unlock()

	for _, gameID := range games {
		s, err := r.reg.Get(gameID)
		if err != nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
		err = s.SubmitWait(ctx, clientID, game.Leave{})
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("gameID", gameID).Str("clientID", clientID).Msg("could not queue leave")
		}
	}
	log.Debug().Str("clientID", clientID).Int("games", len(games)).Msg("client disconnected")
}

// Publish delivers one session result. Subscribe applies before the
// deliveries and Unsubscribe after them.
func (r *Router) Publish(res game.Result) {
	if res.Subscribe != "" {
		r.subscribe(res.GameID, res.Subscribe)
	}
	for _, d := range res.Deliveries {
		if d.To == "" {
			r.broadcast(res.GameID, d.Event)
		} else {
			r.send(d.To, d.Event)
		}
	}
	if res.Unsubscribe != "" {
		r.unsubscribe(res.GameID, res.Unsubscribe)
	}
}

// SessionClosed drops every subscription to gameID.
func (r *Router) SessionClosed(gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for clientID := range r.subs[gameID] {
		r.detach(clientID, gameID)
	}
	delete(r.subs, gameID)
}

// Subscribers lists the clients attached to gameID.
func (r *Router) Subscribers(gameID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.subs[gameID]))
	for clientID := range r.subs[gameID] {
		out = append(out, clientID)
	}
	return out
}

func (r *Router) bind(conn Conn, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.bound[conn.ID()]; ok {
		if current != clientID {
			return ErrClientMismatch
		}
		return nil
	}
	if other, ok := r.clients[clientID]; ok && other.ID() != conn.ID() {
		return ErrClientInUse
	}
	r.bound[conn.ID()] = clientID
	r.clients[clientID] = conn
	return nil
}

func (r *Router) subscribe(gameID, clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subs[gameID] == nil {
		r.subs[gameID] = make(map[string]struct{})
	}
	r.subs[gameID][clientID] = struct{}{}
	if r.attached[clientID] == nil {
		r.attached[clientID] = make(map[string]struct{})
	}
	r.attached[clientID][gameID] = struct{}{}
}

func (r *Router) unsubscribe(gameID, clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs[gameID], clientID)
	if len(r.subs[gameID]) == 0 {
		delete(r.subs, gameID)
	}
	r.detach(clientID, gameID)
}

// detach requires r.mu held for writing.
func (r *Router) detach(clientID, gameID string) {
	delete(r.attached[clientID], gameID)
	if len(r.attached[clientID]) == 0 {
		delete(r.attached, clientID)
	}
}

func (r *Router) broadcast(gameID string, ev game.Event) {
	r.mu.RLock()
	targets := make([]string, 0, len(r.subs[gameID]))
	for clientID := range r.subs[gameID] {
		targets = append(targets, clientID)
	}
	r.mu.RUnlock()
	for _, clientID := range targets {
		r.send(clientID, ev)
	}
}

func (r *Router) send(clientID string, ev game.Event) {
	r.mu.RLock()
	conn := r.clients[clientID]
	r.mu.RUnlock()
	if conn == nil {
		return
	}
	r.write(conn, clientID, ev)
}

func (r *Router) write(conn Conn, clientID string, ev game.Event) {
	env, err := protocol.Encode(clientID, ev)
	if err != nil {
		log.Error().Err(err).Str("event", ev.EventName()).Msg("failed to encode event")
		return
	}
	if err := conn.Send(env); err != nil {
		log.Warn().Err(err).Str("clientID", clientID).Str("event", ev.EventName()).Msg("failed to send event")
	}
}

func (r *Router) gameError(clientID, gameID, eventName string, err error) {
	log.Debug().Err(err).Str("clientID", clientID).Str("gameID", gameID).Str("event", eventName).Msg("rejected at the router")
	r.send(clientID, game.NewGameError(gameID, eventName, err))
}

// socketError answers conn directly; the message could not be tied to a
// bound client.
func (r *Router) socketError(conn Conn, env protocol.Envelope, err error) {
	log.Debug().Err(err).Str("conn", conn.ID()).Msg("unreadable message")
	r.write(conn, env.ClientID, game.SocketError{FailedEventName: env.EventName, ErrorMessage: err.Error()})
}
