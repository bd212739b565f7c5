package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/DoyleJ11/liars-dice-backend/internal/engine"
	"github.com/DoyleJ11/liars-dice-backend/internal/room"
	"github.com/DoyleJ11/liars-dice-backend/internal/types"
	"go.uber.org/zap"
)

const (
	DefaultOutboxSize = 32
	ensureAttempts    = 3
)

var ErrNotJoined = errors.New("not joined to a room")

// Rooms hands out live room actors by name.
type Rooms interface {
	Ensure(ctx context.Context, name string) (*room.Room, error)
}

type Gateway struct {
	rooms Rooms
	log   *zap.Logger

	// OutboxSize is the buffer each room gets for a connection. A room drops
	// the connection when it fills.
	OutboxSize int
}

func New(rooms Rooms, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{rooms: rooms, log: log, OutboxSize: DefaultOutboxSize}
}

// Session is one connection's identity and room membership. Handle and Close
// are meant to be called from a single reader goroutine.
type Session struct {
	gw     *Gateway
	connID string
	out    chan<- types.ServerMessage
	log    *zap.Logger

	done     chan struct{}
	doneOnce sync.Once

	mu     sync.Mutex
	joined *membership
}

type membership struct {
	name string
	room *room.Room
	stop chan struct{}
}

// NewSession binds connID to out. Everything the session's rooms send is
// forwarded to out, which the caller drains until Done is closed.
func (g *Gateway) NewSession(connID string, out chan<- types.ServerMessage) *Session {
	return &Session{
		gw:     g,
		connID: connID,
		out:    out,
		log:    g.log.With(zap.String("conn", connID)),
		done:   make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.connID }

// Done is closed when the session ends, either through Close or because the
// joined room dropped or shut down.
func (s *Session) Done() <-chan struct{} { return s.done }

// Room reports the name of the joined room, if any.
func (s *Session) Room() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.joined == nil {
		return "", false
	}
	return s.joined.name, true
}

// Handle decodes and dispatches one client frame. Problems the client caused
// are reported back to it as an error message and also returned.
func (s *Session) Handle(ctx context.Context, data []byte) error {
	req, err := types.DecodeRequest(data)
	if err != nil {
		s.replyError(ctx, err)
		return err
	}
	if err := req.Validate(); err != nil {
		s.replyError(ctx, err)
		return err
	}

	switch r := req.(type) {
	case types.JoinRoom:
		if err := s.join(ctx, r); err != nil {
			s.replyError(ctx, err)
			return err
		}
		return nil
	case types.PlayerReady:
		return s.act(ctx, r.Room, engine.Command{Type: engine.CmdReady})
	case types.PlaceBid:
		return s.act(ctx, r.Room, engine.Command{Type: engine.CmdPlaceBid, Quantity: r.Quantity, Face: r.Face})
	case types.CallLiar:
		return s.act(ctx, r.Room, engine.Command{Type: engine.CmdChallenge})
	}
	return types.ErrUnknownType
}

func (s *Session) join(ctx context.Context, req types.JoinRoom) error {
	s.leave(ctx)

	for attempt := 0; attempt < ensureAttempts; attempt++ {
		rm, outbox, err := s.enter(ctx, req)
		if errors.Is(err, room.ErrClosed) {
			// The room emptied and shut down around this join; the registry
			// hands out a fresh one on the next try.
			continue
		}
		if err != nil {
			return fmt.Errorf("join %q: %w", req.Room, err)
		}

		m := &membership{name: req.Room, room: rm, stop: make(chan struct{})}
		s.mu.Lock()
		s.joined = m
		s.mu.Unlock()

		go s.pump(m, outbox)
		s.log.Info("joined room", zap.String("room", req.Room), zap.String("player", req.Username), zap.Bool("spectator", req.IsSpectator))
		return nil
	}
	return fmt.Errorf("join %q: %w", req.Room, room.ErrClosed)
}

// enter sends one Join and waits for the room to confirm it with the session
// message, which is forwarded to the client. An outbox closed before that
// means the room shut down or refused the join.
func (s *Session) enter(ctx context.Context, req types.JoinRoom) (*room.Room, chan types.ServerMessage, error) {
	rm, err := s.gw.rooms.Ensure(ctx, req.Room)
	if err != nil {
		return nil, nil, err
	}

	size := s.gw.OutboxSize
	if size < 1 {
		size = DefaultOutboxSize
	}
	outbox := make(chan types.ServerMessage, size)
	join := room.Join{ConnID: s.connID, Name: req.Username, Spectator: req.IsSpectator, Outbox: outbox}
	if err := rm.Send(ctx, join); err != nil {
		return nil, nil, err
	}

	select {
	case first, ok := <-outbox:
		if !ok {
			return nil, nil, room.ErrClosed
		}
		select {
		case s.out <- first:
			return rm, outbox, nil
		case <-ctx.Done():
		}
	case <-ctx.Done():
	}
	// Gave up with the Join possibly seated; take the seat back.
	_ = rm.Send(context.Background(), room.Leave{ConnID: s.connID})
	return nil, nil, ctx.Err()
}

// pump forwards one room's outbox until the room closes it or the session
// moves on.
func (s *Session) pump(m *membership, outbox <-chan types.ServerMessage) {
	for {
		select {
		case msg, ok := <-outbox:
			if !ok {
				s.detach(m)
				return
			}
			select {
			case s.out <- msg:
			case <-m.stop:
				return
			case <-s.done:
				return
			}
		case <-m.stop:
			return
		case <-s.done:
			return
		}
	}
}

// detach ends the session if m is still its current room.
func (s *Session) detach(m *membership) {
	s.mu.Lock()
	current := s.joined == m
	if current {
		s.joined = nil
	}
	s.mu.Unlock()
	if current {
		s.log.Info("room closed connection", zap.String("room", m.name))
		s.end()
	}
}

func (s *Session) act(ctx context.Context, roomName string, cmd engine.Command) error {
	s.mu.Lock()
	m := s.joined
	s.mu.Unlock()

	if m == nil {
		s.log.Debug("action before join", zap.String("cmd", string(cmd.Type)))
		return ErrNotJoined
	}
	if m.name != roomName {
		s.log.Debug("action for another room", zap.String("room", roomName), zap.String("joined", m.name))
		return nil
	}
	if err := m.room.Send(ctx, room.FromClient{ConnID: s.connID, Cmd: cmd}); err != nil {
		return fmt.Errorf("%s in %q: %w", cmd.Type, roomName, err)
	}
	return nil
}

// leave drops the current membership, if any.
func (s *Session) leave(ctx context.Context) {
	s.mu.Lock()
	m := s.joined
	s.joined = nil
	s.mu.Unlock()
	if m == nil {
		return
	}
	close(m.stop)
	if err := m.room.Send(ctx, room.Leave{ConnID: s.connID}); err != nil && !errors.Is(err, room.ErrClosed) {
		s.log.Warn("leave room", zap.String("room", m.name), zap.Error(err))
	}
}

// Close leaves the joined room and ends the session.
func (s *Session) Close(ctx context.Context) {
	s.leave(ctx)
	s.end()
}

func (s *Session) end() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Session) replyError(ctx context.Context, err error) {
	msg := types.Error{Message: err.Error()}
	var verr *types.ValidationError
	if errors.As(err, &verr) {
		msg.Field = verr.Field
	}
	select {
	case s.out <- types.ServerMessage{Type: types.TypeError, Payload: msg}:
	case <-s.done:
	case <-ctx.Done():
	}
}
