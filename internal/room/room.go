package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DoyleJ11/liars-dice-backend/internal/engine"
	"github.com/DoyleJ11/liars-dice-backend/internal/events"
	"github.com/DoyleJ11/liars-dice-backend/internal/scheduler"
	"github.com/DoyleJ11/liars-dice-backend/internal/types"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("room closed")

const (
	DefaultRevealDelay = 5 * time.Second
	DefaultResetDelay  = 5 * time.Second
)

type Msg interface{ isRoomMsg() }

// Join seats a connection. The room closes Outbox when it rejects the join,
// drops the client, or shuts down.
type Join struct {
	ConnID    string
	Name      string
	Spectator bool
	Outbox    chan types.ServerMessage // where this client wants to receive messages
}

func (Join) isRoomMsg() {}

type Leave struct{ ConnID string }

func (Leave) isRoomMsg() {}

// FromClient carries a player action. PlayerID on the command is overwritten
// with ConnID so a client can only ever act as itself.
type FromClient struct {
	ConnID string
	Cmd    engine.Command
}

func (FromClient) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

type timerFired struct {
	gen int
	cmd engine.Command
}

func (timerFired) isRoomMsg() {}

type View struct {
	Version    int
	NumClients int
	Pending    bool
	State      engine.State
}

type Options struct {
	Rules       engine.Rules
	RevealDelay time.Duration
	ResetDelay  time.Duration
	Scheduler   *scheduler.Scheduler
	Publisher   events.Publisher
	Logger      *zap.Logger
	// OnEmpty runs on the room goroutine after the last client leaves and the
	// room has shut itself down.
	OnEmpty func(*Room)
}

type Room struct {
	name    string
	inbox   chan Msg
	state   engine.State
	version int
	clients map[string]chan types.ServerMessage

	opts     Options
	sched    *scheduler.Scheduler
	timer    *scheduler.Handle
	timerGen int
	log      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, name string, opts Options) *Room {
	ctx, cancel := context.WithCancel(parent)

	if opts.Rules.StartingDice <= 0 {
		opts.Rules.StartingDice = engine.DefaultStartingDice
	}
	if opts.Scheduler == nil {
		opts.Scheduler = scheduler.New(nil)
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	state := engine.NewEmptyState(name)
	state.Rules = opts.Rules

	r := &Room{
		name:    name,
		inbox:   make(chan Msg, 64), // Small buffer
		state:   state,
		clients: make(map[string]chan types.ServerMessage),
		opts:    opts,
		sched:   opts.Scheduler,
		log:     opts.Logger.With(zap.String("room", name)),
		ctx:     ctx,
		cancel:  cancel,
	}

	go r.loop()
	return r
}

func (r *Room) Name() string { return r.name }

// Closed reports whether the room has stopped accepting messages.
func (r *Room) Closed() bool { return r.ctx.Err() != nil }

// Send queues m for the room. It returns ErrClosed once the room has shut down.
func (r *Room) Send(ctx context.Context, m Msg) error {
	if r.Closed() {
		return ErrClosed
	}
	select {
	case r.inbox <- m:
		return nil
	case <-r.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State fetches a copy of the room state through the inbox.
func (r *Room) State(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := r.Send(ctx, GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-r.ctx.Done():
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			if done := r.handle(m); done {
				return
			}
			if r.reap() && r.closeIfEmpty() {
				return
			}
		}
	}
}

// handle processes one inbox message and reports whether the room stopped.
func (r *Room) handle(m Msg) bool {
	switch msg := m.(type) {
	case Join:
		r.join(msg)

	case Leave:
		delete(r.clients, msg.ConnID)
		r.apply(engine.Command{Type: engine.CmdLeave, PlayerID: msg.ConnID})
		r.reap()
		return r.closeIfEmpty()

	case FromClient:
		cmd := msg.Cmd
		cmd.PlayerID = msg.ConnID
		switch cmd.Type {
		case engine.CmdReady, engine.CmdPlaceBid, engine.CmdChallenge:
			r.apply(cmd)
		default:
			r.log.Debug("dropping client command", zap.String("conn", msg.ConnID), zap.String("cmd", string(cmd.Type)))
		}

	case timerFired:
		if msg.gen != r.timerGen {
			// superseded by a newer timer or a reset
			return false
		}
		r.timer = nil
		r.apply(msg.cmd)

	case GetState:
		msg.Reply <- View{
			Version:    r.version,
			NumClients: len(r.clients),
			Pending:    r.timer != nil,
			State:      r.state.Clone(),
		}

	case Shutdown:
		r.shutdown()
		return true
	}
	return false
}

func (r *Room) join(msg Join) {
	evts, next, err := engine.Apply(r.state, engine.Command{
		Type:      engine.CmdJoin,
		PlayerID:  msg.ConnID,
		Name:      msg.Name,
		Spectator: msg.Spectator,
	})
	if err != nil {
		r.log.Debug("join rejected", zap.String("conn", msg.ConnID), zap.Error(err))
		close(msg.Outbox)
		return
	}

	r.clients[msg.ConnID] = msg.Outbox
	r.send(msg.ConnID, types.ServerMessage{Type: types.TypeSession, Payload: types.Session{PlayerID: msg.ConnID, Room: r.name}})
	r.commit(next, evts)
}

// apply runs cmd through the engine. Rejected actions change nothing and are
// never reported back to the room.
func (r *Room) apply(cmd engine.Command) {
	evts, next, err := engine.Apply(r.state, cmd)
	if err != nil {
		if errors.Is(err, engine.ErrNoActivePlayers) {
			r.forceReset(err)
			return
		}
		r.log.Debug("action rejected",
			zap.String("player", cmd.PlayerID),
			zap.String("cmd", string(cmd.Type)),
			zap.Error(err),
		)
		return
	}
	r.commit(next, evts)
}

func (r *Room) commit(next engine.State, evts []engine.Event) {
	r.state = next
	r.version++

	now := r.sched.Clock().Now()
	for _, e := range evts {
		if err := r.opts.Publisher.Publish(r.ctx, events.NewRoomEvent(r.name, r.state.Round, e, now)); err != nil {
			r.log.Warn("publish room event", zap.String("event", string(e.Type)), zap.Error(err))
		}
		r.announce(e)
	}
	r.broadcastSnapshot(types.TypeRoomUpdate)

	switch {
	case engine.ContainsEvent(evts, engine.EvtGameOver):
		r.schedule(r.opts.ResetDelay, engine.Command{Type: engine.CmdResetMatch})
	case engine.ContainsEvent(evts, engine.EvtRoundResolved):
		r.schedule(r.opts.RevealDelay, engine.Command{Type: engine.CmdStartRound})
	case engine.ContainsEvent(evts, engine.EvtRoomReset):
		r.stopTimer()
	}
}

// announce turns one engine event into the matching client messages.
func (r *Room) announce(e engine.Event) {
	switch e.Type {
	case engine.EvtPlayerJoined:
		r.notify(fmt.Sprintf("%s joined the room", e.Name))
	case engine.EvtPlayerLeft:
		r.notify(fmt.Sprintf("%s left the room", e.Name))
	case engine.EvtRoundStarted:
		r.broadcastSnapshot(types.TypeGameStarted)
	case engine.EvtRoundResolved:
		r.broadcast(types.ServerMessage{Type: types.TypeRoundOver, Payload: types.NewRoundOver(r.state, *e.Outcome)})
	case engine.EvtPlayerEliminated:
		r.notify(fmt.Sprintf("%s is out of the game!", e.Name))
	case engine.EvtGameOver:
		over := types.GameOver{}
		if e.PlayerID != "" {
			over.Winner = &types.PlayerRef{ID: e.PlayerID, Username: e.Name}
			r.log.Info("match over", zap.String("winner", e.PlayerID), zap.Int("rounds", r.state.Round))
		} else {
			r.log.Warn("match over with no player holding dice")
		}
		r.broadcast(types.ServerMessage{Type: types.TypeGameOver, Payload: over})
	}
}

func (r *Room) notify(text string) {
	r.broadcast(types.ServerMessage{Type: types.TypeNotification, Payload: types.Notification{Message: text}})
}

// schedule replaces any pending timer. The callback goes back through the
// inbox, so it is dropped if the room is gone by the time it fires.
func (r *Room) schedule(d time.Duration, cmd engine.Command) {
	r.stopTimer()
	gen := r.timerGen
	r.timer = r.sched.After(d, func() {
		_ = r.Send(r.ctx, timerFired{gen: gen, cmd: cmd})
	})
}

func (r *Room) stopTimer() {
	r.timer.Stop()
	r.timer = nil
	r.timerGen++
}

// forceReset puts a broken table back in the lobby.
func (r *Room) forceReset(cause error) {
	r.log.Error("invariant violated, resetting room", zap.Error(cause), zap.Int("round", r.state.Round))
	r.stopTimer()
	r.state = engine.Reset(r.state)
	r.version++
	r.notify("The table was reset.")
	r.broadcastSnapshot(types.TypeRoomUpdate)
}

// closeIfEmpty shuts the room once nobody is connected. Messages already
// queued are handled first, so a Join sent right behind the last Leave keeps
// the room open.
func (r *Room) closeIfEmpty() bool {
	for len(r.clients) == 0 {
		select {
		case m := <-r.inbox:
			if r.handle(m) {
				return true
			}
		default:
			r.shutdown()
			if r.opts.OnEmpty != nil {
				r.opts.OnEmpty(r)
			}
			return true
		}
	}
	return false
}

func (r *Room) shutdown() {
	r.stopTimer()
	for id, ch := range r.clients {
		if ch != nil {
			close(ch) // Tell client no more messages
		}
		delete(r.clients, id)
	}
	r.cancel()

	// Joins that raced the shutdown still get their outbox closed.
	for {
		select {
		case m := <-r.inbox:
			if j, ok := m.(Join); ok {
				close(j.Outbox)
			}
		default:
			return
		}
	}
}
