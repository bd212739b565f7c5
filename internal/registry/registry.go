package registry

import (
	"context"
	"errors"
	"sort"

	"github.com/DoyleJ11/liars-dice-backend/internal/room"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("registry closed")

type Msg interface{ isRegistryMsg() }

// EnsureRoom returns the named room, creating it on first use. A room that
// has already shut itself down is replaced.
type EnsureRoom struct {
	Name  string
	Reply chan *room.Room
}

type GetRoom struct {
	Name  string
	Reply chan *room.Room // nil if absent
}

// RemoveRoom only removes Name if it still maps to Room, so a late removal
// cannot evict the room that replaced it.
type RemoveRoom struct {
	Name string
	Room *room.Room
}

type ListRooms struct {
	Reply chan []*room.Room
}

type Shutdown struct{}

func (EnsureRoom) isRegistryMsg() {}
func (GetRoom) isRegistryMsg()    {}
func (RemoveRoom) isRegistryMsg() {}
func (ListRooms) isRegistryMsg()  {}
func (Shutdown) isRegistryMsg()   {}

type Registry struct {
	inbox    chan Msg
	rooms    map[string]*room.Room
	roomOpts room.Options
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

// New starts the registry. Every room it creates shares roomOpts; OnEmpty is
// overwritten so empty rooms unregister themselves.
func New(parent context.Context, roomOpts room.Options, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	reg := &Registry{
		inbox:    make(chan Msg, 64),
		rooms:    make(map[string]*room.Room),
		roomOpts: roomOpts,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
	if reg.roomOpts.Logger == nil {
		reg.roomOpts.Logger = log
	}
	reg.roomOpts.OnEmpty = func(r *room.Room) {
		_ = reg.Send(context.Background(), RemoveRoom{Name: r.Name(), Room: r})
	}
	go reg.loop()
	return reg
}

func (reg *Registry) Send(ctx context.Context, m Msg) error {
	select {
	case reg.inbox <- m:
		return nil
	case <-reg.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (reg *Registry) Ensure(ctx context.Context, name string) (*room.Room, error) {
	reply := make(chan *room.Room, 1)
	if err := reg.Send(ctx, EnsureRoom{Name: name, Reply: reply}); err != nil {
		return nil, err
	}
	return await(ctx, reg.ctx, reply)
}

// Get returns the named room or nil.
func (reg *Registry) Get(ctx context.Context, name string) (*room.Room, error) {
	reply := make(chan *room.Room, 1)
	if err := reg.Send(ctx, GetRoom{Name: name, Reply: reply}); err != nil {
		return nil, err
	}
	return await(ctx, reg.ctx, reply)
}

// List returns the live rooms ordered by name.
func (reg *Registry) List(ctx context.Context) ([]*room.Room, error) {
	reply := make(chan []*room.Room, 1)
	if err := reg.Send(ctx, ListRooms{Reply: reply}); err != nil {
		return nil, err
	}
	return await(ctx, reg.ctx, reply)
}

func await[T any](ctx, regCtx context.Context, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-regCtx.Done():
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Done is closed once the registry has shut down.
func (reg *Registry) Done() <-chan struct{} { return reg.ctx.Done() }

func (reg *Registry) loop() {
	for {
		select {
		case <-reg.ctx.Done():
			reg.shutdown()
			return

		case m := <-reg.inbox:
			switch msg := m.(type) {
			case EnsureRoom:
				msg.Reply <- reg.ensure(msg.Name)

			case GetRoom:
				r := reg.rooms[msg.Name]
				if r != nil && r.Closed() {
					r = nil
				}
				msg.Reply <- r

			case RemoveRoom:
				if cur, ok := reg.rooms[msg.Name]; ok && cur == msg.Room {
					delete(reg.rooms, msg.Name)
					reg.log.Info("room removed", zap.String("room", msg.Name), zap.Int("rooms", len(reg.rooms)))
				}

			case ListRooms:
				out := make([]*room.Room, 0, len(reg.rooms))
				for _, r := range reg.rooms {
					if !r.Closed() {
						out = append(out, r)
					}
				}
				sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
				msg.Reply <- out

			case Shutdown:
				reg.shutdown()
				return
			}
		}
	}
}

func (reg *Registry) ensure(name string) *room.Room {
	if r := reg.rooms[name]; r != nil && !r.Closed() {
		return r
	}
	r := room.New(reg.ctx, name, reg.roomOpts)
	reg.rooms[name] = r
	reg.log.Info("room created", zap.String("room", name), zap.Int("rooms", len(reg.rooms)))
	return r
}

// shutdown cancels the registry context, which every room was built on.
func (reg *Registry) shutdown() {
	reg.cancel()
	clear(reg.rooms)
}
