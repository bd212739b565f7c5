package room

import (
	"github.com/DoyleJ11/liars-dice-backend/internal/engine"
	"github.com/DoyleJ11/liars-dice-backend/internal/types"
	"go.uber.org/zap"
)

func (r *Room) broadcast(msg types.ServerMessage) {
	for id := range r.clients {
		r.send(id, msg)
	}
}

// broadcastSnapshot sends every client its own view of the table.
func (r *Room) broadcastSnapshot(msgType string) {
	for id := range r.clients {
		r.send(id, types.ServerMessage{Type: msgType, Payload: types.NewSnapshot(r.state, r.version, id)})
	}
}

func (r *Room) send(id string, msg types.ServerMessage) {
	ch := r.clients[id]
	if ch == nil {
		return
	}
	select {
	case ch <- msg:
		//ok
	default:
		// Client is slow/full - drop them.
		close(ch)
		r.clients[id] = nil
		r.log.Info("dropping slow client", zap.String("conn", id), zap.String("msg", msg.Type))
	}
}

// reap removes the players behind outboxes closed by send. Leaving can itself
// overflow another outbox, so it repeats until the table is stable.
func (r *Room) reap() bool {
	reaped := false
	for {
		var gone []string
		for id, ch := range r.clients {
			if ch == nil {
				gone = append(gone, id)
			}
		}
		if len(gone) == 0 {
			return reaped
		}
		reaped = true
		for _, id := range gone {
			delete(r.clients, id)
			r.apply(engine.Command{Type: engine.CmdLeave, PlayerID: id})
		}
	}
}
