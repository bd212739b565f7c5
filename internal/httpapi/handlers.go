package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/DoyleJ11/liars-dice-backend/internal/engine"
	"github.com/DoyleJ11/liars-dice-backend/internal/registry"
	"github.com/DoyleJ11/liars-dice-backend/internal/room"
	"go.uber.org/zap"
)

const roomQueryTimeout = 500 * time.Millisecond

type RoomSummary struct {
	Name    string       `json:"name"`
	Players int          `json:"players"`
	Clients int          `json:"clients"`
	Phase   engine.Phase `json:"phase"`
	Round   int          `json:"round"`
}

// ListRooms reports every live room. Rooms that close mid-query are skipped.
func ListRooms(reg *registry.Registry, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), roomQueryTimeout)
		defer cancel()

		rooms, err := reg.List(ctx)
		if err != nil {
			log.Warn("list rooms", zap.Error(err))
			http.Error(w, "registry unavailable", http.StatusServiceUnavailable)
			return
		}

		out := make([]RoomSummary, 0, len(rooms))
		for _, rm := range rooms {
			v, err := rm.State(ctx)
			if err != nil {
				if !errors.Is(err, room.ErrClosed) {
					log.Warn("room state", zap.String("room", rm.Name()), zap.Error(err))
				}
				continue
			}
			out = append(out, RoomSummary{
				Name:    rm.Name(),
				Players: len(v.State.Players),
				Clients: v.NumClients,
				Phase:   engine.DerivePhase(v.State),
				Round:   v.State.Round,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func Version(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, struct {
			Version string `json:"version"`
		}{Version: version})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
