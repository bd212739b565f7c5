package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/DoyleJ11/liars-dice-backend/internal/gateway"
	"github.com/DoyleJ11/liars-dice-backend/internal/types"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var ErrRateLimited = errors.New("too many messages, slow down")

const (
	DefaultActionRate  = rate.Limit(5)
	DefaultActionBurst = 10
	DefaultIdleTimeout = 10 * time.Minute

	writeTimeout = 3 * time.Second
)

type Options struct {
	OutboxSize  int
	ActionRate  rate.Limit
	ActionBurst int
	IdleTimeout time.Duration
	// OriginPatterns is passed to websocket.Accept. Empty means same-origin only.
	OriginPatterns []string
	Logger         *zap.Logger
}

func (o *Options) defaults() {
	if o.OutboxSize <= 0 {
		o.OutboxSize = gateway.DefaultOutboxSize
	}
	if o.ActionRate <= 0 {
		o.ActionRate = DefaultActionRate
	}
	if o.ActionBurst <= 0 {
		o.ActionBurst = DefaultActionBurst
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

func Handler(gw *gateway.Gateway, opts Options) http.HandlerFunc {
	opts.defaults()

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			opts.Logger.Debug("websocket accept", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connID := uuid.NewString()
		log := opts.Logger.With(zap.String("conn", connID))
		log.Debug("connection opened", zap.String("remote", r.RemoteAddr))

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		out := make(chan types.ServerMessage, opts.OutboxSize)
		sess := gw.NewSession(connID, out)
		defer sess.Close(context.Background())

		// Writer goroutine
		go func() {
			defer cancel()
			for {
				select {
				case msg := <-out:
					payload, err := json.Marshal(msg)
					if err != nil {
						log.Error("encode server message", zap.String("type", msg.Type), zap.Error(err))
						continue
					}
					wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
					err = conn.Write(wctx, websocket.MessageText, payload)
					wcancel()
					if err != nil {
						log.Debug("write failed", zap.Error(err))
						return
					}
				case <-sess.Done():
					_ = conn.Close(websocket.StatusGoingAway, "room closed")
					return
				case <-ctx.Done():
					return
				}
			}
		}()

		limiter := rate.NewLimiter(opts.ActionRate, opts.ActionBurst)

		// Reader loop
		for {
			rctx, rcancel := context.WithTimeout(ctx, opts.IdleTimeout)
			_, data, err := conn.Read(rctx)
			rcancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					log.Debug("connection closed")
				default:
					log.Debug("read failed", zap.Error(err))
				}
				return // session.Close in defer
			}

			if !limiter.Allow() {
				select {
				case out <- types.ServerMessage{Type: types.TypeError, Payload: types.Error{Message: ErrRateLimited.Error()}}:
				default:
				}
				continue
			}

			if err := sess.Handle(ctx, data); err != nil {
				log.Debug("client message rejected", zap.Error(err))
			}
		}
	}
}
