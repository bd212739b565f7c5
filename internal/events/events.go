// Package events streams room activity to an external subscriber.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/DoyleJ11/liars-dice-backend/internal/engine"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const DefaultSubject = "liarsdice.rooms"

// RoomEvent is the published form of an engine event.
type RoomEvent struct {
	Room     string          `json:"room"`
	Type     string          `json:"type"`
	Round    int             `json:"round"`
	PlayerID string          `json:"player_id,omitempty"`
	Name     string          `json:"name,omitempty"`
	Bid      *engine.Bid     `json:"bid,omitempty"`
	Outcome  *engine.Outcome `json:"outcome,omitempty"`
	At       time.Time       `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, evt RoomEvent) error
	Close() error
}

func NewRoomEvent(room string, round int, e engine.Event, at time.Time) RoomEvent {
	return RoomEvent{
		Room:     room,
		Type:     string(e.Type),
		Round:    round,
		PlayerID: e.PlayerID,
		Name:     e.Name,
		Bid:      e.Bid,
		Outcome:  e.Outcome,
		At:       at.UTC(),
	}
}

// Nop drops everything. Used when no NATS url is configured.
type Nop struct{}

func (Nop) Publish(context.Context, RoomEvent) error { return nil }
func (Nop) Close() error                             { return nil }

// Memory keeps published events in order, for tests and local debugging.
type Memory struct {
	mu     sync.Mutex
	events []RoomEvent
}

func (m *Memory) Publish(_ context.Context, evt RoomEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Events() []RoomEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RoomEvent(nil), m.events...)
}

type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

// ConnectNATS dials url and publishes under prefix.<room>.<type>.
func ConnectNATS(url, prefix string, logger *zap.Logger) (*NATSPublisher, error) {
	if prefix == "" {
		prefix = DefaultSubject
	}
	opts := []nats.Option{
		nats.Name("liars-dice"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error("nats error", zap.Error(err))
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATSPublisher{nc: nc, prefix: prefix}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, evt RoomEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal room event: %w", err)
	}
	if err := p.nc.Publish(Subject(p.prefix, evt.Room, evt.Type), data); err != nil {
		return fmt.Errorf("publish room event: %w", err)
	}
	return nil
}

// Close flushes pending messages before closing the connection.
func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}

// Subject builds a NATS subject, replacing characters that would split or
// wildcard a token.
func Subject(prefix, room, eventType string) string {
	return prefix + "." + token(room) + "." + token(eventType)
}

func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
