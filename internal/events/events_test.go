package events

import (
	"context"
	"testing"
	"time"

	"github.com/DoyleJ11/liars-dice-backend/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSubject(t *testing.T) {
	cases := []struct {
		room string
		want string
	}{
		{room: "tavern", want: "liarsdice.rooms.tavern.BidPlaced"},
		{room: "back room", want: "liarsdice.rooms.back_room.BidPlaced"},
		{room: "a.b*>", want: "liarsdice.rooms.a_b__.BidPlaced"},
		{room: "", want: "liarsdice.rooms._.BidPlaced"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Subject(DefaultSubject, tc.room, "BidPlaced"))
	}
}

func TestNewRoomEvent(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))
	bid := &engine.Bid{Quantity: 2, Face: 5, PlayerID: "p1"}

	evt := NewRoomEvent("tavern", 3, engine.Event{Type: engine.EvtBidPlaced, PlayerID: "p1", Bid: bid}, at)
	assert.Equal(t, "tavern", evt.Room)
	assert.Equal(t, "BidPlaced", evt.Type)
	assert.Equal(t, 3, evt.Round)
	assert.Equal(t, bid, evt.Bid)
	assert.Equal(t, time.UTC, evt.At.Location())
}

func TestMemory(t *testing.T) {
	m := &Memory{}
	require.NoError(t, m.Publish(context.Background(), RoomEvent{Type: "a"}))
	require.NoError(t, m.Publish(context.Background(), RoomEvent{Type: "b"}))

	got := m.Events()
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[1].Type)
	assert.NoError(t, Nop{}.Publish(context.Background(), RoomEvent{}))
}

func TestConnectNATS_Unreachable(t *testing.T) {
	_, err := ConnectNATS("nats://127.0.0.1:1", "", zap.NewNop())
	assert.Error(t, err)
}
