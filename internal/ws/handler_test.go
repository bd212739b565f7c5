package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DoyleJ11/liars-dice-backend/internal/gateway"
	"github.com/DoyleJ11/liars-dice-backend/internal/registry"
	"github.com/DoyleJ11/liars-dice-backend/internal/room"
	"github.com/DoyleJ11/liars-dice-backend/internal/types"
	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func setupTestServer(t *testing.T, opts Options) (string, *registry.Registry) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	reg := registry.New(ctx, room.Options{}, nil)
	srv := httptest.NewServer(Handler(gateway.New(reg, nil), opts))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http"), reg
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func write(t *testing.T, conn *websocket.Conn, raw string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(raw)))
}

func readUntil(t *testing.T, conn *websocket.Conn, msgType string) frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var f frame
		require.NoError(t, json.Unmarshal(data, &f))
		if f.Type == msgType {
			return f
		}
	}
}

func TestHandler_JoinReceivesSessionAndSnapshot(t *testing.T) {
	url, _ := setupTestServer(t, Options{})
	conn := dial(t, url)

	write(t, conn, `{"type":"joinRoom","payload":{"username":"Ana","room":"tavern"}}`)

	var session types.Session
	require.NoError(t, json.Unmarshal(readUntil(t, conn, types.TypeSession).Payload, &session))
	assert.Equal(t, "tavern", session.Room)
	assert.Len(t, session.PlayerID, 36, "uuid connection id")

	var snap types.RoomSnapshot
	require.NoError(t, json.Unmarshal(readUntil(t, conn, types.TypeRoomUpdate).Payload, &snap))
	require.Len(t, snap.Players, 1)
	assert.Equal(t, session.PlayerID, snap.Players[0].ID)
	assert.Equal(t, "lobby", string(snap.Phase))
}

func TestHandler_ValidationErrorGoesToCaller(t *testing.T) {
	url, _ := setupTestServer(t, Options{})
	conn := dial(t, url)

	write(t, conn, `{"type":"joinRoom","payload":{"username":"","room":"tavern"}}`)

	var e types.Error
	require.NoError(t, json.Unmarshal(readUntil(t, conn, types.TypeError).Payload, &e))
	assert.Equal(t, "username", e.Field)
}

func TestHandler_RateLimit(t *testing.T) {
	url, _ := setupTestServer(t, Options{ActionRate: 0.001, ActionBurst: 1})
	conn := dial(t, url)

	write(t, conn, `{not json`)
	write(t, conn, `{not json`)

	var first, second types.Error
	require.NoError(t, json.Unmarshal(readUntil(t, conn, types.TypeError).Payload, &first))
	require.NoError(t, json.Unmarshal(readUntil(t, conn, types.TypeError).Payload, &second))
	assert.NotEqual(t, ErrRateLimited.Error(), first.Message)
	assert.Equal(t, ErrRateLimited.Error(), second.Message)
}

func TestHandler_DisconnectLeavesRoom(t *testing.T) {
	url, reg := setupTestServer(t, Options{})
	stay := dial(t, url)
	gone := dial(t, url)

	write(t, stay, `{"type":"joinRoom","payload":{"username":"Ana","room":"tavern"}}`)
	readUntil(t, stay, types.TypeRoomUpdate)
	write(t, gone, `{"type":"joinRoom","payload":{"username":"Bo","room":"tavern"}}`)
	readUntil(t, gone, types.TypeRoomUpdate)

	require.NoError(t, gone.Close(websocket.StatusNormalClosure, ""))

	var note types.Notification
	require.NoError(t, json.Unmarshal(readUntil(t, stay, types.TypeNotification).Payload, &note))
	for note.Message != "Bo left the room" {
		require.NoError(t, json.Unmarshal(readUntil(t, stay, types.TypeNotification).Payload, &note))
	}

	r, err := reg.Get(context.Background(), "tavern")
	require.NoError(t, err)
	require.NotNil(t, r)
	v, err := r.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v.NumClients)
}
