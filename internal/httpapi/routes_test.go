package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DoyleJ11/liars-dice-backend/internal/engine"
	"github.com/DoyleJ11/liars-dice-backend/internal/gateway"
	"github.com/DoyleJ11/liars-dice-backend/internal/registry"
	"github.com/DoyleJ11/liars-dice-backend/internal/room"
	"github.com/DoyleJ11/liars-dice-backend/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) (http.Handler, *registry.Registry) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	reg := registry.New(ctx, room.Options{}, nil)
	h := SetupRoutes(Deps{
		Registry:       reg,
		Gateway:        gateway.New(reg, nil),
		AllowedOrigins: []string{"http://localhost:5173"},
		Version:        "v1.2.3",
	})
	return h, reg
}

func TestHealthz(t *testing.T) {
	h, _ := newRouter(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVersion(t *testing.T) {
	h, _ := newRouter(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"version":"v1.2.3"}`, rec.Body.String())
}

func TestListRooms(t *testing.T) {
	h, reg := newRouter(t)
	ctx := context.Background()

	r, err := reg.Ensure(ctx, "tavern")
	require.NoError(t, err)
	out := make(chan types.ServerMessage, 8)
	require.NoError(t, r.Send(ctx, room.Join{ConnID: "a", Name: "Ana", Outbox: out}))
	_, err = reg.Ensure(ctx, "cellar")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got []RoomSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, RoomSummary{Name: "cellar", Phase: engine.PhaseLobby}, got[0])
	assert.Equal(t, RoomSummary{Name: "tavern", Players: 1, Clients: 1, Phase: engine.PhaseLobby}, got[1])
}

func TestCORS(t *testing.T) {
	h, _ := newRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestOriginHosts(t *testing.T) {
	assert.Equal(t,
		[]string{"localhost:5173", "example.com", "*"},
		originHosts([]string{"http://localhost:5173", "https://example.com", "*"}),
	)
}
