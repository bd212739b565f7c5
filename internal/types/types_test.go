package types

import (
	"encoding/json"
	"testing"

	"github.com/DoyleJ11/liars-dice-backend/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequest(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Request
	}{
		{
			name: "join",
			raw:  `{"type":"joinRoom","payload":{"username":"  Ana ","room":"tavern","isSpectator":true}}`,
			want: JoinRoom{Username: "Ana", Room: "tavern", IsSpectator: true},
		},
		{
			name: "ready",
			raw:  `{"type":"playerReady","payload":{"room":"tavern"}}`,
			want: PlayerReady{Room: "tavern"},
		},
		{
			name: "bid",
			raw:  `{"type":"placeBid","payload":{"room":"tavern","quantity":3,"face":5}}`,
			want: PlaceBid{Room: "tavern", Quantity: 3, Face: 5},
		},
		{
			name: "liar",
			raw:  `{"type":"callLiar","payload":{"room":"tavern"}}`,
			want: CallLiar{Room: "tavern"},
		},
		{
			name: "missing payload",
			raw:  `{"type":"callLiar"}`,
			want: CallLiar{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeRequest([]byte(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeRequest_Errors(t *testing.T) {
	_, err := DecodeRequest([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrBadJSON)

	_, err = DecodeRequest([]byte(`{"type":"placeBid","payload":{"quantity":"three"}}`))
	assert.ErrorIs(t, err, ErrBadJSON)

	_, err = DecodeRequest([]byte(`{"type":"startGame"}`))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name      string
		req       Request
		wantField string
	}{
		{name: "valid join", req: JoinRoom{Username: "Ana", Room: "tavern"}},
		{name: "blank username", req: JoinRoom{Username: "   ", Room: "tavern"}, wantField: "username"},
		{name: "blank room", req: JoinRoom{Username: "Ana"}, wantField: "room"},
		{name: "long username", req: JoinRoom{Username: "abcdefghijklmnopqrstuvwxyz", Room: "tavern"}, wantField: "username"},
		{name: "ready needs room", req: PlayerReady{}, wantField: "room"},
		{name: "bid face one", req: PlaceBid{Room: "t", Quantity: 1, Face: 1}, wantField: "face"},
		{name: "bid zero quantity", req: PlaceBid{Room: "t", Quantity: 0, Face: 2}, wantField: "quantity"},
		{name: "valid bid", req: PlaceBid{Room: "t", Quantity: 2, Face: 6}},
		{name: "liar needs room", req: CallLiar{}, wantField: "room"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.wantField, verr.Field)
		})
	}
}

func tableState() engine.State {
	s := engine.NewEmptyState("tavern")
	s.Players = []engine.Player{
		{ID: "a", Name: "Ana", Dice: []int{1, 4, 6}, DiceCount: 3},
		{ID: "b", Name: "Bo", Dice: []int{2, 2, 5}, DiceCount: 3},
		{ID: "s", Name: "Sam", Dice: []int{}, Spectator: true},
	}
	s.GameInProgress = true
	s.GameActive = true
	s.Cursor = 1
	s.CurrentBid = &engine.Bid{Quantity: 2, Face: 4, PlayerID: "a"}
	return s
}

func TestNewSnapshot_HidesOtherHandsWhileBidding(t *testing.T) {
	snap := NewSnapshot(tableState(), 7, "a")

	assert.Equal(t, engine.PhaseBidding, snap.Phase)
	assert.Equal(t, 7, snap.Version)
	assert.Equal(t, "b", snap.CurrentTurn)
	assert.Equal(t, 6, snap.DiceInPlay)
	assert.Equal(t, &BidView{Quantity: 2, Face: 4, Player: "a"}, snap.CurrentBid)
	assert.Equal(t, []int{1, 4, 6}, snap.Players[0].Dice)
	assert.Nil(t, snap.Players[1].Dice)
	assert.Equal(t, 3, snap.Players[1].DiceCount)

	spectator := NewSnapshot(tableState(), 7, "s")
	for _, p := range spectator.Players {
		assert.Nil(t, p.Dice)
	}

	// Hidden hands must not reach the wire at all.
	raw, err := json.Marshal(NewSnapshot(tableState(), 7, "a"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"dice":[2,2,5]`)
	assert.Contains(t, string(raw), `"dice":[1,4,6]`)
}

func TestNewSnapshot_RevealShowsEveryHand(t *testing.T) {
	s := tableState()
	s.GameActive = false
	s.CurrentBid = nil
	s.LastOutcome = &engine.Outcome{Bid: engine.Bid{Quantity: 2, Face: 4, PlayerID: "a"}, ChallengerID: "b", LoserID: "b", Count: 2, BidTrue: true, Message: "m"}

	snap := NewSnapshot(s, 8, "s")
	assert.Equal(t, engine.PhaseReveal, snap.Phase)
	assert.Empty(t, snap.CurrentTurn)
	assert.Equal(t, []int{1, 4, 6}, snap.Players[0].Dice)
	assert.Equal(t, []int{2, 2, 5}, snap.Players[1].Dice)
	require.NotNil(t, snap.LastOutcome)
	assert.Equal(t, "b", snap.LastOutcome.Loser)
}

func TestNewRoundOver(t *testing.T) {
	s := tableState()
	o := engine.Outcome{Bid: engine.Bid{Quantity: 2, Face: 4, PlayerID: "a"}, LoserID: "b", Count: 2, BidTrue: true, Message: "Result"}

	ro := NewRoundOver(s, o)
	assert.Equal(t, "Result", ro.Message)
	require.Len(t, ro.AllPlayers, 3)
	assert.Equal(t, []int{2, 2, 5}, ro.AllPlayers[1].Dice)
	assert.True(t, ro.Outcome.BidTrue)
}
