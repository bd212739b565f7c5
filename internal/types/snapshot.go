package types

import "github.com/DoyleJ11/liars-dice-backend/internal/engine"

type Session struct {
	PlayerID string `json:"playerId"`
	Room     string `json:"room"`
}

type PlayerView struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DiceCount   int    `json:"diceCount"`
	Dice        []int  `json:"dice,omitempty"` // only the owner's, or everyone's while revealed
	IsReady     bool   `json:"isReady"`
	Eliminated  bool   `json:"eliminated"`
	IsSpectator bool   `json:"isSpectator,omitempty"`
}

type BidView struct {
	Quantity int    `json:"quantity"`
	Face     int    `json:"face"`
	Player   string `json:"player"`
}

type OutcomeView struct {
	Bid        BidView `json:"bid"`
	Challenger string  `json:"challenger"`
	Loser      string  `json:"loser"`
	Count      int     `json:"count"`
	BidTrue    bool    `json:"bidTrue"`
	Message    string  `json:"message"`
}

type RoomSnapshot struct {
	Name             string       `json:"name"`
	Phase            engine.Phase `json:"phase"`
	Version          int          `json:"version"`
	Round            int          `json:"round"`
	Players          []PlayerView `json:"players"`
	CurrentTurnIndex int          `json:"currentTurnIndex"`
	CurrentTurn      string       `json:"currentTurn,omitempty"`
	CurrentBid       *BidView     `json:"currentBid"`
	DiceInPlay       int          `json:"diceInPlay"`
	GameInProgress   bool         `json:"gameInProgress"`
	GameActive       bool         `json:"gameActive"`
	LastOutcome      *OutcomeView `json:"lastOutcome,omitempty"`
}

type RoundOver struct {
	AllPlayers []PlayerView `json:"allPlayers"`
	Message    string       `json:"message"`
	Outcome    *OutcomeView `json:"outcome,omitempty"`
}

type PlayerRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// GameOver names the last player holding dice. Winner is nil when the table
// emptied without one.
type GameOver struct {
	Winner *PlayerRef `json:"winner"`
}

type Notification struct {
	Message string `json:"message"`
}

type Error struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// NewSnapshot renders s for viewerID. Other players' dice are withheld unless
// the round has been revealed.
func NewSnapshot(s engine.State, version int, viewerID string) RoomSnapshot {
	phase := engine.DerivePhase(s)
	revealed := phase == engine.PhaseReveal || phase == engine.PhaseGameOver

	snap := RoomSnapshot{
		Name:             s.Name,
		Phase:            phase,
		Version:          version,
		Round:            s.Round,
		Players:          make([]PlayerView, 0, len(s.Players)),
		CurrentTurnIndex: s.Cursor,
		DiceInPlay:       engine.DiceInPlay(s),
		GameInProgress:   s.GameInProgress,
		GameActive:       s.GameActive,
	}
	for _, p := range s.Players {
		snap.Players = append(snap.Players, playerView(p, revealed || p.ID == viewerID))
	}
	if cur, ok := engine.CurrentPlayer(s); ok {
		snap.CurrentTurn = cur.ID
	}
	if s.CurrentBid != nil {
		b := bidView(*s.CurrentBid)
		snap.CurrentBid = &b
	}
	if s.LastOutcome != nil && revealed {
		o := outcomeView(*s.LastOutcome)
		snap.LastOutcome = &o
	}
	return snap
}

// NewRoundOver reveals every hand alongside the challenge result.
func NewRoundOver(s engine.State, o engine.Outcome) RoundOver {
	ro := RoundOver{AllPlayers: make([]PlayerView, 0, len(s.Players)), Message: o.Message}
	for _, p := range s.Players {
		ro.AllPlayers = append(ro.AllPlayers, playerView(p, true))
	}
	ov := outcomeView(o)
	ro.Outcome = &ov
	return ro
}

func playerView(p engine.Player, showDice bool) PlayerView {
	v := PlayerView{
		ID:          p.ID,
		Username:    p.Name,
		DiceCount:   p.DiceCount,
		IsReady:     p.Ready,
		Eliminated:  p.Eliminated,
		IsSpectator: p.Spectator,
	}
	if showDice && len(p.Dice) > 0 {
		v.Dice = append([]int{}, p.Dice...)
	}
	return v
}

func bidView(b engine.Bid) BidView {
	return BidView{Quantity: b.Quantity, Face: b.Face, Player: b.PlayerID}
}

func outcomeView(o engine.Outcome) OutcomeView {
	return OutcomeView{
		Bid:        bidView(o.Bid),
		Challenger: o.ChallengerID,
		Loser:      o.LoserID,
		Count:      o.Count,
		BidTrue:    o.BidTrue,
		Message:    o.Message,
	}
}
