package engine

import (
	"errors"
	"fmt"
)

var ErrWrongTurn = errors.New("invalid turn")
var ErrIllegalBid = errors.New("illegal bid")
var ErrNoBid = errors.New("no bid to challenge")
var ErrRoundNotActive = errors.New("round not active")
var ErrRoundActive = errors.New("round already active")
var ErrNotInLobby = errors.New("match already in progress")
var ErrNotInProgress = errors.New("no match in progress")
var ErrGameOver = errors.New("match is over")
var ErrUnknownPlayer = errors.New("unknown player")
var ErrDuplicatePlayer = errors.New("player already joined")
var ErrSpectator = errors.New("spectators cannot act")
var ErrUnsupportedCommand = errors.New("unsupported command")

// ErrNoActivePlayers means the turn cursor has nowhere to land. The room is
// expected to force a reset when it sees this.
var ErrNoActivePlayers = errors.New("no player holds dice")

const DefaultStartingDice = 4

type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhaseBidding  Phase = "bidding"
	PhaseReveal   Phase = "reveal"
	PhaseGameOver Phase = "game_over"
)

type Player struct {
	ID         string
	Name       string
	Dice       []int
	DiceCount  int
	Ready      bool
	Eliminated bool
	Spectator  bool
}

type Rules struct {
	StartingDice int
}

// Outcome is the revealed result of a challenge.
type Outcome struct {
	Bid          Bid
	ChallengerID string
	LoserID      string
	Count        int
	BidTrue      bool
	Message      string
}

type State struct {
	Name           string
	Players        []Player
	Cursor         int
	CurrentBid     *Bid
	GameInProgress bool
	GameActive     bool
	Round          int
	Rules          Rules
	LastOutcome    *Outcome
}

type CommandType string

const (
	CmdJoin       CommandType = "Join"
	CmdLeave      CommandType = "Leave"
	CmdReady      CommandType = "Ready"
	CmdPlaceBid   CommandType = "PlaceBid"
	CmdChallenge  CommandType = "Challenge"
	CmdStartRound CommandType = "StartRound"
	CmdResetMatch CommandType = "ResetMatch"
)

/*
	CmdJoin       -> EvtPlayerJoined
	CmdLeave      -> EvtPlayerLeft [-> EvtGameOver] | [-> EvtMatchStarted -> EvtRoundStarted]
	CmdReady      -> EvtPlayerReady [-> EvtMatchStarted -> EvtRoundStarted]
	CmdPlaceBid   -> EvtBidPlaced
	CmdChallenge  -> EvtRoundResolved [-> EvtPlayerEliminated] [-> EvtGameOver]
	CmdStartRound -> EvtRoundStarted
	CmdResetMatch -> EvtRoomReset
*/

type Command struct {
	Type      CommandType
	PlayerID  string
	Name      string
	Spectator bool
	Quantity  int
	Face      int
}

type EventType string

const (
	EvtPlayerJoined     EventType = "PlayerJoined"
	EvtPlayerLeft       EventType = "PlayerLeft"
	EvtPlayerReady      EventType = "PlayerReady"
	EvtMatchStarted     EventType = "MatchStarted"
	EvtRoundStarted     EventType = "RoundStarted"
	EvtBidPlaced        EventType = "BidPlaced"
	EvtRoundResolved    EventType = "RoundResolved"
	EvtPlayerEliminated EventType = "PlayerEliminated"
	EvtGameOver         EventType = "GameOver"
	EvtRoomReset        EventType = "RoomReset"
)

type Event struct {
	Type     EventType
	PlayerID string
	Name     string
	Bid      *Bid
	Outcome  *Outcome
}

// Apply runs cmd against s. On error the original state is returned untouched
// and no events are produced.
func Apply(s State, cmd Command) ([]Event, State, error) {
	ns := s.Clone()

	var (
		events []Event
		err    error
	)
	switch cmd.Type {
	case CmdJoin:
		events, err = join(&ns, cmd)
	case CmdLeave:
		events, err = leave(&ns, cmd)
	case CmdReady:
		events, err = ready(&ns, cmd)
	case CmdPlaceBid:
		events, err = placeBid(&ns, cmd)
	case CmdChallenge:
		events, err = challenge(&ns, cmd)
	case CmdStartRound:
		events, err = startRound(&ns)
	case CmdResetMatch:
		if ns.GameActive {
			return nil, s, ErrRoundActive
		}
		if !ns.GameInProgress {
			return nil, s, ErrNotInProgress
		}
		events = resetMatch(&ns)
	default:
		err = ErrUnsupportedCommand
	}

	if err != nil {
		return nil, s, err
	}
	return events, ns, nil
}

func join(s *State, cmd Command) ([]Event, error) {
	if cmd.PlayerID == "" {
		return nil, ErrUnknownPlayer
	}
	if indexOf(s.Players, cmd.PlayerID) >= 0 {
		return nil, ErrDuplicatePlayer
	}

	p := Player{ID: cmd.PlayerID, Name: cmd.Name, Dice: []int{}, Spectator: cmd.Spectator}
	// Late joiners sit out until the next match.
	if !p.Spectator && !s.GameInProgress {
		p.DiceCount = s.Rules.StartingDice
	}
	s.Players = append(s.Players, p)

	return []Event{{Type: EvtPlayerJoined, PlayerID: p.ID, Name: p.Name}}, nil
}

func leave(s *State, cmd Command) ([]Event, error) {
	idx := indexOf(s.Players, cmd.PlayerID)
	if idx < 0 {
		return nil, ErrUnknownPlayer
	}
	gone := s.Players[idx]
	heldTurn := s.GameActive && idx == s.Cursor
	wasOver := DerivePhase(*s) == PhaseGameOver

	s.Players = append(s.Players[:idx], s.Players[idx+1:]...)
	if idx < s.Cursor {
		s.Cursor--
	}
	if s.Cursor >= len(s.Players) {
		s.Cursor = 0
	}
	if s.CurrentBid != nil && s.CurrentBid.PlayerID == gone.ID {
		s.CurrentBid = nil
	}

	events := []Event{{Type: EvtPlayerLeft, PlayerID: gone.ID, Name: gone.Name}}

	if !s.GameInProgress {
		return append(events, maybeStartMatch(s)...), nil
	}
	if wasOver {
		return events, nil
	}

	if len(seatsWithDice(s.Players)) < 2 {
		s.GameActive = false
		s.CurrentBid = nil
		return append(events, gameOver(s)), nil
	}

	if heldTurn {
		next, ok := nextSeat(s.Players, s.Cursor, true)
		if !ok {
			return nil, ErrNoActivePlayers
		}
		s.Cursor = next
	}
	return events, nil
}

func ready(s *State, cmd Command) ([]Event, error) {
	if s.GameInProgress {
		return nil, ErrNotInLobby
	}
	idx := indexOf(s.Players, cmd.PlayerID)
	if idx < 0 {
		return nil, ErrUnknownPlayer
	}
	if s.Players[idx].Spectator {
		return nil, ErrSpectator
	}

	s.Players[idx].Ready = true
	events := []Event{{Type: EvtPlayerReady, PlayerID: cmd.PlayerID, Name: s.Players[idx].Name}}
	return append(events, maybeStartMatch(s)...), nil
}

// maybeStartMatch starts the match once at least two seated players exist and
// every one of them is ready.
func maybeStartMatch(s *State) []Event {
	seated := 0
	for _, p := range s.Players {
		if p.Spectator {
			continue
		}
		if !p.Ready {
			return nil
		}
		seated++
	}
	if seated < 2 {
		return nil
	}

	s.GameInProgress = true
	s.Round = 0
	s.Cursor = 0
	s.LastOutcome = nil

	events := []Event{{Type: EvtMatchStarted}}
	started, err := startRound(s)
	if err != nil {
		// Every seated player was just dealt StartingDice, so this only
		// happens with a zero dice rule.
		resetMatch(s)
		return nil
	}
	return append(events, started...)
}

func startRound(s *State) ([]Event, error) {
	if s.GameActive {
		return nil, ErrRoundActive
	}
	if !s.GameInProgress {
		return nil, ErrNotInProgress
	}

	switch len(seatsWithDice(s.Players)) {
	case 0:
		return nil, ErrNoActivePlayers
	case 1:
		return nil, ErrGameOver
	}

	for i := range s.Players {
		s.Players[i].Dice = Roll(s.Players[i].DiceCount)
	}
	s.CurrentBid = nil
	s.LastOutcome = nil

	next, ok := nextSeat(s.Players, s.Cursor, true)
	if !ok {
		return nil, ErrNoActivePlayers
	}
	s.Cursor = next
	s.GameActive = true
	s.Round++

	return []Event{{Type: EvtRoundStarted, PlayerID: s.Players[next].ID}}, nil
}

func placeBid(s *State, cmd Command) ([]Event, error) {
	if !s.GameActive {
		return nil, ErrRoundNotActive
	}
	if s.Players[s.Cursor].ID != cmd.PlayerID {
		return nil, ErrWrongTurn
	}

	bid := Bid{Quantity: cmd.Quantity, Face: cmd.Face, PlayerID: cmd.PlayerID}
	if !IsLegal(bid, s.CurrentBid, DiceInPlay(*s)) {
		return nil, ErrIllegalBid
	}
	s.CurrentBid = &bid

	next, ok := nextSeat(s.Players, s.Cursor, false)
	if !ok {
		return nil, ErrNoActivePlayers
	}
	s.Cursor = next

	return []Event{{Type: EvtBidPlaced, PlayerID: cmd.PlayerID, Bid: &bid}}, nil
}

func challenge(s *State, cmd Command) ([]Event, error) {
	if !s.GameActive {
		return nil, ErrRoundNotActive
	}
	if s.CurrentBid == nil {
		return nil, ErrNoBid
	}
	if s.Players[s.Cursor].ID != cmd.PlayerID {
		return nil, ErrWrongTurn
	}

	bid := *s.CurrentBid
	count := countMatching(s.Players, bid.Face)
	bidTrue := count >= bid.Quantity

	// A true bid costs the challenger a die, a false one costs the bidder.
	loserID := cmd.PlayerID
	if !bidTrue {
		loserID = bid.PlayerID
	}
	loserIdx := indexOf(s.Players, loserID)
	if loserIdx < 0 {
		return nil, ErrUnknownPlayer
	}

	s.GameActive = false
	s.CurrentBid = nil

	loser := &s.Players[loserIdx]
	loser.DiceCount--

	outcome := Outcome{
		Bid:          bid,
		ChallengerID: cmd.PlayerID,
		LoserID:      loserID,
		Count:        count,
		BidTrue:      bidTrue,
		Message:      fmt.Sprintf("Result: There were %d %ds (1s are wild). %s lost a die!", count, bid.Face, loser.Name),
	}
	s.LastOutcome = &outcome

	events := []Event{{Type: EvtRoundResolved, PlayerID: loserID, Name: loser.Name, Outcome: &outcome}}

	if loser.DiceCount <= 0 {
		loser.DiceCount = 0
		loser.Eliminated = true
		events = append(events, Event{Type: EvtPlayerEliminated, PlayerID: loser.ID, Name: loser.Name})
	}

	if len(seatsWithDice(s.Players)) < 2 {
		return append(events, gameOver(s)), nil
	}

	// The loser opens the next round, or the seat after them if they are out.
	if next, ok := nextSeat(s.Players, loserIdx, true); ok {
		s.Cursor = next
	}
	return events, nil
}

// gameOver reports the last player holding dice as the winner. A table with no
// dice left produces a game over without a winner.
func gameOver(s *State) Event {
	seats := seatsWithDice(s.Players)
	if len(seats) == 1 {
		w := s.Players[seats[0]]
		return Event{Type: EvtGameOver, PlayerID: w.ID, Name: w.Name}
	}
	return Event{Type: EvtGameOver}
}

func resetMatch(s *State) []Event {
	*s = Reset(*s)
	return []Event{{Type: EvtRoomReset}}
}

// Reset returns s back in the lobby with every seated player holding the
// starting dice. Used after a match ends and to recover from a broken table.
func Reset(s State) State {
	ns := s.Clone()
	for i := range ns.Players {
		p := &ns.Players[i]
		p.Dice = []int{}
		p.Ready = false
		p.Eliminated = false
		p.DiceCount = 0
		if !p.Spectator {
			p.DiceCount = ns.Rules.StartingDice
		}
	}
	ns.CurrentBid = nil
	ns.Cursor = 0
	ns.GameInProgress = false
	ns.GameActive = false
	ns.LastOutcome = nil
	return ns
}

// Clone deep-copies the player table so Apply never aliases a prior state.
func (s State) Clone() State {
	ns := s
	ns.Players = make([]Player, len(s.Players))
	for i, p := range s.Players {
		p.Dice = append([]int{}, p.Dice...)
		ns.Players[i] = p
	}
	if s.CurrentBid != nil {
		b := *s.CurrentBid
		ns.CurrentBid = &b
	}
	if s.LastOutcome != nil {
		o := *s.LastOutcome
		ns.LastOutcome = &o
	}
	return ns
}
