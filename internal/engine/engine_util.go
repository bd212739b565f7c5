package engine

import "math/rand"

func NewEmptyState(name string) State {
	return State{
		Name:    name,
		Players: []Player{},
		Rules:   Rules{StartingDice: DefaultStartingDice},
	}
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

func DerivePhase(s State) Phase {
	switch {
	case !s.GameInProgress:
		return PhaseLobby
	case s.GameActive:
		return PhaseBidding
	case len(seatsWithDice(s.Players)) < 2:
		return PhaseGameOver
	default:
		return PhaseReveal
	}
}

// DiceInPlay is the number of dice still on the table.
func DiceInPlay(s State) int {
	total := 0
	for _, p := range s.Players {
		total += p.DiceCount
	}
	return total
}

// CurrentPlayer returns the player holding the turn while bidding is open.
func CurrentPlayer(s State) (Player, bool) {
	if !s.GameActive || s.Cursor < 0 || s.Cursor >= len(s.Players) {
		return Player{}, false
	}
	return s.Players[s.Cursor], true
}

// rollDie is swapped out in tests for deterministic hands.
var rollDie = func() int {
	return rand.Intn(MaxFace) + MinFace
}
