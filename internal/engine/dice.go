package engine

import "slices"

const (
	MinFace  = 1
	MaxFace  = 6
	WildFace = 1
)

// Roll returns count dice values in [1,6], sorted ascending.
func Roll(count int) []int {
	if count <= 0 {
		return []int{}
	}

	dice := make([]int, count)
	for i := range dice {
		dice[i] = rollDie()
	}
	slices.Sort(dice)
	return dice
}

// countMatching counts every die on the table showing face or a wild.
func countMatching(players []Player, face int) int {
	n := 0
	for _, p := range players {
		for _, d := range p.Dice {
			if d == face || d == WildFace {
				n++
			}
		}
	}
	return n
}
