package engine

// nextSeat walks the table forward from start, wrapping, and returns the first
// seat still holding dice. With inclusive the start seat is checked first,
// otherwise the search begins one seat later and ends back at start.
// The walk is bounded by the seat count; ok is false when nobody has dice.
func nextSeat(players []Player, start int, inclusive bool) (int, bool) {
	n := len(players)
	if n == 0 {
		return 0, false
	}

	first := 1
	if inclusive {
		first = 0
	}
	for off := first; off < first+n; off++ {
		i := ((start+off)%n + n) % n
		if players[i].DiceCount > 0 {
			return i, true
		}
	}
	return 0, false
}

func seatsWithDice(players []Player) []int {
	seats := []int{}
	for i, p := range players {
		if p.DiceCount > 0 {
			seats = append(seats, i)
		}
	}
	return seats
}

func indexOf(players []Player, id string) int {
	for i, p := range players {
		if p.ID == id {
			return i
		}
	}
	return -1
}
