package engine

const (
	MinBidFace = 2
	MaxBidFace = MaxFace
)

type Bid struct {
	Quantity int
	Face     int
	PlayerID string
}

// IsLegal reports whether proposed may follow current. A nil current means
// no bid has been made this round. diceInPlay caps the quantity.
func IsLegal(proposed Bid, current *Bid, diceInPlay int) bool {
	if proposed.Face < MinBidFace || proposed.Face > MaxBidFace {
		return false
	}
	if proposed.Quantity < 1 || proposed.Quantity > diceInPlay {
		return false
	}
	if current == nil {
		return true
	}

	if proposed.Quantity > current.Quantity {
		return true
	}
	return proposed.Quantity == current.Quantity && proposed.Face > current.Face
}
