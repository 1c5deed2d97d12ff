package models

// Leg identifies a branch of the binary tree, or a self purchase
type Leg string

const (
	LegLeft     Leg = "left"
	LegRight    Leg = "right"
	LegPersonal Leg = "personal"
	// LegNone tags a balance with no carry-forward
	LegNone Leg = "none"
)

// IsBinary returns true for the two downline legs
func (l Leg) IsBinary() bool {
	return l == LegLeft || l == LegRight
}

// Opposite returns the other binary leg, or LegNone for non-binary values
func (l Leg) Opposite() Leg {
	switch l {
	case LegLeft:
		return LegRight
	case LegRight:
		return LegLeft
	default:
		return LegNone
	}
}

// ParseLeg converts user input into a Leg. Only left, right and personal are accepted.
func ParseLeg(s string) (Leg, bool) {
	switch Leg(s) {
	case LegLeft, LegRight, LegPersonal:
		return Leg(s), true
	}
	return "", false
}
