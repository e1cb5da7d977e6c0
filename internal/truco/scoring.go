// internal/truco/scoring.go
package truco

// TrucoPoints is what the hand is worth at a given accepted Truco level.
// Level 0 (no Truco) is the single hand point.
func TrucoPoints(level int) int {
	switch level {
	case 1:
		return 2
	case 2:
		return 3
	case 3:
		return 4
	default:
		return 1
	}
}

// TrucoRejectPoints is what the caller collects when the canto at level is
// turned down: the value of the level below it.
func TrucoRejectPoints(level int) int {
	if level <= 1 {
		return 1
	}
	return TrucoPoints(level - 1)
}

// FaltaEnvidoPoints returns the points a falta envido is played for: what the
// leading seat still needs to reach the current target, never less than one.
// The target is the malas threshold until either seat has reached it.
func FaltaEnvidoPoints(scores [2]int, rules Rules) int {
	rules = rules.Normalized()
	lead := max(scores[0], scores[1])
	target := rules.MalasThreshold
	if lead >= rules.MalasThreshold {
		target = rules.TargetScore
	}
	return max(1, target-lead)
}

// EnvidoPoints returns the value of an envido-family call.
func EnvidoPoints(call Call, scores [2]int, rules Rules) int {
	switch call {
	case CallEnvido:
		return 2
	case CallRealEnvido:
		return 3
	case CallFaltaEnvido:
		return FaltaEnvidoPoints(scores, rules)
	default:
		return 0
	}
}

// ResolveEnvido picks the envido winner. Ties go to the dealer.
func ResolveEnvido(values [2]int, dealer int) int {
	switch {
	case values[0] > values[1]:
		return 0
	case values[1] > values[0]:
		return 1
	default:
		return dealer
	}
}

// EnvidoResult is kept on the hand once an envido has been accepted and
// scored, so both values can be shown.
type EnvidoResult struct {
	Values [2]int `json:"values"`
	Winner int    `json:"winner_seat"`
	Points int    `json:"points"`
}

// HandResultReason says how a hand ended.
type HandResultReason string

const (
	ReasonTricks         HandResultReason = "tricks"
	ReasonTrucoRejected  HandResultReason = "truco_rejected"
	ReasonEnvidoRejected HandResultReason = "envido_rejected"
	ReasonDeck           HandResultReason = "deck"
)

// HandResult summarizes a finished hand. Points covers the hand itself, not
// an envido scored along the way.
type HandResult struct {
	Number int              `json:"number"`
	Winner int              `json:"winner_seat"`
	Points int              `json:"points"`
	Reason HandResultReason `json:"reason"`
	Tricks []Trick          `json:"tricks"`
}
