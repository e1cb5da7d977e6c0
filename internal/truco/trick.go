// internal/truco/trick.go
package truco

// NoSeat marks an absent seat: a drawn trick's winner, an unfinished match's winner.
const NoSeat = -1

// MaxTricks is the number of tricks (bazas) in a full hand.
const MaxTricks = 3

// Outcome is the result of comparing the two cards of a trick.
type Outcome int

const (
	FirstWins Outcome = iota
	SecondWins
	Draw
)

func (o Outcome) String() string {
	switch o {
	case FirstWins:
		return "first"
	case SecondWins:
		return "second"
	default:
		return "draw"
	}
}

// ResolveTrick compares two cards by trick tier. Equal tiers are a parda.
func ResolveTrick(a, b Card) Outcome {
	ra, rb := a.TrickRank(), b.TrickRank()
	switch {
	case ra > rb:
		return FirstWins
	case rb > ra:
		return SecondWins
	default:
		return Draw
	}
}

// PlayedCard is a card lying face up on the table for the current exchange.
type PlayedCard struct {
	Seat int  `json:"seat"`
	Card Card `json:"card"`
}

// Trick records one finished exchange. Cards is indexed by seat.
type Trick struct {
	Cards  [2]Card `json:"cards_played"`
	Leader int     `json:"leader_seat"`
	Winner int     `json:"winner_seat"`
	Draw   bool    `json:"is_draw"`
}

// newTrick resolves the two table cards into a Trick.
func newTrick(lead, reply PlayedCard) Trick {
	t := Trick{Leader: lead.Seat, Winner: NoSeat}
	t.Cards[lead.Seat] = lead.Card
	t.Cards[reply.Seat] = reply.Card
	switch ResolveTrick(lead.Card, reply.Card) {
	case FirstWins:
		t.Winner = lead.Seat
	case SecondWins:
		t.Winner = reply.Seat
	default:
		t.Draw = true
	}
	return t
}

// HandWinner decides whether the tricks played so far settle the hand, and
// for whom. Pardas are resolved here rather than per trick since a drawn
// trick's weight depends on what follows it:
//
//   - two decisive tricks for one seat win the hand;
//   - a drawn first trick hands the hand to whoever wins the next decisive one;
//   - a drawn second (or third) trick after a decisive first goes to the first trick's winner;
//   - three pardas go to the dealer.
func HandWinner(tricks []Trick, dealer int) (int, bool) {
	var wins [2]int
	for _, t := range tricks {
		if !t.Draw {
			wins[t.Winner]++
		}
	}
	for seat, w := range wins {
		if w >= 2 {
			return seat, true
		}
	}

	switch len(tricks) {
	case 0, 1:
		return NoSeat, false
	case 2:
		first, second := tricks[0], tricks[1]
		switch {
		case first.Draw && !second.Draw:
			return second.Winner, true
		case !first.Draw && second.Draw:
			return first.Winner, true
		}
		return NoSeat, false
	default:
		first, third := tricks[0], tricks[2]
		switch {
		case !third.Draw:
			// only reachable after two pardas
			return third.Winner, true
		case !first.Draw:
			return first.Winner, true
		}
		return dealer, true
	}
}
