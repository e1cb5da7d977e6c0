// internal/truco/deck.go
package truco

import "math/rand"

// HandSize is the number of cards dealt to each seat.
const HandSize = 3

// NewDeck builds the forty-card deck in a fixed order.
func NewDeck() []Card {
	cards := make([]Card, 0, len(Suits)*len(Ranks))
	for _, suit := range Suits {
		for _, rank := range Ranks {
			cards = append(cards, Card{Suit: suit, Rank: rank})
		}
	}
	return cards
}

// Shuffle returns a uniformly permuted copy of deck.
func Shuffle(deck []Card, rng *rand.Rand) []Card {
	out := make([]Card, len(deck))
	copy(out, deck)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// Deal takes three cards for each seat off the top of deck, alternating.
// The rest of the deck is not used in Truco.
func Deal(deck []Card) (hand0, hand1 []Card) {
	if len(deck) < 2*HandSize {
		panic("truco: deal from a short deck")
	}
	hand0 = make([]Card, 0, HandSize)
	hand1 = make([]Card, 0, HandSize)
	for i := 0; i < 2*HandSize; i += 2 {
		hand0 = append(hand0, deck[i])
		hand1 = append(hand1, deck[i+1])
	}
	return hand0, hand1
}
