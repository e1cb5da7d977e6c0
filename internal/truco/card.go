// internal/truco/card.go
package truco

import "fmt"

// Suit is one of the four Spanish-deck suits.
type Suit string

const (
	Espada Suit = "espada" // swords
	Basto  Suit = "basto"  // clubs
	Oro    Suit = "oro"    // coins
	Copa   Suit = "copa"   // cups
)

// Suits lists the suits in tie-break order, strongest first.
var Suits = [4]Suit{Espada, Basto, Oro, Copa}

// Ranks lists the ten ranks present in a Truco deck (8s and 9s are removed).
var Ranks = [10]int{1, 2, 3, 4, 5, 6, 7, 10, 11, 12}

// Card is an immutable Spanish-deck card.
type Card struct {
	Suit Suit `json:"suit"`
	Rank int  `json:"rank"`
}

// specialTier holds the cards whose trick tier is not decided by rank alone:
// the matas, the false aces and the false sevens. Everything else uses rankTier.
var specialTier = map[Card]int{
	{Espada, 1}: 14,
	{Basto, 1}:  13,
	{Espada, 7}: 12,
	{Oro, 7}:    11,
	{Oro, 1}:    8,
	{Copa, 1}:   8,
	{Copa, 7}:   4,
	{Basto, 7}:  4,
}

var rankTier = map[int]int{
	3:  10,
	2:  9,
	12: 7,
	11: 6,
	10: 5,
	6:  3,
	5:  2,
	4:  1,
}

// Valid reports whether c is one of the forty cards in a Truco deck.
func (c Card) Valid() bool {
	return c.suitIndex() >= 0 && (c.Rank >= 1 && c.Rank <= 7 || c.Rank >= 10 && c.Rank <= 12)
}

// TrickRank returns the card's strength when fighting a trick. Higher wins;
// distinct cards may share a tier (all 3s, for example), which is what makes
// a parda possible. Invalid cards rank 0.
func (c Card) TrickRank() int {
	if !c.Valid() {
		return 0
	}
	if t, ok := specialTier[c]; ok {
		return t
	}
	return rankTier[c.Rank]
}

// Ordinal returns a strict total order over the deck: trick tier first, then
// suit. No two distinct cards share an ordinal.
func (c Card) Ordinal() int {
	if !c.Valid() {
		return 0
	}
	return c.TrickRank()*len(Suits) + (len(Suits) - c.suitIndex())
}

// EnvidoRank is the card's contribution to an envido sum: face cards count 0.
func (c Card) EnvidoRank() int {
	if c.Rank >= 10 {
		return 0
	}
	return c.Rank
}

// IsMata reports whether c is one of the four top cards.
func (c Card) IsMata() bool {
	return c.TrickRank() >= 11
}

func (c Card) String() string {
	return fmt.Sprintf("%d de %s", c.Rank, c.Suit)
}

func (c Card) suitIndex() int {
	for i, s := range Suits {
		if s == c.Suit {
			return i
		}
	}
	return -1
}

// EnvidoValue computes the envido of a set of cards: 20 plus the two highest
// envido ranks of the best repeated suit, or the highest single envido rank
// when every card has a different suit.
func EnvidoValue(cards []Card) int {
	bySuit := make(map[Suit][]int, len(Suits))
	best := 0
	for _, c := range cards {
		bySuit[c.Suit] = append(bySuit[c.Suit], c.EnvidoRank())
		if c.EnvidoRank() > best {
			best = c.EnvidoRank()
		}
	}

	paired := -1
	for _, ranks := range bySuit {
		if len(ranks) < 2 {
			continue
		}
		hi, lo := topTwo(ranks)
		if v := 20 + hi + lo; v > paired {
			paired = v
		}
	}
	if paired >= 0 {
		return paired
	}
	return best
}

func topTwo(ranks []int) (int, int) {
	hi, lo := -1, -1
	for _, r := range ranks {
		switch {
		case r > hi:
			hi, lo = r, hi
		case r > lo:
			lo = r
		}
	}
	return hi, lo
}
