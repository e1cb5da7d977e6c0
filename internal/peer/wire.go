// internal/peer/wire.go
package peer

import (
	"slices"

	"github.com/google/uuid"
	"github.com/jason-s-yu/truco/internal/truco"
)

// WireState is the redacted, seat-indexed match state exchanged between
// peers and persisted as snapshots. Field names are part of the protocol.
type WireState struct {
	MatchID  uuid.UUID         `json:"match_id"`
	Version  int64             `json:"version"`
	Players  []WirePlayer      `json:"players"`
	Hand     truco.HandState   `json:"hand"`
	Phase    truco.Phase       `json:"phase"`
	Winner   int               `json:"winner_seat"`
	LastHand *truco.HandResult `json:"last_hand,omitempty"`
}

// WirePlayer carries a seat. Hand is empty when redacted; HandSize is always
// the true number of cards held.
type WirePlayer struct {
	Seat     int          `json:"seat"`
	Name     string       `json:"display_name"`
	Hand     []truco.Card `json:"hand"`
	HandSize int          `json:"hand_size"`
	Score    int          `json:"score"`
}

// Redacted reports whether the player's cards were withheld.
func (p WirePlayer) Redacted() bool {
	return len(p.Hand) == 0 && p.HandSize > 0
}

// ToWire renders s for forSeat: only that seat's hand travels. Passing
// truco.NoSeat withholds both hands. HandSize comes from the cards played
// this hand, so a peer that never saw the opponent's cards still sends the
// right count.
func ToWire(s truco.MatchState, forSeat int) WireState {
	s = s.Clone()
	w := WireState{
		MatchID:  s.ID,
		Version:  s.Version,
		Players:  make([]WirePlayer, len(s.Players)),
		Hand:     s.Hand,
		Phase:    s.Phase,
		Winner:   s.Winner,
		LastHand: s.LastHand,
	}
	for i, p := range s.Players {
		hand := []truco.Card{}
		if p.Seat == forSeat {
			hand = p.Hand
		}
		w.Players[i] = WirePlayer{
			Seat:     p.Seat,
			Name:     p.Name,
			Hand:     hand,
			HandSize: truco.HandSize - s.Hand.CardsPlayed(p.Seat),
			Score:    p.Score,
		}
	}
	return w
}

// fromWire converts a validated WireState back into a MatchState. Redacted
// hands come back empty.
func fromWire(w WireState) truco.MatchState {
	s := truco.MatchState{
		ID:       w.MatchID,
		Version:  w.Version,
		Hand:     w.Hand,
		Phase:    w.Phase,
		Winner:   w.Winner,
		LastHand: w.LastHand,
	}
	for _, p := range w.Players {
		s.Players[p.Seat] = truco.Player{
			Seat:  p.Seat,
			Name:  p.Name,
			Hand:  slices.Clone(p.Hand),
			Score: p.Score,
		}
	}
	return s.Clone()
}
