// internal/peer/validate.go
package peer

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/truco/internal/truco"
)

// ErrCorruptRemoteState is wrapped by every StateError.
var ErrCorruptRemoteState = errors.New("corrupt remote state")

// StateError names the part of a WireState that failed validation.
type StateError struct {
	Field  string
	Reason string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%v: %s: %s", ErrCorruptRemoteState, e.Field, e.Reason)
}

func (e *StateError) Unwrap() error {
	return ErrCorruptRemoteState
}

func corrupt(field, format string, args ...any) error {
	return &StateError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// maxOvershoot is how far past the target a single credit can push a score:
// a seat one point short winning a vale cuatro.
var maxOvershoot = truco.TrucoPoints(3) - 1

func validSeat(seat int) bool {
	return seat == 0 || seat == 1
}

// Validate checks w for structural consistency before it may replace local
// state. It does not replay the match; a well-formed but dishonest state
// passes.
func Validate(w WireState, rules truco.Rules) error {
	rules = rules.Normalized()
	if w.MatchID == uuid.Nil {
		return corrupt("match_id", "missing")
	}
	if w.Version < 0 {
		return corrupt("version", "negative")
	}
	if !w.Phase.Valid() {
		return corrupt("phase", "unknown phase %q", w.Phase)
	}
	// the engine deals the next hand in the same step that ends one
	if w.Phase == truco.PhaseHandFinished {
		return corrupt("phase", "%s is never sent", w.Phase)
	}
	if err := validatePlayers(w, rules); err != nil {
		return err
	}
	if err := validateHand(w); err != nil {
		return err
	}
	return validateCards(w)
}

func validatePlayers(w WireState, rules truco.Rules) error {
	if len(w.Players) != 2 {
		return corrupt("players", "want 2 seats, got %d", len(w.Players))
	}
	var seen [2]bool
	for _, p := range w.Players {
		if !validSeat(p.Seat) || seen[p.Seat] {
			return corrupt("players", "bad or repeated seat %d", p.Seat)
		}
		seen[p.Seat] = true

		if p.Score < 0 || p.Score > rules.TargetScore+maxOvershoot {
			return corrupt("players.score", "seat %d score %d", p.Seat, p.Score)
		}
		if p.HandSize < 0 || p.HandSize > truco.HandSize {
			return corrupt("players.hand_size", "seat %d holds %d", p.Seat, p.HandSize)
		}
		if len(p.Hand) != 0 && len(p.Hand) != p.HandSize {
			return corrupt("players.hand", "seat %d shows %d cards of %d", p.Seat, len(p.Hand), p.HandSize)
		}
		if played := w.Hand.CardsPlayed(p.Seat); p.HandSize+played != truco.HandSize {
			return corrupt("players.hand_size", "seat %d holds %d after playing %d", p.Seat, p.HandSize, played)
		}
	}

	finished := w.Phase == truco.PhaseGameFinished
	switch {
	case finished && !validSeat(w.Winner):
		return corrupt("winner_seat", "finished without a winner")
	case !finished && w.Winner != truco.NoSeat:
		return corrupt("winner_seat", "winner %d before the match ended", w.Winner)
	}
	for _, p := range w.Players {
		if finished && p.Seat == w.Winner && p.Score < rules.TargetScore {
			return corrupt("winner_seat", "winner has only %d", p.Score)
		}
		if !finished && p.Score >= rules.TargetScore {
			return corrupt("phase", "seat %d reached %d but the match is still on", p.Seat, p.Score)
		}
	}
	return nil
}

func validateHand(w WireState) error {
	h := w.Hand
	if h.Number < 1 {
		return corrupt("hand.number", "%d", h.Number)
	}
	if !validSeat(h.DealerSeat) || !validSeat(h.TurnSeat) {
		return corrupt("hand", "dealer %d turn %d", h.DealerSeat, h.TurnSeat)
	}
	if h.LastTrickWinner != truco.NoSeat && !validSeat(h.LastTrickWinner) {
		return corrupt("hand.last_trick_winner", "%d", h.LastTrickWinner)
	}
	if len(h.Tricks) > truco.MaxTricks {
		return corrupt("hand.trick_history", "%d tricks", len(h.Tricks))
	}
	// a second card closes the trick at once, so at most the lead waits
	if len(h.Table) > 1 {
		return corrupt("hand.table", "%d cards", len(h.Table))
	}
	for _, pc := range h.Table {
		if !validSeat(pc.Seat) {
			return corrupt("hand.table", "seat %d", pc.Seat)
		}
		if pc.Seat == h.TurnSeat {
			return corrupt("hand.table", "seat %d led and is still to play", pc.Seat)
		}
	}
	for i, t := range h.Tricks {
		if !validSeat(t.Leader) {
			return corrupt("hand.trick_history", "trick %d leader %d", i+1, t.Leader)
		}
		if t.Draw != (t.Winner == truco.NoSeat) || (!t.Draw && !validSeat(t.Winner)) {
			return corrupt("hand.trick_history", "trick %d winner %d draw %v", i+1, t.Winner, t.Draw)
		}
	}
	if h.TrucoLevel < 0 || h.TrucoLevel > 3 {
		return corrupt("hand.truco_level", "%d", h.TrucoLevel)
	}
	if h.EnvidoLevel < 0 || h.EnvidoLevel > 3 || len(h.EnvidoChain) != h.EnvidoLevel {
		return corrupt("hand.envido_level", "level %d chain %v", h.EnvidoLevel, h.EnvidoChain)
	}
	if p := h.Pending; p != nil {
		if w.Phase == truco.PhaseGameFinished {
			return corrupt("hand.pending_canto", "canto outstanding after the match ended")
		}
		if err := p.Validate(); err != nil {
			return corrupt("hand.pending_canto", "%v", err)
		}
	}
	return nil
}

// validateCards requires every visible card to be real and to appear once.
func validateCards(w WireState) error {
	seen := make(map[truco.Card]bool)
	check := func(field string, c truco.Card) error {
		if !c.Valid() {
			return corrupt(field, "invalid card %s", c)
		}
		if seen[c] {
			return corrupt(field, "%s appears twice", c)
		}
		seen[c] = true
		return nil
	}

	for _, p := range w.Players {
		for _, c := range p.Hand {
			if err := check("players.hand", c); err != nil {
				return err
			}
		}
	}
	for _, pc := range w.Hand.Table {
		if err := check("hand.table", pc.Card); err != nil {
			return err
		}
	}
	for _, t := range w.Hand.Tricks {
		for _, c := range t.Cards {
			if err := check("hand.trick_history", c); err != nil {
				return err
			}
		}
	}
	return nil
}
