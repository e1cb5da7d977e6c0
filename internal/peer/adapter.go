// internal/peer/adapter.go
package peer

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/jason-s-yu/truco/internal/truco"
	"github.com/sirupsen/logrus"
)

// ErrNotMyTurn is returned by Adapter.Apply when the local seat is not the
// one expected to move. The returned error also matches truco.ErrIllegalAction.
var ErrNotMyTurn = errors.New("not my turn")

// Adapter is one peer's handle on a match. It keeps the canonical,
// seat-indexed state and translates it to the local perspective, where the
// local seat is always slot 0.
type Adapter struct {
	mu     sync.Mutex
	engine *truco.Engine
	seat   int
	state  truco.MatchState
	log    *logrus.Entry
}

// NewAdapter wraps state for the player sitting at seat.
func NewAdapter(engine *truco.Engine, seat int, state truco.MatchState, logger *logrus.Entry) (*Adapter, error) {
	if !validSeat(seat) {
		return nil, fmt.Errorf("invalid seat %d", seat)
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Adapter{
		engine: engine,
		seat:   seat,
		state:  state.Clone(),
		log:    logger.WithFields(logrus.Fields{"match": state.ID, "seat": seat}),
	}, nil
}

// Seat is the canonical seat of the local player.
func (a *Adapter) Seat() int {
	return a.seat
}

// State returns a copy of the current canonical state.
func (a *Adapter) State() truco.MatchState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Clone()
}

// Slot maps a canonical seat to the local slot: 0 for us, 1 for the opponent.
// NoSeat maps to NoSeat.
func (a *Adapter) Slot(seat int) int {
	switch seat {
	case truco.NoSeat:
		return truco.NoSeat
	case a.seat:
		return 0
	default:
		return 1
	}
}

// SeatOf is the inverse of Slot.
func (a *Adapter) SeatOf(slot int) int {
	switch slot {
	case truco.NoSeat:
		return truco.NoSeat
	case 0:
		return a.seat
	default:
		return truco.Opponent(a.seat)
	}
}

// IsMyTurn reports whether the local seat is the one that must act, either to
// move or to answer a canto.
func (a *Adapter) IsMyTurn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.isMyTurn()
}

func (a *Adapter) isMyTurn() bool {
	return a.engine.ActingSeat(a.state) == a.seat
}

// LegalActionsForMe lists what the local seat may do right now.
func (a *Adapter) LegalActionsForMe() []truco.Action {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.engine.LegalActions(a.state, a.seat)
}

// Apply plays act for the local seat and commits the result locally. Moves
// out of turn are refused before the engine is consulted; the engine then
// checks everything else.
func (a *Adapter) Apply(act truco.Action) (truco.MatchState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.isMyTurn() {
		return a.state.Clone(), fmt.Errorf("%w: %w: %s", truco.ErrIllegalAction, ErrNotMyTurn, act)
	}
	next, err := a.engine.Apply(a.state, a.seat, act)
	if err != nil {
		a.log.WithError(err).Debug("local action rejected")
		return a.state.Clone(), err
	}
	a.state = next
	return next.Clone(), nil
}

// NewAdapterFromWire starts an adapter from the first state the server sends.
func NewAdapterFromWire(engine *truco.Engine, seat int, w WireState, logger *logrus.Entry) (*Adapter, error) {
	if err := Validate(w, engine.Rules()); err != nil {
		return nil, err
	}
	return NewAdapter(engine, seat, fromWire(w), logger)
}

// MergeFromWire replaces local state with w, newest version wins. A state
// older than what we hold is ignored. If w withholds our own hand for the
// hand we are already in, the cards we know are kept. Merging the same w
// again is a no-op.
func (a *Adapter) MergeFromWire(w WireState) (truco.MatchState, error) {
	return a.merge(w, false)
}

// ResetFromWire is MergeFromWire without the version check. It drops a
// local move the server refused.
func (a *Adapter) ResetFromWire(w WireState) (truco.MatchState, error) {
	return a.merge(w, true)
}

func (a *Adapter) merge(w WireState, force bool) (truco.MatchState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := Validate(w, a.engine.Rules()); err != nil {
		a.log.WithError(err).Warn("refusing remote state")
		return a.state.Clone(), err
	}
	if w.MatchID != a.state.ID {
		err := corrupt("match_id", "state for %s, playing %s", w.MatchID, a.state.ID)
		a.log.WithError(err).Warn("refusing remote state")
		return a.state.Clone(), err
	}
	if !force && w.Version < a.state.Version {
		a.log.WithFields(logrus.Fields{"remote": w.Version, "local": a.state.Version}).Debug("ignoring stale remote state")
		return a.state.Clone(), nil
	}

	next := fromWire(w)
	mine := w.Players[slices.IndexFunc(w.Players, func(p WirePlayer) bool { return p.Seat == a.seat })]
	local := a.state.Players[a.seat].Hand
	if mine.Redacted() {
		if w.Hand.Number == a.state.Hand.Number && len(local) == mine.HandSize {
			next.Players[a.seat].Hand = slices.Clone(local)
		} else {
			a.log.WithField("hand", w.Hand.Number).Warn("remote state withholds our hand")
		}
	}

	a.state = next
	return next.Clone(), nil
}
