// internal/truco/engine.go
package truco

import (
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Engine applies the rules of Truco to MatchState values. It holds no match
// state of its own; the only shared piece is the shuffling source, which is
// guarded so one Engine can serve many matches.
type Engine struct {
	rules Rules

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option configures an Engine.
type Option func(*Engine)

// WithRules overrides the default scoring rules.
func WithRules(r Rules) Option {
	return func(e *Engine) {
		e.rules = r.Normalized()
	}
}

// WithRand makes dealing deterministic, mainly for tests and replays.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) {
		e.rng = rng
	}
}

// NewEngine creates an engine with the default rules and a time-seeded deck.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{rules: DefaultRules()}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return e
}

// Rules returns the scoring rules this engine plays by.
func (e *Engine) Rules() Rules {
	return e.rules
}

// NewMatch starts a match at 0-0 with seat 0 dealing the first hand.
func (e *Engine) NewMatch(id uuid.UUID, names [2]string) MatchState {
	s := MatchState{
		ID:     id,
		Phase:  PhasePlaying,
		Winner: NoSeat,
	}
	for seat := range s.Players {
		s.Players[seat] = Player{Seat: seat, Name: names[seat]}
	}
	e.deal(&s, 1, 0)
	return s
}

// ActingSeat returns the seat that must move next: the responder of a pending
// canto, otherwise the seat whose turn it is. NoSeat once the match is over.
func (e *Engine) ActingSeat(s MatchState) int {
	switch {
	case s.Finished():
		return NoSeat
	case s.Hand.Pending != nil:
		return s.Hand.Pending.Responder
	default:
		return s.Hand.TurnSeat
	}
}

// Apply validates a against s and returns the resulting state. On error the
// returned state is s itself and err is an *ActionError.
func (e *Engine) Apply(s MatchState, seat int, a Action) (MatchState, error) {
	if err := e.check(&s, seat, a); err != nil {
		return s, err
	}

	next := s.Clone()
	h := &next.Hand
	switch a.Kind {
	case KindPlayCard:
		e.playCard(&next, seat, a.CardIndex)
	case KindSingTruco:
		h.Pending = &PendingCanto{Family: FamilyTruco, Level: 1, Chain: []Call{CallTruco}, Caller: seat, Responder: Opponent(seat)}
		h.TrucoLevel = 1
	case KindSingRetruco, KindSingValeCuatro:
		h.Pending.raise(singCalls[a.Kind])
		h.TrucoLevel = h.Pending.Level
	case KindSingEnvido:
		h.Pending = &PendingCanto{Family: FamilyEnvido, Level: 1, Chain: []Call{CallEnvido}, Caller: seat, Responder: Opponent(seat)}
		h.EnvidoLevel = 1
		h.EnvidoChain = []Call{CallEnvido}
	case KindSingRealEnvido, KindSingFaltaEnvido:
		h.Pending.raise(singCalls[a.Kind])
		h.EnvidoLevel = h.Pending.Level
		h.EnvidoChain = slices.Clone(h.Pending.Chain)
	case KindAccept:
		e.accept(&next)
	case KindReject:
		e.reject(&next)
	case KindGoToDeck:
		e.goToDeck(&next, seat)
	}
	next.Version++
	return next, nil
}

// LegalActions lists every action Apply would accept from seat.
func (e *Engine) LegalActions(s MatchState, seat int) []Action {
	var out []Action
	if seat != 0 && seat != 1 {
		return out
	}
	for i := range s.Players[seat].Hand {
		if a := PlayCard(i); e.check(&s, seat, a) == nil {
			out = append(out, a)
		}
	}
	for _, kind := range Kinds {
		if kind == KindPlayCard {
			continue
		}
		if a := (Action{Kind: kind}); e.check(&s, seat, a) == nil {
			out = append(out, a)
		}
	}
	return out
}

// Options reports the same legality as LegalActions, flattened for a betting panel.
func (e *Engine) Options(s MatchState, seat int) BettingOptions {
	can := func(a Action) bool { return e.check(&s, seat, a) == nil }
	return BettingOptions{
		CanSingTruco:       can(SingTruco()),
		CanSingRetruco:     can(SingRetruco()),
		CanSingValeCuatro:  can(SingValeCuatro()),
		CanSingEnvido:      can(SingEnvido()),
		CanSingRealEnvido:  can(SingRealEnvido()),
		CanSingFaltaEnvido: can(SingFaltaEnvido()),
		CanAccept:          can(Accept()),
		CanReject:          can(Reject()),
		CanGoToDeck:        can(GoToDeck()),
	}
}

// check decides legality without touching s.
func (e *Engine) check(s *MatchState, seat int, a Action) error {
	if seat != 0 && seat != 1 {
		return illegal(seat, a, "no such seat")
	}
	if s.Phase != PhasePlaying {
		return illegal(seat, a, "the match is over")
	}
	h := &s.Hand
	p := h.Pending

	switch a.Kind {
	case KindPlayCard:
		if p != nil {
			return illegal(seat, a, "a canto is waiting for an answer")
		}
		if seat != h.TurnSeat {
			return illegal(seat, a, "not your turn")
		}
		if n := len(s.Players[seat].Hand); a.CardIndex < 0 || a.CardIndex >= n {
			return malformed(seat, a, n)
		}

	case KindSingTruco:
		if err := e.checkOpening(s, seat, a); err != nil {
			return err
		}
		if h.TrucoLevel != 0 {
			return illegal(seat, a, "truco has already been sung this hand")
		}
		if h.EnvidoLevel != 0 && !h.EnvidoAccepted {
			return illegal(seat, a, "the envido must be settled first")
		}

	case KindSingRetruco, KindSingValeCuatro:
		call := singCalls[a.Kind]
		if p == nil || p.Family != FamilyTruco {
			return illegal(seat, a, "no truco to raise")
		}
		if seat != p.Responder {
			return illegal(seat, a, "you cannot raise your own canto")
		}
		if p.Level >= len(trucoCalls) || trucoCallFor(p.Level+1) != call {
			return illegal(seat, a, fmt.Sprintf("%s cannot answer %s", call, p.Top()))
		}

	case KindSingEnvido:
		if err := e.checkOpening(s, seat, a); err != nil {
			return err
		}
		if h.EnvidoLocked || len(h.Tricks) > 0 {
			return illegal(seat, a, "envido is closed once a card has been played")
		}
		if h.EnvidoLevel != 0 {
			return illegal(seat, a, "envido has already been sung this hand")
		}
		if h.TrucoLevel != 0 {
			return illegal(seat, a, "envido must be sung before truco")
		}

	case KindSingRealEnvido, KindSingFaltaEnvido:
		call := singCalls[a.Kind]
		if p == nil || p.Family != FamilyEnvido {
			return illegal(seat, a, "no envido to raise")
		}
		if seat != p.Responder {
			return illegal(seat, a, "you cannot raise your own canto")
		}
		if !canRaiseEnvido(p.Chain, call) {
			return illegal(seat, a, fmt.Sprintf("%s cannot follow %s", call, p.Top()))
		}

	case KindAccept, KindReject:
		if p == nil {
			return illegal(seat, a, "no canto to answer")
		}
		if seat != p.Responder {
			return illegal(seat, a, "you cannot answer your own canto")
		}

	case KindGoToDeck:
		if p != nil && seat != p.Responder {
			return illegal(seat, a, "wait for your opponent to answer")
		}
		if p == nil && seat != h.TurnSeat {
			return illegal(seat, a, "not your turn")
		}

	default:
		return illegal(seat, a, fmt.Sprintf("unknown action %q", a.Kind))
	}
	return nil
}

// checkOpening covers what every fresh canto needs: nothing outstanding and
// the seat to move.
func (e *Engine) checkOpening(s *MatchState, seat int, a Action) error {
	if s.Hand.Pending != nil {
		return illegal(seat, a, "a canto is already waiting for an answer")
	}
	if seat != s.Hand.TurnSeat {
		return illegal(seat, a, "not your turn")
	}
	return nil
}

func (e *Engine) playCard(s *MatchState, seat, index int) {
	h := &s.Hand
	p := &s.Players[seat]
	card := p.Hand[index]
	p.Hand = slices.Delete(p.Hand, index, index+1)
	h.Table = append(h.Table, PlayedCard{Seat: seat, Card: card})
	h.EnvidoLocked = true

	if len(h.Table) < 2 {
		h.TurnSeat = Opponent(seat)
		return
	}

	trick := newTrick(h.Table[0], h.Table[1])
	h.Tricks = append(h.Tricks, trick)
	h.Table = []PlayedCard{}
	if trick.Draw {
		h.TurnSeat = h.DealerSeat
	} else {
		h.LastTrickWinner = trick.Winner
		h.TurnSeat = trick.Winner
	}

	if winner, done := HandWinner(h.Tricks, h.DealerSeat); done {
		e.finishHand(s, winner, e.handValue(h), ReasonTricks)
	}
}

func (e *Engine) accept(s *MatchState) {
	h := &s.Hand
	p := h.Pending
	h.Pending = nil

	if p.Family == FamilyTruco {
		h.TrucoAccepted = true
		h.TrucoLevel = p.Level
		return
	}

	h.EnvidoAccepted = true
	h.EnvidoLocked = true
	winner := ResolveEnvido(h.EnvidoValues, h.DealerSeat)
	points := EnvidoPoints(p.Top(), s.Scores(), e.rules)
	h.Envido = &EnvidoResult{Values: h.EnvidoValues, Winner: winner, Points: points}
	e.credit(s, winner, points)
}

func (e *Engine) reject(s *MatchState) {
	p := s.Hand.Pending
	s.Hand.Pending = nil

	if p.Family == FamilyTruco {
		e.finishHand(s, p.Caller, TrucoRejectPoints(p.Level), ReasonTrucoRejected)
		return
	}
	e.finishHand(s, p.Caller, EnvidoPoints(p.Top(), s.Scores(), e.rules), ReasonEnvidoRejected)
}

// goToDeck folds the hand. A canto still waiting on the folding seat is
// settled for the caller first, as if it had been rejected.
func (e *Engine) goToDeck(s *MatchState, seat int) {
	h := &s.Hand
	opp := Opponent(seat)

	if p := h.Pending; p != nil {
		h.Pending = nil
		if p.Family == FamilyTruco {
			e.finishHand(s, p.Caller, TrucoRejectPoints(p.Level), ReasonDeck)
			return
		}
		if e.credit(s, p.Caller, EnvidoPoints(p.Top(), s.Scores(), e.rules)) {
			return
		}
	}
	e.finishHand(s, opp, e.handValue(h), ReasonDeck)
}

// handValue is what winning the hand is worth right now.
func (e *Engine) handValue(h *HandState) int {
	if h.TrucoAccepted {
		return TrucoPoints(h.TrucoLevel)
	}
	return 1
}

// credit adds points to seat and ends the match if that reaches the target.
// It reports whether the match is over.
func (e *Engine) credit(s *MatchState, seat, points int) bool {
	s.Players[seat].Score += points
	if s.Players[seat].Score >= e.rules.TargetScore {
		s.Hand.Pending = nil
		s.Phase = PhaseGameFinished
		s.Winner = seat
		return true
	}
	return false
}

func (e *Engine) finishHand(s *MatchState, winner, points int, reason HandResultReason) {
	s.Phase = PhaseHandFinished
	s.LastHand = &HandResult{
		Number: s.Hand.Number,
		Winner: winner,
		Points: points,
		Reason: reason,
		Tricks: slices.Clone(s.Hand.Tricks),
	}
	if e.credit(s, winner, points) {
		return
	}
	e.deal(s, s.Hand.Number+1, Opponent(s.Hand.DealerSeat))
}

// deal starts hand number with the given dealer; the other seat leads.
func (e *Engine) deal(s *MatchState, number, dealer int) {
	e.rngMu.Lock()
	deck := Shuffle(NewDeck(), e.rng)
	e.rngMu.Unlock()

	hands := [2][]Card{}
	hands[0], hands[1] = Deal(deck)
	for seat := range s.Players {
		s.Players[seat].Hand = hands[seat]
	}
	s.Hand = HandState{
		Number:          number,
		DealerSeat:      dealer,
		TurnSeat:        Opponent(dealer),
		Tricks:          []Trick{},
		Table:           []PlayedCard{},
		EnvidoChain:     []Call{},
		LastTrickWinner: NoSeat,
		EnvidoValues:    [2]int{EnvidoValue(hands[0]), EnvidoValue(hands[1])},
	}
	s.Phase = PhasePlaying
}
