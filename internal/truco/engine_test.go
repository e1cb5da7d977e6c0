// internal/truco/engine_test.go
package truco

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine() *Engine {
	return NewEngine(WithRand(rand.New(rand.NewSource(42))))
}

// rigged starts a match and replaces the first deal with known hands.
func rigged(t *testing.T, e *Engine, dealer int, h0, h1 []Card) MatchState {
	t.Helper()
	s := e.NewMatch(uuid.New(), [2]string{"ana", "beto"})
	s.Players[0].Hand = h0
	s.Players[1].Hand = h1
	s.Hand.DealerSeat = dealer
	s.Hand.TurnSeat = Opponent(dealer)
	s.Hand.EnvidoValues = [2]int{EnvidoValue(h0), EnvidoValue(h1)}
	return s
}

func mustApply(t *testing.T, e *Engine, s MatchState, seat int, a Action) MatchState {
	t.Helper()
	next, err := e.Apply(s, seat, a)
	require.NoError(t, err, "seat %d %s", seat, a)
	return next
}

func requireIllegal(t *testing.T, e *Engine, s MatchState, seat int, a Action) {
	t.Helper()
	next, err := e.Apply(s, seat, a)
	require.Error(t, err, "seat %d %s should be rejected", seat, a)
	assert.True(t, errors.Is(err, ErrIllegalAction), "got %v", err)
	assert.Equal(t, s, next, "state must be unchanged on rejection")
}

var (
	weakHand   = []Card{{Copa, 5}, {Copa, 6}, {Oro, 12}}
	strongHand = []Card{{Oro, 4}, {Espada, 1}, {Basto, 1}}
)

func TestNewMatch(t *testing.T) {
	e := newTestEngine()
	s := e.NewMatch(uuid.New(), [2]string{"ana", "beto"})

	assert.Equal(t, PhasePlaying, s.Phase)
	assert.Equal(t, NoSeat, s.Winner)
	assert.Equal(t, [2]int{0, 0}, s.Scores())
	assert.Equal(t, 1, s.Hand.Number)
	assert.Equal(t, 0, s.Hand.DealerSeat)
	assert.Equal(t, 1, s.Hand.TurnSeat, "the non-dealer leads")
	assert.Equal(t, NoSeat, s.Hand.LastTrickWinner)
	assert.Len(t, s.Players[0].Hand, HandSize)
	assert.Len(t, s.Players[1].Hand, HandSize)
	assert.Equal(t, EnvidoValue(s.Players[1].Hand), s.Hand.EnvidoValues[1])
	assert.Equal(t, 1, e.ActingSeat(s))
}

func TestHandWonTwoToOne(t *testing.T) {
	e := newTestEngine()
	s := rigged(t, e, 0, weakHand, strongHand)

	s = mustApply(t, e, s, 1, PlayCard(0)) // 4 de oro
	assert.Equal(t, 0, s.Hand.TurnSeat)
	s = mustApply(t, e, s, 0, PlayCard(0)) // 5 de copa
	require.Len(t, s.Hand.Tricks, 1)
	assert.Equal(t, 0, s.Hand.Tricks[0].Winner)
	assert.Equal(t, 0, s.Hand.TurnSeat, "trick winner leads")
	assert.Equal(t, 0, s.Hand.LastTrickWinner)

	s = mustApply(t, e, s, 0, PlayCard(0)) // 6 de copa
	s = mustApply(t, e, s, 1, PlayCard(0)) // 1 de espada
	assert.Equal(t, 1, s.Hand.TurnSeat)
	s = mustApply(t, e, s, 1, PlayCard(0)) // 1 de basto
	s = mustApply(t, e, s, 0, PlayCard(0)) // 12 de oro

	assert.Equal(t, [2]int{0, 1}, s.Scores())
	require.NotNil(t, s.LastHand)
	assert.Equal(t, 1, s.LastHand.Winner)
	assert.Equal(t, 1, s.LastHand.Points)
	assert.Equal(t, ReasonTricks, s.LastHand.Reason)
	assert.Len(t, s.LastHand.Tricks, 3)

	assert.Equal(t, PhasePlaying, s.Phase)
	assert.Equal(t, 2, s.Hand.Number)
	assert.Equal(t, 1, s.Hand.DealerSeat, "dealer rotates")
	assert.Equal(t, 0, s.Hand.TurnSeat)
	assert.Empty(t, s.Hand.Tricks)
	assert.Len(t, s.Players[0].Hand, HandSize)
	assert.EqualValues(t, 6, s.Version)
}

func TestPardaGivesLeadToDealer(t *testing.T) {
	e := newTestEngine()
	s := rigged(t, e, 0,
		[]Card{{Copa, 3}, {Copa, 4}, {Oro, 5}},
		[]Card{{Oro, 3}, {Espada, 12}, {Basto, 6}})

	s = mustApply(t, e, s, 1, PlayCard(0))
	s = mustApply(t, e, s, 0, PlayCard(0))
	require.Len(t, s.Hand.Tricks, 1)
	assert.True(t, s.Hand.Tricks[0].Draw)
	assert.Equal(t, NoSeat, s.Hand.Tricks[0].Winner)
	assert.Equal(t, 0, s.Hand.TurnSeat)
	assert.Equal(t, NoSeat, s.Hand.LastTrickWinner)

	// next decisive trick settles the hand
	s = mustApply(t, e, s, 0, PlayCard(0)) // 4 de copa
	s = mustApply(t, e, s, 1, PlayCard(0)) // 12 de espada
	assert.Equal(t, [2]int{0, 1}, s.Scores())
	assert.Equal(t, 2, s.Hand.Number)
}

func TestEnvidoRealEnvidoAccepted(t *testing.T) {
	e := newTestEngine()
	s := rigged(t, e, 1,
		[]Card{{Espada, 7}, {Espada, 6}, {Oro, 4}},
		[]Card{{Copa, 1}, {Copa, 2}, {Basto, 12}})

	s = mustApply(t, e, s, 0, SingEnvido())
	require.NotNil(t, s.Hand.Pending)
	assert.Equal(t, 1, e.ActingSeat(s))
	s = mustApply(t, e, s, 1, SingRealEnvido())
	assert.Equal(t, 0, s.Hand.Pending.Responder)
	assert.Equal(t, []Call{CallEnvido, CallRealEnvido}, s.Hand.Pending.Chain)
	s = mustApply(t, e, s, 0, Accept())

	assert.Nil(t, s.Hand.Pending)
	assert.True(t, s.Hand.EnvidoAccepted)
	assert.True(t, s.Hand.EnvidoLocked)
	assert.Empty(t, s.Hand.Tricks, "resolved before any card is played")
	require.NotNil(t, s.Hand.Envido)
	assert.Equal(t, EnvidoResult{Values: [2]int{33, 23}, Winner: 0, Points: 3}, *s.Hand.Envido)
	assert.Equal(t, [2]int{3, 0}, s.Scores())

	assert.Equal(t, 0, s.Hand.TurnSeat, "turn is back with the seat to move")
	requireIllegal(t, e, s, 0, SingEnvido())
	s = mustApply(t, e, s, 0, SingTruco())
	assert.Equal(t, FamilyTruco, s.Hand.Pending.Family)
}

func TestEnvidoTieGoesToDealer(t *testing.T) {
	e := newTestEngine()
	s := rigged(t, e, 0,
		[]Card{{Oro, 7}, {Oro, 5}, {Copa, 1}},
		[]Card{{Basto, 7}, {Basto, 5}, {Copa, 2}})

	s = mustApply(t, e, s, 1, SingEnvido())
	s = mustApply(t, e, s, 0, Accept())
	assert.Equal(t, 0, s.Hand.Envido.Winner)
	assert.Equal(t, [2]int{2, 0}, s.Scores())
}

func TestFaltaEnvidoAcceptedAtZero(t *testing.T) {
	e := newTestEngine()
	s := rigged(t, e, 0, weakHand, []Card{{Oro, 7}, {Oro, 6}, {Copa, 1}})

	s = mustApply(t, e, s, 1, SingEnvido())
	s = mustApply(t, e, s, 0, SingFaltaEnvido())
	requireIllegal(t, e, s, 1, SingRealEnvido())
	s = mustApply(t, e, s, 1, Accept())
	assert.Equal(t, [2]int{0, 15}, s.Scores())
}

func TestEnvidoRejectPaysChainTop(t *testing.T) {
	e := newTestEngine()
	s := rigged(t, e, 0, weakHand, strongHand)

	once := mustApply(t, e, s, 1, SingEnvido())
	rejected := mustApply(t, e, once, 0, Reject())
	assert.Equal(t, [2]int{0, 2}, rejected.Scores())
	assert.Equal(t, ReasonEnvidoRejected, rejected.LastHand.Reason)
	assert.Equal(t, 2, rejected.Hand.Number, "rejecting ends the hand")

	raised := mustApply(t, e, once, 0, SingRealEnvido())
	rejected = mustApply(t, e, raised, 1, Reject())
	assert.Equal(t, [2]int{3, 0}, rejected.Scores())
}

func TestRejectRetrucoPaysTrucoValue(t *testing.T) {
	e := newTestEngine()
	s := rigged(t, e, 0, weakHand, strongHand)

	s = mustApply(t, e, s, 1, SingTruco())
	assert.Equal(t, 1, s.Hand.TurnSeat, "singing does not pass the turn")
	s = mustApply(t, e, s, 0, SingRetruco())
	assert.Equal(t, 2, s.Hand.TrucoLevel)
	assert.Equal(t, 0, s.Hand.Pending.Caller)
	s = mustApply(t, e, s, 1, Reject())

	assert.Equal(t, [2]int{2, 0}, s.Scores())
	assert.Equal(t, ReasonTrucoRejected, s.LastHand.Reason)
	assert.Equal(t, 2, s.LastHand.Points)
}

func TestTrucoLadder(t *testing.T) {
	e := newTestEngine()
	s := rigged(t, e, 0, weakHand, strongHand)

	requireIllegal(t, e, s, 1, SingRetruco())
	s = mustApply(t, e, s, 1, SingTruco())
	requireIllegal(t, e, s, 1, SingRetruco())
	requireIllegal(t, e, s, 0, SingValeCuatro())
	requireIllegal(t, e, s, 1, Accept())
	s = mustApply(t, e, s, 0, SingRetruco())
	s = mustApply(t, e, s, 1, SingValeCuatro())
	assert.Equal(t, 3, s.Hand.TrucoLevel)
	requireIllegal(t, e, s, 0, SingValeCuatro())
	s = mustApply(t, e, s, 0, Accept())

	assert.True(t, s.Hand.TrucoAccepted)
	assert.Equal(t, 3, s.Hand.TrucoLevel)
	assert.Equal(t, 1, s.Hand.TurnSeat)
	requireIllegal(t, e, s, 1, SingTruco())
	requireIllegal(t, e, s, 1, SingEnvido())

	// play it out: seat 1 holds both top cards
	s = mustApply(t, e, s, 1, PlayCard(1))
	s = mustApply(t, e, s, 0, PlayCard(0))
	s = mustApply(t, e, s, 1, PlayCard(1))
	s = mustApply(t, e, s, 0, PlayCard(0))
	assert.Equal(t, [2]int{0, 4}, s.Scores())
	assert.Equal(t, 4, s.LastHand.Points)
}

func TestSingleCantoAtATime(t *testing.T) {
	e := newTestEngine()
	s := rigged(t, e, 0, weakHand, strongHand)

	pending := mustApply(t, e, s, 1, SingTruco())
	for _, seat := range []int{0, 1} {
		requireIllegal(t, e, pending, seat, SingEnvido())
		requireIllegal(t, e, pending, seat, SingTruco())
		requireIllegal(t, e, pending, seat, PlayCard(0))
	}

	pending = mustApply(t, e, s, 1, SingEnvido())
	for _, seat := range []int{0, 1} {
		requireIllegal(t, e, pending, seat, SingTruco())
		requireIllegal(t, e, pending, seat, SingEnvido())
	}
}

func TestEnvidoClosedAfterFirstCard(t *testing.T) {
	e := newTestEngine()
	s := rigged(t, e, 0, weakHand, strongHand)

	s = mustApply(t, e, s, 1, PlayCard(0))
	assert.True(t, s.Hand.EnvidoLocked)
	requireIllegal(t, e, s, 0, SingEnvido())
	requireIllegal(t, e, s, 0, SingRealEnvido())
	requireIllegal(t, e, s, 0, SingFaltaEnvido())

	s = mustApply(t, e, s, 0, SingTruco())
	assert.Equal(t, 0, s.Hand.Pending.Caller)
}

func TestTurnAndIndexErrors(t *testing.T) {
	e := newTestEngine()
	s := rigged(t, e, 0, weakHand, strongHand)

	requireIllegal(t, e, s, 0, PlayCard(0))
	requireIllegal(t, e, s, 0, SingTruco())
	requireIllegal(t, e, s, 2, PlayCard(0))
	requireIllegal(t, e, s, 1, Action{Kind: "sing_flor"})
	requireIllegal(t, e, s, 1, Accept())

	for _, idx := range []int{-1, 3} {
		next, err := e.Apply(s, 1, PlayCard(idx))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMalformedCardIndex))
		assert.Equal(t, s, next)
	}

	_, err := e.Apply(s, 0, PlayCard(0))
	var actionErr *ActionError
	require.True(t, errors.As(err, &actionErr))
	assert.Equal(t, "not your turn", actionErr.Reason)
	assert.Equal(t, 0, actionErr.Seat)
}

func TestGoToDeck(t *testing.T) {
	e := newTestEngine()
	s := rigged(t, e, 0, weakHand, strongHand)

	folded := mustApply(t, e, s, 1, GoToDeck())
	assert.Equal(t, [2]int{1, 0}, folded.Scores())
	assert.Equal(t, ReasonDeck, folded.LastHand.Reason)
	requireIllegal(t, e, s, 0, GoToDeck())

	accepted := mustApply(t, e, mustApply(t, e, s, 1, SingTruco()), 0, Accept())
	folded = mustApply(t, e, accepted, 1, GoToDeck())
	assert.Equal(t, [2]int{2, 0}, folded.Scores(), "accepted truco value goes to the opponent")
}

func TestGoToDeckWithPendingCanto(t *testing.T) {
	e := newTestEngine()
	s := rigged(t, e, 0, weakHand, strongHand)

	truco := mustApply(t, e, mustApply(t, e, s, 1, SingTruco()), 0, SingRetruco())
	requireIllegal(t, e, truco, 0, GoToDeck())
	folded := mustApply(t, e, truco, 1, GoToDeck())
	assert.Equal(t, [2]int{2, 0}, folded.Scores(), "settled as a rejected retruco")

	envido := mustApply(t, e, s, 1, SingEnvido())
	folded = mustApply(t, e, envido, 0, GoToDeck())
	assert.Equal(t, [2]int{0, 3}, folded.Scores(), "rejected envido plus the fold")
	assert.Equal(t, ReasonDeck, folded.LastHand.Reason)
	assert.Equal(t, 1, folded.LastHand.Points)
}

func TestGameEndsAtTarget(t *testing.T) {
	e := newTestEngine()
	s := rigged(t, e, 0, weakHand, strongHand)
	s.Players[0].Score = 29
	s.Players[1].Score = 12

	s = mustApply(t, e, s, 1, GoToDeck())
	assert.Equal(t, PhaseGameFinished, s.Phase)
	assert.Equal(t, 0, s.Winner)
	assert.Equal(t, 30, s.Players[0].Score)
	assert.Equal(t, NoSeat, e.ActingSeat(s))
	assert.Empty(t, e.LegalActions(s, 0))
	assert.Empty(t, e.LegalActions(s, 1))
	requireIllegal(t, e, s, 0, PlayCard(0))
}

func TestEnvidoCanEndTheMatch(t *testing.T) {
	e := newTestEngine()
	s := rigged(t, e, 0, weakHand, []Card{{Oro, 7}, {Oro, 6}, {Copa, 1}})
	s.Players[1].Score = 28

	s = mustApply(t, e, s, 1, SingEnvido())
	s = mustApply(t, e, s, 0, Accept())
	assert.Equal(t, PhaseGameFinished, s.Phase)
	assert.Equal(t, 1, s.Winner)
	assert.Nil(t, s.Hand.Pending)
}

func TestLegalActionsAndOptions(t *testing.T) {
	e := newTestEngine()
	s := rigged(t, e, 0, weakHand, strongHand)

	assert.Equal(t, []Action{PlayCard(0), PlayCard(1), PlayCard(2), SingTruco(), SingEnvido(), GoToDeck()}, e.LegalActions(s, 1))
	assert.Empty(t, e.LegalActions(s, 0))
	assert.Empty(t, e.LegalActions(s, 5))

	s = mustApply(t, e, s, 1, SingEnvido())
	assert.Equal(t, BettingOptions{
		CanSingRealEnvido:  true,
		CanSingFaltaEnvido: true,
		CanAccept:          true,
		CanReject:          true,
		CanGoToDeck:        true,
	}, e.Options(s, 0))
	assert.Equal(t, BettingOptions{}, e.Options(s, 1))
}

func TestApplyDoesNotAliasInput(t *testing.T) {
	e := newTestEngine()
	s := rigged(t, e, 0, weakHand, strongHand)
	before := s.Clone()

	next := mustApply(t, e, s, 1, PlayCard(0))
	assert.Len(t, next.Players[1].Hand, 2)
	assert.Equal(t, before, s)
}

// TestRandomPlayInvariants drives many matches with random legal moves and
// checks the properties that must hold after every step.
func TestRandomPlayInvariants(t *testing.T) {
	e := newTestEngine()
	pick := rand.New(rand.NewSource(99))

	for match := 0; match < 50; match++ {
		s := e.NewMatch(uuid.New(), [2]string{"a", "b"})
		for step := 0; !s.Finished(); step++ {
			require.Less(t, step, 5000, "match %d did not finish", match)

			actor := e.ActingSeat(s)
			legal := e.LegalActions(s, actor)
			require.NotEmpty(t, legal, "seat %d has no move", actor)
			assert.Empty(t, e.LegalActions(s, Opponent(actor)))

			a := legal[pick.Intn(len(legal))]
			next, err := e.Apply(s, actor, a)
			require.NoError(t, err)

			assert.Equal(t, s.Version+1, next.Version)
			for seat := range next.Players {
				assert.GreaterOrEqual(t, next.Players[seat].Score, s.Players[seat].Score)
			}
			if p := next.Hand.Pending; p != nil {
				assert.NotEqual(t, p.Caller, p.Responder)
			}
			if next.Hand.EnvidoLocked && !s.Finished() && next.Hand.Number == s.Hand.Number {
				_, err := e.Apply(next, e.ActingSeat(next), SingEnvido())
				assert.Error(t, err)
			}

			over := next.Players[0].Score >= 30 || next.Players[1].Score >= 30
			assert.Equal(t, over, next.Finished())
			if !next.Finished() {
				assert.Equal(t, PhasePlaying, next.Phase)
				for seat := range next.Players {
					assert.Equal(t, HandSize, len(next.Players[seat].Hand)+next.Hand.CardsPlayed(seat))
				}
			}
			s = next
		}
		assert.NotEqual(t, NoSeat, s.Winner)
		assert.GreaterOrEqual(t, s.Players[s.Winner].Score, 30)
	}
}
