// internal/truco/match.go
package truco

import (
	"slices"

	"github.com/google/uuid"
)

// Phase is the coarse lifecycle state of a match.
type Phase string

const (
	PhasePlaying      Phase = "playing"
	PhaseHandFinished Phase = "hand_finished"
	PhaseGameFinished Phase = "game_finished"
)

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	switch p {
	case PhasePlaying, PhaseHandFinished, PhaseGameFinished:
		return true
	}
	return false
}

// Player is one seat of a match.
type Player struct {
	Seat  int    `json:"seat"`
	Name  string `json:"display_name"`
	Hand  []Card `json:"hand"`
	Score int    `json:"score"`
}

// HandState is everything that lives from one deal to the end of that hand.
type HandState struct {
	Number     int `json:"number"`
	DealerSeat int `json:"dealer_seat"`
	TurnSeat   int `json:"turn_seat"`

	Tricks []Trick      `json:"trick_history"`
	Table  []PlayedCard `json:"table"`

	TrucoLevel    int  `json:"truco_level"` // highest sung level, contested or accepted
	TrucoAccepted bool `json:"truco_accepted"`

	EnvidoLevel    int    `json:"envido_level"`
	EnvidoChain    []Call `json:"envido_chain"`
	EnvidoAccepted bool   `json:"envido_accepted"`
	EnvidoLocked   bool   `json:"envido_locked"`

	Pending         *PendingCanto `json:"pending_canto"`
	LastTrickWinner int           `json:"last_trick_winner"`

	// EnvidoValues is fixed at deal time so either peer can settle an
	// envido without seeing the other hand.
	EnvidoValues [2]int        `json:"envido_values"`
	Envido       *EnvidoResult `json:"envido_result,omitempty"`
}

// Clone returns a deep copy of h.
func (h HandState) Clone() HandState {
	cp := h
	cp.Tricks = slices.Clone(h.Tricks)
	cp.Table = slices.Clone(h.Table)
	cp.EnvidoChain = slices.Clone(h.EnvidoChain)
	cp.Pending = h.Pending.clone()
	if h.Envido != nil {
		e := *h.Envido
		cp.Envido = &e
	}
	return cp
}

// CardsPlayed counts the cards seat has put down this hand.
func (h HandState) CardsPlayed(seat int) int {
	n := len(h.Tricks)
	for _, pc := range h.Table {
		if pc.Seat == seat {
			n++
		}
	}
	return n
}

// MatchState is the canonical, seat-indexed state of a match. It is only ever
// produced by Engine; treat values as immutable and use Clone before editing.
type MatchState struct {
	ID       uuid.UUID   `json:"match_id"`
	Version  int64       `json:"version"`
	Players  [2]Player   `json:"players"`
	Hand     HandState   `json:"hand"`
	Phase    Phase       `json:"phase"`
	Winner   int         `json:"winner_seat"`
	LastHand *HandResult `json:"last_hand,omitempty"`
}

// Clone returns a deep copy of s.
func (s MatchState) Clone() MatchState {
	cp := s
	for i := range s.Players {
		cp.Players[i].Hand = slices.Clone(s.Players[i].Hand)
	}
	cp.Hand = s.Hand.Clone()
	if s.LastHand != nil {
		lh := *s.LastHand
		lh.Tricks = slices.Clone(s.LastHand.Tricks)
		cp.LastHand = &lh
	}
	return cp
}

// Scores returns both scores indexed by seat.
func (s MatchState) Scores() [2]int {
	return [2]int{s.Players[0].Score, s.Players[1].Score}
}

// Finished reports whether the match is over.
func (s MatchState) Finished() bool {
	return s.Phase == PhaseGameFinished
}

// Opponent returns the other seat.
func Opponent(seat int) int {
	return 1 - seat
}

// BettingOptions flags which canto answers and calls a seat may make right now.
type BettingOptions struct {
	CanSingTruco       bool `json:"can_sing_truco"`
	CanSingRetruco     bool `json:"can_sing_retruco"`
	CanSingValeCuatro  bool `json:"can_sing_vale_cuatro"`
	CanSingEnvido      bool `json:"can_sing_envido"`
	CanSingRealEnvido  bool `json:"can_sing_real_envido"`
	CanSingFaltaEnvido bool `json:"can_sing_falta_envido"`
	CanAccept          bool `json:"can_accept"`
	CanReject          bool `json:"can_reject"`
	CanGoToDeck        bool `json:"can_go_to_deck"`
}
