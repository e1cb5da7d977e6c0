// internal/peer/view.go
package peer

import (
	"slices"

	"github.com/jason-s-yu/truco/internal/truco"
)

// View is the match as the local player sees it. Every pair is ordered
// [me, opponent] and every seat is a local slot.
type View struct {
	MyName        string               `json:"my_name"`
	OpponentName  string               `json:"opponent_name"`
	MyHand        []truco.Card         `json:"my_hand"`
	OpponentCards int                  `json:"opponent_cards"`
	Scores        [2]int               `json:"scores"`
	Table         []SlotCard           `json:"table"`
	Tricks        []SlotTrick          `json:"tricks"`
	HandNumber    int                  `json:"hand_number"`
	IAmDealer     bool                 `json:"i_am_dealer"`
	MyTurn        bool                 `json:"my_turn"`
	Answering     bool                 `json:"answering"` // a canto waits on me
	Pending       *truco.PendingCanto  `json:"pending_canto,omitempty"`
	Options       truco.BettingOptions `json:"options"`
	TrucoLevel    int                  `json:"truco_level"`
	TrucoAccepted bool                 `json:"truco_accepted"`
	Envido        *truco.EnvidoResult  `json:"envido_result,omitempty"`
	Phase         truco.Phase          `json:"phase"`
	Winner        int                  `json:"winner_slot"`
	LastHand      *truco.HandResult    `json:"last_hand,omitempty"`
}

// SlotCard is a table card tagged with the slot that played it.
type SlotCard struct {
	Slot int        `json:"slot"`
	Card truco.Card `json:"card"`
}

// SlotTrick is a finished trick with cards ordered [me, opponent].
type SlotTrick struct {
	Cards  [2]truco.Card `json:"cards"`
	Leader int           `json:"leader_slot"`
	Winner int           `json:"winner_slot"`
	Draw   bool          `json:"is_draw"`
}

// LocalView renders the current state from the local seat.
func (a *Adapter) LocalView() View {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.state
	h := s.Hand
	me, opp := a.seat, truco.Opponent(a.seat)

	v := View{
		MyName:        s.Players[me].Name,
		OpponentName:  s.Players[opp].Name,
		MyHand:        slices.Clone(s.Players[me].Hand),
		OpponentCards: truco.HandSize - h.CardsPlayed(opp),
		Scores:        [2]int{s.Players[me].Score, s.Players[opp].Score},
		Table:         make([]SlotCard, 0, len(h.Table)),
		Tricks:        make([]SlotTrick, 0, len(h.Tricks)),
		HandNumber:    h.Number,
		IAmDealer:     h.DealerSeat == me,
		MyTurn:        a.isMyTurn(),
		Answering:     h.Pending != nil && h.Pending.Responder == me,
		Options:       a.engine.Options(s, me),
		TrucoLevel:    h.TrucoLevel,
		TrucoAccepted: h.TrucoAccepted,
		Phase:         s.Phase,
		Winner:        a.Slot(s.Winner),
	}
	for _, pc := range h.Table {
		v.Table = append(v.Table, SlotCard{Slot: a.Slot(pc.Seat), Card: pc.Card})
	}
	for _, t := range h.Tricks {
		v.Tricks = append(v.Tricks, SlotTrick{
			Cards:  [2]truco.Card{t.Cards[me], t.Cards[opp]},
			Leader: a.Slot(t.Leader),
			Winner: a.Slot(t.Winner),
			Draw:   t.Draw,
		})
	}
	if h.Pending != nil {
		p := *h.Pending
		p.Chain = slices.Clone(p.Chain)
		p.Caller, p.Responder = a.Slot(p.Caller), a.Slot(p.Responder)
		v.Pending = &p
	}
	if h.Envido != nil {
		v.Envido = &truco.EnvidoResult{
			Values: [2]int{h.Envido.Values[me], h.Envido.Values[opp]},
			Winner: a.Slot(h.Envido.Winner),
			Points: h.Envido.Points,
		}
	}
	if s.LastHand != nil {
		lh := *s.LastHand
		lh.Winner = a.Slot(lh.Winner)
		lh.Tricks = nil
		v.LastHand = &lh
	}
	return v
}
