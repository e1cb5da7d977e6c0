// internal/truco/action.go
package truco

import (
	"encoding/json"
	"fmt"
)

// ActionKind names one of the closed set of player actions.
type ActionKind string

const (
	KindPlayCard        ActionKind = "play_card"
	KindSingTruco       ActionKind = "sing_truco"
	KindSingRetruco     ActionKind = "sing_retruco"
	KindSingValeCuatro  ActionKind = "sing_vale_cuatro"
	KindSingEnvido      ActionKind = "sing_envido"
	KindSingRealEnvido  ActionKind = "sing_real_envido"
	KindSingFaltaEnvido ActionKind = "sing_falta_envido"
	KindAccept          ActionKind = "accept"
	KindReject          ActionKind = "reject"
	KindGoToDeck        ActionKind = "go_to_deck"
)

// Kinds lists every action kind.
var Kinds = []ActionKind{
	KindPlayCard,
	KindSingTruco, KindSingRetruco, KindSingValeCuatro,
	KindSingEnvido, KindSingRealEnvido, KindSingFaltaEnvido,
	KindAccept, KindReject, KindGoToDeck,
}

// Valid reports whether k is part of the action vocabulary.
func (k ActionKind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// singCalls maps each sing action to the call it makes.
var singCalls = map[ActionKind]Call{
	KindSingTruco:       CallTruco,
	KindSingRetruco:     CallRetruco,
	KindSingValeCuatro:  CallValeCuatro,
	KindSingEnvido:      CallEnvido,
	KindSingRealEnvido:  CallRealEnvido,
	KindSingFaltaEnvido: CallFaltaEnvido,
}

// Action is a single player move. CardIndex is only meaningful for play_card
// and indexes the acting player's current hand.
type Action struct {
	Kind      ActionKind
	CardIndex int
}

func PlayCard(index int) Action { return Action{Kind: KindPlayCard, CardIndex: index} }
func SingTruco() Action         { return Action{Kind: KindSingTruco} }
func SingRetruco() Action       { return Action{Kind: KindSingRetruco} }
func SingValeCuatro() Action    { return Action{Kind: KindSingValeCuatro} }
func SingEnvido() Action        { return Action{Kind: KindSingEnvido} }
func SingRealEnvido() Action    { return Action{Kind: KindSingRealEnvido} }
func SingFaltaEnvido() Action   { return Action{Kind: KindSingFaltaEnvido} }
func Accept() Action            { return Action{Kind: KindAccept} }
func Reject() Action            { return Action{Kind: KindReject} }
func GoToDeck() Action          { return Action{Kind: KindGoToDeck} }

func (a Action) String() string {
	if a.Kind == KindPlayCard {
		return fmt.Sprintf("%s(%d)", a.Kind, a.CardIndex)
	}
	return string(a.Kind)
}

type actionJSON struct {
	Type      ActionKind `json:"type"`
	CardIndex *int       `json:"card_index,omitempty"`
}

// MarshalJSON encodes the action as {"type": ..., "card_index": ...}.
func (a Action) MarshalJSON() ([]byte, error) {
	out := actionJSON{Type: a.Kind}
	if a.Kind == KindPlayCard {
		idx := a.CardIndex
		out.CardIndex = &idx
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes an action, refusing unknown types and a play_card
// without an index.
func (a *Action) UnmarshalJSON(data []byte) error {
	var in actionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if !in.Type.Valid() {
		return fmt.Errorf("unknown action type %q", in.Type)
	}
	*a = Action{Kind: in.Type}
	if in.Type == KindPlayCard {
		if in.CardIndex == nil {
			return fmt.Errorf("play_card requires card_index")
		}
		a.CardIndex = *in.CardIndex
	}
	return nil
}
