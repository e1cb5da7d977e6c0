// internal/truco/canto.go
package truco

import (
	"errors"
	"fmt"
	"slices"
)

// Family separates the two independent betting ladders.
type Family string

const (
	FamilyTruco  Family = "truco"
	FamilyEnvido Family = "envido"
)

// Call is a single sung bet.
type Call string

const (
	CallTruco       Call = "truco"
	CallRetruco     Call = "retruco"
	CallValeCuatro  Call = "vale_cuatro"
	CallEnvido      Call = "envido"
	CallRealEnvido  Call = "real_envido"
	CallFaltaEnvido Call = "falta_envido"
)

// trucoCalls is the Truco ladder indexed by level-1.
var trucoCalls = [3]Call{CallTruco, CallRetruco, CallValeCuatro}

// envidoOrder ranks envido-family calls; a chain must be strictly ascending.
var envidoOrder = map[Call]int{
	CallEnvido:      1,
	CallRealEnvido:  2,
	CallFaltaEnvido: 3,
}

// Family returns the ladder a call belongs to.
func (c Call) Family() Family {
	if _, ok := envidoOrder[c]; ok {
		return FamilyEnvido
	}
	return FamilyTruco
}

// PendingCanto is the single outstanding bet of a hand. For the Truco family
// Level is 1..3; for Envido it is the chain length and Chain lists the calls
// sung so far, in order.
type PendingCanto struct {
	Family    Family `json:"family"`
	Level     int    `json:"level"`
	Chain     []Call `json:"chain"`
	Caller    int    `json:"caller_seat"`
	Responder int    `json:"responder_seat"`
}

// Top is the most recent call of the canto.
func (p *PendingCanto) Top() Call {
	return p.Chain[len(p.Chain)-1]
}

// raise records call on top of the canto and swaps who answers.
func (p *PendingCanto) raise(call Call) {
	p.Chain = append(p.Chain, call)
	p.Level++
	p.Caller, p.Responder = p.Responder, p.Caller
}

func (p *PendingCanto) clone() *PendingCanto {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Chain = slices.Clone(p.Chain)
	return &cp
}

// canRaiseEnvido reports whether call may be sung on top of chain: it must
// not have been sung yet and must outrank everything already sung.
func canRaiseEnvido(chain []Call, call Call) bool {
	if len(chain) == 0 || slices.Contains(chain, call) {
		return false
	}
	return envidoOrder[call] > envidoOrder[chain[len(chain)-1]]
}

// trucoCallFor returns the call that raises the Truco ladder to level.
func trucoCallFor(level int) Call {
	return trucoCalls[level-1]
}

// Validate checks that p could have been produced by legal play. It is meant
// for states that arrive from outside the engine.
func (p *PendingCanto) Validate() error {
	if p.Caller == p.Responder {
		return errors.New("caller and responder are the same seat")
	}
	for _, seat := range []int{p.Caller, p.Responder} {
		if seat != 0 && seat != 1 {
			return fmt.Errorf("seat %d out of range", seat)
		}
	}
	if len(p.Chain) == 0 || p.Level != len(p.Chain) {
		return fmt.Errorf("level %d does not match a chain of %d", p.Level, len(p.Chain))
	}

	switch p.Family {
	case FamilyTruco:
		if p.Level > len(trucoCalls) {
			return fmt.Errorf("truco level %d out of range", p.Level)
		}
		for i, call := range p.Chain {
			if call != trucoCalls[i] {
				return fmt.Errorf("unexpected %s at truco level %d", call, i+1)
			}
		}
	case FamilyEnvido:
		if p.Chain[0] != CallEnvido {
			return fmt.Errorf("envido chain starts with %s", p.Chain[0])
		}
		for i := 1; i < len(p.Chain); i++ {
			if !canRaiseEnvido(p.Chain[:i], p.Chain[i]) {
				return fmt.Errorf("%s cannot follow %s", p.Chain[i], p.Chain[i-1])
			}
		}
	default:
		return fmt.Errorf("unknown family %q", p.Family)
	}
	return nil
}
