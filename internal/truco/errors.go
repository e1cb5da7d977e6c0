// internal/truco/errors.go
package truco

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalAction covers every action that is not allowed in the current
	// state: wrong actor, wrong phase, wrong canto family or level.
	ErrIllegalAction = errors.New("illegal action")

	// ErrMalformedCardIndex is returned for a play_card outside the hand.
	ErrMalformedCardIndex = errors.New("malformed card index")
)

// ActionError describes a rejected action. The state it was applied to is
// left untouched.
type ActionError struct {
	Err    error // ErrIllegalAction or ErrMalformedCardIndex
	Seat   int
	Action Action
	Reason string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%v: %s by seat %d: %s", e.Err, e.Action, e.Seat, e.Reason)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

func illegal(seat int, a Action, reason string) error {
	return &ActionError{Err: ErrIllegalAction, Seat: seat, Action: a, Reason: reason}
}

func malformed(seat int, a Action, handLen int) error {
	return &ActionError{
		Err:    ErrMalformedCardIndex,
		Seat:   seat,
		Action: a,
		Reason: fmt.Sprintf("card index %d outside a hand of %d", a.CardIndex, handLen),
	}
}
