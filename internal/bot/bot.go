// Package bot holds automated players that act through a peer.Adapter.
package bot

import (
	"math/rand"
	"sync"
	"time"

	"github.com/jason-s-yu/truco/internal/peer"
	"github.com/jason-s-yu/truco/internal/truco"
)

// Policy picks the next action for the local seat. legal is never empty
// when Choose is called.
type Policy interface {
	Choose(view peer.View, legal []truco.Action) truco.Action
}

// Random picks uniformly among the legal actions.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom seeds a Random policy. A zero seed uses the clock.
func NewRandom(seed int64) *Random {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

func (r *Random) Choose(_ peer.View, legal []truco.Action) truco.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	return legal[r.rng.Intn(len(legal))]
}

// Step asks p for a move when it is the adapter's turn and applies it
// locally. It reports false when there was nothing to do.
func Step(a *peer.Adapter, p Policy) (truco.Action, truco.MatchState, bool, error) {
	legal := a.LegalActionsForMe()
	if !a.IsMyTurn() || len(legal) == 0 {
		return truco.Action{}, a.State(), false, nil
	}
	act := p.Choose(a.LocalView(), legal)
	next, err := a.Apply(act)
	if err != nil {
		return act, next, false, err
	}
	return act, next, true, nil
}
