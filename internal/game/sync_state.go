// internal/game/sync_state.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/truco/internal/peer"
)

// SyncStateFor is the match as userID may see it: their own cards and
// nothing of the opponent's hand.
func (g *TrucoGame) SyncStateFor(userID uuid.UUID) (peer.WireState, error) {
	seat, ok := g.seatOf(userID)
	if !ok {
		return peer.WireState{}, ErrNotSeated
	}
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return peer.ToWire(g.State, seat), nil
}

// sendSyncState sends the redacted state to the player at seat, with the
// seat and rules a client needs to run its own engine.
// Assumes lock is held by caller.
func (g *TrucoGame) sendSyncState(seat int) {
	state := peer.ToWire(g.State, seat)
	g.fireEventToPlayer(g.Seats[seat].ID, GameEvent{
		Type:  EventPrivateSyncState,
		State: &state,
		Payload: map[string]interface{}{
			"seat":   seat,
			"rules":  g.Rules,
			"paused": g.Paused,
		},
	})
}

// SendSyncState answers a client's explicit resync request.
// Assumes lock is held by caller.
func (g *TrucoGame) SendSyncState(userID uuid.UUID) error {
	seat, ok := g.seatOf(userID)
	if !ok {
		return ErrNotSeated
	}
	g.sendSyncState(seat)
	return nil
}

// broadcastSyncStateToAll sends each connected seat its own view.
// Assumes lock is held by caller.
func (g *TrucoGame) broadcastSyncStateToAll() {
	for seat, p := range g.Seats {
		if p.Connected {
			g.sendSyncState(seat)
		}
	}
}
