package bot

import (
	"encoding/json"
	"fmt"

	"github.com/jason-s-yu/truco/internal/models"
	"github.com/jason-s-yu/truco/internal/peer"
	"github.com/jason-s-yu/truco/internal/truco"
	"github.com/sirupsen/logrus"
)

// Seat is a bot sitting in a served match. It is fed the server's sync
// events and answers with the moves to send.
type Seat struct {
	adapter  *peer.Adapter
	policy   Policy
	awaiting int64 // version our last move produced; older syncs do not trigger a move
	resync   bool
}

// NewSeat builds a Seat from the first private sync event: its state, plus
// the seat and house rules the server attaches.
func NewSeat(w peer.WireState, payload map[string]interface{}, policy Policy, logger *logrus.Entry) (*Seat, error) {
	seat, rules, err := ParseSyncPayload(payload)
	if err != nil {
		return nil, err
	}
	engine := truco.NewEngine(truco.WithRules(rules.TrucoRules()))
	a, err := peer.NewAdapterFromWire(engine, seat, w, logger)
	if err != nil {
		return nil, err
	}
	return &Seat{adapter: a, policy: policy, awaiting: -1}, nil
}

// ParseSyncPayload reads the seat and rules from a sync event payload.
func ParseSyncPayload(payload map[string]interface{}) (int, models.HouseRules, error) {
	var out struct {
		Seat  *int               `json:"seat"`
		Rules *models.HouseRules `json:"rules"`
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, models.HouseRules{}, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, models.HouseRules{}, fmt.Errorf("bad sync payload: %w", err)
	}
	if out.Seat == nil || (*out.Seat != 0 && *out.Seat != 1) {
		return 0, models.HouseRules{}, fmt.Errorf("bad sync payload: no seat")
	}
	if out.Rules == nil {
		return *out.Seat, models.DefaultHouseRules(), nil
	}
	return *out.Seat, *out.Rules, nil
}

// Adapter is the seat's view of the match.
func (s *Seat) Adapter() *peer.Adapter {
	return s.adapter
}

// OnSync merges a server state and returns the move to send, if it is our turn.
func (s *Seat) OnSync(w peer.WireState) (truco.Action, bool, error) {
	var err error
	if s.resync {
		_, err = s.adapter.ResetFromWire(w)
		s.resync = false
	} else {
		_, err = s.adapter.MergeFromWire(w)
	}
	if err != nil {
		return truco.Action{}, false, err
	}
	if w.Version < s.awaiting {
		return truco.Action{}, false, nil
	}

	act, next, moved, err := Step(s.adapter, s.policy)
	if err != nil || !moved {
		return act, false, err
	}
	s.awaiting = next.Version
	return act, true, nil
}

// OnRejected forgets our last move. The next sync replaces local state
// whatever its version.
func (s *Seat) OnRejected() {
	s.awaiting = -1
	s.resync = true
}
