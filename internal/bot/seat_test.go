package bot

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/truco/internal/game"
	"github.com/jason-s-yu/truco/internal/models"
	"github.com/jason-s-yu/truco/internal/peer"
	"github.com/jason-s-yu/truco/internal/truco"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSyncPayload(t *testing.T) {
	rules := models.HouseRules{TargetScore: 15, MalasThreshold: 7}
	seat, got, err := ParseSyncPayload(map[string]interface{}{"seat": 1, "rules": rules})
	require.NoError(t, err)
	assert.Equal(t, 1, seat)
	assert.Equal(t, rules, got)

	// as decoded from the websocket
	seat, got, err = ParseSyncPayload(map[string]interface{}{
		"seat":  float64(0),
		"rules": map[string]interface{}{"targetScore": float64(15), "malasThreshold": float64(7)},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, seat)
	assert.Equal(t, 15, got.TargetScore)

	_, got, err = ParseSyncPayload(map[string]interface{}{"seat": 0})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultHouseRules(), got)

	_, _, err = ParseSyncPayload(map[string]interface{}{"rules": rules})
	assert.Error(t, err)
	_, _, err = ParseSyncPayload(map[string]interface{}{"seat": 3})
	assert.Error(t, err)
}

func TestSeatWaitsForServerAfterMoving(t *testing.T) {
	e := truco.NewEngine(truco.WithRand(rand.New(rand.NewSource(4))))
	s := e.NewMatch(uuid.New(), [2]string{"a", "b"})
	turn := s.Hand.TurnSeat
	w := peer.ToWire(s, turn)

	seat, err := NewSeat(w, map[string]interface{}{"seat": turn}, NewRandom(3), nil)
	require.NoError(t, err)

	first, ok, err := seat.OnSync(w)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, e.LegalActions(s, turn), first)

	_, ok, err = seat.OnSync(w)
	require.NoError(t, err)
	assert.False(t, ok, "a stale sync does not trigger a second move")

	seat.OnRejected()
	_, ok, err = seat.OnSync(w)
	require.NoError(t, err)
	assert.True(t, ok, "after a rejection the server state is trusted again")
	assert.Equal(t, int64(1), seat.Adapter().State().Version)
}

// TestSeatsPlayAgainstSession plays a whole match between two bots through
// a real match session, each seeing only its private sync events.
func TestSeatsPlayAgainstSession(t *testing.T) {
	rules := models.HouseRules{TargetScore: 9, MalasThreshold: 4}
	players := [2]*models.Player{
		{ID: uuid.New(), Connected: true},
		{ID: uuid.New(), Connected: true},
	}
	engine := truco.NewEngine(
		truco.WithRules(rules.TrucoRules()),
		truco.WithRand(rand.New(rand.NewSource(21))),
	)
	g := game.NewTrucoGame(uuid.New(), players, rules, engine, nil)
	g.Publish = nil
	inbox := make(map[uuid.UUID][]game.GameEvent)
	g.BroadcastToPlayerFn = func(id uuid.UUID, ev game.GameEvent) {
		inbox[id] = append(inbox[id], ev)
	}
	var result *game.MatchResult
	g.OnGameEnd = func(res game.MatchResult) { result = &res }
	g.Start()

	var seats [2]*Seat
	for round := 0; round < 5000 && !g.GameOver; round++ {
		moved := false
		for i, p := range players {
			events := inbox[p.ID]
			inbox[p.ID] = nil
			for _, ev := range events {
				if ev.Type != game.EventPrivateSyncState {
					continue
				}
				if seats[i] == nil {
					var err error
					seats[i], err = NewSeat(*ev.State, ev.Payload, NewRandom(int64(i+1)), nil)
					require.NoError(t, err)
				}
				act, ok, err := seats[i].OnSync(*ev.State)
				require.NoError(t, err)
				if ok {
					require.NoError(t, g.HandlePlayerAction(p.ID, act), "session accepts %s", act)
					moved = true
				}
			}
		}
		require.True(t, moved || g.GameOver, "someone must always be able to move")
	}

	require.True(t, g.GameOver)
	require.NotNil(t, result)
	assert.Equal(t, game.EndReasonTarget, result.Reason)
	assert.GreaterOrEqual(t, result.Scores[result.Winner], rules.TargetScore)
}
