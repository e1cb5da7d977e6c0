// internal/game/game_test.go
package game

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/truco/internal/cache"
	"github.com/jason-s-yu/truco/internal/models"
	"github.com/jason-s-yu/truco/internal/peer"
	"github.com/jason-s-yu/truco/internal/truco"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBroadcaster collects events instead of sending them over WS.
type mockBroadcaster struct {
	mu           sync.Mutex
	allEvents    []GameEvent               // Events sent to everyone
	playerEvents map[uuid.UUID][]GameEvent // Events sent to specific players
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{
		playerEvents: make(map[uuid.UUID][]GameEvent),
	}
}

func (mb *mockBroadcaster) broadcastFn(ev GameEvent) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = append(mb.allEvents, ev)
}

func (mb *mockBroadcaster) broadcastToPlayerFn(playerID uuid.UUID, ev GameEvent) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.playerEvents[playerID] = append(mb.playerEvents[playerID], ev)
}

func (mb *mockBroadcaster) clear() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = []GameEvent{}
	mb.playerEvents = make(map[uuid.UUID][]GameEvent)
}

func (mb *mockBroadcaster) eventsOfType(typ GameEventType) []GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	var out []GameEvent
	for _, ev := range mb.allEvents {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (mb *mockBroadcaster) getLastPlayerEvent(playerID uuid.UUID) *GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	events, ok := mb.playerEvents[playerID]
	if !ok || len(events) == 0 {
		return nil
	}
	return &events[len(events)-1]
}

// memSnapshots is an in-memory SnapshotStore.
type memSnapshots struct {
	mu   sync.Mutex
	recs map[uuid.UUID]models.MatchRecord
}

func (m *memSnapshots) SaveSnapshot(_ context.Context, rec models.MatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recs == nil {
		m.recs = make(map[uuid.UUID]models.MatchRecord)
	}
	if prev, ok := m.recs[rec.ID]; ok && prev.State.Version > rec.State.Version {
		return nil
	}
	m.recs[rec.ID] = rec
	return nil
}

func (m *memSnapshots) LoadSnapshot(_ context.Context, id uuid.UUID) (models.MatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return rec, models.ErrMatchNotFound
	}
	return rec, nil
}

// actionLog captures what would be published to the historian.
type actionLog struct {
	mu   sync.Mutex
	recs []cache.GameActionRecord
}

func (l *actionLog) publish(_ context.Context, rec cache.GameActionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recs = append(l.recs, rec)
	return nil
}

func (l *actionLog) sorted() []cache.GameActionRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := append([]cache.GameActionRecord(nil), l.recs...)
	sort.Slice(out, func(i, j int) bool { return out[i].ActionIndex < out[j].ActionIndex })
	return out
}

func (l *actionLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.recs)
}

func newPlayers() [2]*models.Player {
	var players [2]*models.Player
	for i, name := range []string{"ana", "beto"} {
		players[i] = &models.Player{
			ID:        uuid.New(),
			Connected: true,
			User:      &models.User{Username: name},
		}
	}
	return players
}

// setupTestGame builds a started match with mock broadcasters and a seeded deck.
func setupTestGame(t *testing.T, rules models.HouseRules) (*TrucoGame, [2]*models.Player, *mockBroadcaster, *actionLog) {
	t.Helper()
	players := newPlayers()
	engine := truco.NewEngine(
		truco.WithRules(rules.TrucoRules()),
		truco.WithRand(rand.New(rand.NewSource(11))),
	)
	g := NewTrucoGame(uuid.New(), players, rules, engine, nil)
	mb := newMockBroadcaster()
	g.BroadcastFn = mb.broadcastFn
	g.BroadcastToPlayerFn = mb.broadcastToPlayerFn
	log := &actionLog{}
	g.Publish = log.publish

	g.Start()
	require.True(t, g.Started, "Game should be marked as started")
	mb.clear()
	return g, players, mb, log
}

func wirePlayer(t *testing.T, w *peer.WireState, seat int) peer.WirePlayer {
	t.Helper()
	require.NotNil(t, w)
	for _, p := range w.Players {
		if p.Seat == seat {
			return p
		}
	}
	t.Fatalf("seat %d missing from wire state", seat)
	return peer.WirePlayer{}
}

func TestStartSendsEachSeatItsOwnCards(t *testing.T) {
	players := newPlayers()
	g := NewTrucoGame(uuid.New(), players, models.DefaultHouseRules(), nil, nil)
	mb := newMockBroadcaster()
	g.BroadcastFn = mb.broadcastFn
	g.BroadcastToPlayerFn = mb.broadcastToPlayerFn
	g.Publish = nil

	g.Start()
	g.Start() // second call is a no-op

	require.Len(t, mb.eventsOfType(EventGameStart), 1)
	for seat, p := range players {
		assert.Equal(t, seat, p.Seat)
		ev := mb.getLastPlayerEvent(p.ID)
		require.NotNil(t, ev)
		assert.Equal(t, EventPrivateSyncState, ev.Type)
		mine := wirePlayer(t, ev.State, seat)
		theirs := wirePlayer(t, ev.State, truco.Opponent(seat))
		assert.Len(t, mine.Hand, truco.HandSize)
		assert.True(t, theirs.Redacted())
		assert.Equal(t, truco.HandSize, theirs.HandSize)
		assert.Equal(t, seat, ev.Payload["seat"])
		assert.Equal(t, g.Rules, ev.Payload["rules"])
	}
}

func TestHandlePlayerActionBroadcasts(t *testing.T) {
	g, players, mb, _ := setupTestGame(t, models.DefaultHouseRules())
	leader := g.State.Hand.TurnSeat

	require.NoError(t, g.HandlePlayerAction(players[leader].ID, truco.PlayCard(0)))
	assert.Equal(t, int64(1), g.State.Version)

	actions := mb.eventsOfType(EventGameAction)
	require.Len(t, actions, 1)
	assert.Equal(t, leader, actions[0].User.Seat)
	assert.Equal(t, truco.PlayCard(0), *actions[0].Action)

	for seat, p := range players {
		ev := mb.getLastPlayerEvent(p.ID)
		require.NotNil(t, ev)
		require.Equal(t, EventPrivateSyncState, ev.Type)
		assert.Equal(t, int64(1), ev.State.Version)
		assert.False(t, wirePlayer(t, ev.State, seat).Redacted())
		assert.True(t, wirePlayer(t, ev.State, truco.Opponent(seat)).Redacted())
	}
}

func TestRejectedActionIsPrivate(t *testing.T) {
	g, players, mb, _ := setupTestGame(t, models.DefaultHouseRules())
	waiting := g.State.Hand.DealerSeat

	err := g.HandlePlayerAction(players[waiting].ID, truco.PlayCard(0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, truco.ErrIllegalAction))
	assert.Equal(t, int64(0), g.State.Version)
	assert.Empty(t, mb.eventsOfType(EventGameAction))

	ev := mb.getLastPlayerEvent(players[waiting].ID)
	require.NotNil(t, ev)
	assert.Equal(t, EventPrivateActionRejected, ev.Type)
	assert.Contains(t, ev.Payload["message"], "not your turn")
	assert.Nil(t, mb.getLastPlayerEvent(players[truco.Opponent(waiting)].ID))
}

func TestActionFromStranger(t *testing.T) {
	g, _, _, _ := setupTestGame(t, models.DefaultHouseRules())
	assert.ErrorIs(t, g.HandlePlayerAction(uuid.New(), truco.GoToDeck()), ErrNotSeated)

	_, err := g.SyncStateFor(uuid.New())
	assert.ErrorIs(t, err, ErrNotSeated)
}

func TestEnvidoResultAndHandEnd(t *testing.T) {
	g, players, mb, _ := setupTestGame(t, models.DefaultHouseRules())
	leader := g.State.Hand.TurnSeat
	values := g.State.Hand.EnvidoValues

	require.NoError(t, g.HandlePlayerAction(players[leader].ID, truco.SingEnvido()))
	require.NoError(t, g.HandlePlayerAction(players[truco.Opponent(leader)].ID, truco.Accept()))

	results := mb.eventsOfType(EventGameEnvidoResult)
	require.Len(t, results, 1)
	assert.Equal(t, values, results[0].Envido.Values)
	assert.Equal(t, 2, results[0].Envido.Points)

	folder := g.State.Hand.TurnSeat
	require.NoError(t, g.HandlePlayerAction(players[folder].ID, truco.GoToDeck()))

	ends := mb.eventsOfType(EventGameHandEnd)
	require.Len(t, ends, 1)
	assert.Equal(t, truco.ReasonDeck, ends[0].Hand.Reason)
	assert.Equal(t, truco.Opponent(folder), ends[0].Hand.Winner)
	assert.Equal(t, 2, g.State.Hand.Number)
	assert.Empty(t, mb.eventsOfType(EventGameEnd))
}

func TestGameEndsAtTarget(t *testing.T) {
	rules := models.HouseRules{TargetScore: 1}
	g, players, mb, _ := setupTestGame(t, rules)

	var got []MatchResult
	g.OnGameEnd = func(res MatchResult) { got = append(got, res) }

	folder := g.State.Hand.TurnSeat
	winner := truco.Opponent(folder)
	require.NoError(t, g.HandlePlayerAction(players[folder].ID, truco.GoToDeck()))

	assert.True(t, g.GameOver)
	assert.Equal(t, winner, g.Winner)
	require.Len(t, got, 1)
	assert.Equal(t, winner, got[0].Winner)
	assert.Equal(t, EndReasonTarget, got[0].Reason)
	assert.Equal(t, [2]uuid.UUID{players[0].ID, players[1].ID}, got[0].Seats)
	assert.Equal(t, 1, got[0].Scores[winner])

	ends := mb.eventsOfType(EventGameEnd)
	require.Len(t, ends, 1)
	assert.Equal(t, winner, ends[0].Payload["winner_seat"])

	err := g.HandlePlayerAction(players[winner].ID, truco.PlayCard(0))
	assert.ErrorIs(t, err, ErrMatchOver)
	assert.Equal(t, EventPrivateActionRejected, mb.getLastPlayerEvent(players[winner].ID).Type)
	assert.Len(t, got, 1, "OnGameEnd fires once")
}

func TestDisconnectPausesUntilReconnect(t *testing.T) {
	g, players, mb, _ := setupTestGame(t, models.DefaultHouseRules())
	leader := g.State.Hand.TurnSeat
	other := truco.Opponent(leader)

	g.HandleDisconnect(players[other].ID)
	assert.True(t, g.Paused)
	assert.False(t, players[other].Connected)
	require.Len(t, mb.eventsOfType(EventGamePaused), 1)

	err := g.HandlePlayerAction(players[leader].ID, truco.PlayCard(0))
	assert.ErrorIs(t, err, ErrPaused)

	require.NoError(t, g.HandleReconnect(players[other].ID, nil))
	assert.False(t, g.Paused)
	assert.True(t, players[other].Connected)
	require.Len(t, mb.eventsOfType(EventGameResumed), 1)
	ev := mb.getLastPlayerEvent(players[other].ID)
	require.NotNil(t, ev)
	assert.Equal(t, EventPrivateSyncState, ev.Type)

	require.NoError(t, g.HandlePlayerAction(players[leader].ID, truco.PlayCard(0)))
	assert.ErrorIs(t, g.HandleReconnect(uuid.New(), nil), ErrNotSeated)
}

func TestDropConnIgnoresReplacedConnection(t *testing.T) {
	g, players, mb, _ := setupTestGame(t, models.DefaultHouseRules())
	old, current := &websocket.Conn{}, &websocket.Conn{}

	require.NoError(t, g.HandleReconnect(players[1].ID, old))
	require.NoError(t, g.HandleReconnect(players[1].ID, current))

	g.DropConn(players[1].ID, old)
	assert.True(t, players[1].Connected)
	assert.False(t, g.Paused)
	assert.Empty(t, mb.eventsOfType(EventGamePaused))

	g.DropConn(players[1].ID, current)
	assert.False(t, players[1].Connected)
	assert.True(t, g.Paused)
}

func TestDisconnectForfeits(t *testing.T) {
	rules := models.DefaultHouseRules()
	rules.ForfeitOnDisconnect = true
	g, players, mb, _ := setupTestGame(t, rules)

	var got *MatchResult
	g.OnGameEnd = func(res MatchResult) { got = &res }

	g.HandleDisconnect(players[1].ID)
	assert.True(t, g.GameOver)
	assert.Equal(t, 0, g.Winner)
	assert.Equal(t, EndReasonForfeit, g.Reason)
	require.NotNil(t, got)
	assert.Equal(t, 0, got.Winner)
	assert.Equal(t, EndReasonForfeit, got.Reason)
	assert.Len(t, mb.eventsOfType(EventGameEnd), 1)

	g.HandleDisconnect(players[0].ID)
	assert.Len(t, mb.eventsOfType(EventGameEnd), 1)
}

func TestSnapshotsAndRestore(t *testing.T) {
	g, players, _, _ := setupTestGame(t, models.DefaultHouseRules())
	store := &memSnapshots{}
	g.Snapshots = store

	leader := g.State.Hand.TurnSeat
	require.NoError(t, g.HandlePlayerAction(players[leader].ID, truco.SingTruco()))
	require.NoError(t, g.HandlePlayerAction(players[truco.Opponent(leader)].ID, truco.Accept()))
	g.WaitPersisted()

	rec, err := store.LoadSnapshot(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.State.Version, rec.State.Version)
	assert.Equal(t, [2]uuid.UUID{players[0].ID, players[1].ID}, rec.Seats)
	assert.Positive(t, rec.Actions)

	restored := RestoreTrucoGame(rec, newPlayersWithIDs(rec.Seats), nil, nil)
	assert.True(t, restored.Started)
	assert.True(t, restored.Paused)
	assert.False(t, restored.GameOver)
	assert.Equal(t, g.State, restored.State)

	w, err := restored.SyncStateFor(rec.Seats[1])
	require.NoError(t, err)
	assert.Len(t, wirePlayer(t, &w, 1).Hand, len(g.State.Players[1].Hand))
	assert.NoError(t, peer.Validate(w, restored.Engine().Rules()))
}

func newPlayersWithIDs(ids [2]uuid.UUID) [2]*models.Player {
	return [2]*models.Player{{ID: ids[0]}, {ID: ids[1]}}
}

func TestActionsAreLoggedInOrder(t *testing.T) {
	g, players, _, log := setupTestGame(t, models.DefaultHouseRules())
	require.Eventually(t, func() bool { return log.len() == 1 }, time.Second, 5*time.Millisecond)

	leader := g.State.Hand.TurnSeat
	require.NoError(t, g.HandlePlayerAction(players[leader].ID, truco.GoToDeck()))
	require.Eventually(t, func() bool { return log.len() == 3 }, time.Second, 5*time.Millisecond)

	recs := log.sorted()
	for i, rec := range recs {
		assert.Equal(t, i+1, rec.ActionIndex)
		assert.Equal(t, g.ID, rec.MatchID)
	}
	assert.Equal(t, string(EventGameStart), recs[0].ActionType)
	assert.Equal(t, string(truco.KindGoToDeck), recs[1].ActionType)
	assert.Equal(t, players[leader].ID, recs[1].ActorUserID)
	assert.Equal(t, string(EventGameHandEnd), recs[2].ActionType)
}

func TestGameStore(t *testing.T) {
	store := NewGameStore()
	g1, p1, _, _ := setupTestGame(t, models.DefaultHouseRules())
	g2, _, _, _ := setupTestGame(t, models.DefaultHouseRules())
	store.AddGame(g1)
	store.AddGame(g2)

	got, ok := store.GetGame(g1.ID)
	require.True(t, ok)
	assert.Same(t, g1, got)
	assert.Len(t, store.ListActive(), 2)
	assert.Same(t, g1, store.GetGameForUser(p1[0].ID))
	assert.Nil(t, store.GetGameForUser(uuid.New()))

	g2.Mu.Lock()
	g2.EndGame(0, EndReasonForfeit)
	g2.Mu.Unlock()
	active := store.ListActive()
	require.Len(t, active, 1)
	assert.Same(t, g1, active[0])

	store.DeleteGame(g1.ID)
	_, ok = store.GetGame(g1.ID)
	assert.False(t, ok)
}

func TestParseRules(t *testing.T) {
	rules, err := ParseRules(map[string]interface{}{"targetScore": float64(15)}, models.DefaultHouseRules())
	require.NoError(t, err)
	assert.Equal(t, 15, rules.TargetScore)
	assert.Equal(t, 15, rules.TrucoRules().TargetScore)
	assert.Less(t, rules.TrucoRules().MalasThreshold, 15)

	_, err = ParseRules(map[string]interface{}{"forfeitOnDisconnect": "yes"}, models.DefaultHouseRules())
	assert.Error(t, err)
}
