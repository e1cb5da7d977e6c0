// internal/game/game.go
package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/truco/internal/cache"
	"github.com/jason-s-yu/truco/internal/models"
	"github.com/jason-s-yu/truco/internal/peer"
	"github.com/jason-s-yu/truco/internal/truco"
	"github.com/sirupsen/logrus"

	"github.com/coder/websocket"
)

var (
	// ErrNotSeated is returned when a user acts in a match they do not sit in.
	ErrNotSeated = errors.New("user is not seated in this match")
	// ErrMatchOver is returned for actions after the match ended.
	ErrMatchOver = errors.New("match is over")
	// ErrNotStarted is returned for actions before Start.
	ErrNotStarted = errors.New("match has not started")
	// ErrPaused is returned for actions while a seat is disconnected.
	ErrPaused = errors.New("match is paused until both players are connected")
)

// EndReason says why a match ended.
type EndReason string

const (
	EndReasonTarget  EndReason = "target_reached"
	EndReasonForfeit EndReason = "forfeit"
)

// MatchResult is handed to OnGameEnd once per match.
type MatchResult struct {
	MatchID uuid.UUID
	Seats   [2]uuid.UUID
	Scores  [2]int
	Winner  int // seat
	Reason  EndReason
}

// OnGameEndFunc handles a finished match, e.g. recording results and ratings.
type OnGameEndFunc func(res MatchResult)

// SnapshotStore persists the latest state of a match so it can be resumed.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, rec models.MatchRecord) error
	LoadSnapshot(ctx context.Context, id uuid.UUID) (models.MatchRecord, error)
}

// GameEventType is an enum-like type for broadcasting game actions.
type GameEventType string

const (
	EventGameStart             GameEventType = "game_start"              // public: seats and rules
	EventGameAction            GameEventType = "game_action"             // public: who did what
	EventGameHandEnd           GameEventType = "game_hand_end"           // public: hand result
	EventGameEnvidoResult      GameEventType = "game_envido_result"      // public: both envido values once envido is settled
	EventGamePaused            GameEventType = "game_paused"             // public: a seat dropped
	EventGameResumed           GameEventType = "game_resumed"            // public: both seats are back
	EventGameEnd               GameEventType = "game_end"                // public: final scores and winner
	EventPrivateSyncState      GameEventType = "private_sync_state"      // private: the seat's redacted state
	EventPrivateActionRejected GameEventType = "private_action_rejected" // private: why an action was refused
)

// EventUser identifies the user (and seat) an event is about.
type EventUser struct {
	ID   uuid.UUID `json:"id"`
	Seat int       `json:"seat"`
}

// GameEvent holds data about an event that can be broadcast to the clients in a consistent format.
type GameEvent struct {
	Type   GameEventType       `json:"type"`
	User   *EventUser          `json:"user,omitempty"`
	Action *truco.Action       `json:"action,omitempty"`
	Hand   *truco.HandResult   `json:"hand,omitempty"`
	Envido *truco.EnvidoResult `json:"envido,omitempty"`

	Payload map[string]interface{} `json:"payload,omitempty"`

	State *peer.WireState `json:"state,omitempty"`
}

// TrucoGame holds the entire state for a single match in memory.
type TrucoGame struct {
	ID    uuid.UUID
	Seats [2]*models.Player
	Rules models.HouseRules
	State truco.MatchState

	Started  bool
	GameOver bool
	Paused   bool
	Winner   int // seat, set once GameOver
	Reason   EndReason
	Mu       sync.Mutex

	// BroadcastFn is used to send events to all players. If nil, no broadcast is done.
	BroadcastFn func(ev GameEvent)

	// BroadcastToPlayerFn sends an event to a single specific player.
	BroadcastToPlayerFn func(playerID uuid.UUID, ev GameEvent)

	// OnGameEnd is invoked once when the match ends.
	OnGameEnd OnGameEndFunc

	// Snapshots receives the state after every change. Optional.
	Snapshots SnapshotStore

	// Publish ships action records to the historian. Defaults to cache.PublishGameAction.
	Publish func(ctx context.Context, rec cache.GameActionRecord) error

	engine       *truco.Engine
	actionIndex  int // increments for each logged action, for historian ordering
	lastActivity time.Time
	persisting   sync.WaitGroup
	log          *logrus.Entry
}

// NewTrucoGame seats two players and deals the first hand. A nil engine is
// built from rules.
func NewTrucoGame(id uuid.UUID, seats [2]*models.Player, rules models.HouseRules, engine *truco.Engine, logger *logrus.Entry) *TrucoGame {
	if engine == nil {
		engine = truco.NewEngine(truco.WithRules(rules.TrucoRules()))
	}
	g := newGame(id, seats, rules, engine, logger)
	g.State = engine.NewMatch(id, [2]string{seats[0].Name(), seats[1].Name()})
	return g
}

// RestoreTrucoGame rebuilds a match from a snapshot. Nobody is connected
// yet, so a match still in play comes back paused.
func RestoreTrucoGame(rec models.MatchRecord, seats [2]*models.Player, engine *truco.Engine, logger *logrus.Entry) *TrucoGame {
	if engine == nil {
		engine = truco.NewEngine(truco.WithRules(rec.Rules.TrucoRules()))
	}
	g := newGame(rec.ID, seats, rec.Rules, engine, logger)
	g.State = rec.State.Clone()
	g.actionIndex = rec.Actions
	g.Started = true
	for _, p := range g.Seats {
		p.Connected, p.Conn = false, nil
	}
	if g.State.Finished() {
		g.GameOver = true
		g.Winner = g.State.Winner
		g.Reason = EndReasonTarget
	} else {
		g.Paused = true
	}
	return g
}

func newGame(id uuid.UUID, seats [2]*models.Player, rules models.HouseRules, engine *truco.Engine, logger *logrus.Entry) *TrucoGame {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	for i, p := range seats {
		p.Seat = i
	}
	return &TrucoGame{
		ID:           id,
		Seats:        seats,
		Rules:        rules,
		Winner:       truco.NoSeat,
		Publish:      cache.PublishGameAction,
		engine:       engine,
		lastActivity: time.Now(),
		log:          logger.WithField("match_id", id),
	}
}

// Engine is the rules engine this match runs on.
func (g *TrucoGame) Engine() *truco.Engine {
	return g.engine
}

// Start opens the match: it logs the start and sends every connected seat its cards.
func (g *TrucoGame) Start() {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if g.Started || g.GameOver {
		return
	}
	g.Started = true
	g.lastActivity = time.Now()

	payload := map[string]interface{}{
		"seats": [2]uuid.UUID{g.Seats[0].ID, g.Seats[1].ID},
		"rules": g.Rules,
	}
	g.logAction(uuid.Nil, string(EventGameStart), payload)
	g.fireEvent(GameEvent{Type: EventGameStart, Payload: payload})
	g.broadcastSyncStateToAll()
	g.persist()
	g.log.WithField("dealer", g.State.Hand.DealerSeat).Info("match started")
}

// HandlePlayerAction runs act for userID through the engine and tells everyone what happened.
// Assumes lock is held by the caller (e.g., the WS handler).
func (g *TrucoGame) HandlePlayerAction(userID uuid.UUID, act truco.Action) error {
	seat, ok := g.seatOf(userID)
	if !ok {
		g.log.WithField("user_id", userID).Warn("action from a user who is not seated")
		return ErrNotSeated
	}
	var err error
	switch {
	case g.GameOver:
		err = ErrMatchOver
	case !g.Started:
		err = ErrNotStarted
	case g.Paused:
		err = ErrPaused
	}
	if err != nil {
		g.rejectAction(userID, seat, act, err)
		return err
	}

	prev := g.State
	next, err := g.engine.Apply(prev, seat, act)
	if err != nil {
		g.rejectAction(userID, seat, act, err)
		return err
	}
	g.State = next
	g.lastActivity = time.Now()

	g.logAction(userID, string(act.Kind), map[string]interface{}{
		"seat":    seat,
		"action":  act,
		"hand":    prev.Hand.Number,
		"version": next.Version,
	})
	g.fireEvent(GameEvent{
		Type:    EventGameAction,
		User:    &EventUser{ID: userID, Seat: seat},
		Action:  &act,
		Payload: map[string]interface{}{"version": next.Version},
	})

	if next.Hand.Number == prev.Hand.Number && prev.Hand.Envido == nil && next.Hand.Envido != nil {
		res := *next.Hand.Envido
		g.fireEvent(GameEvent{Type: EventGameEnvidoResult, Envido: &res})
	}
	if lh := next.LastHand; lh != nil && (prev.LastHand == nil || prev.LastHand.Number != lh.Number) {
		res := *lh
		g.logAction(uuid.Nil, string(EventGameHandEnd), map[string]interface{}{
			"hand":   res.Number,
			"winner": res.Winner,
			"points": res.Points,
			"reason": res.Reason,
			"scores": next.Scores(),
		})
		g.fireEvent(GameEvent{Type: EventGameHandEnd, Hand: &res, Payload: map[string]interface{}{"scores": next.Scores()}})
	}

	g.broadcastSyncStateToAll()
	g.persist()

	if next.Finished() {
		g.EndGame(next.Winner, EndReasonTarget)
	}
	return nil
}

func (g *TrucoGame) rejectAction(userID uuid.UUID, seat int, act truco.Action, err error) {
	g.log.WithFields(logrus.Fields{"seat": seat, "action": act.String()}).WithError(err).Debug("action rejected")
	g.fireEventToPlayer(userID, GameEvent{
		Type:    EventPrivateActionRejected,
		Action:  &act,
		Payload: map[string]interface{}{"message": err.Error()},
	})
}

// HandleDisconnect marks a seat as gone. Depending on the house rules the
// match is forfeited or paused until the seat returns.
func (g *TrucoGame) HandleDisconnect(userID uuid.UUID) {
	g.DropConn(userID, nil)
}

// DropConn is HandleDisconnect for one connection. If the seat has since
// reconnected on another connection nothing happens. A nil conn matches any.
func (g *TrucoGame) DropConn(userID uuid.UUID, conn *websocket.Conn) {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	seat, ok := g.seatOf(userID)
	if !ok {
		g.log.WithField("user_id", userID).Warn("disconnect from a user who is not seated")
		return
	}
	p := g.Seats[seat]
	if !p.Connected || (conn != nil && p.Conn != conn) {
		return
	}
	p.Connected, p.Conn = false, nil
	g.logAction(userID, "player_disconnect", map[string]interface{}{"seat": seat})

	if !g.Started || g.GameOver {
		return
	}
	if g.Rules.ForfeitOnDisconnect {
		g.log.WithField("seat", seat).Info("player disconnected, forfeiting")
		g.EndGame(truco.Opponent(seat), EndReasonForfeit)
		return
	}
	g.Paused = true
	g.log.WithField("seat", seat).Info("player disconnected, pausing")
	g.fireEvent(GameEvent{Type: EventGamePaused, User: &EventUser{ID: userID, Seat: seat}})
}

// HandleReconnect marks a seat as connected again and sends it the current state.
func (g *TrucoGame) HandleReconnect(userID uuid.UUID, conn *websocket.Conn) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	seat, ok := g.seatOf(userID)
	if !ok {
		return ErrNotSeated
	}
	p := g.Seats[seat]
	p.Connected, p.Conn = true, conn
	g.logAction(userID, "player_reconnect", map[string]interface{}{"seat": seat})
	g.sendSyncState(seat)

	if g.Paused && g.countConnectedPlayers() == len(g.Seats) {
		g.Paused = false
		g.log.Info("both players connected, resuming")
		g.fireEvent(GameEvent{Type: EventGameResumed, User: &EventUser{ID: userID, Seat: seat}})
	}
	return nil
}

// EndGame closes the match for winner and reports the result once.
// Assumes lock is held by caller.
func (g *TrucoGame) EndGame(winner int, reason EndReason) {
	if g.GameOver {
		return
	}
	g.GameOver = true
	g.Paused = false
	g.Winner = winner
	g.Reason = reason

	res := MatchResult{
		MatchID: g.ID,
		Seats:   [2]uuid.UUID{g.Seats[0].ID, g.Seats[1].ID},
		Scores:  g.State.Scores(),
		Winner:  winner,
		Reason:  reason,
	}
	g.logAction(uuid.Nil, cache.ActionTypeGameEnd, map[string]interface{}{
		"scores": res.Scores,
		"winner": winner,
		"reason": reason,
	})
	g.fireEvent(GameEvent{
		Type: EventGameEnd,
		User: &EventUser{ID: res.Seats[winner], Seat: winner},
		Payload: map[string]interface{}{
			"scores":      res.Scores,
			"winner_seat": winner,
			"reason":      reason,
		},
	})
	g.persist()

	if g.OnGameEnd != nil {
		g.OnGameEnd(res)
	}
	g.log.WithFields(logrus.Fields{"winner": winner, "scores": res.Scores, "reason": reason}).Info("match ended")
}

// LastActivity is when the match last changed.
func (g *TrucoGame) LastActivity() time.Time {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.lastActivity
}

// HasUser reports whether userID sits at this match.
func (g *TrucoGame) HasUser(userID uuid.UUID) bool {
	_, ok := g.seatOf(userID)
	return ok
}

// seatOf does not need the lock: seats never change after construction.
func (g *TrucoGame) seatOf(userID uuid.UUID) (int, bool) {
	for i, p := range g.Seats {
		if p.ID == userID {
			return i, true
		}
	}
	return truco.NoSeat, false
}

// fireEvent broadcasts an event to all connected players.
// Assumes lock is held.
func (g *TrucoGame) fireEvent(ev GameEvent) {
	if g.BroadcastFn == nil {
		g.log.WithField("event", ev.Type).Debug("no broadcaster, dropping event")
		return
	}
	g.BroadcastFn(ev)
}

// fireEventToPlayer sends an event only to a specific connected player.
// Assumes lock is held.
func (g *TrucoGame) fireEventToPlayer(userID uuid.UUID, ev GameEvent) {
	if g.BroadcastToPlayerFn == nil {
		g.log.WithField("event", ev.Type).Debug("no private broadcaster, dropping event")
		return
	}
	seat, ok := g.seatOf(userID)
	if !ok || !g.Seats[seat].Connected {
		return
	}
	g.BroadcastToPlayerFn(userID, ev)
}

// countConnectedPlayers returns the number of seats currently connected.
// Assumes lock is held by caller.
func (g *TrucoGame) countConnectedPlayers() int {
	count := 0
	for _, p := range g.Seats {
		if p.Connected {
			count++
		}
	}
	return count
}

// record is the snapshot of the match as it stands.
// Assumes lock is held by caller.
func (g *TrucoGame) record() models.MatchRecord {
	return models.MatchRecord{
		ID:        g.ID,
		Seats:     [2]uuid.UUID{g.Seats[0].ID, g.Seats[1].ID},
		Rules:     g.Rules,
		State:     g.State.Clone(),
		Actions:   g.actionIndex,
		UpdatedAt: time.Now().UTC(),
	}
}

// persist saves a snapshot in the background. Stores drop snapshots older
// than what they hold, so completion order does not matter.
// Assumes lock is held by caller.
func (g *TrucoGame) persist() {
	if g.Snapshots == nil {
		return
	}
	rec := g.record()
	g.persisting.Add(1)
	go func() {
		defer g.persisting.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := g.Snapshots.SaveSnapshot(ctx, rec); err != nil {
			g.log.WithError(err).WithField("version", rec.State.Version).Warn("failed to save snapshot")
		}
	}()
}

// WaitPersisted blocks until every snapshot write started so far has finished.
func (g *TrucoGame) WaitPersisted() {
	g.persisting.Wait()
}

// logAction sends the action details to the historian service via Redis.
// Assumes lock is held by caller.
func (g *TrucoGame) logAction(actorID uuid.UUID, actionType string, payload map[string]interface{}) {
	g.actionIndex++
	if g.Publish == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}
	record := cache.GameActionRecord{
		MatchID:       g.ID,
		ActionIndex:   g.actionIndex,
		ActorUserID:   actorID,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	}
	publish := g.Publish
	go func(rec cache.GameActionRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err := publish(ctx, rec)
		switch {
		case errors.Is(err, cache.ErrNotConnected):
			// running without a historian
		case err != nil:
			g.log.WithError(err).WithField("action_index", rec.ActionIndex).Warn("failed to publish action")
		}
	}(record)
}

func (r MatchResult) String() string {
	return fmt.Sprintf("match %s: seat %d wins %d-%d (%s)", r.MatchID, r.Winner, r.Scores[0], r.Scores[1], r.Reason)
}
