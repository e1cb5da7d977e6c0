// internal/handlers/game_server.go
package handlers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/truco/internal/game"
	"github.com/jason-s-yu/truco/internal/models"
	"github.com/jason-s-yu/truco/internal/truco"
	"github.com/sirupsen/logrus"
)

// ResultRecorder stores finished matches and the rating changes they cause.
type ResultRecorder interface {
	RecordMatchResult(ctx context.Context, matchID uuid.UUID, seats [2]uuid.UUID, scores [2]int, winner int) error
}

// UserStore creates and looks up players.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ErrBadSeats is returned by CreateMatch for a missing or repeated seat.
var ErrBadSeats = errors.New("a match needs two distinct players")

// GameServer is a high-level struct that holds a reference to a GameStore
// and creates, restores, and finishes matches.
type GameServer struct {
	GameStore *game.GameStore
	Snapshots game.SnapshotStore // optional
	Results   ResultRecorder     // optional
	Users     UserStore          // optional
	Logger    *logrus.Logger

	// NewEngine builds the engine for a match. Defaults to the rules' own engine.
	NewEngine func(rules models.HouseRules) *truco.Engine

	// OriginPatterns are passed to websocket.Accept.
	OriginPatterns []string

	loadMu    sync.Mutex
	writersMu sync.Mutex
	writers   map[*websocket.Conn]*connWriter
	recording sync.WaitGroup
}

func NewGameServer(logger *logrus.Logger) *GameServer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &GameServer{
		GameStore:      game.NewGameStore(),
		Logger:         logger,
		OriginPatterns: []string{"*"},
		writers:        make(map[*websocket.Conn]*connWriter),
	}
}

// CreateMatch seats two players, deals, and starts the match. Pairing is the
// caller's business.
func (gs *GameServer) CreateMatch(ctx context.Context, seats [2]uuid.UUID, rules models.HouseRules) (*game.TrucoGame, error) {
	if seats[0] == uuid.Nil || seats[1] == uuid.Nil || seats[0] == seats[1] {
		return nil, ErrBadSeats
	}
	players, err := gs.players(ctx, seats)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("failed to generate match id: %w", err)
	}
	g := game.NewTrucoGame(id, players, rules, gs.engineFor(rules), logrus.NewEntry(gs.Logger))
	gs.wire(g)
	gs.GameStore.AddGame(g)
	g.Start()

	gs.Logger.WithFields(logrus.Fields{"match_id": id, "seats": seats}).Info("match created")
	return g, nil
}

// LoadMatch returns the match from memory or, after a restart, from the
// snapshot store.
func (gs *GameServer) LoadMatch(ctx context.Context, id uuid.UUID) (*game.TrucoGame, error) {
	if g, ok := gs.GameStore.GetGame(id); ok {
		return g, nil
	}
	if gs.Snapshots == nil {
		return nil, models.ErrMatchNotFound
	}

	gs.loadMu.Lock()
	defer gs.loadMu.Unlock()
	if g, ok := gs.GameStore.GetGame(id); ok {
		return g, nil
	}

	rec, err := gs.Snapshots.LoadSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	players, err := gs.players(ctx, rec.Seats)
	if err != nil {
		return nil, err
	}
	g := game.RestoreTrucoGame(rec, players, gs.engineFor(rec.Rules), logrus.NewEntry(gs.Logger))
	gs.wire(g)
	gs.GameStore.AddGame(g)

	gs.Logger.WithFields(logrus.Fields{"match_id": id, "version": rec.State.Version}).Info("match restored from snapshot")
	return g, nil
}

// WaitRecorded blocks until every pending result write has finished.
func (gs *GameServer) WaitRecorded() {
	gs.recording.Wait()
}

func (gs *GameServer) engineFor(rules models.HouseRules) *truco.Engine {
	if gs.NewEngine != nil {
		return gs.NewEngine(rules)
	}
	return nil
}

// players builds the two seats, attaching user records when a store is set.
func (gs *GameServer) players(ctx context.Context, seats [2]uuid.UUID) ([2]*models.Player, error) {
	var out [2]*models.Player
	for i, id := range seats {
		p := &models.Player{ID: id}
		if gs.Users != nil {
			u, err := gs.Users.GetUserByID(ctx, id)
			if err != nil {
				return out, fmt.Errorf("seat %d: %w", i, err)
			}
			p.User = u
		}
		out[i] = p
	}
	return out, nil
}

// wire connects a match to the websockets, the snapshot store, and the
// result recorder.
func (gs *GameServer) wire(g *game.TrucoGame) {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	g.BroadcastFn = gs.createBroadcastFunc(g)
	g.BroadcastToPlayerFn = gs.createBroadcastToPlayerFunc(g)
	if gs.Snapshots != nil {
		g.Snapshots = gs.Snapshots
	}
	g.OnGameEnd = gs.onGameEnd
}

// onGameEnd is called with the match lock held, so the write happens elsewhere.
func (gs *GameServer) onGameEnd(res game.MatchResult) {
	log := gs.Logger.WithFields(logrus.Fields{"match_id": res.MatchID, "winner": res.Winner, "reason": res.Reason})
	if gs.Results == nil {
		log.Debug("no result recorder, skipping")
		return
	}

	gs.recording.Add(1)
	go func() {
		defer gs.recording.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := gs.Results.RecordMatchResult(ctx, res.MatchID, res.Seats, res.Scores, res.Winner); err != nil {
			log.WithError(err).Error("failed to record match result")
			return
		}
		log.Info("match result recorded")
	}()
}
