package game

import (
	"sync"

	"github.com/google/uuid"
)

type GameStore struct {
	mu    sync.Mutex
	games map[uuid.UUID]*TrucoGame
}

func NewGameStore() *GameStore {
	return &GameStore{
		games: make(map[uuid.UUID]*TrucoGame),
	}
}

func (s *GameStore) AddGame(game *TrucoGame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[game.ID] = game
}

func (s *GameStore) GetGame(id uuid.UUID) (*TrucoGame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, exists := s.games[id]
	return g, exists
}

func (s *GameStore) DeleteGame(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, id)
}

// ListActive returns every match that has not ended.
func (s *GameStore) ListActive() []*TrucoGame {
	s.mu.Lock()
	games := make([]*TrucoGame, 0, len(s.games))
	for _, g := range s.games {
		games = append(games, g)
	}
	s.mu.Unlock()

	active := games[:0]
	for _, g := range games {
		g.Mu.Lock()
		over := g.GameOver
		g.Mu.Unlock()
		if !over {
			active = append(active, g)
		}
	}
	return active
}

// GetGameForUser returns the active match userID is seated in, or nil if none is found.
func (s *GameStore) GetGameForUser(userID uuid.UUID) *TrucoGame {
	for _, g := range s.ListActive() {
		if g.HasUser(userID) {
			return g
		}
	}
	return nil
}
