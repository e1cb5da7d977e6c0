// internal/handlers/game.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/truco/internal/game"
	"github.com/jason-s-yu/truco/internal/models"
	"github.com/sirupsen/logrus"
)

type createGameRequest struct {
	Seats [2]uuid.UUID           `json:"seats"`
	Rules map[string]interface{} `json:"rules,omitempty"`
}

// gameSummary is how a match shows up in listings.
type gameSummary struct {
	ID      uuid.UUID    `json:"game_id"`
	Seats   [2]uuid.UUID `json:"seats"`
	Scores  [2]int       `json:"scores"`
	Hand    int          `json:"hand_number"`
	Paused  bool         `json:"paused"`
	Version int64        `json:"version"`
}

// CreateGameHandler handles POST /game/create.
//
// Request payload:
//
//	{
//	  "seats": ["{uuid}", "{uuid}"],
//	  "rules": {"targetScore": 15}
//	}
//
// The requester must hold one of the seats unless they are an admin.
func CreateGameHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authenticate(r)
		if err != nil {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}

		var req createGameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request payload", http.StatusBadRequest)
			return
		}
		if req.Seats[0] != userID && req.Seats[1] != userID && !gs.isAdmin(r, userID) {
			http.Error(w, "you may only create matches you play in", http.StatusForbidden)
			return
		}
		rules, err := game.ParseRules(req.Rules, models.DefaultHouseRules())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		g, err := gs.CreateMatch(r.Context(), req.Seats, rules)
		switch {
		case errors.Is(err, ErrBadSeats):
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		case err != nil:
			gs.Logger.WithError(err).Warn("failed to create match")
			http.Error(w, "failed to create game", http.StatusBadRequest)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"game_id": g.ID,
			"rules":   g.Rules,
		})
	}
}

// GameStateHandler handles GET /game/{id}/state: the requester's redacted view.
func GameStateHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, "invalid game id", http.StatusBadRequest)
			return
		}
		userID, err := authenticate(r)
		if err != nil {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}

		g, err := gs.LoadMatch(r.Context(), gameID)
		if err != nil {
			writeLoadError(w, gs.Logger, gameID, err)
			return
		}
		state, err := g.SyncStateFor(userID)
		if errors.Is(err, game.ErrNotSeated) {
			http.Error(w, "you are not a player in this game", http.StatusForbidden)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

// ActiveGamesHandler handles GET /game/active.
func ActiveGamesHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		active := gs.GameStore.ListActive()
		out := make([]gameSummary, 0, len(active))
		for _, g := range active {
			g.Mu.Lock()
			out = append(out, gameSummary{
				ID:      g.ID,
				Seats:   [2]uuid.UUID{g.Seats[0].ID, g.Seats[1].ID},
				Scores:  g.State.Scores(),
				Hand:    g.State.Hand.Number,
				Paused:  g.Paused,
				Version: g.State.Version,
			})
			g.Mu.Unlock()
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (gs *GameServer) isAdmin(r *http.Request, userID uuid.UUID) bool {
	if gs.Users == nil {
		return false
	}
	u, err := gs.Users.GetUserByID(r.Context(), userID)
	if err != nil {
		gs.Logger.WithError(err).WithFields(logrus.Fields{"user_id": userID}).Debug("admin lookup failed")
		return false
	}
	return u.IsAdmin
}
