package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/jason-s-yu/truco/internal/auth"
	"github.com/jason-s-yu/truco/internal/database"
	"github.com/jason-s-yu/truco/internal/models"
)

const maxUsernameLen = 32

type guestRequest struct {
	Username string `json:"username"`
}

type guestResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// GuestHandler handles POST /user/guest. It creates an ephemeral player and
// returns a token for it, also sent via the auth_token cookie.
//
// Request payload (optional):
//
//	{
//	  "username": "ana"
//	}
func GuestHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gs.Users == nil {
			http.Error(w, "user store unavailable", http.StatusServiceUnavailable)
			return
		}

		var req guestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid request payload", http.StatusBadRequest)
			return
		}
		name := strings.TrimSpace(req.Username)
		if name == "" {
			name = "Guest"
		}
		if len(name) > maxUsernameLen {
			http.Error(w, "username too long", http.StatusBadRequest)
			return
		}

		user := &models.User{Username: name, IsEphemeral: true}
		if err := gs.Users.CreateUser(r.Context(), user); err != nil {
			gs.Logger.WithError(err).Error("failed to create ephemeral user")
			http.Error(w, "error creating user", http.StatusInternalServerError)
			return
		}
		token, err := auth.CreateJWT(user.ID)
		if err != nil {
			gs.Logger.WithError(err).Error("failed to create ephemeral JWT")
			http.Error(w, "error creating token", http.StatusInternalServerError)
			return
		}

		setAuthCookie(w, token)
		writeJSON(w, http.StatusCreated, guestResponse{User: user, Token: token})
	}
}

// MeHandler handles GET /user/me.
func MeHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authenticate(r)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		if gs.Users == nil {
			http.Error(w, "user store unavailable", http.StatusServiceUnavailable)
			return
		}

		u, err := gs.Users.GetUserByID(r.Context(), userID)
		switch {
		case errors.Is(err, database.ErrUserNotFound):
			http.Error(w, "user not found", http.StatusNotFound)
		case err != nil:
			gs.Logger.WithError(err).Error("failed to load user")
			http.Error(w, "failed to load user", http.StatusInternalServerError)
		default:
			writeJSON(w, http.StatusOK, u)
		}
	}
}
