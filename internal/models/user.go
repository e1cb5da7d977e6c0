package models

import "github.com/google/uuid"

type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`

	IsEphemeral bool `json:"is_ephemeral"`
	IsAdmin     bool `json:"is_admin"`

	GamesPlayed int `json:"games_played"`
	GamesWon    int `json:"games_won"`

	// Glicko2 for 1v1
	Rating1v1 float64 `json:"rating_1v1"`
	Phi1v1    float64 `json:"phi_1v1"`
	Sigma1v1  float64 `json:"sigma_1v1"`
}
