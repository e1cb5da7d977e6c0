package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/truco/internal/truco"
)

// MatchRecord is everything needed to bring a match back after a restart.
type MatchRecord struct {
	ID        uuid.UUID        `json:"id"`
	Seats     [2]uuid.UUID     `json:"seats"` // user id per seat
	Rules     HouseRules       `json:"rules"`
	State     truco.MatchState `json:"state"`
	Actions   int              `json:"action_index"` // last action index handed to the historian
	UpdatedAt time.Time        `json:"updated_at"`
}

// ErrMatchNotFound is returned by snapshot stores that hold nothing for an id.
var ErrMatchNotFound = errors.New("match not found")
