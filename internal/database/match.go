// internal/database/match.go
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/truco/internal/models"
)

// Match statuses stored in matches.status.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusAbandoned  = "abandoned"
)

// SaveSnapshot upserts the match row with its latest state. A snapshot
// older than the stored version is ignored.
func (s *Store) SaveSnapshot(ctx context.Context, rec models.MatchRecord) error {
	rules, err := json.Marshal(rec.Rules)
	if err != nil {
		return fmt.Errorf("failed to marshal rules: %w", err)
	}
	state, err := json.Marshal(rec.State)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	status := StatusInProgress
	if rec.State.Finished() {
		status = StatusCompleted
	}

	q := `
		INSERT INTO matches (id, seat0_id, seat1_id, status, rules, state, version, actions, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET seat0_id = EXCLUDED.seat0_id, seat1_id = EXCLUDED.seat1_id,
		    status = EXCLUDED.status, rules = EXCLUDED.rules, state = EXCLUDED.state,
		    version = EXCLUDED.version, actions = EXCLUDED.actions, updated_at = EXCLUDED.updated_at
		WHERE matches.version <= EXCLUDED.version
	`
	_, err = s.db.Exec(ctx, q,
		rec.ID, rec.Seats[0], rec.Seats[1], status, rules, state, rec.State.Version, rec.Actions, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot for %s: %w", rec.ID, err)
	}
	return nil
}

// LoadSnapshot returns models.ErrMatchNotFound when no snapshot was saved for id.
func (s *Store) LoadSnapshot(ctx context.Context, id uuid.UUID) (models.MatchRecord, error) {
	rec := models.MatchRecord{ID: id}
	var rules, state []byte
	q := `
		SELECT seat0_id, seat1_id, rules, state, actions, updated_at
		FROM matches
		WHERE id = $1 AND state IS NOT NULL
	`
	err := s.db.QueryRow(ctx, q, id).Scan(&rec.Seats[0], &rec.Seats[1], &rules, &state, &rec.Actions, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return rec, fmt.Errorf("match %s: %w", id, models.ErrMatchNotFound)
	}
	if err != nil {
		return rec, fmt.Errorf("failed to load snapshot for %s: %w", id, err)
	}
	if err := json.Unmarshal(rules, &rec.Rules); err != nil {
		return rec, fmt.Errorf("failed to decode rules for %s: %w", id, err)
	}
	if err := json.Unmarshal(state, &rec.State); err != nil {
		return rec, fmt.Errorf("failed to decode state for %s: %w", id, err)
	}
	return rec, nil
}
