// internal/database/actions.go
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/truco/internal/cache"
)

// WriteActions persists a batch of action records in a single transaction.
func (s *Store) WriteActions(ctx context.Context, recs []cache.GameActionRecord) error {
	return pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range recs {
			if err := insertGameActionTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insertGameActionTx: %w", err)
			}
		}
		return nil
	})
}

// insertGameActionTx inserts a single action record into the game_actions table and
// upserts the match row if necessary. A game_end record completes the match.
func insertGameActionTx(ctx context.Context, tx pgx.Tx, rec cache.GameActionRecord) error {
	upsertMatchQ := `
		INSERT INTO matches (id, status, start_time)
		VALUES ($1, 'in_progress', NOW())
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, upsertMatchQ, rec.MatchID); err != nil {
		return err
	}

	payload, err := json.Marshal(rec.ActionPayload)
	if err != nil {
		return err
	}
	var actor any
	if rec.ActorUserID != uuid.Nil {
		actor = rec.ActorUserID
	}
	actionInsertQ := `
		INSERT INTO game_actions (
			match_id, action_index, actor_user_id, action_type, action_payload
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (match_id, action_index) DO NOTHING
	`
	if _, err := tx.Exec(ctx, actionInsertQ,
		rec.MatchID, rec.ActionIndex, actor, rec.ActionType, payload,
	); err != nil {
		return err
	}

	if rec.ActionType == cache.ActionTypeGameEnd {
		finalizeQ := `
			UPDATE matches
			SET status = 'completed', end_time = NOW()
			WHERE id = $1 AND status = 'in_progress'
		`
		if _, err := tx.Exec(ctx, finalizeQ, rec.MatchID); err != nil {
			return err
		}
	}
	return nil
}

// MarkAbandoned marks a match abandoned if it was still in progress. It
// reports whether a row changed.
func (s *Store) MarkAbandoned(ctx context.Context, matchID uuid.UUID) (bool, error) {
	q := `
		UPDATE matches
		SET status = 'abandoned', end_time = NOW()
		WHERE id = $1 AND status = 'in_progress'
	`
	tag, err := s.db.Exec(ctx, q, matchID)
	if err != nil {
		return false, fmt.Errorf("failed to mark match %s abandoned: %w", matchID, err)
	}
	return tag.RowsAffected() > 0, nil
}
