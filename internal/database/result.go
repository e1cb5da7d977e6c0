// internal/database/result.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/truco/internal/rating"
)

// RatingMode1v1 tags rating history rows for two-seat matches.
const RatingMode1v1 = "1v1"

// RecordMatchResult persists the final outcome of a match in one transaction:
// the match row is completed, each seat gets a match_results row, player
// statistics are bumped, and both 1v1 ratings move. winner is a seat index;
// anything else records the result without touching ratings.
func (s *Store) RecordMatchResult(ctx context.Context, matchID uuid.UUID, seats [2]uuid.UUID, scores [2]int, winner int) error {
	err := pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		upsertMatch := `
			INSERT INTO matches (id, seat0_id, seat1_id, status, end_time)
			VALUES ($1, $2, $3, 'completed', NOW())
			ON CONFLICT (id) DO UPDATE SET status = 'completed', end_time = NOW()
		`
		if _, err := tx.Exec(ctx, upsertMatch, matchID, seats[0], seats[1]); err != nil {
			return fmt.Errorf("complete match: %w", err)
		}

		for seat, userID := range seats {
			won := seat == winner
			q := `
				INSERT INTO match_results (match_id, user_id, seat, score, did_win)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (match_id, user_id)
				DO UPDATE SET score = $4, did_win = $5
			`
			if _, err := tx.Exec(ctx, q, matchID, userID, seat, scores[seat], won); err != nil {
				return fmt.Errorf("insert result for seat %d: %w", seat, err)
			}

			stats := `
				UPDATE users
				SET games_played = games_played + 1,
				    games_won = games_won + CASE WHEN $2 THEN 1 ELSE 0 END
				WHERE id = $1
			`
			if _, err := tx.Exec(ctx, stats, userID, won); err != nil {
				return fmt.Errorf("update stats for seat %d: %w", seat, err)
			}
		}

		if winner != 0 && winner != 1 {
			return nil
		}
		return rateMatch(ctx, tx, matchID, seats[winner], seats[1-winner])
	})
	if err != nil {
		return fmt.Errorf("failed to record result of %s: %w", matchID, err)
	}
	return nil
}

// rateMatch applies a 1v1 Glicko-2 update and logs both rating changes.
func rateMatch(ctx context.Context, tx pgx.Tx, matchID, winnerID, loserID uuid.UUID) error {
	w, err := lockUser(ctx, tx, winnerID)
	if err != nil {
		return err
	}
	l, err := lockUser(ctx, tx, loserID)
	if err != nil {
		return err
	}

	newW, newL := rating.Update1v1(*w, *l)
	if err := saveUserGlicko1v1(ctx, tx, newW); err != nil {
		return err
	}
	if err := saveUserGlicko1v1(ctx, tx, newL); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO ratings (user_id, match_id, old_rating, new_rating, rating_mode)
		VALUES ($1, $2, $3, $4, $5), ($6, $7, $8, $9, $10)
	`,
		winnerID, matchID, w.Rating1v1, newW.Rating1v1, RatingMode1v1,
		loserID, matchID, l.Rating1v1, newL.Rating1v1, RatingMode1v1,
	)
	return err
}
