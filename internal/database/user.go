package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/truco/internal/models"
	"github.com/jason-s-yu/truco/internal/rating"
)

// ErrUserNotFound is returned when no user row matches.
var ErrUserNotFound = errors.New("user not found")

const userColumns = `id, username, is_ephemeral, is_admin,
	       games_played, games_won,
	       rating_1v1, phi_1v1, sigma_1v1`

// CreateUser inserts user, assigning an id and the starting rating if unset.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate user id: %w", err)
		}
		user.ID = id
	}
	if user.Rating1v1 == 0 {
		user.Rating1v1, user.Phi1v1, user.Sigma1v1 = rating.DefaultMu, rating.DefaultPhi, rating.DefaultSigma
	}

	q := `INSERT INTO users (id, username, is_ephemeral, is_admin, rating_1v1, phi_1v1, sigma_1v1)
	      VALUES ($1, $2, $3, $4, $5, $6, $7)`

	err := pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q,
			user.ID, user.Username, user.IsEphemeral, user.IsAdmin,
			user.Rating1v1, user.Phi1v1, user.Sigma1v1,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id), id)
}

// lockUser reads a user inside tx, holding the row until tx ends.
func lockUser(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.User, error) {
	return scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1 FOR UPDATE`, id), id)
}

func scanUser(row pgx.Row, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Username, &u.IsEphemeral, &u.IsAdmin,
		&u.GamesPlayed, &u.GamesWon,
		&u.Rating1v1, &u.Phi1v1, &u.Sigma1v1,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// saveUserGlicko1v1 stores the user's rating, deviation and volatility.
func saveUserGlicko1v1(ctx context.Context, tx pgx.Tx, u models.User) error {
	q := `
	UPDATE users
	SET rating_1v1=$1, phi_1v1=$2, sigma_1v1=$3
	WHERE id=$4
	`
	_, err := tx.Exec(ctx, q, u.Rating1v1, u.Phi1v1, u.Sigma1v1, u.ID)
	return err
}
