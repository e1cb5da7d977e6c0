// internal/database/schema.go
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id           UUID PRIMARY KEY,
	username     TEXT NOT NULL,
	is_ephemeral BOOLEAN NOT NULL DEFAULT TRUE,
	is_admin     BOOLEAN NOT NULL DEFAULT FALSE,
	games_played INTEGER NOT NULL DEFAULT 0,
	games_won    INTEGER NOT NULL DEFAULT 0,
	rating_1v1   DOUBLE PRECISION NOT NULL DEFAULT 1500,
	phi_1v1      DOUBLE PRECISION NOT NULL DEFAULT 350,
	sigma_1v1    DOUBLE PRECISION NOT NULL DEFAULT 0.06,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS matches (
	id         UUID PRIMARY KEY,
	seat0_id   UUID REFERENCES users(id),
	seat1_id   UUID REFERENCES users(id),
	status     TEXT NOT NULL DEFAULT 'in_progress',
	rules      JSONB,
	state      JSONB,
	version    BIGINT NOT NULL DEFAULT 0,
	actions    INTEGER NOT NULL DEFAULT 0,
	start_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	end_time   TIMESTAMPTZ,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS match_results (
	match_id UUID NOT NULL REFERENCES matches(id),
	user_id  UUID NOT NULL REFERENCES users(id),
	seat     SMALLINT NOT NULL,
	score    INTEGER NOT NULL,
	did_win  BOOLEAN NOT NULL,
	PRIMARY KEY (match_id, user_id)
);

CREATE TABLE IF NOT EXISTS ratings (
	id          BIGSERIAL PRIMARY KEY,
	user_id     UUID NOT NULL REFERENCES users(id),
	match_id    UUID NOT NULL REFERENCES matches(id),
	old_rating  DOUBLE PRECISION NOT NULL,
	new_rating  DOUBLE PRECISION NOT NULL,
	rating_mode TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS game_actions (
	id             BIGSERIAL PRIMARY KEY,
	match_id       UUID NOT NULL REFERENCES matches(id),
	action_index   INTEGER NOT NULL,
	actor_user_id  UUID,
	action_type    TEXT NOT NULL,
	action_payload JSONB,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (match_id, action_index)
);
`

// EnsureSchema creates any missing table. It never alters existing ones.
func EnsureSchema(ctx context.Context, db Conn) error {
	err := pgx.BeginTxFunc(ctx, db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, schema)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
