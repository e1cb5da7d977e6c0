// internal/cache/snapshot.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/truco/internal/config"
	"github.com/jason-s-yu/truco/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultSnapshotTTL is how long an untouched match snapshot survives.
const DefaultSnapshotTTL = 24 * time.Hour

// SnapshotStore keeps the latest state of every live match in Redis so a
// restarted server can resume it.
type SnapshotStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewSnapshotStore stores snapshots on rdb. A non-positive ttl reads
// SNAPSHOT_TTL, falling back to DefaultSnapshotTTL.
func NewSnapshotStore(rdb redis.Cmdable, ttl time.Duration) *SnapshotStore {
	if ttl <= 0 {
		ttl = config.GetEnvDuration("SNAPSHOT_TTL", DefaultSnapshotTTL)
	}
	return &SnapshotStore{rdb: rdb, ttl: ttl}
}

func snapshotKey(id uuid.UUID) string {
	return "truco:match:" + id.String()
}

// SaveSnapshot overwrites the stored record and refreshes its TTL. A record
// older than the stored one is dropped so late async writes cannot roll a
// match back.
func (s *SnapshotStore) SaveSnapshot(ctx context.Context, rec models.MatchRecord) error {
	prev, err := s.LoadSnapshot(ctx, rec.ID)
	switch {
	case err == nil && prev.State.Version > rec.State.Version:
		return nil
	case err != nil && !errors.Is(err, models.ErrMatchNotFound):
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := s.rdb.Set(ctx, snapshotKey(rec.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store snapshot for %s: %w", rec.ID, err)
	}
	return nil
}

// LoadSnapshot returns models.ErrMatchNotFound when nothing is stored for id.
func (s *SnapshotStore) LoadSnapshot(ctx context.Context, id uuid.UUID) (models.MatchRecord, error) {
	var rec models.MatchRecord
	data, err := s.rdb.Get(ctx, snapshotKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return rec, fmt.Errorf("snapshot %s: %w", id, models.ErrMatchNotFound)
	}
	if err != nil {
		return rec, fmt.Errorf("failed to load snapshot for %s: %w", id, err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("failed to decode snapshot for %s: %w", id, err)
	}
	return rec, nil
}

// DeleteSnapshot forgets a match, typically once its result is recorded.
func (s *SnapshotStore) DeleteSnapshot(ctx context.Context, id uuid.UUID) error {
	return s.rdb.Del(ctx, snapshotKey(id)).Err()
}
