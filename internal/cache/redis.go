// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/truco/internal/config"
	"github.com/redis/go-redis/v9"
)

// Rdb is the global Redis client. Connect it once at application startup.
var Rdb *redis.Client

// DefaultQueueName is the Redis list (queue) name for match action logs.
const DefaultQueueName = "truco_actions"

// ActionTypeGameEnd marks the last record of a match. The historian completes
// the match row when it sees one.
const ActionTypeGameEnd = "game_end"

// GameActionRecord holds the minimal info needed by the historian service.
type GameActionRecord struct {
	MatchID       uuid.UUID              `json:"match_id"`
	ActionIndex   int                    `json:"action_index"`
	ActorUserID   uuid.UUID              `json:"actor_user_id"`
	ActionType    string                 `json:"action_type"`
	ActionPayload map[string]interface{} `json:"action_payload"`
	Timestamp     int64                  `json:"timestamp"` // epoch millis
}

// ErrNotConnected is returned by PublishGameAction before ConnectRedis succeeds.
var ErrNotConnected = errors.New("redis is not connected")

// QueueName is the list the historian reads from.
func QueueName() string {
	return config.GetEnv("HISTORIAN_QUEUE_NAME", DefaultQueueName)
}

// NewClient builds a client from REDIS_ADDR (default "localhost:6379") and
// REDIS_DB (default 0) and pings it.
func NewClient(ctx context.Context) (*redis.Client, error) {
	addr := config.GetEnv("REDIS_ADDR", "localhost:6379")
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   config.GetEnvInt("REDIS_DB", 0),
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// ConnectRedis initializes the global Redis client.
func ConnectRedis(ctx context.Context) error {
	rdb, err := NewClient(ctx)
	if err != nil {
		return err
	}
	Rdb = rdb
	return nil
}

// PublishGameAction serializes the given record to JSON, then pushes it to the Redis queue.
func PublishGameAction(ctx context.Context, record GameActionRecord) error {
	if Rdb == nil {
		return ErrNotConnected
	}
	return PushAction(ctx, Rdb, QueueName(), record)
}

// PushAction appends record to queue on rdb.
func PushAction(ctx context.Context, rdb redis.Cmdable, queue string, record GameActionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal GameActionRecord: %w", err)
	}
	if err := rdb.RPush(ctx, queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", queue, err)
	}
	return nil
}
