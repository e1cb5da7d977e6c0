// Package historian drains the match action queue into Postgres and marks
// matches abandoned when they go quiet.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/truco/internal/cache"
	"github.com/jason-s-yu/truco/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrBadRecord is returned by a Source for a queue entry that does not decode.
var ErrBadRecord = errors.New("invalid action record")

// Source yields action records. Next waits at most timeout and reports
// false when nothing arrived.
type Source interface {
	Next(ctx context.Context, timeout time.Duration) (cache.GameActionRecord, bool, error)
}

// Sink persists action records.
type Sink interface {
	WriteActions(ctx context.Context, recs []cache.GameActionRecord) error
	MarkAbandoned(ctx context.Context, matchID uuid.UUID) (bool, error)
}

// RedisSource pops records from a Redis list with BLPOP.
type RedisSource struct {
	rdb   redis.Cmdable
	queue string
}

func NewRedisSource(rdb redis.Cmdable, queue string) *RedisSource {
	return &RedisSource{rdb: rdb, queue: queue}
}

func (s *RedisSource) Next(ctx context.Context, timeout time.Duration) (cache.GameActionRecord, bool, error) {
	var rec cache.GameActionRecord
	res, err := s.rdb.BLPop(ctx, timeout, s.queue).Result()
	if errors.Is(err, redis.Nil) {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, fmt.Errorf("BLPop: %w", err)
	}
	// res[0] is the queue name and res[1] the payload.
	if len(res) < 2 {
		return rec, false, nil
	}
	if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
		return rec, false, fmt.Errorf("%w: %v", ErrBadRecord, err)
	}
	if rec.MatchID == uuid.Nil {
		return rec, false, fmt.Errorf("%w: missing match_id", ErrBadRecord)
	}
	return rec, true, nil
}

// Config tunes the service.
type Config struct {
	BatchSize       int
	FlushDelay      time.Duration
	Inactivity      time.Duration // how long until a quiet match is abandoned
	InactivityCheck time.Duration
	PopTimeout      time.Duration
}

// ConfigFromEnv reads HISTORIAN_BATCH_SIZE, HISTORIAN_FLUSH_MS and
// GAME_INACTIVITY_TIMEOUT_SEC.
func ConfigFromEnv() Config {
	return Config{
		BatchSize:       config.GetEnvInt("HISTORIAN_BATCH_SIZE", 20),
		FlushDelay:      time.Duration(config.GetEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,
		Inactivity:      time.Duration(config.GetEnvInt("GAME_INACTIVITY_TIMEOUT_SEC", 600)) * time.Second,
		InactivityCheck: time.Minute,
		PopTimeout:      3 * time.Second,
	}
}

func (c Config) normalized() Config {
	def := Config{
		BatchSize:       20,
		FlushDelay:      500 * time.Millisecond,
		Inactivity:      10 * time.Minute,
		InactivityCheck: time.Minute,
		PopTimeout:      3 * time.Second,
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.FlushDelay <= 0 {
		c.FlushDelay = def.FlushDelay
	}
	if c.Inactivity <= 0 {
		c.Inactivity = def.Inactivity
	}
	if c.InactivityCheck <= 0 {
		c.InactivityCheck = def.InactivityCheck
	}
	if c.PopTimeout <= 0 {
		c.PopTimeout = def.PopTimeout
	}
	return c
}

// Service batches records from a Source into a Sink and watches for
// abandoned matches.
type Service struct {
	source Source
	sink   Sink
	cfg    Config
	log    *logrus.Entry

	lastActivity sync.Map // map[uuid.UUID]time.Time

	batchMu sync.Mutex
	batch   []cache.GameActionRecord
	flushMu sync.Mutex // one write at a time keeps batches in order
}

func NewService(source Source, sink Sink, cfg Config, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	cfg = cfg.normalized()
	return &Service{
		source: source,
		sink:   sink,
		cfg:    cfg,
		log:    logger.WithField("service", "truco-historian"),
		batch:  make([]cache.GameActionRecord, 0, cfg.BatchSize),
	}
}

// Run consumes until ctx is cancelled, then flushes what is left.
func (s *Service) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.flushLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.inactivityLoop(ctx)
	}()

	s.log.WithFields(logrus.Fields{
		"batch_size": s.cfg.BatchSize,
		"flush":      s.cfg.FlushDelay,
		"inactivity": s.cfg.Inactivity,
	}).Info("historian started")
	s.readLoop(ctx)
	wg.Wait()

	final, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.flush(final)
	s.log.Info("historian shut down")
	return err
}

// Pending is the number of records waiting for the next flush.
func (s *Service) Pending() int {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	return len(s.batch)
}

func (s *Service) readLoop(ctx context.Context) {
	for ctx.Err() == nil {
		rec, ok, err := s.source.Next(ctx, s.cfg.PopTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, ErrBadRecord) {
				s.log.WithError(err).Warn("skipping action record")
				continue
			}
			s.log.WithError(err).Error("failed to read action queue")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if ok {
			s.add(ctx, rec)
		}
	}
}

// add queues rec and flushes when the batch is full.
func (s *Service) add(ctx context.Context, rec cache.GameActionRecord) {
	if rec.ActionType == cache.ActionTypeGameEnd {
		s.lastActivity.Delete(rec.MatchID)
	} else {
		s.lastActivity.Store(rec.MatchID, time.Now())
	}

	s.batchMu.Lock()
	s.batch = append(s.batch, rec)
	full := len(s.batch) >= s.cfg.BatchSize
	s.batchMu.Unlock()

	if full {
		s.flush(ctx)
	}
}

// flush writes the current batch. A failed batch goes back to the front of
// the queue; writes are idempotent per (match, index), so a retry is safe.
func (s *Service) flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.batchMu.Lock()
	batch := s.batch
	s.batch = make([]cache.GameActionRecord, 0, s.cfg.BatchSize)
	s.batchMu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if err := s.sink.WriteActions(ctx, batch); err != nil {
		s.batchMu.Lock()
		s.batch = append(batch, s.batch...)
		s.batchMu.Unlock()
		s.log.WithError(err).WithField("count", len(batch)).Error("failed to flush actions")
		return err
	}
	s.log.WithField("count", len(batch)).Debug("flushed actions")
	return nil
}

func (s *Service) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.FlushDelay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.flush(ctx)
		}
	}
}

// inactivityLoop periodically marks matches that have been quiet past the
// threshold as abandoned.
func (s *Service) inactivityLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.InactivityCheck)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.sweep(ctx, now)
		}
	}
}

func (s *Service) sweep(ctx context.Context, now time.Time) {
	stale := make(map[uuid.UUID]time.Time)
	s.lastActivity.Range(func(key, val interface{}) bool {
		id, ok1 := key.(uuid.UUID)
		last, ok2 := val.(time.Time)
		if ok1 && ok2 && now.Sub(last) > s.cfg.Inactivity {
			stale[id] = last
		}
		return true
	})
	if len(stale) == 0 {
		return
	}

	// the match row must exist before it can be abandoned
	if err := s.flush(ctx); err != nil {
		return
	}
	for id, last := range stale {
		log := s.log.WithField("match_id", id)
		changed, err := s.sink.MarkAbandoned(ctx, id)
		if err != nil {
			log.WithError(err).Error("failed to mark match abandoned")
			continue
		}
		// a record that arrived meanwhile keeps the match tracked
		s.lastActivity.CompareAndDelete(id, last)
		if changed {
			log.Info("marked match abandoned due to inactivity")
		}
	}
}
