// Package pacing provides a Redis-backed day-lock so that a given
// (run ID, day) is simulated at most once even if two orchestrator workers
// race to pick up the same unit of work. It follows the same
// redis.NewClient + context.Background() wiring as the teacher's
// internal/db.RedisStore, stripped of the OpenTelemetry tracing
// instrumentation that package wraps its client with.
package pacing

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DayLock coordinates exclusive ownership of one simulated day per run.
type DayLock struct {
	client *redis.Client
	ttl    time.Duration
}

// defaultLockTTL bounds how long a day lock survives if its owner crashes
// mid-day without releasing it.
const defaultLockTTL = 5 * time.Minute

// NewDayLock wraps an existing Redis client. Passing a *redis.Client built
// against miniredis in tests works identically to a real server.
func NewDayLock(client *redis.Client) *DayLock {
	return &DayLock{client: client, ttl: defaultLockTTL}
}

// WithTTL overrides the default lock TTL, returning the same *DayLock for chaining.
func (d *DayLock) WithTTL(ttl time.Duration) *DayLock {
	d.ttl = ttl
	return d
}

func lockKey(runID int64, day int) string {
	return fmt.Sprintf("simrun:lock:%d:%d", runID, day)
}

func doneKey(runID int64, day int) string {
	return fmt.Sprintf("simrun:done:%d:%d", runID, day)
}

// Acquire attempts to claim (runID, day) for the caller. It returns true if
// the lock was acquired, false if another worker already holds it or the
// day was already marked done.
func (d *DayLock) Acquire(ctx context.Context, runID int64, day int) (bool, error) {
	done, err := d.client.Exists(ctx, doneKey(runID, day)).Result()
	if err != nil {
		return false, fmt.Errorf("pacing: check done marker for run %d day %d: %w", runID, day, err)
	}
	if done > 0 {
		return false, nil
	}

	ok, err := d.client.SetNX(ctx, lockKey(runID, day), "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("pacing: acquire lock for run %d day %d: %w", runID, day, err)
	}
	return ok, nil
}

// Release drops the lock for (runID, day) without marking it done, so
// another worker may retry it (used after a failed simulation attempt).
func (d *DayLock) Release(ctx context.Context, runID int64, day int) error {
	if err := d.client.Del(ctx, lockKey(runID, day)).Err(); err != nil {
		return fmt.Errorf("pacing: release lock for run %d day %d: %w", runID, day, err)
	}
	return nil
}

// MarkDone records (runID, day) as permanently completed and releases the
// lock. Done markers never expire: a day's result is immutable once saved.
func (d *DayLock) MarkDone(ctx context.Context, runID int64, day int) error {
	pipe := d.client.TxPipeline()
	pipe.Set(ctx, doneKey(runID, day), "1", 0)
	pipe.Del(ctx, lockKey(runID, day))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pacing: mark run %d day %d done: %w", runID, day, err)
	}
	return nil
}

// IsDone reports whether (runID, day) has already been completed.
func (d *DayLock) IsDone(ctx context.Context, runID int64, day int) (bool, error) {
	n, err := d.client.Exists(ctx, doneKey(runID, day)).Result()
	if err != nil {
		return false, fmt.Errorf("pacing: check done marker for run %d day %d: %w", runID, day, err)
	}
	return n > 0, nil
}
