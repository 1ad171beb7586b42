// Package distlock guards job runs against overlap across processes, e.g. a
// cron-triggered send colliding with a manual trigger.
package distlock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/kitsync/internal/pkg/logger"
)

// ErrLocked is returned by Run when another process holds the lock.
var ErrLocked = errors.New("distlock: lock is held by another run")

// DistLock is the interface for distributed locking.
// Implementations must be safe for use from a single goroutine;
// concurrent use across goroutines requires separate lock instances.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

var localLocks sync.Map // key -> *LocalLock

// NewLock creates a distributed lock using the best available backend.
// Redis is preferred, then PostgreSQL advisory locks. With neither, the lock
// only guards the current process: every call with the same key shares one
// LocalLock.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	switch {
	case redisClient != nil:
		return NewRedisLock(redisClient, key, ttl)
	case db != nil:
		return NewPGAdvisoryLock(db, key)
	}
	l, _ := localLocks.LoadOrStore(key, NewLocalLock())
	return l.(*LocalLock)
}

// extender is a lock that expires unless it is refreshed.
type extender interface {
	Extend(ctx context.Context, ttl time.Duration) error
	TTL() time.Duration
}

// Run acquires lock, calls fn and releases the lock. It returns ErrLocked
// without calling fn when the lock is already held. A lock with a TTL is
// extended every third of its TTL while fn runs; if ownership is lost, fn's
// context is cancelled with ErrNotOwner as the cause.
func Run(ctx context.Context, lock DistLock, fn func(context.Context) error) error {
	ok, err := lock.Acquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLocked
	}
	defer func() {
		// Release with a fresh context so a cancelled run still unlocks.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = lock.Release(releaseCtx)
	}()

	ext, ok := lock.(extender)
	if !ok || ext.TTL() <= 0 {
		return fn(ctx)
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		heartbeat(runCtx, ext, done, cancel)
	}()
	defer func() {
		close(done)
		<-stopped
		cancel(nil)
	}()
	return fn(runCtx)
}

func heartbeat(ctx context.Context, ext extender, done <-chan struct{}, cancel context.CancelCauseFunc) {
	ttl := ext.TTL()
	ticker := time.NewTicker(ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := ext.Extend(ctx, ttl)
			switch {
			case errors.Is(err, ErrNotOwner):
				logger.Error("lost job lock, stopping run", "error", err)
				cancel(ErrNotOwner)
				return
			case err != nil:
				// Transient; the next tick tries again before the TTL runs out.
				logger.Warn("failed to extend job lock", "error", err)
			}
		}
	}
}

// =============================================================================
// PostgreSQL Advisory Lock
// =============================================================================
// pg_try_advisory_lock is session-scoped, so the lock pins one connection from
// the pool between Acquire and Release. A dropped connection releases the lock.

// PGAdvisoryLock implements DistLock using PostgreSQL advisory locks.
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64
	conn   *sql.Conn
}

// NewPGAdvisoryLock creates a PG advisory lock with a deterministic lock ID
// derived from the given key string.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{
		db:     db,
		lockID: int64(h.Sum64()),
	}
}

// Acquire tries to acquire the advisory lock without blocking.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	if l.conn != nil {
		return false, fmt.Errorf("advisory lock %d already acquired by this instance", l.lockID)
	}
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("reserving connection for advisory lock: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, fmt.Errorf("acquiring advisory lock %d: %w", l.lockID, err)
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Release releases the advisory lock and returns its connection to the pool.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	conn := l.conn
	l.conn = nil
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID); err != nil {
		return fmt.Errorf("releasing advisory lock %d: %w", l.lockID, err)
	}
	return nil
}

// =============================================================================
// Local lock
// =============================================================================

// LocalLock is an in-process lock for single-host deployments.
type LocalLock struct {
	ch chan struct{}
}

// NewLocalLock creates an unlocked LocalLock.
func NewLocalLock() *LocalLock {
	return &LocalLock{ch: make(chan struct{}, 1)}
}

// Acquire implements DistLock.
func (l *LocalLock) Acquire(context.Context) (bool, error) {
	select {
	case l.ch <- struct{}{}:
		return true, nil
	default:
		return false, nil
	}
}

// Release implements DistLock.
func (l *LocalLock) Release(context.Context) error {
	select {
	case <-l.ch:
	default:
	}
	return nil
}
