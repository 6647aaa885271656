// Package lock provides MySQL advisory locking for accesstally jobs.
package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dbsmedya/accesstally/internal/logger"
)

// ErrLockTimeout is returned when lock acquisition times out because
// another instance is holding the lock.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// Timeouts for lock acquisition in seconds.
const (
	// TimeoutImmediate returns immediately if the lock cannot be acquired.
	TimeoutImmediate = 0

	// TimeoutShort is suitable for fast-failing duplicate job detection.
	TimeoutShort = 1

	// TimeoutMedium provides a reasonable wait for transient conflicts.
	TimeoutMedium = 10

	// TimeoutInfinite waits until the lock is acquired.
	// MySQL treats negative values as infinite wait.
	TimeoutInfinite = -1
)

// AdvisoryLock is a named MySQL GET_LOCK lock. GET_LOCK belongs to the
// session that took it, so the lock pins one pooled connection from acquire
// until release.
type AdvisoryLock struct {
	db       *sql.DB
	conn     *sql.Conn
	lockName string
	logger   *logger.Logger
}

// NewAdvisoryLock creates a new advisory lock with the given name.
// The lock is not acquired until AcquireLock is called.
func NewAdvisoryLock(db *sql.DB, lockName string, log *logger.Logger) *AdvisoryLock {
	if log == nil {
		log = logger.NewNop()
	}
	return &AdvisoryLock{
		db:       db,
		lockName: lockName,
		logger:   log,
	}
}

// AcquireLock attempts to acquire the lock, waiting up to timeoutSeconds.
// It returns false without error when another session holds the lock.
//
// MySQL GET_LOCK() return values:
//   - 1: Lock was obtained successfully
//   - 0: Timeout was reached without obtaining the lock
//   - NULL: An error occurred (e.g., out of memory, thread killed)
func (a *AdvisoryLock) AcquireLock(ctx context.Context, timeoutSeconds int) (bool, error) {
	if a.conn != nil {
		return true, nil
	}

	conn, err := a.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to reserve connection for lock %q: %w", a.lockName, err)
	}

	var result sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", a.lockName, timeoutSeconds).Scan(&result); err != nil {
		conn.Close()
		return false, fmt.Errorf("failed to execute GET_LOCK: %w", err)
	}

	if !result.Valid {
		conn.Close()
		return false, fmt.Errorf("GET_LOCK returned NULL for lock %q (possible database error)", a.lockName)
	}

	switch result.Int64 {
	case 1:
		a.conn = conn
		a.logger.Debugf("Acquired advisory lock %q", a.lockName)
		return true, nil
	case 0:
		conn.Close()
		return false, nil
	default:
		conn.Close()
		return false, fmt.Errorf("unexpected GET_LOCK return value: %d", result.Int64)
	}
}

// ReleaseLock releases the lock and returns its connection to the pool.
// It returns false when the lock was not held.
//
// MySQL RELEASE_LOCK() return values:
//   - 1: Lock was released successfully
//   - 0: Lock was not established by this session
//   - NULL: Named lock did not exist
func (a *AdvisoryLock) ReleaseLock(ctx context.Context) (bool, error) {
	if a.conn == nil {
		return false, nil
	}
	conn := a.conn
	a.conn = nil
	defer conn.Close()

	var result sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", a.lockName).Scan(&result); err != nil {
		return false, fmt.Errorf("failed to execute RELEASE_LOCK: %w", err)
	}

	if !result.Valid {
		return false, fmt.Errorf("RELEASE_LOCK returned NULL for lock %q (lock did not exist)", a.lockName)
	}

	switch result.Int64 {
	case 1:
		a.logger.Debugf("Released advisory lock %q", a.lockName)
		return true, nil
	case 0:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected RELEASE_LOCK return value: %d", result.Int64)
	}
}

// IsHeld reports whether this instance holds the lock.
func (a *AdvisoryLock) IsHeld() bool {
	return a.conn != nil
}

// LockName returns the name of the advisory lock.
func (a *AdvisoryLock) LockName() string {
	return a.lockName
}

// TryAcquire attempts to acquire the lock without waiting.
func (a *AdvisoryLock) TryAcquire(ctx context.Context) (bool, error) {
	return a.AcquireLock(ctx, TimeoutImmediate)
}

// AcquireOrFail acquires the lock with TimeoutShort, returning ErrLockTimeout
// when another instance holds it.
func (a *AdvisoryLock) AcquireOrFail(ctx context.Context) error {
	acquired, err := a.AcquireLock(ctx, TimeoutShort)
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("%w: lock %q is held by another instance", ErrLockTimeout, a.lockName)
	}
	return nil
}

// GenerateJobLockName returns "accesstally:job:{jobName}" with characters
// outside [A-Za-z0-9_-] replaced. MySQL limits lock names to 64 characters.
func GenerateJobLockName(jobName string) string {
	sanitized := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, jobName)

	name := "accesstally:job:" + sanitized
	if len(name) > 64 {
		name = name[:64]
	}
	return name
}

// NewJobLock creates the advisory lock guarding catalog writes of a job.
func NewJobLock(db *sql.DB, jobName string, log *logger.Logger) *AdvisoryLock {
	return NewAdvisoryLock(db, GenerateJobLockName(jobName), log)
}

// IsJobRunning reports whether another instance holds the job's lock. The
// check is not atomic; the state can change right after it returns.
func IsJobRunning(ctx context.Context, db *sql.DB, jobName string) (bool, error) {
	lock := NewJobLock(db, jobName, nil)

	acquired, err := lock.TryAcquire(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check if job %q is running: %w", jobName, err)
	}
	if acquired {
		// The lock also goes away when the connection closes
		_, _ = lock.ReleaseLock(ctx)
		return false, nil
	}
	return true, nil
}

// WithLock runs fn while holding the lock. The lock is released even when fn
// panics.
func (a *AdvisoryLock) WithLock(ctx context.Context, timeoutSeconds int, fn func() error) error {
	acquired, err := a.AcquireLock(ctx, timeoutSeconds)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("%w: lock %q is held by another instance", ErrLockTimeout, a.lockName)
	}

	defer func() {
		// ctx may already be cancelled here
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, releaseErr := a.ReleaseLock(releaseCtx); releaseErr != nil {
			a.logger.Warnf("Failed to release lock %q: %v", a.lockName, releaseErr)
		}
	}()

	return fn()
}

// WithJobLock runs fn under the job's lock with TimeoutShort.
func WithJobLock(ctx context.Context, db *sql.DB, jobName string, log *logger.Logger, fn func() error) error {
	return NewJobLock(db, jobName, log).WithLock(ctx, TimeoutShort, fn)
}
