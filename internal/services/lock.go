package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redsync/redsync/v4"
)

// RunLocker keeps batch runs of replicas sharing one storage from overlapping.
type RunLocker struct {
	rs     *redsync.Redsync
	expiry time.Duration
	logger *slog.Logger
}

func NewRunLocker(rs *redsync.Redsync, expiry time.Duration, logger *slog.Logger) *RunLocker {
	if expiry <= 0 {
		expiry = BATCH_RUN_LOCK_EXPIRY
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RunLocker{rs, expiry, logger}
}

func (l *RunLocker) Lock(ctx context.Context) (func(), error) {
	mutex := l.rs.NewMutex(LockKeyBatchRun(), redsync.WithExpiry(l.expiry), redsync.WithTries(1))
	if err := mutex.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBatchRunLock, err)
	}

	return func() {
		if _, err := mutex.Unlock(); err != nil {
			l.logger.Warn("release batch run lock", "err", err)
		}
	}, nil
}
