package services

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Rclone copies the sqlite database file to a remote and back. A Rclone with no remote does nothing.
type Rclone struct {
	remote   string
	dbFile   string
	attempts int
	delay    time.Duration
	logger   *slog.Logger

	run   runFunc
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRclone(remote string, dbFile string, logger *slog.Logger) *Rclone {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rclone{
		remote:   remote,
		dbFile:   dbFile,
		attempts: BACKUP_ATTEMPTS,
		delay:    BACKUP_RETRY_DELAY,
		logger:   logger.With("component", "rclone"),
		run:      runCommand,
		sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *Rclone) Enabled() bool {
	return r != nil && r.remote != "" && r.dbFile != ""
}

// Backup uploads the database file to <remote>:backup.
func (r *Rclone) Backup(ctx context.Context) error {
	if !r.Enabled() {
		return nil
	}
	return r.retry(ctx, "backup", "copy", r.dbFile, r.remote+":backup")
}

// Sync downloads the last backup next to the database file.
func (r *Rclone) Sync(ctx context.Context, dir string) error {
	if !r.Enabled() {
		return nil
	}
	return r.retry(ctx, "sync", "copy", r.remote+":backup", dir)
}

func (r *Rclone) retry(ctx context.Context, op string, args ...string) error {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		out, err := r.run(ctx, "rclone", args...)
		if err == nil {
			r.logger.Info(op+" done", "remote", r.remote)
			return nil
		}
		lastErr = fmt.Errorf("rclone %s: %w: %s", op, err, strings.TrimSpace(string(out)))
		r.logger.Warn(op+" failed", "attempt", attempt, "err", lastErr)

		if attempt < r.attempts {
			if err := r.sleep(ctx, r.delay); err != nil {
				return err
			}
		}
	}
	return lastErr
}

// BackupStatus is the short form reported back to API callers.
func BackupStatus(err error) string {
	if err != nil {
		return err.Error()
	}
	return "ok"
}
