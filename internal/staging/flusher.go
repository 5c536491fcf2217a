package staging

import (
	"context"
	"fmt"
	"log/slog"
)

type Backup interface {
	Backup(ctx context.Context) error
}

// Flusher moves staged entries into durable storage: replay, then backup, then clear.
// The log is kept when replay fails so the next flush picks it up again.
type Flusher struct {
	log     Log
	applier Applier
	backup  Backup
	logger  *slog.Logger
}

func NewFlusher(log Log, applier Applier, backup Backup, logger *slog.Logger) *Flusher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flusher{log: log, applier: applier, backup: backup, logger: logger}
}

func (f *Flusher) Log() Log {
	return f.log
}

func (f *Flusher) Flush(ctx context.Context) error {
	empty, err := f.log.Empty(ctx)
	if err != nil {
		return fmt.Errorf("inspect staging log: %w", err)
	}
	if empty {
		return nil
	}

	n, err := f.log.Replay(ctx, f.applier)
	if err != nil {
		f.logger.Error("replay staging log", "applied", n, "err", err)
		return fmt.Errorf("replay staging log: %w", err)
	}
	f.logger.Info("replayed staging log", "applied", n)

	if f.backup != nil {
		if err := f.backup.Backup(ctx); err != nil {
			f.logger.Warn("backup after replay", "err", err)
		}
	}

	return f.log.Clear(ctx)
}
