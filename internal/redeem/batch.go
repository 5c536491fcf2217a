package redeem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"giftcode/internal/jobs"
	"giftcode/internal/models"
	"giftcode/internal/staging"
)

const (
	DefaultDeadline = 30 * time.Minute
	DefaultSource   = "whiteoutsurvival"
	DefaultKeyword  = "gift code"

	stepProgress = 10
	unitsBudget  = 50
	flushTimeout = 5 * time.Minute
)

var ErrJobInFlight = errors.New("a task is already in progress")

type Store interface {
	ListPlayers(ctx context.Context) ([]models.Player, error)
	AddGiftCode(ctx context.Context, code string) (bool, error)
	ListActiveGiftCodes(ctx context.Context) ([]string, error)
	ListUnredeemed(ctx context.Context) ([]models.WorkUnit, error)
	ListRedeemedCodes(ctx context.Context, fid string) ([]string, error)
}

type Discovery interface {
	FetchNewCodes(ctx context.Context, source string, keyword string) ([]string, error)
}

// Session is a game client owned by one job.
type Session interface {
	GameClient
	Close()
}

type Notifier interface {
	NotifyJob(ctx context.Context, rec jobs.Record) error
}

// Locker guards a run across processes sharing the same storage.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

type BatchDeps struct {
	Registry   *jobs.Registry
	Store      Store
	Discovery  Discovery
	Flusher    *staging.Flusher
	Solver     Solver
	Classifier *Classifier
	NewSession func() Session

	// optional
	Locker   Locker
	Notifier Notifier
	Logger   *slog.Logger
}

type BatchConfig struct {
	Workers  int
	Deadline time.Duration
	Source   string
	Keyword  string
	Executor ExecutorConfig
}

type Batch struct {
	BatchDeps
	cfg    BatchConfig
	logger *slog.Logger

	wg   sync.WaitGroup
	rand *rand.Rand
	mu   sync.Mutex

	// base is cancelled by Shutdown and reaches every running job.
	base context.Context
	stop context.CancelFunc
}

func NewBatch(deps BatchDeps, cfg BatchConfig) *Batch {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = DefaultDeadline
	}
	if cfg.Source == "" {
		cfg.Source = DefaultSource
	}
	if cfg.Keyword == "" {
		cfg.Keyword = DefaultKeyword
	}
	if deps.Classifier == nil {
		deps.Classifier = NewClassifier(nil)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base, stop := context.WithCancel(context.Background())
	return &Batch{
		BatchDeps: deps,
		cfg:       cfg,
		logger:    logger,
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
		base:      base,
		stop:      stop,
	}
}

// Start registers a job and runs it in the background. When a job is in flight its record is returned
// together with ErrJobInFlight.
func (b *Batch) Start(ctx context.Context, opts jobs.Options) (jobs.Record, error) {
	rec, ok := b.Registry.Start(opts)
	if !ok {
		return rec, ErrJobInFlight
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	unhook := context.AfterFunc(b.base, cancel)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer cancel()
		defer unhook()
		b.run(jobCtx, rec)
	}()
	return rec, nil
}

// Wait blocks until every started job has finished.
func (b *Batch) Wait() {
	b.wg.Wait()
}

// Shutdown waits for running jobs until ctx is done. Jobs still running then are cancelled and given
// flushTimeout to write their staged results. It returns ctx.Err() when jobs had to be cancelled.
func (b *Batch) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	b.logger.Warn("cancelling running task for shutdown")
	b.stop()
	timer := time.NewTimer(flushTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		b.logger.Error("task did not stop in time")
	}
	return ctx.Err()
}

func (b *Batch) run(ctx context.Context, rec jobs.Record) {
	logger := b.logger.With("task_id", rec.ID)
	status := jobs.StatusFailed
	result := &jobs.Result{}
	session := b.NewSession()
	var unlock func()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("task panic", "panic", r)
			status = jobs.StatusFailed
			result.Error = fmt.Sprint(r)
		}

		// staged results are flushed on every path
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
		if err := b.Flusher.Flush(flushCtx); err != nil {
			logger.Error("final flush", "err", err)
		}
		cancel()
		if unlock != nil {
			unlock()
		}
		session.Close()

		b.Registry.Finish(rec.ID, status, result)
		logger.Info("task finished", "status", status, "processed", result.Processed, "redeemed", result.Redeemed)

		if b.Notifier != nil {
			if final, ok := b.Registry.Get(rec.ID); ok {
				if err := b.Notifier.NotifyJob(ctx, final); err != nil {
					logger.Warn("notify", "err", err)
				}
			}
		}
	}()

	if b.Locker != nil {
		u, err := b.Locker.Lock(ctx)
		if err != nil {
			result.Error = fmt.Sprintf("acquire run lock: %v", err)
			return
		}
		unlock = u
	}

	var err error
	status, err = b.execute(ctx, rec, session, result, logger)
	if err != nil {
		status = jobs.StatusFailed
		result.Error = err.Error()
	}
}

func (b *Batch) execute(ctx context.Context, rec jobs.Record, session Session, result *jobs.Result, logger *slog.Logger) (jobs.Status, error) {
	if err := b.Flusher.Flush(ctx); err != nil {
		logger.Warn("startup flush", "err", err)
	}

	players, err := b.Store.ListPlayers(ctx)
	if err != nil {
		return jobs.StatusFailed, fmt.Errorf("list players: %w", err)
	}
	if len(players) == 0 {
		result.Message = "No subscribed players found."
		return jobs.StatusCompleted, nil
	}
	result.Players = playerFIDs(players)
	b.Registry.AddProgress(rec.ID, stepProgress)

	b.mergeNewCodes(ctx, logger)
	codes, err := b.Store.ListActiveGiftCodes(ctx)
	if err != nil {
		return jobs.StatusFailed, fmt.Errorf("list gift codes: %w", err)
	}
	result.GiftCodes = codes
	b.Registry.AddProgress(rec.ID, stepProgress)

	units, err := b.workSet(ctx, rec.Options, codes)
	if err != nil {
		return jobs.StatusFailed, err
	}
	if len(units) == 0 {
		if rec.Options.Player != "" {
			result.Message = fmt.Sprintf("No unredeemed codes found for player %s.", rec.Options.Player)
		} else {
			result.Message = "No unredeemed codes found."
		}
		return jobs.StatusCompleted, nil
	}
	result.Units = len(units)
	b.Registry.AddProgress(rec.ID, stepProgress)

	runCtx, cancel := context.WithTimeout(ctx, b.cfg.Deadline)
	defer cancel()

	executor := NewExecutor(session, b.Solver, b.Classifier, b.Flusher.Log(), b.cfg.Executor, logger)
	pool := NewPool(executor, b.cfg.Workers, unitsBudget, logger)
	summary := pool.Run(runCtx, units, func(delta int) {
		b.Registry.AddProgress(rec.ID, delta)
	})

	result.Processed = summary.Processed
	result.Redeemed = summary.Redeemed
	result.Expired = summary.Expired
	result.Abandoned = summary.Abandoned

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && !summary.Complete() {
		result.Message = fmt.Sprintf("Deadline of %s exceeded after %d of %d units.", b.cfg.Deadline, summary.Processed, summary.Units)
		return jobs.StatusTimeout, nil
	}
	if ctx.Err() != nil && !summary.Complete() {
		result.Message = fmt.Sprintf("Interrupted after %d of %d units.", summary.Processed-summary.Cancelled, summary.Units)
		return jobs.StatusFailed, fmt.Errorf("task interrupted: %w", ctx.Err())
	}
	if summary.Err != nil {
		return jobs.StatusFailed, summary.Err
	}

	if codes, err := b.Store.ListActiveGiftCodes(ctx); err == nil {
		result.GiftCodes = codes
	}
	result.Message = fmt.Sprintf("Processed %d units: %d redeemed, %d expired, %d abandoned.",
		summary.Processed, summary.Redeemed, summary.Expired, summary.Abandoned)
	return jobs.StatusCompleted, nil
}

// mergeNewCodes stores freshly discovered codes. Discovery is best effort.
func (b *Batch) mergeNewCodes(ctx context.Context, logger *slog.Logger) {
	if b.Discovery == nil {
		return
	}
	codes, err := b.Discovery.FetchNewCodes(ctx, b.cfg.Source, b.cfg.Keyword)
	if err != nil {
		logger.Warn("discover gift codes", "err", err)
		return
	}
	for _, code := range codes {
		added, err := b.Store.AddGiftCode(ctx, code)
		if err != nil {
			logger.Warn("add gift code", "code", code, "err", err)
			continue
		}
		if added {
			logger.Info("new gift code", "code", code)
		}
	}
}

func (b *Batch) workSet(ctx context.Context, opts jobs.Options, codes []string) ([]models.WorkUnit, error) {
	var units []models.WorkUnit
	if opts.Player != "" {
		redeemed, err := b.Store.ListRedeemedCodes(ctx, opts.Player)
		if err != nil {
			return nil, fmt.Errorf("list redeemed codes: %w", err)
		}
		skip := make(map[string]bool, len(redeemed))
		for _, code := range redeemed {
			skip[code] = true
		}
		for _, code := range codes {
			if !skip[code] {
				units = append(units, models.WorkUnit{FID: opts.Player, Code: code})
			}
		}
	} else {
		var err error
		units, err = b.Store.ListUnredeemed(ctx)
		if err != nil {
			return nil, fmt.Errorf("list unredeemed: %w", err)
		}
	}

	if opts.SampleSize > 0 && opts.SampleSize < len(units) {
		units = b.sample(units, opts.SampleSize)
	}
	return units, nil
}

// sample picks n units at random and keeps them in their original order.
func (b *Batch) sample(units []models.WorkUnit, n int) []models.WorkUnit {
	b.mu.Lock()
	idx := b.rand.Perm(len(units))[:n]
	b.mu.Unlock()

	picked := make([]bool, len(units))
	for _, i := range idx {
		picked[i] = true
	}
	out := make([]models.WorkUnit, 0, n)
	for i, u := range units {
		if picked[i] {
			out = append(out, u)
		}
	}
	return out
}

func playerFIDs(players []models.Player) []string {
	fids := make([]string, len(players))
	for i, p := range players {
		fids[i] = p.FID
	}
	return fids
}
