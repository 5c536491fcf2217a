package redeem

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"giftcode/internal/jobs"
	"giftcode/internal/staging"

	"github.com/stretchr/testify/suite"
)

type recordingNotifier struct {
	mu      sync.Mutex
	records []jobs.Record
}

func (n *recordingNotifier) NotifyJob(ctx context.Context, rec jobs.Record) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.records = append(n.records, rec)
	return nil
}

type BatchSuite struct {
	suite.Suite
	ctx       context.Context
	registry  *jobs.Registry
	store     *fakeStore
	game      *fakeGame
	log       *staging.BoltLog
	discovery *fakeDiscovery
	notifier  *recordingNotifier
	deadline  time.Duration
	executor  ExecutorConfig
}

func TestBatchSuite(t *testing.T) {
	suite.Run(t, new(BatchSuite))
}

func (s *BatchSuite) SetupTest() {
	s.ctx = context.Background()
	s.registry = jobs.NewRegistry()
	s.store = newFakeStore([]string{"1", "2"}, []string{"A"})
	s.game = newFakeGame()
	s.discovery = &fakeDiscovery{}
	s.notifier = &recordingNotifier{}
	s.deadline = time.Minute
	s.executor = ExecutorConfig{}

	log, err := staging.NewBoltLog(filepath.Join(s.T().TempDir(), "cache"), nil)
	s.Require().NoError(err)
	s.log = log
}

func (s *BatchSuite) batch() *Batch {
	return NewBatch(BatchDeps{
		Registry:   s.registry,
		Store:      s.store,
		Discovery:  s.discovery,
		Flusher:    staging.NewFlusher(s.log, s.store, nil, nil),
		Solver:     &fakeSolver{},
		NewSession: func() Session { return s.game },
		Notifier:   s.notifier,
	}, BatchConfig{Workers: 3, Deadline: s.deadline, Executor: s.executor})
}

func (s *BatchSuite) runJob(b *Batch, opts jobs.Options) jobs.Record {
	rec, err := b.Start(s.ctx, opts)
	s.Require().NoError(err)
	s.Equal(jobs.StatusProcessing, rec.Status)
	s.Zero(rec.Progress)

	b.Wait()
	final, ok := s.registry.Get(rec.ID)
	s.Require().True(ok)
	return final
}

func (s *BatchSuite) logEmpty() bool {
	empty, err := s.log.Empty(s.ctx)
	s.Require().NoError(err)
	return empty
}

func (s *BatchSuite) TestCompletedRunFlushesRedemptions() {
	s.game.respond("A", 20000)

	rec := s.runJob(s.batch(), jobs.Options{})
	s.Equal(jobs.StatusCompleted, rec.Status)
	s.Equal(100, rec.Progress)
	s.Equal(2, rec.Result.Redeemed)
	s.Equal([]string{"1", "2"}, rec.Result.Players)
	s.Equal([]string{"A"}, rec.Result.GiftCodes)

	s.True(s.store.redeemed("1", "A"))
	s.True(s.store.redeemed("2", "A"))
	s.True(s.logEmpty())
	s.Equal(1, s.game.closed)

	s.Require().Len(s.notifier.records, 1)
	s.Equal(jobs.StatusCompleted, s.notifier.records[0].Status)
}

func (s *BatchSuite) TestRedeemedPairsAreNotRetried() {
	s.game.respond("A", 20000)
	b := s.batch()
	s.runJob(b, jobs.Options{})
	s.Equal(2, s.game.redeemCalls("A"))

	rec := s.runJob(b, jobs.Options{})
	s.Equal(jobs.StatusCompleted, rec.Status)
	s.Equal("No unredeemed codes found.", rec.Result.Message)
	s.Equal(2, s.game.redeemCalls("A"))
}

func (s *BatchSuite) TestExpiredCodeIsNeverEnqueuedAgain() {
	s.store = newFakeStore([]string{"1"}, []string{"X"})
	s.game.respond("X", 40007)
	b := s.batch()

	rec := s.runJob(b, jobs.Options{})
	s.Equal(jobs.StatusCompleted, rec.Status)
	s.Equal(1, rec.Result.Expired)
	s.True(s.store.isInactive("X"))
	s.False(s.store.redeemed("1", "X"))

	s.store.players = append(s.store.players, "2")
	rec = s.runJob(b, jobs.Options{})
	s.Equal(jobs.StatusCompleted, rec.Status)
	s.Zero(rec.Result.Units)
	s.Equal(1, s.game.redeemCalls("X"))
}

func (s *BatchSuite) TestNoPlayers() {
	s.store = newFakeStore(nil, []string{"A"})

	rec := s.runJob(s.batch(), jobs.Options{})
	s.Equal(jobs.StatusCompleted, rec.Status)
	s.Equal(100, rec.Progress)
	s.Equal("No subscribed players found.", rec.Result.Message)
	s.Zero(s.game.logins)
}

func (s *BatchSuite) TestStartupFlushAppliesLeftovers() {
	s.store = newFakeStore(nil, []string{"A"})
	_, err := s.log.Append(s.ctx, staging.Redemption{FID: "7", Code: "A"})
	s.Require().NoError(err)

	s.runJob(s.batch(), jobs.Options{})
	s.True(s.store.redeemed("7", "A"))
	s.True(s.logEmpty())
}

func (s *BatchSuite) TestSecondStartIsRejectedWhileInFlight() {
	s.deadline = 100 * time.Millisecond
	s.game.blockOn["A"] = true
	b := s.batch()

	first, err := b.Start(s.ctx, jobs.Options{})
	s.Require().NoError(err)

	second, err := b.Start(s.ctx, jobs.Options{SampleSize: 1})
	s.ErrorIs(err, ErrJobInFlight)
	s.Equal(first.ID, second.ID)

	b.Wait()
	rec, _ := s.registry.Get(first.ID)
	s.Equal(jobs.StatusTimeout, rec.Status)
}

func (s *BatchSuite) TestDeadlineFlushesStagedRedemptions() {
	s.deadline = 150 * time.Millisecond
	s.store = newFakeStore([]string{"1", "2"}, []string{"A", "SLOW"})
	s.game.respond("A", 20000)
	s.game.blockOn["SLOW"] = true

	rec := s.runJob(s.batch(), jobs.Options{})
	s.Equal(jobs.StatusTimeout, rec.Status)
	s.GreaterOrEqual(rec.Progress, 30)
	s.Less(rec.Progress, 100)
	s.Equal(2, rec.Result.Redeemed)
	s.Contains(rec.Result.Message, "Deadline")

	s.True(s.store.redeemed("1", "A"))
	s.True(s.store.redeemed("2", "A"))
	s.False(s.store.redeemed("1", "SLOW"))
	s.True(s.logEmpty())
}

func (s *BatchSuite) TestDeadlineDuringLastPaceStillCompletes() {
	s.deadline = 150 * time.Millisecond
	s.executor = ExecutorConfig{UnitDelay: 5 * time.Second}
	s.game.respond("A", 20000)

	rec := s.runJob(s.batch(), jobs.Options{})
	s.Equal(jobs.StatusCompleted, rec.Status)
	s.Equal(100, rec.Progress)
	s.Equal(2, rec.Result.Redeemed)
	s.True(s.store.redeemed("1", "A"))
	s.True(s.store.redeemed("2", "A"))
}

func (s *BatchSuite) TestShutdownWaitsForRunningTask() {
	s.game.respond("A", 20000)
	b := s.batch()

	rec, err := b.Start(s.ctx, jobs.Options{})
	s.Require().NoError(err)

	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	s.Require().NoError(b.Shutdown(ctx))

	final, _ := s.registry.Get(rec.ID)
	s.Equal(jobs.StatusCompleted, final.Status)
}

func (s *BatchSuite) TestShutdownCancelsAndFlushes() {
	s.store = newFakeStore([]string{"1", "2"}, []string{"A", "SLOW"})
	s.game.respond("A", 20000)
	s.game.blockOn["SLOW"] = true
	b := s.batch()

	rec, err := b.Start(s.ctx, jobs.Options{})
	s.Require().NoError(err)
	s.Eventually(func() bool { return s.game.redeemCalls("SLOW") > 0 }, 5*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(s.ctx, 50*time.Millisecond)
	defer cancel()
	s.ErrorIs(b.Shutdown(ctx), context.DeadlineExceeded)

	final, _ := s.registry.Get(rec.ID)
	s.Equal(jobs.StatusFailed, final.Status)
	s.Contains(final.Result.Error, "interrupted")
	s.Equal(2, final.Result.Redeemed)
	s.True(s.store.redeemed("1", "A"))
	s.True(s.store.redeemed("2", "A"))
	s.True(s.logEmpty())
}

func (s *BatchSuite) TestPlayerScopedJobSkipsRedeemedCodes() {
	s.store = newFakeStore([]string{"1"}, []string{"A", "B"})
	s.Require().NoError(s.store.RecordRedemption(s.ctx, "9", "A"))
	s.game.respond("B", 20000)

	rec := s.runJob(s.batch(), jobs.Options{Player: "9"})
	s.Equal(jobs.StatusCompleted, rec.Status)
	s.Equal(1, rec.Result.Units)
	s.Zero(s.game.redeemCalls("A"))
	s.True(s.store.redeemed("9", "B"))
	s.False(s.store.redeemed("1", "B"))
}

func (s *BatchSuite) TestDiscoveredCodesAreMerged() {
	s.store = newFakeStore([]string{"1"}, nil)
	s.discovery.codes = []string{"NEW"}
	s.game.respond("NEW", 20000)

	rec := s.runJob(s.batch(), jobs.Options{})
	s.Equal(jobs.StatusCompleted, rec.Status)
	s.True(s.store.redeemed("1", "NEW"))
}

func (s *BatchSuite) TestSampleSize() {
	s.store = newFakeStore([]string{"1", "2", "3", "4", "5"}, []string{"A"})
	s.game.respond("A", 20000)

	rec := s.runJob(s.batch(), jobs.Options{SampleSize: 2})
	s.Equal(2, rec.Result.Units)
	s.Equal(2, s.game.redeemCalls("A"))
}

func (s *BatchSuite) TestLoginFailureDoesNotFailJob() {
	s.game.loginFails["1"] = true
	s.game.respond("A", 20000)

	rec := s.runJob(s.batch(), jobs.Options{})
	s.Equal(jobs.StatusCompleted, rec.Status)
	s.Equal(1, rec.Result.Abandoned)
	s.Equal(1, rec.Result.Redeemed)
	s.False(s.store.redeemed("1", "A"))
}
