package staging

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"giftcode/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// memoryApplier records applied entries with the same idempotent semantics as the durable store.
type memoryApplier struct {
	mu          sync.Mutex
	calls       []Kind
	redemptions map[string]bool
	inactive    map[string]bool
	feedback    map[int64]bool
	profiles    map[string]models.PlayerProfile
	failOn      Kind
}

func newMemoryApplier() *memoryApplier {
	return &memoryApplier{
		redemptions: map[string]bool{},
		inactive:    map[string]bool{},
		feedback:    map[int64]bool{},
		profiles:    map[string]models.PlayerProfile{},
	}
}

func (a *memoryApplier) record(kind Kind) error {
	a.calls = append(a.calls, kind)
	if a.failOn == kind {
		return errors.New("storage unavailable")
	}
	return nil
}

func (a *memoryApplier) RecordRedemption(ctx context.Context, fid string, code string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.record(KindRedemption); err != nil {
		return err
	}
	a.redemptions[fid+"/"+code] = true
	return nil
}

func (a *memoryApplier) DeactivateGiftCode(ctx context.Context, code string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.record(KindDeactivation); err != nil {
		return err
	}
	a.inactive[code] = true
	return nil
}

func (a *memoryApplier) SetCaptchaFeedback(ctx context.Context, solveID int64, success bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.record(KindCaptchaFeedback); err != nil {
		return err
	}
	a.feedback[solveID] = success
	return nil
}

func (a *memoryApplier) UpdatePlayerProfile(ctx context.Context, profile *models.PlayerProfile) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.record(KindPlayerProfile); err != nil {
		return err
	}
	a.profiles[profile.FID] = *profile
	return nil
}

type LogSuite struct {
	suite.Suite
	newLog func() Log
	log    Log
	ctx    context.Context
}

func TestBoltLogSuite(t *testing.T) {
	s := new(LogSuite)
	s.newLog = func() Log {
		l, err := NewBoltLog(filepath.Join(s.T().TempDir(), "cache"), nil)
		s.Require().NoError(err)
		return l
	}
	suite.Run(t, s)
}

func TestRedisLogSuite(t *testing.T) {
	s := new(LogSuite)
	s.newLog = func() Log {
		mini := miniredis.RunT(s.T())
		client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
		s.T().Cleanup(func() { _ = client.Close() })
		return NewRedisLog(client, "test:staging")
	}
	suite.Run(t, s)
}

func (s *LogSuite) SetupTest() {
	s.ctx = context.Background()
	s.log = s.newLog()
}

func (s *LogSuite) append(entry Entry) bool {
	added, err := s.log.Append(s.ctx, entry)
	s.Require().NoError(err)
	return added
}

func (s *LogSuite) TestNewLogIsEmpty() {
	empty, err := s.log.Empty(s.ctx)
	s.Require().NoError(err)
	s.True(empty)
}

func (s *LogSuite) TestAppendDeduplicates() {
	s.True(s.append(Redemption{FID: "1", Code: "A"}))
	s.False(s.append(Redemption{FID: "1", Code: "A"}))
	s.False(s.append(&Redemption{FID: "1", Code: "A"}))
	s.True(s.append(Redemption{FID: "2", Code: "A"}))

	applier := newMemoryApplier()
	n, err := s.log.Replay(s.ctx, applier)
	s.Require().NoError(err)
	s.Equal(2, n)
	s.Len(applier.redemptions, 2)
}

func (s *LogSuite) TestReplayOrderByKind() {
	s.append(PlayerProfile{Profile: models.PlayerProfile{FID: "1", Nickname: "one", StoveLv: 30}})
	s.append(CaptchaFeedback{SolveID: 7, Success: true})
	s.append(Redemption{FID: "1", Code: "A"})
	s.append(Deactivation{Code: "B"})

	applier := newMemoryApplier()
	n, err := s.log.Replay(s.ctx, applier)
	s.Require().NoError(err)
	s.Equal(4, n)
	s.Equal([]Kind{KindDeactivation, KindRedemption, KindCaptchaFeedback, KindPlayerProfile}, applier.calls)

	s.True(applier.inactive["B"])
	s.True(applier.redemptions["1/A"])
	s.True(applier.feedback[7])
	s.Equal("one", applier.profiles["1"].Nickname)
	s.Equal(30, applier.profiles["1"].StoveLv)
}

func (s *LogSuite) TestReplayTwiceIsIdempotent() {
	s.append(Redemption{FID: "1", Code: "A"})
	s.append(Deactivation{Code: "B"})

	applier := newMemoryApplier()
	_, err := s.log.Replay(s.ctx, applier)
	s.Require().NoError(err)
	first := fmt.Sprint(applier.redemptions, applier.inactive)

	_, err = s.log.Replay(s.ctx, applier)
	s.Require().NoError(err)
	s.Equal(first, fmt.Sprint(applier.redemptions, applier.inactive))
}

func (s *LogSuite) TestClear() {
	s.append(Redemption{FID: "1", Code: "A"})

	empty, err := s.log.Empty(s.ctx)
	s.Require().NoError(err)
	s.False(empty)

	s.Require().NoError(s.log.Clear(s.ctx))

	empty, err = s.log.Empty(s.ctx)
	s.Require().NoError(err)
	s.True(empty)

	// cleared entries may be staged again
	s.True(s.append(Redemption{FID: "1", Code: "A"}))
}

func (s *LogSuite) TestReplayStopsOnApplyError() {
	s.append(Deactivation{Code: "B"})
	s.append(Redemption{FID: "1", Code: "A"})

	applier := newMemoryApplier()
	applier.failOn = KindRedemption
	n, err := s.log.Replay(s.ctx, applier)
	s.Error(err)
	s.Equal(1, n)

	empty, err := s.log.Empty(s.ctx)
	s.Require().NoError(err)
	s.False(empty)
}

func TestBoltLogSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	l, err := NewBoltLog(dir, nil)
	require.NoError(t, err)
	_, err = l.Append(ctx, Redemption{FID: "1", Code: "A"})
	require.NoError(t, err)

	reopened, err := NewBoltLog(dir, nil)
	require.NoError(t, err)
	added, err := reopened.Append(ctx, Redemption{FID: "1", Code: "A"})
	require.NoError(t, err)
	assert.False(t, added)

	applier := newMemoryApplier()
	n, err := reopened.Replay(ctx, applier)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, applier.redemptions["1/A"])
}

func TestBoltLogReplaysInAppendOrder(t *testing.T) {
	l, err := NewBoltLog(t.TempDir(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	// a later profile for the same player must win over an earlier one
	_, err = l.Append(ctx, PlayerProfile{Profile: models.PlayerProfile{FID: "1", Nickname: "zed"}})
	require.NoError(t, err)
	_, err = l.Append(ctx, PlayerProfile{Profile: models.PlayerProfile{FID: "1", Nickname: "abe"}})
	require.NoError(t, err)

	applier := newMemoryApplier()
	_, err = l.Replay(ctx, applier)
	require.NoError(t, err)
	assert.Equal(t, "abe", applier.profiles["1"].Nickname)
}

func TestBoltLogEmptyWithoutFile(t *testing.T) {
	l, err := NewBoltLog(t.TempDir(), nil)
	require.NoError(t, err)

	empty, err := l.Empty(context.Background())
	require.NoError(t, err)
	assert.True(t, empty)

	n, err := l.Replay(context.Background(), newMemoryApplier())
	require.NoError(t, err)
	assert.Zero(t, n)
}
