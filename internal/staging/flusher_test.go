package staging

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingBackup struct {
	calls int
	err   error
}

func (b *countingBackup) Backup(ctx context.Context) error {
	b.calls++
	return b.err
}

func newTestBoltLog(t *testing.T) *BoltLog {
	l, err := NewBoltLog(filepath.Join(t.TempDir(), "cache"), nil)
	require.NoError(t, err)
	return l
}

func TestFlushReplaysBacksUpAndClears(t *testing.T) {
	ctx := context.Background()
	l := newTestBoltLog(t)
	_, err := l.Append(ctx, Redemption{FID: "1", Code: "A"})
	require.NoError(t, err)

	applier := newMemoryApplier()
	backup := &countingBackup{}
	require.NoError(t, NewFlusher(l, applier, backup, nil).Flush(ctx))

	assert.True(t, applier.redemptions["1/A"])
	assert.Equal(t, 1, backup.calls)
	empty, err := l.Empty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestFlushEmptyLogSkipsBackup(t *testing.T) {
	backup := &countingBackup{}
	require.NoError(t, NewFlusher(newTestBoltLog(t), newMemoryApplier(), backup, nil).Flush(context.Background()))
	assert.Zero(t, backup.calls)
}

func TestFlushKeepsLogWhenReplayFails(t *testing.T) {
	ctx := context.Background()
	l := newTestBoltLog(t)
	_, err := l.Append(ctx, Redemption{FID: "1", Code: "A"})
	require.NoError(t, err)

	applier := newMemoryApplier()
	applier.failOn = KindRedemption
	backup := &countingBackup{}
	assert.Error(t, NewFlusher(l, applier, backup, nil).Flush(ctx))
	assert.Zero(t, backup.calls)

	empty, err := l.Empty(ctx)
	require.NoError(t, err)
	assert.False(t, empty)
}

func TestFlushClearsEvenWhenBackupFails(t *testing.T) {
	ctx := context.Background()
	l := newTestBoltLog(t)
	_, err := l.Append(ctx, Deactivation{Code: "B"})
	require.NoError(t, err)

	backup := &countingBackup{err: errors.New("rclone missing")}
	require.NoError(t, NewFlusher(l, newMemoryApplier(), backup, nil).Flush(ctx))

	empty, err := l.Empty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)
}
