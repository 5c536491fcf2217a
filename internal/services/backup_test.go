package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRun struct {
	name string
	args []string
}

func newTestRclone(fails int) (*Rclone, *[]recordedRun, *[]time.Duration) {
	r := NewRclone("gdrive", "/data/giftcode.db", nil)
	runs := &[]recordedRun{}
	sleeps := &[]time.Duration{}
	r.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		*runs = append(*runs, recordedRun{name, args})
		if len(*runs) <= fails {
			return []byte("quota exceeded\n"), errors.New("exit status 1")
		}
		return nil, nil
	}
	r.sleep = func(ctx context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}
	return r, runs, sleeps
}

func TestRcloneBackupCopiesToRemote(t *testing.T) {
	r, runs, sleeps := newTestRclone(0)

	require.NoError(t, r.Backup(context.Background()))
	require.Len(t, *runs, 1)
	assert.Equal(t, "rclone", (*runs)[0].name)
	assert.Equal(t, []string{"copy", "/data/giftcode.db", "gdrive:backup"}, (*runs)[0].args)
	assert.Empty(t, *sleeps)
}

func TestRcloneRetriesWithFixedDelay(t *testing.T) {
	r, runs, sleeps := newTestRclone(2)

	require.NoError(t, r.Sync(context.Background(), "./db/"))
	assert.Len(t, *runs, 3)
	assert.Equal(t, []string{"copy", "gdrive:backup", "./db/"}, (*runs)[2].args)
	assert.Equal(t, []time.Duration{BACKUP_RETRY_DELAY, BACKUP_RETRY_DELAY}, *sleeps)
}

func TestRcloneGivesUpAfterAttempts(t *testing.T) {
	r, runs, sleeps := newTestRclone(10)

	err := r.Backup(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Len(t, *runs, BACKUP_ATTEMPTS)
	assert.Len(t, *sleeps, BACKUP_ATTEMPTS-1)
}

func TestRcloneWithoutRemoteIsNoop(t *testing.T) {
	r := NewRclone("", "/data/giftcode.db", nil)
	r.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		t.Fatal("rclone must not run")
		return nil, nil
	}

	assert.NoError(t, r.Backup(context.Background()))
	assert.False(t, r.Enabled())
	assert.Equal(t, "ok", BackupStatus(nil))
}
