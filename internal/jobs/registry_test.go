package jobs

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartRejectsSecondJobWhileProcessing(t *testing.T) {
	r := NewRegistry()

	first, ok := r.Start(Options{})
	require.True(t, ok)
	assert.Equal(t, StatusProcessing, first.Status)
	assert.Zero(t, first.Progress)

	second, ok := r.Start(Options{SampleSize: 5})
	assert.False(t, ok)
	assert.Equal(t, first.ID, second.ID)

	id, busy := r.InFlight()
	assert.True(t, busy)
	assert.Equal(t, first.ID, id)
}

func TestStartAfterFinish(t *testing.T) {
	r := NewRegistry()
	first, _ := r.Start(Options{})
	require.True(t, r.Finish(first.ID, StatusCompleted, &Result{Message: "done"}))

	_, busy := r.InFlight()
	assert.False(t, busy)

	second, ok := r.Start(Options{})
	require.True(t, ok)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestConcurrentStartsCreateOneJob(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	var mu sync.Mutex
	started := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := r.Start(Options{}); ok {
				mu.Lock()
				started++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, started)
}

func TestProgressIsMonotonicAndClamped(t *testing.T) {
	r := NewRegistry()
	rec, _ := r.Start(Options{})

	r.AddProgress(rec.ID, 10)
	r.AddProgress(rec.ID, -5)
	r.SetProgress(rec.ID, 4)
	got, _ := r.Get(rec.ID)
	assert.Equal(t, 10, got.Progress)

	r.AddProgress(rec.ID, 95)
	got, _ = r.Get(rec.ID)
	assert.Equal(t, MaxProgress, got.Progress)

	r.SetProgress(rec.ID, 250)
	got, _ = r.Get(rec.ID)
	assert.Equal(t, MaxProgress, got.Progress)
}

func TestNoTransitionOutOfTerminalState(t *testing.T) {
	r := NewRegistry()
	rec, _ := r.Start(Options{})
	r.AddProgress(rec.ID, 30)

	require.True(t, r.Finish(rec.ID, StatusTimeout, &Result{Processed: 3}))
	assert.False(t, r.Finish(rec.ID, StatusCompleted, nil))
	assert.False(t, r.Finish(rec.ID, StatusProcessing, nil))

	r.AddProgress(rec.ID, 10)
	got, _ := r.Get(rec.ID)
	assert.Equal(t, StatusTimeout, got.Status)
	assert.Equal(t, 30, got.Progress)
	assert.Equal(t, 3, got.Result.Processed)
	assert.NotNil(t, got.FinishedAt)
}

func TestCompletedEndsAtFullProgress(t *testing.T) {
	r := NewRegistry()
	rec, _ := r.Start(Options{})
	r.Finish(rec.ID, StatusCompleted, nil)

	got, _ := r.Get(rec.ID)
	assert.Equal(t, MaxProgress, got.Progress)
}

func TestGetReturnsCopy(t *testing.T) {
	r := NewRegistry()
	rec, _ := r.Start(Options{})
	r.Finish(rec.ID, StatusFailed, &Result{GiftCodes: []string{"A"}})

	got, _ := r.Get(rec.ID)
	got.Result.GiftCodes[0] = "B"
	got.Progress = 99

	again, _ := r.Get(rec.ID)
	assert.Equal(t, "A", again.Result.GiftCodes[0])
	assert.Zero(t, again.Progress)
}

func TestReset(t *testing.T) {
	r := NewRegistry()
	rec, _ := r.Start(Options{})
	r.Reset()

	_, ok := r.Get(rec.ID)
	assert.False(t, ok)
	_, busy := r.InFlight()
	assert.False(t, busy)
}
