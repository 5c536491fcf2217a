package services

import (
	"testing"
	"time"

	"giftcode/internal/jobs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatJobSummary(t *testing.T) {
	started := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	finished := started.Add(90 * time.Second)
	rec := jobs.Record{
		ID:         "abc",
		Status:     jobs.StatusTimeout,
		Options:    jobs.Options{Player: "<42>"},
		StartedAt:  started,
		FinishedAt: &finished,
		Result: &jobs.Result{
			Message:   "Deadline exceeded",
			Units:     10,
			Processed: 7,
			Redeemed:  5,
			Expired:   1,
			Abandoned: 1,
		},
	}

	text := FormatJobSummary(rec)
	assert.Contains(t, text, "<b>Task Timeout</b>")
	assert.Contains(t, text, "player: <code>&lt;42&gt;</code>")
	assert.Contains(t, text, "took: 1m30s")
	assert.Contains(t, text, "units: 7/10, redeemed 5, expired 1, abandoned 1")
}

func TestFormatJobSummaryWithoutResult(t *testing.T) {
	text := FormatJobSummary(jobs.Record{ID: "abc", Status: jobs.StatusProcessing})
	assert.Equal(t, "<b>Task Processing</b>\nid: <code>abc</code>\n", text)
}

func TestNewBotRequiresChat(t *testing.T) {
	_, err := NewBot("token", nil)
	require.Error(t, err)
}

func TestParseChatIDs(t *testing.T) {
	ids, err := ParseChatIDs(" 12, -100200 ,,")
	require.NoError(t, err)
	assert.Equal(t, []int64{12, -100200}, ids)

	_, err = ParseChatIDs("12,abc")
	require.Error(t, err)
}
