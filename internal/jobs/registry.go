// Package jobs tracks batch redemption jobs. At most one job is Processing at a time.
package jobs

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusProcessing Status = "Processing"
	StatusCompleted  Status = "Completed"
	StatusFailed     Status = "Failed"
	StatusTimeout    Status = "Timeout"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusTimeout
}

const MaxProgress = 100

// Result is the payload attached to a job, kept even when the job fails or times out.
type Result struct {
	Message   string   `json:"message,omitempty"`
	Error     string   `json:"error,omitempty"`
	GiftCodes []string `json:"giftcodes,omitempty"`
	Players   []string `json:"players,omitempty"`
	Units     int      `json:"units"`
	Processed int      `json:"processed"`
	Redeemed  int      `json:"redeemed"`
	Expired   int      `json:"expired"`
	Abandoned int      `json:"abandoned"`
}

type Options struct {
	// Player limits the job to one player.
	Player string `json:"player,omitempty"`
	// SampleSize samples the work set down to this many units, 0 means all.
	SampleSize int `json:"sample_size,omitempty"`
}

// Record is served as is by the status query. The result fields sit next to status and progress.
type Record struct {
	ID         string     `json:"task_id"`
	Status     Status     `json:"status"`
	Progress   int        `json:"progress"`
	Options    Options    `json:"options"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	*Result
}

func (r *Record) clone() Record {
	c := *r
	if r.Result != nil {
		res := *r.Result
		res.GiftCodes = append([]string(nil), r.Result.GiftCodes...)
		res.Players = append([]string(nil), r.Result.Players...)
		c.Result = &res
	}
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		c.FinishedAt = &t
	}
	return c
}

type Registry struct {
	mu      sync.Mutex
	records map[string]*Record
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{records: map[string]*Record{}, now: time.Now}
}

// Start creates a Processing record. When a job is already in flight its record is returned with false.
func (r *Registry) Start(opts Options) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing := r.inFlight(); existing != nil {
		return existing.clone(), false
	}

	rec := &Record{
		ID:        uuid.NewString(),
		Status:    StatusProcessing,
		Options:   opts,
		StartedAt: r.now(),
	}
	r.records[rec.ID] = rec
	return rec.clone(), true
}

func (r *Registry) inFlight() *Record {
	for _, rec := range r.records {
		if rec.Status == StatusProcessing {
			return rec
		}
	}
	return nil
}

func (r *Registry) Get(id string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

func (r *Registry) InFlight() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec := r.inFlight(); rec != nil {
		return rec.ID, true
	}
	return "", false
}

// AddProgress adds delta to a Processing job, clamped to MaxProgress.
func (r *Registry) AddProgress(id string, delta int) {
	if delta <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.records[id]; ok && rec.Status == StatusProcessing {
		rec.Progress = clamp(rec.Progress + delta)
	}
}

// SetProgress raises the progress of a Processing job. Lower values are ignored.
func (r *Registry) SetProgress(id string, progress int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.records[id]; ok && rec.Status == StatusProcessing {
		if p := clamp(progress); p > rec.Progress {
			rec.Progress = p
		}
	}
}

// Finish moves a Processing job to a terminal status. Completed jobs end at MaxProgress.
// It reports false when the job is unknown or already finished.
func (r *Registry) Finish(id string, status Status, result *Result) bool {
	if !status.Terminal() {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok || rec.Status.Terminal() {
		return false
	}
	rec.Status = status
	rec.Result = result
	if status == StatusCompleted {
		rec.Progress = MaxProgress
	}
	now := r.now()
	rec.FinishedAt = &now
	return true
}

// Reset drops every record, including one still in flight.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = map[string]*Record{}
}

func clamp(p int) int {
	if p < 0 {
		return 0
	}
	if p > MaxProgress {
		return MaxProgress
	}
	return p
}
