package services

import "sync/atomic"

// Readiness flips once start up work (default player registration) is done.
type Readiness struct {
	ready atomic.Bool
}

func (r *Readiness) SetReady() {
	r.ready.Store(true)
}

func (r *Readiness) Ready() bool {
	return r.ready.Load()
}
