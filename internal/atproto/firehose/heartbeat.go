package firehose

import (
	"sync/atomic"
	"time"
)

// Heartbeat is a per-worker liveness cell. Workers call Beat after every
// unit of progress; the watchdog reads Age to detect hangs.
type Heartbeat struct {
	unixNano atomic.Int64
}

// NewHeartbeat returns a heartbeat primed to now, so a worker is not
// declared hung before it gets a chance to run.
func NewHeartbeat() *Heartbeat {
	hb := &Heartbeat{}
	hb.Beat()
	return hb
}

// Beat records forward progress.
func (h *Heartbeat) Beat() {
	h.unixNano.Store(time.Now().UnixNano())
}

// Age returns the time since the last beat.
func (h *Heartbeat) Age() time.Duration {
	return time.Duration(time.Now().UnixNano() - h.unixNano.Load())
}
