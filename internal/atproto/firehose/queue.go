package firehose

import (
	"context"
	"sync"
	"time"
)

// FrameQueue is a bounded multi-producer multi-consumer FIFO of raw event
// frames, sized by total bytes rather than frame count. It is the only
// coupling between the firehose client and the commit processors: a full
// queue blocks the producer, which in turn slows the websocket reads and
// pushes the backpressure onto the relay.
type FrameQueue struct {
	maxBytes int64

	mu     sync.Mutex
	frames [][]byte
	bytes  int64
}

const (
	putRetryDelay = 10 * time.Millisecond
	getRetryDelay = 5 * time.Millisecond
)

// NewFrameQueue creates a queue holding at most maxBytes of raw frames.
func NewFrameQueue(maxBytes int64) *FrameQueue {
	return &FrameQueue{maxBytes: maxBytes}
}

// Put enqueues one frame, blocking in short sleep-retry cycles while the
// queue is full. Returns the context error on cancellation. A frame larger
// than the whole queue is admitted alone rather than deadlocking.
func (q *FrameQueue) Put(ctx context.Context, frame []byte) error {
	n := int64(len(frame))
	for {
		q.mu.Lock()
		if q.bytes+n <= q.maxBytes || len(q.frames) == 0 {
			q.frames = append(q.frames, frame)
			q.bytes += n
			q.mu.Unlock()
			return nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(putRetryDelay):
		}
	}
}

// GetMany dequeues up to max frames in FIFO order, waiting at most timeout
// when the queue is empty. An empty result with nil error means the timeout
// elapsed with nothing to do.
func (q *FrameQueue) GetMany(ctx context.Context, max int, timeout time.Duration) ([][]byte, error) {
	deadline := time.Now().Add(timeout)
	for {
		q.mu.Lock()
		if len(q.frames) > 0 {
			n := max
			if n > len(q.frames) {
				n = len(q.frames)
			}
			batch := q.frames[:n:n]
			q.frames = q.frames[n:]
			for _, f := range batch {
				q.bytes -= int64(len(f))
			}
			q.mu.Unlock()
			return batch, nil
		}
		q.mu.Unlock()

		if !time.Now().Before(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(getRetryDelay):
		}
	}
}

// Len returns the number of queued frames.
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// Bytes returns the total queued frame bytes.
func (q *FrameQueue) Bytes() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.bytes
}
