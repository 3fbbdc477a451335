package firehose

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestFrameQueueFIFO(t *testing.T) {
	q := NewFrameQueue(1 << 20)
	ctx := context.Background()

	frames := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	for _, f := range frames {
		if err := q.Put(ctx, f); err != nil {
			t.Fatal(err)
		}
	}

	got, err := q.GetMany(ctx, 10, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d frames, want 3", len(got))
	}
	for i, f := range frames {
		if !bytes.Equal(got[i], f) {
			t.Errorf("frame %d = %q, want %q", i, got[i], f)
		}
	}
	if q.Len() != 0 || q.Bytes() != 0 {
		t.Errorf("queue not drained: len %d, bytes %d", q.Len(), q.Bytes())
	}
}

func TestFrameQueueGetManyBatchLimit(t *testing.T) {
	q := NewFrameQueue(1 << 20)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := q.Put(ctx, []byte{byte(i)}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := q.GetMany(ctx, 3, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("GetMany(3) returned %d frames", len(got))
	}
	if q.Len() != 2 {
		t.Errorf("queue has %d frames left, want 2", q.Len())
	}
}

func TestFrameQueueGetManyTimeout(t *testing.T) {
	q := NewFrameQueue(1 << 20)

	start := time.Now()
	got, err := q.GetMany(context.Background(), 10, 20*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected empty result on timeout, got %d frames", len(got))
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("GetMany returned before the timeout elapsed")
	}
}

func TestFrameQueueBackpressure(t *testing.T) {
	q := NewFrameQueue(8)
	ctx := context.Background()

	if err := q.Put(ctx, []byte("12345678")); err != nil {
		t.Fatal(err)
	}

	unblocked := make(chan error, 1)
	go func() {
		unblocked <- q.Put(ctx, []byte("overflow"))
	}()

	select {
	case <-unblocked:
		t.Fatal("Put should block while the queue is full")
	case <-time.After(50 * time.Millisecond):
	}

	if _, err := q.GetMany(ctx, 1, time.Second); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-unblocked:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("Put should unblock once space frees up")
	}
}

func TestFrameQueuePutCancellation(t *testing.T) {
	q := NewFrameQueue(4)
	ctx, cancel := context.WithCancel(context.Background())

	if err := q.Put(ctx, []byte("full")); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		done <- q.Put(ctx, []byte("blocked"))
	}()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Put returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled Put did not return")
	}
}

func TestFrameQueueOversizeFrameAdmitted(t *testing.T) {
	// A frame larger than the queue capacity is admitted alone instead of
	// deadlocking the producer.
	q := NewFrameQueue(4)
	if err := q.Put(context.Background(), []byte("larger than four")); err != nil {
		t.Fatal(err)
	}
	if q.Len() != 1 {
		t.Error("oversize frame should be queued")
	}
}
