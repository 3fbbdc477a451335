package firehose

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"Astrofeed/internal/core/subscriptions"
)

// Manager supervises the firehose client and the commit processors. It owns
// the shared cursor cell and op counter, and every check interval verifies
// that every child is both alive and making forward progress. Any dead or
// hung child takes the whole pipeline down; the process exits non-zero and
// the outer supervisor restarts it.
type Manager struct {
	checkInterval time.Duration
	grace         time.Duration

	cursor  *atomic.Int64
	ops     *atomic.Int64
	subRepo subscriptions.Repository

	children []*child
}

type child struct {
	name string
	hb   *Heartbeat
	run  func(ctx context.Context) error

	done chan struct{}
	err  error // written before done is closed
}

// ManagerConfig wires the manager's shared state.
type ManagerConfig struct {
	CheckInterval time.Duration
	Grace         time.Duration // startup grace before monitoring begins
	Cursor        *atomic.Int64
	Ops           *atomic.Int64
	SubRepo       subscriptions.Repository
}

// NewManager creates a supervisor with no children registered yet.
func NewManager(cfg ManagerConfig) *Manager {
	grace := cfg.Grace
	if grace == 0 {
		grace = 5 * time.Second
	}
	return &Manager{
		checkInterval: cfg.CheckInterval,
		grace:         grace,
		cursor:        cfg.Cursor,
		ops:           cfg.Ops,
		subRepo:       cfg.SubRepo,
	}
}

// Register adds a supervised child. Must be called before Run.
func (m *Manager) Register(name string, hb *Heartbeat, run func(ctx context.Context) error) {
	m.children = append(m.children, &child{
		name: name,
		hb:   hb,
		run:  run,
		done: make(chan struct{}),
	})
}

// Run starts every child and monitors them until the context is cancelled
// (clean shutdown, returns nil) or a child dies or hangs (returns the fatal
// error after stopping everything).
func (m *Manager) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, c := range m.children {
		c := c
		go func() {
			c.err = c.run(ctx)
			close(c.done)
		}()
	}
	log.Printf("Manager started %d children, monitoring every %s", len(m.children), m.checkInterval)

	select {
	case <-ctx.Done():
		m.flushCursor()
		return nil
	case <-time.After(m.grace):
	}

	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	lastOps := m.ops.Load()
	lastCheck := time.Now()

	for {
		select {
		case <-ctx.Done():
			m.flushCursor()
			return nil

		case <-ticker.C:
			now := time.Now()
			currentOps := m.ops.Load()
			rate := float64(currentOps-lastOps) / now.Sub(lastCheck).Seconds()
			log.Printf("Pipeline: %.0f ops/sec, cursor %d, %d children", rate, m.cursor.Load(), len(m.children))
			lastOps, lastCheck = currentOps, now

			if failed := m.checkChildren(); len(failed) > 0 {
				cancel()
				m.awaitChildren()
				m.flushCursor()
				return fmt.Errorf("pipeline failure: %s", strings.Join(failed, "; "))
			}
		}
	}
}

// checkChildren returns a description of every dead or hung child.
func (m *Manager) checkChildren() []string {
	var failed []string
	for _, c := range m.children {
		select {
		case <-c.done:
			if c.err != nil && c.err != context.Canceled {
				failed = append(failed, fmt.Sprintf("%s dead: %v", c.name, c.err))
			} else {
				failed = append(failed, fmt.Sprintf("%s dead: exited", c.name))
			}
			continue
		default:
		}

		if age := c.hb.Age(); age > m.checkInterval {
			failed = append(failed, fmt.Sprintf("%s hung: no heartbeat for %s", c.name, age.Round(time.Millisecond)))
		}
	}
	return failed
}

// awaitChildren gives cancelled children a moment to unwind before the
// final cursor write.
func (m *Manager) awaitChildren() {
	deadline := time.After(5 * time.Second)
	for _, c := range m.children {
		select {
		case <-c.done:
		case <-deadline:
			return
		}
	}
}

// flushCursor persists the shared cursor cell so a restart resumes close to
// where the workers left off.
func (m *Manager) flushCursor() {
	cursor := m.cursor.Load()
	if cursor <= 0 || m.subRepo == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.subRepo.SetCursor(ctx, subscriptions.FirehoseService, cursor); err != nil {
		log.Printf("Failed to flush final cursor %d: %v", cursor, err)
	} else {
		log.Printf("Flushed final cursor %d", cursor)
	}
}
