// internal/session/coordinator.go
package session

import (
	"context"
	"sync"
	"time"

	"github.com/apex/log"
)

// Coordinator owns the single in-flight attempt. Starting while one is
// running is refused, not queued; each attempt is a fresh instance.
type Coordinator struct {
	analyzer Analyzer
	uploader Uploader
	putter   Putter
	tick     time.Duration

	mu      sync.Mutex
	current *Attempt
}

// NewCoordinator wires the attempt dependencies. tick <= 0 takes the
// default illustrative interval.
func NewCoordinator(analyzer Analyzer, uploader Uploader, putter Putter, tick time.Duration) *Coordinator {
	return &Coordinator{
		analyzer: analyzer,
		uploader: uploader,
		putter:   putter,
		tick:     tick,
	}
}

// Start begins a new attempt in the background and returns it. Returns
// ErrAttemptInFlight if one is still running.
func (c *Coordinator) Start(ctx context.Context, in Input) (*Attempt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil && !c.current.Done() {
		return nil, ErrAttemptInFlight
	}

	attempt := newAttempt(c.analyzer, c.uploader, c.putter, c.tick)
	c.current = attempt

	go func() {
		start := time.Now()
		id, err := attempt.run(ctx, in)
		if err != nil {
			log.WithError(err).Error("analysis attempt failed")
			return
		}
		log.WithField("report_id", id).
			WithField("took", time.Since(start).Round(time.Millisecond).String()).
			Info("analysis attempt complete")
	}()

	return attempt, nil
}

// Run drives one attempt synchronously. Used by the one-shot CLI path.
func (c *Coordinator) Run(ctx context.Context, in Input) (string, error) {
	attempt, err := c.Start(ctx, in)
	if err != nil {
		return "", err
	}

	if err := attempt.Wait(ctx); err != nil {
		return "", err
	}
	if err := attempt.Err(); err != nil {
		return "", err
	}
	return attempt.Snapshot().ReportID, nil
}

// Current returns a snapshot of the latest attempt, or an idle snapshot
// if none has started.
func (c *Coordinator) Current() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return Snapshot{State: StateIdle}
	}
	return c.current.Snapshot()
}
