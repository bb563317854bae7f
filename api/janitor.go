/*
janitor.go - Periodic purge of stale login attempts

PURPOSE:
  Failed login attempts are persisted so that throttling survives a
  restart. Attempts older than the rate-limit window no longer count for
  anyone; the janitor deletes them on an interval so the table stays small.

DESIGN:
  - Runs a background goroutine with configurable interval
  - Runs once immediately on start
  - Stop waits for an in-flight sweep to finish

USAGE:
  janitor := NewJanitor(limiter, logger)
  janitor.Start()
  // ... later
  janitor.Stop()

SEE ALSO:
  - auth/ratelimit.go: RateLimiter.Cleanup
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/quelio/engine/auth"
)

// DefaultJanitorInterval is used when no interval is configured.
const DefaultJanitorInterval = 10 * time.Minute

// Janitor purges login attempts that fell out of the rate-limit window.
type Janitor struct {
	Limiter  *auth.RateLimiter
	Interval time.Duration
	Enabled  bool
	Logger   *log.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewJanitor creates an enabled janitor with the default interval.
func NewJanitor(limiter *auth.RateLimiter, logger *log.Logger) *Janitor {
	if logger == nil {
		logger = log.Default()
	}
	return &Janitor{
		Limiter:  limiter,
		Interval: DefaultJanitorInterval,
		Enabled:  true,
		Logger:   logger,
	}
}

// Start begins sweeping in the background.
func (j *Janitor) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.Enabled || j.ticker != nil {
		j.Logger.Debug("janitor not started", "enabled", j.Enabled)
		return
	}
	if j.Interval <= 0 {
		j.Interval = DefaultJanitorInterval
	}

	j.ticker = time.NewTicker(j.Interval)
	j.stop = make(chan struct{})
	j.wg.Add(1)
	go j.run()

	j.Logger.Info("janitor started", "interval", j.Interval)
}

// Stop stops the janitor and waits for it to exit.
func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.ticker == nil {
		return
	}
	j.ticker.Stop()
	close(j.stop)
	j.wg.Wait()
	j.ticker = nil
	j.Logger.Info("janitor stopped")
}

func (j *Janitor) run() {
	defer j.wg.Done()

	j.Sweep(context.Background())

	for {
		select {
		case <-j.ticker.C:
			j.Sweep(context.Background())
		case <-j.stop:
			return
		}
	}
}

// Sweep runs one purge and returns the number of attempts removed.
func (j *Janitor) Sweep(ctx context.Context) int {
	n, err := j.Limiter.Cleanup(ctx)
	if err != nil {
		j.Logger.Error("failed to purge login attempts", "err", err)
		return 0
	}
	if n > 0 {
		j.Logger.Debug("purged login attempts", "count", n)
	}
	return n
}
