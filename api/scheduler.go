/*
scheduler.go - Automated expense generation scheduler

PURPOSE:
  Periodically runs the three generation drivers (venue, staffing,
  recurring) so new events, assignments and overhead ticks pick up
  expense items without anyone pressing a button.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - One pass runs the drivers sequentially; generation is idempotent,
    so an overlapping manual run cannot double-charge
  - Driver errors are logged and do not stop the scheduler

CONFIGURATION:
  - CheckInterval: How often to run (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewGenerationScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: GenerateAll endpoint (manual pass)
  - expense/reconcile.go: Why re-running is safe
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/studioledger/expense-engine/expense"
)

// GenerationScheduler runs periodic expense generation passes.
type GenerationScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewGenerationScheduler creates a new scheduler.
func NewGenerationScheduler(handler *Handler) *GenerationScheduler {
	return &GenerationScheduler{
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (gs *GenerationScheduler) Start() {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if !gs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	gs.ticker = time.NewTicker(gs.CheckInterval)
	gs.wg.Add(1)

	go gs.run()

	log.Printf("[Scheduler] Started with check interval: %v", gs.CheckInterval)
}

// Stop stops the scheduler.
func (gs *GenerationScheduler) Stop() {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if gs.ticker != nil {
		gs.ticker.Stop()
		close(gs.stop)
		gs.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (gs *GenerationScheduler) run() {
	defer gs.wg.Done()

	// Run immediately on start
	gs.runPass()

	for {
		select {
		case <-gs.ticker.C:
			gs.runPass()
		case <-gs.stop:
			return
		}
	}
}

// runPass executes one full generation pass across all drivers.
func (gs *GenerationScheduler) runPass() {
	ctx := context.Background()
	opts := expense.GenerateOptions{}
	start := time.Now()

	venueN, err := gs.Handler.Venue.Generate(ctx, opts)
	if err != nil {
		log.Printf("[Scheduler] Venue generation failed: %v", err)
	}
	staffN, err := gs.Handler.Staffing.Generate(ctx, opts)
	if err != nil {
		log.Printf("[Scheduler] Staffing generation failed: %v", err)
	}
	recurringN, err := gs.Handler.Recurring.Generate(ctx, opts)
	if err != nil {
		log.Printf("[Scheduler] Recurring generation failed: %v", err)
	}

	total := venueN + staffN + recurringN
	if total > 0 {
		log.Printf("[Scheduler] Created %d items (venue=%d staffing=%d recurring=%d) in %v",
			total, venueN, staffN, recurringN, time.Since(start))
	}
}

// RunNow triggers an immediate pass (for testing/admin).
func (gs *GenerationScheduler) RunNow() {
	gs.runPass()
}

// GetNextRunTime returns when the next scheduled pass will occur.
func (gs *GenerationScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(gs.CheckInterval)
}
