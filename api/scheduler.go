/*
scheduler.go - Periodic override refresh

PURPOSE:
  Overrides are written through the admin endpoint of whichever instance
  received the request. Other instances sharing the database pick the change
  up on their next refresh.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick re-reads all overrides and swaps in a freshly merged snapshot
  - A failed refresh keeps the previous snapshot and is logged

CONFIGURATION:
  - CheckInterval: How often to refresh (default: 5 minutes)
  - Enabled: Whether the refresher is active (default: true)

USAGE:
  refresher := NewOverrideRefresher(handler)
  refresher.Start()
  // ... later
  refresher.Stop()

SEE ALSO:
  - handlers.go: LoadOverrides, SaveOverride
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// OverrideRefresher periodically reloads card overrides into a Handler.
type OverrideRefresher struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewOverrideRefresher creates a new refresher.
func NewOverrideRefresher(handler *Handler) *OverrideRefresher {
	return &OverrideRefresher{
		Handler:       handler,
		CheckInterval: 5 * time.Minute,
		Enabled:       true,
	}
}

// Start begins the refresher. Calling Start on a running refresher does
// nothing.
func (rf *OverrideRefresher) Start() {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	logger := rf.Handler.Logger
	if !rf.Enabled || rf.CheckInterval <= 0 {
		logger.Info("override refresher disabled")
		return
	}
	if rf.ticker != nil {
		return
	}

	rf.ticker = time.NewTicker(rf.CheckInterval)
	rf.stop = make(chan struct{})
	rf.wg.Add(1)

	go rf.run(rf.ticker, rf.stop)

	logger.Info("override refresher started", slog.Duration("interval", rf.CheckInterval))
}

// Stop stops the refresher and waits for an in-flight refresh to finish.
func (rf *OverrideRefresher) Stop() {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.ticker != nil {
		rf.ticker.Stop()
		close(rf.stop)
		rf.wg.Wait()
		rf.ticker = nil
		rf.Handler.Logger.Info("override refresher stopped")
	}
}

func (rf *OverrideRefresher) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer rf.wg.Done()

	for {
		select {
		case <-ticker.C:
			rf.Refresh(context.Background())
		case <-stop:
			return
		}
	}
}

// Refresh reloads overrides once.
func (rf *OverrideRefresher) Refresh(ctx context.Context) {
	if err := rf.Handler.LoadOverrides(ctx); err != nil {
		rf.Handler.Logger.ErrorContext(ctx, "override refresh failed", slog.Any("error", err))
		return
	}
	rf.Handler.Logger.DebugContext(ctx, "overrides refreshed")
}
