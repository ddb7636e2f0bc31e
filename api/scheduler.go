/*
scheduler.go - Periodic client refresh

PURPOSE:
  Optionally rolls window start dates forward and refreshes every client on
  a fixed interval, so VIP flags and combo grants are persisted without an
  operator calling POST /api/admin/refresh.

DESIGN:
  - Runs a background goroutine with a ticker
  - Each tick: RollWindows(today), then RefreshAll
  - Failures are logged; the next tick tries again
  - Disabled unless VIP_REFRESH_INTERVAL > 0

USAGE:
  scheduler := NewRefreshScheduler(handler, 15*time.Minute)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - refresh.go: Refresher
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RefreshScheduler handles automated window rolling and refreshes.
type RefreshScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRefreshScheduler creates a scheduler. A zero interval disables it.
func NewRefreshScheduler(handler *Handler, interval time.Duration) *RefreshScheduler {
	return &RefreshScheduler{
		Handler:       handler,
		CheckInterval: interval,
		Enabled:       interval > 0,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (rs *RefreshScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		slog.Info("refresh scheduler disabled")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)
	go rs.run()

	slog.Info("refresh scheduler started", "interval", rs.CheckInterval)
}

// Stop stops the scheduler and waits for a running tick to finish.
func (rs *RefreshScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		rs.stop = make(chan struct{})
		slog.Info("refresh scheduler stopped")
	}
}

func (rs *RefreshScheduler) run() {
	defer rs.wg.Done()

	rs.RunOnce(context.Background())

	for {
		select {
		case <-rs.ticker.C:
			rs.RunOnce(context.Background())
		case <-rs.stop:
			return
		}
	}
}

// RunOnce performs one roll + refresh pass.
func (rs *RefreshScheduler) RunOnce(ctx context.Context) {
	h := rs.Handler
	today := h.Today()

	rolled, err := h.Refresher.RollWindows(ctx, today)
	if err != nil {
		slog.Error("window roll failed", "today", today.String(), "error", err)
		return
	}

	summary, err := h.Refresher.RefreshAll(ctx)
	if err != nil {
		slog.Error("scheduled refresh failed", "error", err)
		return
	}
	h.bumpGeneration(ctx)

	slog.Info("scheduled refresh completed",
		"today", today.String(),
		"rolled", rolled,
		"refreshed", summary.Refreshed,
		"granted", summary.Granted,
		"failed", len(summary.Failed),
	)
}
