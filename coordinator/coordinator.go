package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angas/glowbridge/glowmarkt"
)

type Status string

const (
	StatusIdle         Status = "idle"
	StatusFetching     Status = "fetching"
	StatusSuccess      Status = "success"
	StatusAuthFailed   Status = "auth_failed"
	StatusUpdateFailed Status = "update_failed"
)

// DataFetcher is what the coordinator needs from the API client.
type DataFetcher interface {
	GetData(ctx context.Context) (*glowmarkt.RawData, error)
}

// RefreshResult is the response of an explicit refresh request, also served
// by the force-reload action endpoint.
type RefreshResult struct {
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	MeterCount int       `json:"meter_count"`
}

// Coordinator owns the poll cycle: on a fixed interval (or an explicit
// request) it runs one fetch, transforms the result and swaps the snapshot
// in atomically. There is no internal retry or backoff, the next tick is the
// retry. A failed cycle keeps the previous snapshot so entities can keep
// rendering last-known values while flagged unavailable.
type Coordinator struct {
	logger   *slog.Logger
	fetcher  DataFetcher
	interval atomic.Int64 // nanoseconds

	refreshCh chan chan RefreshResult

	listenersMu    sync.Mutex
	listeners      []func(*Snapshot)
	onAuthFailed   func(error)
	onUpdateFailed func(error)

	mu          sync.RWMutex
	status      Status
	lastCycleOK bool
	snapshot    *Snapshot
	lastErr     error
	lastAttempt time.Time
	lastSuccess time.Time

	now func() time.Time
}

func New(logger *slog.Logger, fetcher DataFetcher, interval time.Duration) *Coordinator {
	c := &Coordinator{
		logger:    logger,
		fetcher:   fetcher,
		refreshCh: make(chan chan RefreshResult),
		status:    StatusIdle,
		now:       time.Now,
	}
	c.interval.Store(int64(interval))
	return c
}

// OnRefresh registers a listener invoked after every successful cycle with
// the freshly published snapshot. Register before Run.
func (c *Coordinator) OnRefresh(fn func(*Snapshot)) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// OnAuthFailed registers the reauthentication trigger. Register before Run.
func (c *Coordinator) OnAuthFailed(fn func(error)) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.onAuthFailed = fn
}

// OnUpdateFailed registers the callback for non-auth fetch failures, used to
// flag entities unavailable. Register before Run.
func (c *Coordinator) OnUpdateFailed(fn func(error)) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.onUpdateFailed = fn
}

// SetInterval applies a new poll interval, picked up at the next tick.
func (c *Coordinator) SetInterval(interval time.Duration) {
	if interval < time.Minute {
		interval = time.Minute
	}
	c.interval.Store(int64(interval))
	c.logger.Info("poll interval updated", slog.Duration("interval", interval))
}

// Run performs an immediate first refresh and then loops on the interval
// timer until the context is cancelled. Explicit refresh requests are
// serialized through the same loop, so at most one cycle is ever in flight.
func (c *Coordinator) Run(ctx context.Context) {
	go func() {
		c.refresh(ctx)

		timer := time.NewTimer(c.currentInterval())
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				c.logger.Debug("coordinator stopped")
				return
			case <-timer.C:
				c.refresh(ctx)
			case reply := <-c.refreshCh:
				reply <- c.refresh(ctx)
			}
			timer.Reset(c.currentInterval())
		}
	}()
}

func (c *Coordinator) currentInterval() time.Duration {
	return time.Duration(c.interval.Load())
}

// RequestRefresh asks the run loop for an immediate cycle and waits for its
// outcome. Requests arriving while a cycle is in flight wait for the loop to
// pick them up.
func (c *Coordinator) RequestRefresh(ctx context.Context) RefreshResult {
	reply := make(chan RefreshResult, 1)
	select {
	case c.refreshCh <- reply:
	case <-ctx.Done():
		return RefreshResult{Status: string(c.Status()), Timestamp: c.now(), MeterCount: c.MeterCount()}
	}
	select {
	case res := <-reply:
		return res
	case <-ctx.Done():
		return RefreshResult{Status: string(c.Status()), Timestamp: c.now(), MeterCount: c.MeterCount()}
	}
}

func (c *Coordinator) refresh(ctx context.Context) RefreshResult {
	started := c.now()
	c.setStatus(StatusFetching)
	c.logger.Debug("fetch cycle starting")

	raw, err := c.fetcher.GetData(ctx)
	if err != nil {
		if glowmarkt.IsAuthenticationError(err) {
			c.logger.Warn("authentication error", slog.Any("error", err))
			c.fail(StatusAuthFailed, err, started)
			c.listenersMu.Lock()
			onAuthFailed := c.onAuthFailed
			c.listenersMu.Unlock()
			if onAuthFailed != nil {
				onAuthFailed(err)
			}
		} else {
			c.logger.Error("fetch cycle failed", slog.Any("error", err))
			c.fail(StatusUpdateFailed, err, started)
			c.listenersMu.Lock()
			onUpdateFailed := c.onUpdateFailed
			c.listenersMu.Unlock()
			if onUpdateFailed != nil {
				onUpdateFailed(err)
			}
		}
		observeRefresh(string(c.Status()), c.now().Sub(started))
		return RefreshResult{Status: string(c.Status()), Timestamp: started, MeterCount: c.MeterCount()}
	}

	snap := transform(raw, started)

	c.mu.Lock()
	c.snapshot = snap
	c.status = StatusSuccess
	c.lastCycleOK = true
	c.lastErr = nil
	c.lastAttempt = started
	c.lastSuccess = started
	c.mu.Unlock()

	c.logger.Info("fetch cycle complete",
		slog.Int("meters", len(snap.Meters)),
		slog.Duration("took", c.now().Sub(started)))

	observeRefresh(string(StatusSuccess), c.now().Sub(started))
	updateMeterMetrics(snap)

	c.listenersMu.Lock()
	listeners := make([]func(*Snapshot), len(c.listeners))
	copy(listeners, c.listeners)
	c.listenersMu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}

	return RefreshResult{Status: string(StatusSuccess), Timestamp: started, MeterCount: len(snap.Meters)}
}

func (c *Coordinator) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

func (c *Coordinator) fail(s Status, err error, attempt time.Time) {
	c.mu.Lock()
	c.status = s
	c.lastCycleOK = false
	c.lastErr = err
	c.lastAttempt = attempt
	c.mu.Unlock()
}

// Data returns the last published snapshot, nil before the first successful
// cycle. The snapshot is never mutated after publication.
func (c *Coordinator) Data() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// LastUpdateSuccess reports whether the most recent completed cycle
// succeeded. Entities derive their availability from this, so a cycle that is
// still in flight does not count against it.
func (c *Coordinator) LastUpdateSuccess() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastCycleOK
}

func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

func (c *Coordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

func (c *Coordinator) LastSuccess() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSuccess
}

func (c *Coordinator) MeterCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snapshot == nil {
		return 0
	}
	return len(c.snapshot.Meters)
}
