package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/angas/glowbridge/glowmarkt"
)

type fakeFetcher struct {
	calls int
	fn    func(ctx context.Context) (*glowmarkt.RawData, error)
}

func (f *fakeFetcher) GetData(ctx context.Context) (*glowmarkt.RawData, error) {
	f.calls++
	return f.fn(ctx)
}

func rawWithMeters(ids ...string) *glowmarkt.RawData {
	raw := &glowmarkt.RawData{Meters: map[string]*glowmarkt.MeterData{}}
	for _, id := range ids {
		raw.Meters[id] = &glowmarkt.MeterData{
			VirtualEntity: glowmarkt.VirtualEntity{VeId: id, Name: "Meter " + id},
			Resources:     []glowmarkt.Resource{{ResourceId: "r-" + id, Classifier: "electricity.consumption"}},
		}
	}
	return raw
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestRefreshSuccess(t *testing.T) {
	fetcher := &fakeFetcher{fn: func(ctx context.Context) (*glowmarkt.RawData, error) {
		return rawWithMeters("ve-1", "ve-2"), nil
	}}
	c := New(testLogger(), fetcher, time.Hour)

	var notified *Snapshot
	c.OnRefresh(func(s *Snapshot) { notified = s })

	res := c.refresh(context.Background())

	if res.Status != string(StatusSuccess) {
		t.Fatalf("unexpected status: %q", res.Status)
	}
	if res.MeterCount != 2 {
		t.Errorf("unexpected meter count: %d", res.MeterCount)
	}
	if !c.LastUpdateSuccess() {
		t.Error("LastUpdateSuccess() = false after successful cycle")
	}
	if c.Status() != StatusSuccess {
		t.Errorf("Status() = %q", c.Status())
	}
	if c.LastError() != nil {
		t.Errorf("LastError() = %v", c.LastError())
	}

	snap := c.Data()
	if snap == nil || len(snap.Meters) != 2 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if notified != snap {
		t.Error("listener did not receive the published snapshot")
	}
}

func TestRefreshFailureRetainsSnapshot(t *testing.T) {
	fetchErr := error(nil)
	fetcher := &fakeFetcher{fn: func(ctx context.Context) (*glowmarkt.RawData, error) {
		if fetchErr != nil {
			return nil, fetchErr
		}
		return rawWithMeters("ve-1"), nil
	}}
	c := New(testLogger(), fetcher, time.Hour)

	c.refresh(context.Background())
	previous := c.Data()
	if previous == nil {
		t.Fatal("expected a snapshot after first cycle")
	}

	fetchErr = errors.New("boom")
	res := c.refresh(context.Background())

	if res.Status != string(StatusUpdateFailed) {
		t.Errorf("unexpected status: %q", res.Status)
	}
	if c.LastUpdateSuccess() {
		t.Error("LastUpdateSuccess() = true after failed cycle")
	}
	if !errors.Is(c.LastError(), fetchErr) {
		t.Errorf("LastError() = %v", c.LastError())
	}
	if c.Data() != previous {
		t.Error("failed cycle must keep the previous snapshot")
	}
	if res.MeterCount != 1 {
		t.Errorf("meter count should reflect the retained snapshot, got %d", res.MeterCount)
	}
}

func TestRefreshAuthFailure(t *testing.T) {
	authErr := &glowmarkt.AuthenticationError{Message: "invalid credentials"}
	fetcher := &fakeFetcher{fn: func(ctx context.Context) (*glowmarkt.RawData, error) {
		return nil, authErr
	}}
	c := New(testLogger(), fetcher, time.Hour)

	var callbackErr error
	c.OnAuthFailed(func(err error) { callbackErr = err })

	var notified bool
	c.OnRefresh(func(*Snapshot) { notified = true })

	res := c.refresh(context.Background())

	if res.Status != string(StatusAuthFailed) {
		t.Errorf("unexpected status: %q", res.Status)
	}
	if c.Status() != StatusAuthFailed {
		t.Errorf("Status() = %q", c.Status())
	}
	if !errors.Is(callbackErr, authErr) {
		t.Errorf("auth callback got %v", callbackErr)
	}
	if notified {
		t.Error("refresh listeners must not fire on a failed cycle")
	}
	if c.Data() != nil {
		t.Error("no snapshot should be published before the first success")
	}
}

func TestLastUpdateSuccessDuringInflightCycle(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	first := true
	fetcher := &fakeFetcher{fn: func(ctx context.Context) (*glowmarkt.RawData, error) {
		if first {
			first = false
			return rawWithMeters("ve-1"), nil
		}
		close(entered)
		<-release
		return rawWithMeters("ve-1"), nil
	}}
	c := New(testLogger(), fetcher, time.Hour)

	c.refresh(context.Background())
	if !c.LastUpdateSuccess() {
		t.Fatal("expected success after first cycle")
	}

	done := make(chan struct{})
	go func() {
		c.refresh(context.Background())
		close(done)
	}()
	<-entered

	if c.Status() != StatusFetching {
		t.Errorf("Status() = %q while a cycle is in flight", c.Status())
	}
	if !c.LastUpdateSuccess() {
		t.Error("an in-flight cycle must not flip availability")
	}

	close(release)
	<-done
	if !c.LastUpdateSuccess() {
		t.Error("LastUpdateSuccess() = false after the cycle completed")
	}
}

func TestRequestRefreshThroughRunLoop(t *testing.T) {
	fetcher := &fakeFetcher{fn: func(ctx context.Context) (*glowmarkt.RawData, error) {
		return rawWithMeters("ve-1"), nil
	}}
	c := New(testLogger(), fetcher, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Run(ctx)

	res := c.RequestRefresh(ctx)
	if res.Status != string(StatusSuccess) {
		t.Errorf("unexpected status: %q", res.Status)
	}
	if fetcher.calls < 2 {
		t.Errorf("expected startup cycle plus requested cycle, got %d calls", fetcher.calls)
	}
}

func TestSetIntervalFloor(t *testing.T) {
	c := New(testLogger(), &fakeFetcher{}, time.Hour)
	c.SetInterval(5 * time.Second)
	if got := c.currentInterval(); got != time.Minute {
		t.Errorf("interval below the floor should clamp to a minute, got %v", got)
	}
	c.SetInterval(10 * time.Minute)
	if got := c.currentInterval(); got != 10*time.Minute {
		t.Errorf("currentInterval() = %v", got)
	}
}
