package nfc

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type scanLog struct {
	mu      sync.Mutex
	serials []string
	errs    []error
}

func (l *scanLog) onScan(s string) {
	l.mu.Lock()
	l.serials = append(l.serials, s)
	l.mu.Unlock()
}

func (l *scanLog) onError(err error) {
	l.mu.Lock()
	l.errs = append(l.errs, err)
	l.mu.Unlock()
}

func (l *scanLog) snapshot() ([]string, []error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.serials...), append([]error(nil), l.errs...)
}

func runSupervisor(t *testing.T, platform *fakePlatform, opts SupervisorOptions) (*Supervisor, context.CancelFunc, <-chan error) {
	t.Helper()
	reader := NewReader(platform, ReaderOptions{Origin: "https://api"})
	sup := NewSupervisor(reader, opts)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	finished := make(chan struct{})
	go func() {
		done <- sup.Run(ctx)
		close(finished)
	}()
	t.Cleanup(func() {
		cancel()
		<-finished
	})
	return sup, cancel, done
}

func TestSupervisor_StartsAfterInitialDelay(t *testing.T) {
	platform := newFakePlatform()
	sup, _, _ := runSupervisor(t, platform, SupervisorOptions{InitialDelay: 40 * time.Millisecond})

	time.Sleep(15 * time.Millisecond)
	if platform.scans.Load() != 0 {
		t.Fatalf("scan started before initial delay")
	}
	eventually(t, time.Second, func() bool { return sup.State().Reading },
		"reader never started")
}

func TestSupervisor_DeliversEachSerialOnceAndRestarts(t *testing.T) {
	platform := newFakePlatform()
	var log scanLog
	sup, _, _ := runSupervisor(t, platform, SupervisorOptions{
		InitialDelay: 5 * time.Millisecond,
		OnScan:       log.onScan,
		OnError:      log.onError,
	})

	eventually(t, time.Second, func() bool { return sup.State().Reading }, "reader never started")
	platform.push(Reading{Serial: "04:aa"})

	eventually(t, time.Second, func() bool {
		serials, _ := log.snapshot()
		return len(serials) == 1
	}, "serial not delivered")
	serials, _ := log.snapshot()
	if serials[0] != "04-AA" {
		t.Fatalf("serial = %q, want 04-AA", serials[0])
	}
	if sup.State().Data != "" {
		t.Fatalf("Data = %q, want cleared after delivery", sup.State().Data)
	}

	// The read ends the session; the supervisor reopens it.
	eventually(t, time.Second, func() bool { return platform.scans.Load() >= 2 && sup.State().Reading },
		"reader not restarted after read")
	time.Sleep(30 * time.Millisecond)
	if serials, _ := log.snapshot(); len(serials) != 1 {
		t.Fatalf("serials = %v, want exactly one delivery", serials)
	}
}

func TestSupervisor_ReportsReadErrors(t *testing.T) {
	platform := newFakePlatform()
	var log scanLog
	sup, _, _ := runSupervisor(t, platform, SupervisorOptions{
		InitialDelay: 5 * time.Millisecond,
		OnScan:       log.onScan,
		OnError:      log.onError,
	})
	eventually(t, time.Second, func() bool { return sup.State().Reading }, "reader never started")
	platform.push(Reading{Err: errors.New("crc")})

	eventually(t, time.Second, func() bool {
		_, errs := log.snapshot()
		return len(errs) == 1
	}, "read error not reported")
	_, errs := log.snapshot()
	if errs[0].Error() != msgReadFailed {
		t.Fatalf("error = %q, want %q", errs[0], msgReadFailed)
	}
}

func TestSupervisor_RestartsInactiveSession(t *testing.T) {
	platform := newFakePlatform()
	sup, _, _ := runSupervisor(t, platform, SupervisorOptions{
		InitialDelay:        5 * time.Millisecond,
		HealthCheckInterval: 20 * time.Millisecond,
		MaxInactivity:       50 * time.Millisecond,
		RestartDelay:        30 * time.Millisecond,
	})

	eventually(t, time.Second, func() bool { return sup.State().Reading }, "reader never started")
	eventually(t, time.Second, func() bool { return platform.stops.Load() >= 1 },
		"inactive session never stopped")
	stoppedAt := time.Now()

	eventually(t, time.Second, func() bool { return platform.scans.Load() >= 2 },
		"session never restarted")
	if gap := time.Since(stoppedAt); gap < 20*time.Millisecond {
		t.Fatalf("restart after %v, want about the restart delay", gap)
	}

	events := platform.eventLog()
	if len(events) < 3 || events[0] != "start" || events[1] != "stop" || events[2] != "start" {
		t.Fatalf("events = %v, want start, stop, start", events)
	}
}

func TestSupervisor_RetriesFailedStart(t *testing.T) {
	platform := newFakePlatform()
	platform.failNext.Store(3)
	var log scanLog
	sup, _, _ := runSupervisor(t, platform, SupervisorOptions{
		InitialDelay: 5 * time.Millisecond,
		RestartDelay: 5 * time.Millisecond,
		RetryBackoff: 10 * time.Millisecond,
		OnError:      log.onError,
	})

	eventually(t, 2*time.Second, func() bool { return sup.State().Reading },
		"reader never recovered from start failures")
	if got := platform.scans.Load(); got != 4 {
		t.Fatalf("scans = %d, want 4 (3 failures then success)", got)
	}
	if got := sup.State().RestartFailures; got != 0 {
		t.Fatalf("RestartFailures = %d, want 0 after recovery", got)
	}

	_, errs := log.snapshot()
	var repeated bool
	for _, err := range errs {
		if strings.Contains(err.Error(), "failed to start 3 times") {
			repeated = true
		}
	}
	if !repeated {
		t.Fatalf("errors = %v, want a repeated-failure report", errs)
	}
}

func TestSupervisor_TeardownStopsEverything(t *testing.T) {
	platform := newFakePlatform()
	sup, cancel, done := runSupervisor(t, platform, SupervisorOptions{
		InitialDelay:        5 * time.Millisecond,
		HealthCheckInterval: 10 * time.Millisecond,
		MaxInactivity:       15 * time.Millisecond,
		RestartDelay:        10 * time.Millisecond,
	})
	eventually(t, time.Second, func() bool { return sup.State().Reading }, "reader never started")

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}
	if sup.State().Reading {
		t.Fatalf("reader still reading after teardown")
	}

	scans := platform.scans.Load()
	time.Sleep(60 * time.Millisecond)
	if got := platform.scans.Load(); got != scans {
		t.Fatalf("scans = %d after teardown, want %d", got, scans)
	}
}

func TestSupervisor_UnsupportedReturnsImmediately(t *testing.T) {
	platform := newFakePlatform()
	platform.supported = false
	sup := NewSupervisor(NewReader(platform, ReaderOptions{Origin: "https://api"}), SupervisorOptions{})
	if err := sup.Run(context.Background()); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("Run error = %v, want ErrUnsupported", err)
	}
}
