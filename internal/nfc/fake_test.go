package nfc

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakePlatform records sessions and lets tests push readings into the
// newest one.
type fakePlatform struct {
	supported bool
	failNext  atomic.Int32

	mu       sync.Mutex
	sessions []*fakeSession
	scans    atomic.Int32
	stops    atomic.Int32
	events   []string
}

type fakeSession struct {
	ctx context.Context
	out chan Reading
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{supported: true}
}

func (f *fakePlatform) Supported() bool { return f.supported }

func (f *fakePlatform) Scan(ctx context.Context) (<-chan Reading, error) {
	f.scans.Add(1)
	if f.failNext.Load() > 0 {
		f.failNext.Add(-1)
		f.record("fail")
		return nil, errors.New("radio busy")
	}
	sess := &fakeSession{ctx: ctx, out: make(chan Reading, 4)}
	f.mu.Lock()
	f.sessions = append(f.sessions, sess)
	f.events = append(f.events, "start")
	f.mu.Unlock()
	go func() {
		<-ctx.Done()
		f.stops.Add(1)
		f.record("stop")
		close(sess.out)
	}()
	return sess.out, nil
}

func (f *fakePlatform) record(event string) {
	f.mu.Lock()
	f.events = append(f.events, event)
	f.mu.Unlock()
}

func (f *fakePlatform) push(r Reading) bool {
	f.mu.Lock()
	if len(f.sessions) == 0 {
		f.mu.Unlock()
		return false
	}
	sess := f.sessions[len(f.sessions)-1]
	f.mu.Unlock()
	if sess.ctx.Err() != nil {
		return false
	}
	select {
	case sess.out <- r:
		return true
	case <-sess.ctx.Done():
		return false
	}
}

func (f *fakePlatform) eventLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func eventually(t *testing.T, within time.Duration, cond func() bool, format string, args ...any) {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	if !cond() {
		t.Fatalf(format, args...)
	}
}
