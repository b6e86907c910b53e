package qr

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type frame struct {
	text string
	err  error
}

type fakeStream struct {
	frames chan frame
	closed atomic.Bool
	once   sync.Once
	done   chan struct{}
}

func newFakeStream() *fakeStream {
	return &fakeStream{frames: make(chan frame, 16), done: make(chan struct{})}
}

func (s *fakeStream) Next(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-s.done:
		return "", io.EOF
	case f := <-s.frames:
		return f.text, f.err
	}
}

func (s *fakeStream) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.done)
	})
	return nil
}

type fakeCamera struct {
	mu      sync.Mutex
	deny    bool
	streams []*fakeStream
	last    Constraints
}

func (c *fakeCamera) Open(ctx context.Context, cons Constraints) (Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = cons
	if c.deny {
		return nil, ErrPermissionDenied
	}
	s := newFakeStream()
	c.streams = append(c.streams, s)
	return s, nil
}

func (c *fakeCamera) stream(i int) *fakeStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streams[i]
}

func (c *fakeCamera) setDeny(deny bool) {
	c.mu.Lock()
	c.deny = deny
	c.mu.Unlock()
}

type recorder struct {
	mu    sync.Mutex
	scans []string
	errs  []error
}

func (r *recorder) onScan(text string) {
	r.mu.Lock()
	r.scans = append(r.scans, text)
	r.mu.Unlock()
}

func (r *recorder) onError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.scans), len(r.errs)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("%s", msg)
}

func openScanner(t *testing.T, cam *fakeCamera, rec *recorder, debounce time.Duration) *Scanner {
	t.Helper()
	s := NewScanner(cam, Options{Debounce: debounce, OnScan: rec.onScan, OnError: rec.onError})
	if err := s.CheckPermission(context.Background()); err != nil {
		t.Fatalf("CheckPermission returned error: %v", err)
	}
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestScanner_PermissionProbeReleasesCamera(t *testing.T) {
	cam := &fakeCamera{}
	s := NewScanner(cam, Options{})
	if s.Status() != StatusCheckingPermission {
		t.Fatalf("initial status = %v, want checking_permission", s.Status())
	}
	if err := s.CheckPermission(context.Background()); err != nil {
		t.Fatalf("CheckPermission returned error: %v", err)
	}
	if s.Status() != StatusIdle {
		t.Fatalf("status = %v, want idle", s.Status())
	}
	if !cam.stream(0).closed.Load() {
		t.Fatalf("probe stream left open")
	}
	if cam.last != DefaultConstraints {
		t.Fatalf("constraints = %+v, want rear camera defaults", cam.last)
	}
}

func TestScanner_DeniedThenRetry(t *testing.T) {
	cam := &fakeCamera{deny: true}
	var rec recorder
	s := NewScanner(cam, Options{OnError: rec.onError})

	err := s.CheckPermission(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("CheckPermission error = %v, want ErrPermissionDenied", err)
	}
	if s.Status() != StatusPermissionDenied {
		t.Fatalf("status = %v, want permission_denied", s.Status())
	}
	if _, errs := rec.counts(); errs != 0 {
		t.Fatalf("initial denial reported %d errors, want 0", errs)
	}
	if err := s.Open(context.Background()); err == nil {
		t.Fatalf("Open succeeded while denied")
	}

	if err := s.RequestPermission(context.Background()); err == nil {
		t.Fatalf("RequestPermission returned nil while still denied")
	}
	if _, errs := rec.counts(); errs != 1 {
		t.Fatalf("errors after retry = %d, want 1", errs)
	}

	cam.setDeny(false)
	if err := s.RequestPermission(context.Background()); err != nil {
		t.Fatalf("RequestPermission returned error: %v", err)
	}
	if s.Status() != StatusIdle {
		t.Fatalf("status = %v, want idle", s.Status())
	}
}

func TestScanner_DebouncesDuplicateDecodes(t *testing.T) {
	cam := &fakeCamera{}
	var rec recorder
	openScanner(t, cam, &rec, time.Second)
	stream := cam.stream(1)

	stream.frames <- frame{text: "PLATE-42"}
	time.Sleep(20 * time.Millisecond)
	stream.frames <- frame{text: "PLATE-42"}
	time.Sleep(50 * time.Millisecond)

	scans, _ := rec.counts()
	if scans != 1 {
		t.Fatalf("onScan calls = %d, want 1", scans)
	}
	if rec.scans[0] != "PLATE-42" {
		t.Fatalf("scan = %q, want PLATE-42", rec.scans[0])
	}
}

func TestScanner_AcceptsAfterDebounceWindow(t *testing.T) {
	cam := &fakeCamera{}
	var rec recorder
	s := openScanner(t, cam, &rec, 30*time.Millisecond)
	stream := cam.stream(1)

	stream.frames <- frame{text: "A"}
	waitFor(t, func() bool { n, _ := rec.counts(); return n == 1 }, "first decode not accepted")
	time.Sleep(40 * time.Millisecond)
	stream.frames <- frame{text: "B"}
	waitFor(t, func() bool { n, _ := rec.counts(); return n == 2 }, "decode after window not accepted")

	if text, at := s.LastScan(); text != "B" || at.IsZero() {
		t.Fatalf("LastScan = %q at %v, want B", text, at)
	}
}

func TestScanner_SwallowsDecoderNoise(t *testing.T) {
	cam := &fakeCamera{}
	var rec recorder
	openScanner(t, cam, &rec, time.Millisecond)
	stream := cam.stream(1)

	stream.frames <- frame{err: ErrNotFound}
	stream.frames <- frame{err: ErrChecksum}
	stream.frames <- frame{err: ErrFormat}
	stream.frames <- frame{err: errors.New("usb reset")}
	stream.frames <- frame{text: "PLATE-1"}

	waitFor(t, func() bool { n, _ := rec.counts(); return n == 1 }, "scan after noise not delivered")
	if _, errs := rec.counts(); errs != 1 {
		t.Fatalf("errors = %d, want only the device error", errs)
	}
}

func TestScanner_CloseReleasesCamera(t *testing.T) {
	cam := &fakeCamera{}
	var rec recorder
	s := openScanner(t, cam, &rec, time.Second)
	if s.Status() != StatusScanning {
		t.Fatalf("status = %v, want scanning", s.Status())
	}

	s.Close()
	if !cam.stream(1).closed.Load() {
		t.Fatalf("stream still open after Close")
	}
	if s.Status() != StatusIdle {
		t.Fatalf("status = %v, want idle", s.Status())
	}
	s.Close()

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("reopen returned error: %v", err)
	}
	if s.Status() != StatusScanning {
		t.Fatalf("status after reopen = %v, want scanning", s.Status())
	}
}

func TestScanner_StreamEndReturnsToIdle(t *testing.T) {
	cam := &fakeCamera{}
	var rec recorder
	s := openScanner(t, cam, &rec, time.Second)

	_ = cam.stream(1).Close()
	waitFor(t, func() bool { return s.Status() == StatusIdle }, "scanner did not return to idle")
	if _, errs := rec.counts(); errs != 1 {
		t.Fatalf("errors = %d, want 1 for the lost stream", errs)
	}
}
