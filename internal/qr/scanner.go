package qr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/smarteating/tray/internal/logging"
)

// Sentinel errors. The decoder errors are expected while a camera looks at
// frames without a readable code and are never surfaced.
var (
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrNotFound         = errors.New("qr code not found")
	ErrChecksum         = errors.New("qr checksum mismatch")
	ErrFormat           = errors.New("qr format error")
)

// DefaultDebounce is the minimum gap between two accepted decodes.
const DefaultDebounce = time.Second

// Status is the scanner's position in its state machine.
type Status int

const (
	StatusCheckingPermission Status = iota
	StatusPermissionDenied
	StatusIdle
	StatusScanning
)

func (s Status) String() string {
	switch s {
	case StatusCheckingPermission:
		return "checking_permission"
	case StatusPermissionDenied:
		return "permission_denied"
	case StatusIdle:
		return "idle"
	case StatusScanning:
		return "scanning"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Options configure a Scanner.
type Options struct {
	// Debounce defaults to DefaultDebounce.
	Debounce    time.Duration
	Constraints Constraints
	// OnScan receives each accepted decode.
	OnScan func(text string)
	// OnError receives decoder and device errors that are not noise.
	OnError func(err error)
	Logger  *slog.Logger
}

// Scanner runs a permission-gated decode loop over a Camera.
type Scanner struct {
	camera Camera
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	mu         sync.Mutex
	status     Status
	lastAccept time.Time
	lastText   string
	stream     Stream
	cancel     context.CancelFunc
	loopDone   chan struct{}
	watch      []chan struct{}
}

// NewScanner returns a scanner in StatusCheckingPermission. Call
// CheckPermission to leave it.
func NewScanner(camera Camera, opts Options) *Scanner {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Constraints == (Constraints{}) {
		opts.Constraints = DefaultConstraints
	}
	return &Scanner{
		camera: camera,
		opts:   opts,
		logger: logging.OrNop(opts.Logger).With("component", "qr"),
		now:    time.Now,
		status: StatusCheckingPermission,
	}
}

// Status returns the current state.
func (s *Scanner) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// LastScan returns the last accepted text and when it was accepted.
func (s *Scanner) LastScan() (string, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastText, s.lastAccept
}

// Watch returns a channel signalled after every status change.
func (s *Scanner) Watch() <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.watch = append(s.watch, ch)
	s.mu.Unlock()
	return ch
}

// CheckPermission probes the camera and releases the probe stream at once.
// The scanner ends in StatusIdle or StatusPermissionDenied. A denial is a
// state, not an error callback.
func (s *Scanner) CheckPermission(ctx context.Context) error {
	return s.probe(ctx, false)
}

// RequestPermission retries the probe after a denial and reports a new
// denial through OnError.
func (s *Scanner) RequestPermission(ctx context.Context) error {
	return s.probe(ctx, true)
}

func (s *Scanner) probe(ctx context.Context, report bool) error {
	s.mu.Lock()
	if s.status == StatusScanning {
		s.mu.Unlock()
		return nil
	}
	s.status = StatusCheckingPermission
	s.mu.Unlock()
	s.notify()

	err := s.probeCamera(ctx)

	s.mu.Lock()
	if err != nil {
		s.status = StatusPermissionDenied
	} else {
		s.status = StatusIdle
	}
	s.mu.Unlock()
	s.notify()

	if err != nil {
		s.logger.Warn("camera permission check failed", "error", err)
		if report && s.opts.OnError != nil {
			s.opts.OnError(err)
		}
		return err
	}
	return nil
}

func (s *Scanner) probeCamera(ctx context.Context) error {
	if s.camera == nil {
		return fmt.Errorf("%w: no camera", ErrPermissionDenied)
	}
	stream, err := s.camera.Open(ctx, s.opts.Constraints)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	if err := stream.Close(); err != nil {
		s.logger.Debug("close probe stream", "error", err)
	}
	return nil
}

// Open starts the decode loop. It requires StatusIdle and is a no-op while
// already scanning.
func (s *Scanner) Open(ctx context.Context) error {
	s.mu.Lock()
	switch s.status {
	case StatusScanning:
		s.mu.Unlock()
		return nil
	case StatusIdle:
	default:
		status := s.status
		s.mu.Unlock()
		return fmt.Errorf("open scanner in state %s: %w", status, ErrPermissionDenied)
	}
	s.mu.Unlock()

	loopCtx, cancel := context.WithCancel(ctx)
	stream, err := s.camera.Open(loopCtx, s.opts.Constraints)
	if err != nil {
		cancel()
		if errors.Is(err, ErrPermissionDenied) {
			s.setStatus(StatusPermissionDenied)
		}
		s.logger.Error("open camera stream", "error", err)
		if s.opts.OnError != nil {
			s.opts.OnError(err)
		}
		return fmt.Errorf("open camera stream: %w", err)
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.status = StatusScanning
	s.stream = stream
	s.cancel = cancel
	s.loopDone = done
	s.mu.Unlock()
	s.notify()
	s.logger.Info("qr scanner opened")

	go s.loop(loopCtx, stream, done)
	return nil
}

// Close stops the decode loop and releases the camera before returning.
// It is safe to call when not scanning.
func (s *Scanner) Close() {
	s.mu.Lock()
	cancel, stream, done := s.cancel, s.stream, s.loopDone
	s.cancel, s.stream, s.loopDone = nil, nil, nil
	if s.status == StatusScanning {
		s.status = StatusIdle
	}
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	_ = stream.Close()
	<-done
	s.notify()
	s.logger.Info("qr scanner closed")
}

func (s *Scanner) loop(ctx context.Context, stream Stream, done chan struct{}) {
	defer close(done)
	defer func() { _ = stream.Close() }()

	for {
		text, err := stream.Next(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if IsNoise(err) {
				continue
			}
			if fatal(err) {
				s.logger.Warn("camera stream ended", "error", err)
				s.detach(stream)
				if s.opts.OnError != nil {
					s.opts.OnError(fmt.Errorf("camera stream ended: %w", err))
				}
				return
			}
			s.logger.Warn("qr decode error", "error", err)
			if s.opts.OnError != nil {
				s.opts.OnError(err)
			}
			continue
		}
		if text == "" {
			continue
		}
		if s.accept(text) && s.opts.OnScan != nil {
			s.opts.OnScan(text)
		}
	}
}

// accept applies the debounce window: a decode counts only when at least
// Debounce has passed since the previous accepted one.
func (s *Scanner) accept(text string) bool {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lastAccept.IsZero() && now.Sub(s.lastAccept) < s.opts.Debounce {
		return false
	}
	s.lastAccept = now
	s.lastText = text
	s.logger.Info("qr code accepted", "text", text)
	return true
}

// detach returns the scanner to idle after its stream died on its own.
func (s *Scanner) detach(stream Stream) {
	s.mu.Lock()
	if s.stream != stream {
		s.mu.Unlock()
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel, s.stream, s.loopDone = nil, nil, nil
	s.status = StatusIdle
	s.mu.Unlock()
	s.notify()
}

func (s *Scanner) setStatus(status Status) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
	s.notify()
}

func (s *Scanner) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.watch {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// IsNoise reports whether err is an expected decoder miss.
func IsNoise(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrChecksum) || errors.Is(err, ErrFormat)
}

func fatal(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || errors.Is(err, ErrPermissionDenied)
}
