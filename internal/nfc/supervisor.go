package nfc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smarteating/tray/internal/logging"
)

// Supervisor defaults.
const (
	DefaultHealthCheckInterval = 10 * time.Second
	DefaultMaxInactivity       = 15 * time.Second
	DefaultRestartDelay        = time.Second
	DefaultInitialDelay        = time.Second
	DefaultRetryBackoff        = 2 * time.Second

	// Restart failures are reported through OnError once they reach this count.
	restartFailureThreshold = 3
)

// SupervisorOptions tune the supervisor. Zero durations use the defaults.
type SupervisorOptions struct {
	HealthCheckInterval time.Duration
	MaxInactivity       time.Duration
	RestartDelay        time.Duration
	InitialDelay        time.Duration
	RetryBackoff        time.Duration

	// OnScan receives each normalized serial exactly once.
	OnScan func(serial string)
	// OnError receives read errors and repeated restart failures.
	OnError func(err error)
	Logger  *slog.Logger
}

// SupervisorState extends the reader state with restart bookkeeping.
type SupervisorState struct {
	State
	RestartFailures int `json:"restartFailures"`
}

// Supervisor keeps a Reader continuously reading. It starts the reader after
// InitialDelay, restarts it when no activity has been seen for MaxInactivity,
// and retries failed restarts after RetryBackoff. Serials are handed to
// OnScan once and then cleared from the reader.
type Supervisor struct {
	reader *Reader
	opts   SupervisorOptions
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	failures int
}

// NewSupervisor wraps reader.
func NewSupervisor(reader *Reader, opts SupervisorOptions) *Supervisor {
	if opts.HealthCheckInterval <= 0 {
		opts.HealthCheckInterval = DefaultHealthCheckInterval
	}
	if opts.MaxInactivity <= 0 {
		opts.MaxInactivity = DefaultMaxInactivity
	}
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = DefaultRestartDelay
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = DefaultInitialDelay
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	return &Supervisor{
		reader: reader,
		opts:   opts,
		logger: logging.OrNop(opts.Logger).With("component", "nfc_supervisor"),
		now:    time.Now,
	}
}

// Reader returns the supervised reader.
func (s *Supervisor) Reader() *Reader {
	return s.reader
}

// State returns the reader state plus the current restart failure streak.
func (s *Supervisor) State() SupervisorState {
	s.mu.Lock()
	failures := s.failures
	s.mu.Unlock()
	return SupervisorState{State: s.reader.State(), RestartFailures: failures}
}

// Run supervises the reader until ctx ends. Every timer it created is
// stopped and the reader is stopped before it returns. When the reader
// cannot be used Run returns immediately with ErrUnsupported.
func (s *Supervisor) Run(ctx context.Context) error {
	if !s.reader.CanUse() {
		return fmt.Errorf("supervise nfc: %w", ErrUnsupported)
	}

	changes := s.reader.Watch()
	defer s.reader.Stop()

	var (
		lastActivity = s.now()
		wasReading   bool
		lastErr      string

		initTimer    *time.Timer
		restartTimer *time.Timer
		retryTimer   *time.Timer
		health       *time.Ticker
	)
	stopTimer := func(t **time.Timer) {
		if *t != nil {
			(*t).Stop()
			*t = nil
		}
	}
	stopHealth := func() {
		if health != nil {
			health.Stop()
			health = nil
		}
	}
	defer func() {
		stopTimer(&initTimer)
		stopTimer(&restartTimer)
		stopTimer(&retryTimer)
		stopHealth()
	}()

	start := func(reason string) {
		if err := s.reader.Start(ctx); err != nil {
			if errors.Is(err, ErrAlreadyReading) {
				return
			}
			s.recordFailure(err)
			s.logger.Warn("nfc start failed, retrying", "reason", reason, "error", err, "backoff", s.opts.RetryBackoff)
			stopTimer(&retryTimer)
			retryTimer = time.NewTimer(s.opts.RetryBackoff)
			return
		}
		s.resetFailures()
		lastActivity = s.now()
	}

	restart := func() {
		s.logger.Info("restarting nfc reader")
		s.reader.Stop()
		stopTimer(&initTimer)
		stopTimer(&restartTimer)
		restartTimer = time.NewTimer(s.opts.RestartDelay)
	}

	for {
		st := s.reader.State()

		if st.Reading && !wasReading {
			lastActivity = s.now()
		}
		wasReading = st.Reading

		if st.Data != "" {
			lastActivity = s.now()
			serial := st.Data
			s.reader.Clear()
			st.Error = ""
			lastErr = ""
			if s.opts.OnScan != nil {
				s.opts.OnScan(serial)
			}
		}
		if st.Error != lastErr {
			lastErr = st.Error
			if st.Error != "" && s.opts.OnError != nil {
				s.opts.OnError(errors.New(st.Error))
			}
		}

		// Idle reader: schedule the initial (or post-read) start unless a
		// restart or retry already owns the next start.
		if !st.Reading && initTimer == nil && restartTimer == nil && retryTimer == nil {
			initTimer = time.NewTimer(s.opts.InitialDelay)
		}
		if st.Reading {
			stopTimer(&initTimer)
			if health == nil {
				health = time.NewTicker(s.opts.HealthCheckInterval)
			}
		} else {
			stopHealth()
		}

		var initC, restartC, retryC <-chan time.Time
		var healthC <-chan time.Time
		if initTimer != nil {
			initC = initTimer.C
		}
		if restartTimer != nil {
			restartC = restartTimer.C
		}
		if retryTimer != nil {
			retryC = retryTimer.C
		}
		if health != nil {
			healthC = health.C
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changes:
		case <-initC:
			initTimer = nil
			if !s.reader.State().Reading {
				start("initial")
			}
		case <-restartC:
			restartTimer = nil
			start("restart")
		case <-retryC:
			retryTimer = nil
			if !s.reader.State().Reading {
				restart()
			}
		case <-healthC:
			idle := s.now().Sub(lastActivity)
			if idle > s.opts.MaxInactivity {
				s.logger.Info("nfc session inactive", "idle", idle.String())
				stopHealth()
				restart()
			}
		}
	}
}

func (s *Supervisor) recordFailure(err error) {
	s.mu.Lock()
	s.failures++
	failures := s.failures
	s.mu.Unlock()
	if failures == restartFailureThreshold && s.opts.OnError != nil {
		s.opts.OnError(fmt.Errorf("nfc failed to start %d times: %w", failures, err))
	}
}

func (s *Supervisor) resetFailures() {
	s.mu.Lock()
	s.failures = 0
	s.mu.Unlock()
}
