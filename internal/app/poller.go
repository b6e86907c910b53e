package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/smarteating/tray/internal/cafeteria"
	"github.com/smarteating/tray/internal/logging"
	"github.com/smarteating/tray/internal/state"
)

// DefaultPollInterval is the current-meal polling cadence.
const DefaultPollInterval = 3 * time.Second

// MealSource fetches the active meal. *cafeteria.Client implements it.
type MealSource interface {
	FetchCurrentMeal(ctx context.Context) (*cafeteria.MealSnapshot, error)
}

// Poller keeps a state.Store in sync with GET /auth/meals/current.
//
// It fetches once on Start and on every Refetch. Between those it polls on a
// fixed interval while the store is armed and the display is visible. A 404
// disarms polling until the next Refetch.
type Poller struct {
	source   MealSource
	store    *state.Store
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	visible bool

	refetch chan uint64
	shown   chan struct{}
	wake    chan struct{}
	done    chan struct{}
}

// NewPoller builds a poller writing to store. interval <= 0 uses
// DefaultPollInterval.
func NewPoller(source MealSource, store *state.Store, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		source:   source,
		store:    store,
		interval: interval,
		logger:   logging.OrNop(logger).With("component", "poller"),
		visible:  true,
		refetch:  make(chan uint64, 1),
		shown:    make(chan struct{}, 1),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start launches the polling goroutine and returns immediately. The loop
// stops when ctx is cancelled; Done is closed once every request it issued
// has returned.
func (p *Poller) Start(ctx context.Context) {
	seq := p.store.Refetch()
	go p.run(ctx, seq)
}

// Done is closed after the poller has fully stopped.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Refetch forces an immediate fetch and re-arms polling. It returns the
// sequence number the forced request carries; once the store's Seq reaches
// it, every result applied is at least as new as that request.
func (p *Poller) Refetch() uint64 {
	seq := p.store.Refetch()
	// Latest wins: a newer forced request supersedes one not yet sent.
	select {
	case <-p.refetch:
	default:
	}
	select {
	case p.refetch <- seq:
	default:
	}
	return seq
}

// Reset clears the cached meal and disarms polling. Responses to requests
// already in flight are discarded.
func (p *Poller) Reset() {
	p.store.Reset()
	signal(p.wake)
}

// SetVisible gates interval polling. Becoming visible while armed triggers
// one immediate fetch.
func (p *Poller) SetVisible(visible bool) {
	p.mu.Lock()
	changed := p.visible != visible
	p.visible = visible
	p.mu.Unlock()

	if !changed {
		return
	}
	p.logger.Debug("visibility changed", "visible", visible)
	if visible {
		signal(p.shown)
	} else {
		signal(p.wake)
	}
}

// Visible reports the last value passed to SetVisible.
func (p *Poller) Visible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible
}

func (p *Poller) run(ctx context.Context, first uint64) {
	var wg conc.WaitGroup
	defer func() {
		wg.Wait()
		close(p.done)
	}()

	// Fetch on start; Start already moved the store to loading.
	p.fetch(ctx, &wg, first)

	var ticker *time.Ticker
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker = nil
		}
	}
	defer stopTicker()

	for {
		var tick <-chan time.Time
		if p.store.Snapshot().Polling && p.Visible() {
			if ticker == nil {
				ticker = time.NewTicker(p.interval)
			}
			tick = ticker.C
		} else {
			stopTicker()
		}

		select {
		case <-ctx.Done():
			return
		case seq := <-p.refetch:
			p.fetch(ctx, &wg, seq)
		case <-p.shown:
			stopTicker()
			if p.store.Snapshot().Polling {
				p.fetch(ctx, &wg, p.store.Next())
			}
		case <-tick:
			// State may have changed while the tick was pending.
			if p.store.Snapshot().Polling && p.Visible() {
				p.fetch(ctx, &wg, p.store.Next())
			}
		case <-p.wake:
		}
	}
}

// fetch issues one request without waiting for it. Ticks are wall-clock
// driven, so a slow response may overlap the next request; the store's
// sequence check keeps the newest result.
func (p *Poller) fetch(ctx context.Context, wg *conc.WaitGroup, seq uint64) {
	wg.Go(func() {
		snap, err := p.source.FetchCurrentMeal(ctx)
		switch {
		case err == nil:
			p.logger.Debug("current meal fetched", "seq", seq, "meal_id", snap.ID, "measurements", len(snap.FoodMeasurements))
		case cafeteria.IsNotFound(err):
			p.logger.Info("no active meal, polling disarmed", "seq", seq)
		case cafeteria.IsCancelled(err):
		default:
			p.logger.Warn("current meal poll failed", "seq", seq, "kind", cafeteria.KindOf(err).String(), "error", err)
		}
		if !p.store.Apply(seq, snap, err) && err == nil {
			p.logger.Debug("stale response dropped", "seq", seq)
		}
		signal(p.wake)
	})
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
