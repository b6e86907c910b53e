package app

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/smarteating/tray/internal/cafeteria"
	"github.com/smarteating/tray/internal/imagecache"
	"github.com/smarteating/tray/internal/logging"
	"github.com/smarteating/tray/internal/meal"
	"github.com/smarteating/tray/internal/scanner"
	"github.com/smarteating/tray/internal/state"
)

// DefaultSettleDelay is how long the backend gets to create a meal after a
// successful initialize before the poller is forced to refetch.
const DefaultSettleDelay = time.Second

// InitErrorMessage is shown when the backend rejects a plate without saying why.
const InitErrorMessage = "Erro ao inicializar refeição"

// ViewPhase is the plate screen's state.
type ViewPhase int

const (
	ViewLoading ViewPhase = iota
	ViewScanning
	ViewProcessing
	ViewDisplay
)

func (p ViewPhase) String() string {
	switch p {
	case ViewScanning:
		return "scanning"
	case ViewProcessing:
		return "processing"
	case ViewDisplay:
		return "display"
	default:
		return "loading"
	}
}

// MarshalText renders the phase by name.
func (p ViewPhase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// View is everything the plate screen renders, derived from the latest
// processed meal.
type View struct {
	Phase       ViewPhase                `json:"phase"`
	Meal        meal.ProcessedMeal       `json:"meal"`
	Macros      meal.MacroBreakdown      `json:"macros"`
	Price       float64                  `json:"price"`
	WeightKg    float64                  `json:"weightKg"`
	Calories    int                      `json:"calories"`
	Error       string                   `json:"error,omitempty"`
	InitError   string                   `json:"initError,omitempty"`
	Polling     bool                     `json:"polling"`
	Offline     bool                     `json:"offline"`
	Scanner     scanner.State            `json:"scanner"`
	LastScan    *scanner.Event           `json:"lastScan,omitempty"`
	Images      []imagecache.ImageStatus `json:"images,omitempty"`
	ImagesReady bool                     `json:"imagesReady"`
	UpdatedAt   time.Time                `json:"updatedAt"`
}

// PlateSource is the scanner side of the controller.
type PlateSource interface {
	Events() <-chan scanner.Event
	State() scanner.State
}

// MealInitializer binds a plate to a new meal.
type MealInitializer interface {
	InitializeMeal(ctx context.Context, plateIdentifier string) (*cafeteria.InitializeResponse, error)
}

// ImageWarmer preloads slice photos.
type ImageWarmer interface {
	Warm(ctx context.Context, urls []string) imagecache.WarmResult
}

// ControllerOptions configure a Controller.
type ControllerOptions struct {
	SettleDelay time.Duration
	// Images is optional; without it ImagesReady is always true.
	Images ImageWarmer
	Logger *slog.Logger
}

// Controller drives the plate screen: scan, initialize, wait, refetch,
// display.
type Controller struct {
	meals  MealInitializer
	poller *Poller
	store  *state.Store
	plate  PlateSource
	images ImageWarmer
	settle time.Duration
	logger *slog.Logger

	mu          sync.Mutex
	processing  bool
	awaiting    bool
	awaitSeq    uint64
	initError   string
	lastScan    *scanner.Event
	warmedURLs  []string
	imageStatus []imagecache.ImageStatus
	imagesReady bool
	subs        []chan View
}

// NewController wires the controller. plate may be nil when no scanner is
// attached (history or headless tooling).
func NewController(meals MealInitializer, poller *Poller, store *state.Store, plate PlateSource, opts ControllerOptions) *Controller {
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	return &Controller{
		meals:       meals,
		poller:      poller,
		store:       store,
		plate:       plate,
		images:      opts.Images,
		settle:      opts.SettleDelay,
		logger:      logging.OrNop(opts.Logger).With("component", "controller"),
		imagesReady: true,
	}
}

// Poller returns the current-meal poller.
func (c *Controller) Poller() *Poller {
	return c.poller
}

// Refetch forces a poll.
func (c *Controller) Refetch() {
	c.poller.Refetch()
}

// Snapshot derives the current view.
func (c *Controller) Snapshot() View {
	snap := c.store.Snapshot()

	c.mu.Lock()
	processing := c.processing
	v := View{
		InitError:   c.initError,
		Images:      slices.Clone(c.imageStatus),
		ImagesReady: c.imagesReady,
	}
	if c.lastScan != nil {
		ev := *c.lastScan
		v.LastScan = &ev
	}
	c.mu.Unlock()

	v.Meal = snap.Processed
	v.Macros = meal.Macros(snap.Processed)
	v.Price = snap.Processed.FinalPrice
	v.WeightKg = snap.Processed.TotalWeight / 1000
	v.Calories = int(math.Round(snap.Processed.TotalCalories))
	v.Error = snap.Error
	v.Polling = snap.Polling
	v.Offline = snap.IsOffline()
	v.UpdatedAt = snap.LastUpdated
	if c.plate != nil {
		v.Scanner = c.plate.State()
	}
	v.Phase = phaseFor(snap, processing)
	return v
}

func phaseFor(snap state.Snapshot, processing bool) ViewPhase {
	switch {
	case processing:
		return ViewProcessing
	case snap.Phase == state.PhaseActive && snap.Meal != nil:
		return ViewDisplay
	case snap.Phase == state.PhaseNoMeal || snap.Phase == state.PhaseError:
		return ViewScanning
	default:
		return ViewLoading
	}
}

// Subscribe returns a channel that always holds the most recent view.
// Views that were never read are replaced, not queued.
func (c *Controller) Subscribe() <-chan View {
	ch := make(chan View, 1)
	c.mu.Lock()
	c.subs = append(c.subs, ch)
	c.mu.Unlock()
	return ch
}

func (c *Controller) publish() {
	v := c.Snapshot()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}

// Run consumes scans and meal updates until ctx ends. It starts the poller.
func (c *Controller) Run(ctx context.Context) error {
	var wg conc.WaitGroup
	defer wg.Wait()

	changes := c.store.Watch()
	c.poller.Start(ctx)
	c.publish()

	var events <-chan scanner.Event
	if c.plate != nil {
		events = c.plate.Events()
	}

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			c.handleScan(ctx, &wg, ev)
		case <-changes:
			c.onMealChange(ctx, &wg)
		case <-ticker.C:
			// Scanner state has no change feed of its own.
			c.publish()
		}
	}
}

func (c *Controller) handleScan(ctx context.Context, wg *conc.WaitGroup, ev scanner.Event) {
	c.mu.Lock()
	if c.processing {
		c.mu.Unlock()
		c.logger.Info("scan ignored, plate already initializing", "scan_id", ev.ID.String(), "method", string(ev.Method))
		return
	}
	c.processing = true
	c.awaiting = false
	c.initError = ""
	c.lastScan = &ev
	c.mu.Unlock()
	c.publish()

	wg.Go(func() { c.initialize(ctx, ev) })
}

func (c *Controller) initialize(ctx context.Context, ev scanner.Event) {
	log := c.logger.With("scan_id", ev.ID.String(), "method", string(ev.Method))
	ack, err := c.meals.InitializeMeal(ctx, ev.Value)
	if err != nil {
		if cafeteria.IsCancelled(err) || ctx.Err() != nil {
			return
		}
		log.Error("meal initialization failed", "plate", ev.Value, "error", err)
		c.mu.Lock()
		c.processing = false
		c.initError = cafeteria.UserMessage(err, InitErrorMessage)
		c.mu.Unlock()
		c.publish()
		return
	}
	log.Info("meal initialized", "plate", ev.Value, "meal_id", ack.ID, "status", ack.Status)

	timer := time.NewTimer(c.settle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	// Held across Refetch so the result cannot be applied and observed
	// before awaitSeq is set.
	c.mu.Lock()
	c.awaitSeq = c.poller.Refetch()
	c.awaiting = true
	c.mu.Unlock()
}

// onMealChange ends processing once the forced refetch, or a request sent
// after it, has been applied, and warms slice images for a new meal. Polls
// sent before the refetch may still land in between; they do not count.
func (c *Controller) onMealChange(ctx context.Context, wg *conc.WaitGroup) {
	snap := c.store.Snapshot()

	c.mu.Lock()
	if c.processing && c.awaiting && snap.Seq >= c.awaitSeq && snap.Phase != state.PhaseLoading {
		c.processing = false
		c.awaiting = false
	}
	urls := snap.Processed.ImageURLs()
	warm := c.images != nil && !slices.Equal(urls, c.warmedURLs)
	if warm {
		c.warmedURLs = urls
		c.imagesReady = len(urls) == 0
		c.imageStatus = nil
	}
	c.mu.Unlock()
	c.publish()

	if warm && len(urls) > 0 {
		wg.Go(func() {
			res := c.images.Warm(ctx, urls)
			c.mu.Lock()
			if slices.Equal(urls, c.warmedURLs) {
				c.imageStatus = res.Images
				c.imagesReady = res.AllLoaded()
			}
			c.mu.Unlock()
			c.publish()
		})
	}
}
