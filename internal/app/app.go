package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/smarteating/tray/internal/cafeteria"
	"github.com/smarteating/tray/internal/config"
	"github.com/smarteating/tray/internal/imagecache"
	"github.com/smarteating/tray/internal/logging"
	"github.com/smarteating/tray/internal/nfc"
	"github.com/smarteating/tray/internal/qr"
	"github.com/smarteating/tray/internal/scanner"
	"github.com/smarteating/tray/internal/state"
)

// Options configure the kiosk.
type Options struct {
	ConfigPath   string
	PollInterval time.Duration // zero uses the config value
	// LogToStderr skips the log file. Only headless modes may use it; the
	// TUI owns the terminal.
	LogToStderr bool
	// OpenCamera starts QR decoding as soon as permission is granted.
	OpenCamera bool
}

// Kiosk is every long-lived component of the agent, wired together.
type Kiosk struct {
	Config     config.Config
	Logger     *slog.Logger
	Client     *cafeteria.Client
	Store      *state.Store
	Poller     *Poller
	Plate      *scanner.Plate
	Images     *imagecache.Loader
	Controller *Controller

	sink  *logging.Sink
	cache *imagecache.Store
}

// Open loads configuration and builds the kiosk. Nothing is started until
// Run; Close releases the log file and image cache.
func Open(opts Options) (*Kiosk, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load tray config: %w", err)
	}
	if opts.PollInterval > 0 {
		cfg.PollInterval = opts.PollInterval
	}

	logDir := cfg.LogDir
	if opts.LogToStderr {
		logDir = ""
	}
	sink, err := logging.Open(logDir, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	logger := sink.Logger

	client, err := NewClient(cfg, logger)
	if err != nil {
		_ = sink.Close()
		return nil, err
	}

	cache, err := imagecache.Open(cfg.CachePath)
	if err != nil {
		_ = sink.Close()
		return nil, fmt.Errorf("open image cache: %w", err)
	}

	k := &Kiosk{
		Config: cfg,
		Logger: logger,
		Client: client,
		Store:  &state.Store{},
		Images: imagecache.NewLoader(cache, client, cfg.CacheTTL, logger),
		sink:   sink,
		cache:  cache,
	}
	k.Poller = NewPoller(client, k.Store, cfg.PollInterval, logger)
	k.Plate = scanner.New(cameraFor(cfg), platformFor(cfg), scanner.Options{
		QR: qr.Options{Debounce: cfg.QR.Debounce},
		NFC: nfc.SupervisorOptions{
			HealthCheckInterval: cfg.NFC.HealthCheckInterval,
			MaxInactivity:       cfg.NFC.MaxInactivity,
			RestartDelay:        cfg.NFC.RestartDelay,
			InitialDelay:        cfg.NFC.InitialDelay,
			RetryBackoff:        cfg.NFC.RetryBackoff,
		},
		Origin:     cfg.APIURL,
		OpenCamera: opts.OpenCamera,
		OnError: func(method scanner.Method, err error) {
			logger.Warn("plate scanner error", "method", string(method), "error", err)
		},
		Logger: logger,
	})
	k.Controller = NewController(client, k.Poller, k.Store, k.Plate, ControllerOptions{
		SettleDelay: cfg.SettleDelay,
		Images:      k.Images,
		Logger:      logger,
	})

	logger.Info("tray configured",
		"config", cfg.Path,
		"api_url", cfg.APIURL,
		"poll_interval", cfg.PollInterval.String(),
		"qr_device", cfg.QR.Device,
		"nfc_device", cfg.NFC.Device,
	)
	return k, nil
}

// NewClient builds a backend client for cfg. On a 401 the session re-reads
// user_id from the config file, so an operator can fix it without a restart.
func NewClient(cfg config.Config, logger *slog.Logger) (*cafeteria.Client, error) {
	logger = logging.OrNop(logger)
	refresh := func(ctx context.Context) (cafeteria.Credentials, error) {
		fresh, err := config.Load(cfg.Path)
		if err != nil {
			return cafeteria.Credentials{}, err
		}
		if fresh.UserID == "" {
			return cafeteria.Credentials{}, errors.New("user_id is not configured")
		}
		logger.Info("credentials reloaded", "component", "session")
		return cafeteria.Credentials{UserID: fresh.UserID}, nil
	}
	session := cafeteria.NewSession(cafeteria.Credentials{UserID: cfg.UserID}, refresh)
	client, err := cafeteria.NewClient(cfg.APIURL, session, cfg.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("init cafeteria client: %w", err)
	}
	return client, nil
}

// Run starts scanning and polling and blocks until ctx ends. Expired photos
// are left in the cache; reads skip them and `tray cache prune` removes them.
func (k *Kiosk) Run(ctx context.Context) error {
	var wg conc.WaitGroup
	wg.Go(func() {
		if err := k.Plate.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			k.Logger.Error("plate scanner stopped", "error", err)
		}
	})
	wg.Go(func() {
		_ = k.Controller.Run(ctx)
	})

	if r := wg.WaitAndRecover(); r != nil {
		return fmt.Errorf("kiosk: %w", r.AsError())
	}
	<-k.Poller.Done()
	return nil
}

// Close releases the image cache and log file.
func (k *Kiosk) Close() error {
	return errors.Join(k.cache.Close(), k.sink.Close())
}

// LogPath is the file the kiosk logs to, or "" when logging to stderr.
func (k *Kiosk) LogPath() string {
	return k.sink.Path()
}

func cameraFor(cfg config.Config) qr.Camera {
	if cfg.QR.Device == "" {
		return nil
	}
	return qr.NewLineCamera(cfg.QR.Device)
}

func platformFor(cfg config.Config) nfc.Platform {
	if cfg.NFC.Device == "" {
		return nil
	}
	return nfc.NewLineDevice(cfg.NFC.Device)
}
