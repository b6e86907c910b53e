package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/smarteating/tray/internal/logging"
	"github.com/smarteating/tray/internal/nfc"
	"github.com/smarteating/tray/internal/qr"
)

// Method names the input that produced a scan.
type Method string

const (
	MethodQR  Method = "qr"
	MethodNFC Method = "nfc"
)

// Event is one plate identifier read by either input.
type Event struct {
	ID     uuid.UUID `json:"id"`
	Value  string    `json:"value"`
	Method Method    `json:"method"`
	At     time.Time `json:"at"`
}

// Options configure a Plate scanner.
type Options struct {
	QR  qr.Options
	NFC nfc.SupervisorOptions
	// Origin gates NFC; see nfc.SecureOrigin.
	Origin string
	// OpenCamera starts the QR decode loop as soon as permission is granted.
	OpenCamera bool
	// OnError receives errors from either input.
	OnError func(method Method, err error)
	Logger  *slog.Logger
}

// State is what the scanning screen renders.
type State struct {
	QR        qr.Status           `json:"qr"`
	NFC       nfc.SupervisorState `json:"nfc"`
	CanUseNFC bool                `json:"canUseNFC"`
	// Approach is true while an NFC session is open and a plate can be
	// tapped instead of scanned.
	Approach bool `json:"approach"`
}

// Plate merges the QR scanner and the NFC supervisor into one stream of
// Events. Both inputs are equivalent; whichever fires first for a plate wins.
type Plate struct {
	qr     *qr.Scanner
	nfc    *nfc.Supervisor
	logger *slog.Logger
	opts   Options
	events chan Event
}

// New builds a Plate scanner. camera or platform may be nil to disable that
// input.
func New(camera qr.Camera, platform nfc.Platform, opts Options) *Plate {
	logger := logging.OrNop(opts.Logger)
	p := &Plate{
		logger: logger.With("component", "plate_scanner"),
		opts:   opts,
		events: make(chan Event, 16),
	}

	qrOpts := opts.QR
	qrOpts.Logger = logger
	qrOpts.OnScan = func(text string) { p.emit(text, MethodQR) }
	qrOpts.OnError = func(err error) { p.fail(MethodQR, err) }
	p.qr = qr.NewScanner(camera, qrOpts)

	reader := nfc.NewReader(platform, nfc.ReaderOptions{Origin: opts.Origin, Logger: logger})
	nfcOpts := opts.NFC
	nfcOpts.Logger = logger
	nfcOpts.OnScan = func(serial string) { p.emit(serial, MethodNFC) }
	nfcOpts.OnError = func(err error) { p.fail(MethodNFC, err) }
	p.nfc = nfc.NewSupervisor(reader, nfcOpts)

	return p
}

// Events delivers scans. It is never closed; stop reading when the context
// passed to Run ends.
func (p *Plate) Events() <-chan Event {
	return p.events
}

// State reports both inputs.
func (p *Plate) State() State {
	nfcState := p.nfc.State()
	return State{
		QR:        p.qr.Status(),
		NFC:       nfcState,
		CanUseNFC: nfcState.CanUse,
		Approach:  nfcState.CanUse && nfcState.Reading,
	}
}

// QR exposes the QR scanner for open/close and permission retry.
func (p *Plate) QR() *qr.Scanner {
	return p.qr
}

// Run checks camera permission, supervises NFC when it is usable, and
// blocks until ctx ends. The camera is released before Run returns.
func (p *Plate) Run(ctx context.Context) error {
	var wg conc.WaitGroup

	if p.nfc.Reader().CanUse() {
		wg.Go(func() {
			if err := p.nfc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				p.logger.Warn("nfc supervisor stopped", "error", err)
			}
		})
	} else {
		p.logger.Info("nfc unavailable", "reason", p.nfc.State().UnsupportedReason)
	}

	wg.Go(func() {
		defer p.qr.Close()
		if err := p.qr.CheckPermission(ctx); err != nil {
			p.logger.Info("camera unavailable", "error", err)
		} else if p.opts.OpenCamera {
			if err := p.qr.Open(ctx); err != nil {
				p.logger.Warn("open camera", "error", err)
			}
		}
		<-ctx.Done()
	})

	if r := wg.WaitAndRecover(); r != nil {
		return fmt.Errorf("plate scanner: %w", r.AsError())
	}
	return ctx.Err()
}

func (p *Plate) emit(value string, method Method) {
	ev := Event{ID: uuid.New(), Value: value, Method: method, At: time.Now()}
	p.logger.Info("plate scanned", "scan_id", ev.ID.String(), "method", string(method), "value", value)
	select {
	case p.events <- ev:
	default:
		p.logger.Warn("scan dropped, consumer busy", "scan_id", ev.ID.String(), "method", string(method))
	}
}

func (p *Plate) fail(method Method, err error) {
	p.logger.Warn("scan input error", "method", string(method), "error", err)
	if p.opts.OnError != nil {
		p.opts.OnError(method, err)
	}
}
