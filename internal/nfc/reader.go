package nfc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"sync"

	"github.com/smarteating/tray/internal/logging"
)

// Sentinel errors returned by Reader.Start and reported through State.
var (
	ErrUnsupported    = errors.New("nfc unsupported")
	ErrAlreadyReading = errors.New("nfc already reading")
	ErrNoSerial       = errors.New("nfc tag has no serial number")
)

// User-facing messages. The kiosk UI is in Portuguese.
const (
	msgNoPlatform   = "A leitura de NFC não está disponível neste dispositivo."
	msgInsecure     = "A leitura de NFC requer um contexto seguro (HTTPS)."
	msgNoSerial     = "A tag NFC não possui um número de série."
	msgReadFailed   = "Não foi possível ler a tag NFC."
	msgStartFailure = "Erro ao iniciar a leitura: "
)

// Reading is one event from a scan session: a tag serial, or a read error.
// A tag that carries no serial arrives as a Reading with both fields empty.
type Reading struct {
	Serial string
	Err    error
}

// Platform is the host's tag-reading capability.
type Platform interface {
	// Supported reports whether tag reading exists on this host.
	Supported() bool
	// Scan opens a session. Readings arrive on the channel until ctx is
	// cancelled or the device goes away, after which it is closed.
	Scan(ctx context.Context) (<-chan Reading, error)
}

// State is the observable state of a Reader.
type State struct {
	Reading           bool   `json:"isReading"`
	Data              string `json:"data,omitempty"`
	Error             string `json:"error,omitempty"`
	Supported         bool   `json:"isSupported"`
	CanUse            bool   `json:"canUseNFC"`
	UnsupportedReason string `json:"unsupportedReason,omitempty"`
}

// ReaderOptions configure a Reader.
type ReaderOptions struct {
	// Origin is the API URL scanned serials are sent to. Reading is only
	// allowed when it is https or points at localhost.
	Origin string
	Logger *slog.Logger
}

// Reader wraps a Platform into a start/stop/clear state object. One scan
// session is open at most; a tag read ends it.
type Reader struct {
	platform Platform
	logger   *slog.Logger
	reason   string
	supports bool

	mu      sync.Mutex
	reading bool
	data    string
	errMsg  string
	cancel  context.CancelFunc
	session uint64
	watch   []chan struct{}
}

// NewReader builds a Reader. A nil platform is reported as unsupported.
func NewReader(platform Platform, opts ReaderOptions) *Reader {
	r := &Reader{
		platform: platform,
		logger:   logging.OrNop(opts.Logger).With("component", "nfc"),
	}
	r.supports = platform != nil && platform.Supported()
	switch {
	case !r.supports:
		r.reason = msgNoPlatform
	case !SecureOrigin(opts.Origin):
		r.reason = msgInsecure
	}
	return r
}

// SecureOrigin reports whether origin uses https or targets localhost.
func SecureOrigin(origin string) bool {
	u, err := url.Parse(strings.TrimSpace(origin))
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Scheme, "https") {
		return true
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// CanUse reports whether reading is possible at all.
func (r *Reader) CanUse() bool {
	return r.supports && r.reason == ""
}

// State returns a copy of the reader state.
func (r *Reader) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return State{
		Reading:           r.reading,
		Data:              r.data,
		Error:             r.errMsg,
		Supported:         r.supports,
		CanUse:            r.CanUse(),
		UnsupportedReason: r.reason,
	}
}

// Watch returns a channel signalled after every state change.
func (r *Reader) Watch() <-chan struct{} {
	ch := make(chan struct{}, 1)
	r.mu.Lock()
	r.watch = append(r.watch, ch)
	r.mu.Unlock()
	return ch
}

// Start opens a scan session. It refuses when unsupported or already
// reading. The session lives until a tag is read, Stop is called, or ctx
// ends.
func (r *Reader) Start(ctx context.Context) error {
	if !r.CanUse() {
		r.mu.Lock()
		r.errMsg = r.reason
		r.mu.Unlock()
		r.notify()
		return fmt.Errorf("start nfc: %w: %s", ErrUnsupported, r.reason)
	}

	r.mu.Lock()
	if r.reading {
		r.mu.Unlock()
		r.logger.Warn("nfc reading already active")
		return ErrAlreadyReading
	}
	r.stopLocked()
	sessCtx, cancel := context.WithCancel(ctx)
	r.session++
	id := r.session
	r.cancel = cancel
	r.data = ""
	r.errMsg = ""
	r.reading = true
	r.mu.Unlock()
	r.notify()

	readings, err := r.platform.Scan(sessCtx)
	if err != nil {
		cancel()
		aborted := errors.Is(err, context.Canceled) || sessCtx.Err() != nil
		r.mu.Lock()
		if r.session == id {
			r.reading = false
			r.cancel = nil
			if !aborted {
				r.errMsg = msgStartFailure + err.Error()
			}
		}
		r.mu.Unlock()
		r.notify()
		if aborted {
			return nil
		}
		r.logger.Error("nfc scan failed to start", "error", err)
		return fmt.Errorf("start nfc: %w", err)
	}

	r.logger.Debug("nfc session started", "session", id)
	go r.consume(id, readings)
	return nil
}

// Stop cancels the active session, discarding any partial read. It is safe
// to call when not reading.
func (r *Reader) Stop() {
	r.mu.Lock()
	wasReading := r.reading
	r.stopLocked()
	r.mu.Unlock()
	if wasReading {
		r.notify()
	}
}

// Clear drops the last read serial and error.
func (r *Reader) Clear() {
	r.mu.Lock()
	r.data = ""
	r.errMsg = ""
	r.mu.Unlock()
	r.notify()
}

func (r *Reader) consume(id uint64, readings <-chan Reading) {
	for reading := range readings {
		r.mu.Lock()
		if r.session != id || !r.reading {
			r.mu.Unlock()
			continue
		}
		switch {
		case reading.Err != nil:
			r.errMsg = msgReadFailed
			r.logger.Warn("nfc read error", "error", reading.Err)
		case strings.TrimSpace(reading.Serial) == "":
			r.errMsg = msgNoSerial
			r.logger.Warn("nfc tag without serial", "error", ErrNoSerial)
		default:
			r.data = NormalizeSerial(reading.Serial)
			r.logger.Info("nfc tag read", "serial", r.data)
		}
		r.stopLocked()
		r.mu.Unlock()
		r.notify()
	}
	r.logger.Debug("nfc session closed", "session", id)
}

// stopLocked cancels the session. Callers hold mu.
func (r *Reader) stopLocked() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.reading = false
}

func (r *Reader) notify() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.watch {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// NormalizeSerial upper-cases a tag serial and replaces colons with dashes:
// "04:a2:3b" becomes "04-A2-3B".
func NormalizeSerial(serial string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(serial)), ":", "-")
}
