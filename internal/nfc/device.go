package nfc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// LineDevice reads tags from a line-oriented device: a USB reader exposed as
// a serial port, a keyboard-wedge bridge, or a FIFO fed by a helper daemon.
//
// Each line is one event:
//
//	04:a2:3b:1c      a tag serial
//	-                a tag without a serial
//	error: <text>    a read failure reported by the device
//
// Blank lines are ignored.
type LineDevice struct {
	Path string

	// open is swapped in tests.
	open func(path string) (io.ReadCloser, error)
}

// Ensure LineDevice implements Platform at compile time.
var _ Platform = (*LineDevice)(nil)

// NewLineDevice returns a device reading from path.
func NewLineDevice(path string) *LineDevice {
	return &LineDevice{Path: strings.TrimSpace(path)}
}

// Supported reports whether the device node exists.
func (d *LineDevice) Supported() bool {
	if d == nil || d.Path == "" {
		return false
	}
	if d.open != nil {
		return true
	}
	_, err := os.Stat(d.Path)
	return err == nil
}

// Scan opens the device and streams readings until ctx ends or the device
// returns EOF.
func (d *LineDevice) Scan(ctx context.Context) (<-chan Reading, error) {
	open := d.open
	if open == nil {
		open = func(path string) (io.ReadCloser, error) { return os.Open(path) }
	}
	rc, err := open(d.Path)
	if err != nil {
		return nil, fmt.Errorf("open nfc device: %w", err)
	}

	out := make(chan Reading)
	stop := context.AfterFunc(ctx, func() { _ = rc.Close() })

	go func() {
		defer close(out)
		defer func() {
			stop()
			_ = rc.Close()
		}()

		scanner := bufio.NewScanner(rc)
		for scanner.Scan() {
			reading, ok := ParseLine(scanner.Text())
			if !ok {
				continue
			}
			select {
			case out <- reading:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil && !errors.Is(err, os.ErrClosed) {
			select {
			case out <- Reading{Err: fmt.Errorf("read nfc device: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

// ParseLine converts one device line into a Reading. ok is false for blank
// lines.
func ParseLine(line string) (Reading, bool) {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return Reading{}, false
	case trimmed == "-":
		return Reading{}, true
	case strings.HasPrefix(strings.ToLower(trimmed), "error:"):
		msg := strings.TrimSpace(trimmed[len("error:"):])
		return Reading{Err: errors.New(msg)}, true
	default:
		return Reading{Serial: trimmed}, true
	}
}
