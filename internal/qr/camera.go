package qr

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Facing modes accepted in Constraints.
const (
	FacingEnvironment = "environment"
	FacingUser        = "user"
)

// Constraints are capture hints. Cameras honor what they can and ignore the
// rest.
type Constraints struct {
	Facing    string
	Width     int
	Height    int
	MaxWidth  int
	MaxHeight int
}

// DefaultConstraints prefer the rear camera at 1280x720.
var DefaultConstraints = Constraints{
	Facing:    FacingEnvironment,
	Width:     1280,
	Height:    720,
	MaxWidth:  1920,
	MaxHeight: 1080,
}

// Camera opens decode streams. Opening fails with ErrPermissionDenied when
// access is refused.
type Camera interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream yields one decode attempt per call to Next: the decoded text, or an
// error. Decoder noise is reported as ErrNotFound, ErrChecksum or ErrFormat.
// io.EOF means the stream is gone. Close releases the device and is safe to
// call more than once.
type Stream interface {
	Next(ctx context.Context) (string, error)
	Close() error
}

// LineCamera is a Camera backed by a line-oriented decoder: a USB barcode
// scanner in serial mode, or a FIFO written by a decoder process such as
// zbarcam. Each line is one decode attempt:
//
//	PLATE-42               decoded text
//	error: not_found       no code in frame
//	error: checksum        damaged code
//	error: format          unreadable code
//	error: <other>         a device error
type LineCamera struct {
	Path string

	// open is swapped in tests.
	open func(path string) (io.ReadCloser, error)
}

// Ensure LineCamera implements Camera at compile time.
var _ Camera = (*LineCamera)(nil)

// NewLineCamera returns a camera reading from path.
func NewLineCamera(path string) *LineCamera {
	return &LineCamera{Path: strings.TrimSpace(path)}
}

// Open opens the device. A missing or unreadable device counts as denied
// access. Constraints do not apply to line devices.
func (c *LineCamera) Open(ctx context.Context, _ Constraints) (Stream, error) {
	if c == nil || c.Path == "" {
		return nil, fmt.Errorf("%w: no camera device configured", ErrPermissionDenied)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	open := c.open
	if open == nil {
		open = func(path string) (io.ReadCloser, error) { return os.Open(path) }
	}
	rc, err := open(c.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open camera: %v", ErrPermissionDenied, err)
	}
	return newLineStream(rc), nil
}

type lineStream struct {
	rc    io.ReadCloser
	lines chan string
	done  chan struct{}
	once  sync.Once
}

func newLineStream(rc io.ReadCloser) *lineStream {
	s := &lineStream{
		rc:    rc,
		lines: make(chan string),
		done:  make(chan struct{}),
	}
	go s.read()
	return s
}

func (s *lineStream) read() {
	defer close(s.lines)
	scanner := bufio.NewScanner(s.rc)
	for scanner.Scan() {
		select {
		case s.lines <- scanner.Text():
		case <-s.done:
			return
		}
	}
}

func (s *lineStream) Next(ctx context.Context) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-s.done:
			return "", io.EOF
		case line, ok := <-s.lines:
			if !ok {
				return "", io.EOF
			}
			res, ok := ParseLine(line)
			if !ok {
				continue
			}
			return res.Text, res.Err
		}
	}
}

func (s *lineStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.rc.Close()
	})
	return err
}

// Result is one decode attempt read from a line decoder.
type Result struct {
	Text string
	Err  error
}

// ParseLine converts one decoder line into a Result. ok is false for blank
// lines.
func ParseLine(line string) (Result, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Result{}, false
	}
	if !strings.HasPrefix(strings.ToLower(trimmed), "error:") {
		return Result{Text: trimmed}, true
	}
	msg := strings.TrimSpace(trimmed[len("error:"):])
	switch strings.ToLower(msg) {
	case "not_found", "notfound":
		return Result{Err: ErrNotFound}, true
	case "checksum":
		return Result{Err: ErrChecksum}, true
	case "format":
		return Result{Err: ErrFormat}, true
	default:
		return Result{Err: errors.New(msg)}, true
	}
}
