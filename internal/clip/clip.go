// Package clip gives the popup a uniform view of the system clipboard.
// Build constraints select the implementation:
//
//	native.go    golang.design/x/clipboard (cgo builds and Windows)
//	nocgo.go     builds where golang.design/x/clipboard cannot link
//	fallback.go  github.com/atotto/clipboard, text only, via xclip/xsel/wl-copy/pbcopy
//	memory.go    in-process fake for tests
package clip

import (
	"errors"
	"log/slog"

	atotto "github.com/atotto/clipboard"
)

var (
	// ErrEmpty means the clipboard holds nothing of the requested format.
	ErrEmpty = errors.New("clip: clipboard empty")
	// ErrUnsupported means the backend cannot handle the requested format.
	ErrUnsupported = errors.New("clip: format not supported by backend")
	// ErrUnavailable means the clipboard could not be accessed at all.
	ErrUnavailable = errors.New("clip: clipboard unavailable")
)

// Backend is the interface that all clipboard implementations satisfy.
type Backend interface {
	// Name returns a human-readable name for the backend.
	Name() string
	// ReadText returns the clipboard text, or ErrEmpty.
	ReadText() (string, error)
	// ReadImage returns the clipboard image as PNG bytes, or ErrEmpty.
	ReadImage() ([]byte, error)
	// WriteText replaces the clipboard contents with text.
	WriteText(text string) error
	// WriteImage replaces the clipboard contents with a PNG image.
	WriteImage(png []byte) error
	// Close releases any resources held by the backend.
	Close()
}

// New returns the best backend available: native, then the atotto text-only
// fallback, then a headless no-op. The native backend is initialised here
// rather than in init() so subcommands that never touch the clipboard (list,
// status) don't log spurious warnings on headless systems.
func New() Backend {
	b, err := newNative()
	if err == nil {
		return b
	}
	slog.Debug("native clipboard unavailable", "err", err)

	if !atotto.Unsupported {
		slog.Warn("using text-only clipboard fallback", "reason", err)
		return &fallbackBackend{}
	}
	slog.Warn("clipboard unavailable, running headless", "err", err)
	return headlessBackend{}
}

// headlessBackend never yields content and rejects writes.
type headlessBackend struct{}

func (headlessBackend) Name() string { return "headless (no-op)" }
func (headlessBackend) ReadText() (string, error) { return "", ErrUnavailable }
func (headlessBackend) ReadImage() ([]byte, error) { return nil, ErrUnavailable }
func (headlessBackend) WriteText(_ string) error { return ErrUnavailable }
func (headlessBackend) WriteImage(_ []byte) error { return ErrUnavailable }
func (headlessBackend) Close() {}
