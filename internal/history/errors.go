package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrorKind classifies a failure so it can be logged at the right level and
// asserted on in tests without string matching.
type ErrorKind string

const (
	KindStorageRead  ErrorKind = "storage-read"
	KindStorageWrite ErrorKind = "storage-write"
	KindQuota        ErrorKind = "quota"
	KindDecode       ErrorKind = "decode"
	KindInvalid      ErrorKind = "invalid"
	KindClipboard    ErrorKind = "clipboard"
	KindTransport    ErrorKind = "transport"
)

// Error is a non-fatal failure of a history or popup operation. Callers
// receive it for inspection; it never aborts the operation's caller.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fail wraps err as an *Error of the given kind.
func Fail(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Report logs err once at a level matching its kind and returns it unchanged.
// Clipboard access failures are expected while the terminal is unfocused or
// headless, so they only show up at debug.
func Report(err error) error {
	if err == nil {
		return nil
	}
	level := slog.LevelError
	switch KindOf(err) {
	case KindClipboard:
		level = slog.LevelDebug
	case KindQuota, KindTransport, KindInvalid:
		level = slog.LevelWarn
	}
	attrs := []any{"err", err}
	var e *Error
	if errors.As(err, &e) {
		attrs = append(attrs, "kind", string(e.Kind), "op", e.Op)
	}
	slog.Log(context.Background(), level, "operation failed", attrs...)
	return err
}
