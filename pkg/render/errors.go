// Package render holds the failure condition shared by the tree and map
// renderers.
package render

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"
)

// ErrRenderFailed is the single condition reported to hosts when a render
// pass cannot complete. Match it with errors.Is.
var ErrRenderFailed = errors.New("render failed")

// Error wraps a render failure with the widget and phase it happened in.
type Error struct {
	Widget string    // "tree", "map"
	Phase  string    // "parse", "layout", "mount", "markers", "write", ...
	Cause  error     // The underlying error
	Time   time.Time // When the failure occurred
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Widget, e.Phase, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports every render Error as ErrRenderFailed.
func (e *Error) Is(target error) bool {
	return target == ErrRenderFailed
}

// Fail builds an Error for widget and phase. A nil cause yields nil.
func Fail(widget, phase string, cause error) error {
	if cause == nil {
		return nil
	}
	var existing *Error
	if errors.As(cause, &existing) {
		return cause
	}
	return &Error{Widget: widget, Phase: phase, Cause: cause, Time: time.Now()}
}

// Safe runs fn and converts both returned errors and panics into an Error.
func Safe(widget, phase string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{
				Widget: widget,
				Phase:  phase,
				Cause:  fmt.Errorf("panic: %v\n%s", r, debug.Stack()),
				Time:   time.Now(),
			}
		}
	}()
	return Fail(widget, phase, fn())
}
