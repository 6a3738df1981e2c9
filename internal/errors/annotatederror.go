// Package errors annotates errors with slog attributes and the source location where they were raised.
//
// It is a drop-in replacement for the standard library errors package so that call sites only need one import.
package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
)

// annotatedError carries a message, optional wrapped error, slog attributes and the program counter of the caller.
type annotatedError struct {
	msg   string
	err   error
	attrs []slog.Attr
	pc    uintptr
}

func (e *annotatedError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *annotatedError) Unwrap() error {
	return e.err
}

func callerPC(skip int) uintptr {
	var pcs [1]uintptr
	// Skip runtime.Callers, callerPC and the exported constructor.
	runtime.Callers(skip+2, pcs[:]) //nolint:mnd // see above
	return pcs[0]
}

// New returns an error that records where it was created.
func New(text string, attrs ...slog.Attr) error {
	return &annotatedError{msg: text, err: nil, attrs: attrs, pc: callerPC(1)}
}

// NewSentinel returns a plain error meant to be declared as a package level variable and compared with [Is].
//
// Sentinels don't carry a source location because they are created at init time.
func NewSentinel(text string) error {
	return stderrors.New(text)
}

// Wrap annotates err with a message and attributes. The source location of the caller is recorded.
func Wrap(err error, msg string, attrs ...slog.Attr) error {
	return &annotatedError{msg: msg, err: err, attrs: attrs, pc: callerPC(1)}
}

// DecoratePanic converts a recovered panic value into an error. It returns nil if v is nil.
func DecoratePanic(v any) error {
	if v == nil {
		return nil
	}
	var err error
	switch t := v.(type) {
	case error:
		err = t
	default:
		err = fmt.Errorf("%v", t)
	}
	// Skip the runtime panic frames so that the source points to the panicking line.
	return &annotatedError{msg: "panic", err: err, attrs: nil, pc: callerPC(3)} //nolint:mnd // see above
}

// SlogError renders err as a slog group with the message, collected annotations and the innermost source location.
func SlogError(err error) slog.Attr {
	if err == nil {
		return slog.Attr{Key: "error", Value: slog.StringValue("<nil>")}
	}

	var (
		annotations []any
		pc          uintptr
	)
	walk(err, func(ae *annotatedError) {
		for _, a := range ae.attrs {
			annotations = append(annotations, a)
		}
		if ae.pc != 0 {
			pc = ae.pc
		}
	})

	attrs := []any{slog.String("message", err.Error())}
	if len(annotations) > 0 {
		attrs = append(attrs, slog.Group("annotations", annotations...))
	}
	if pc != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
		if frame.File != "" {
			attrs = append(attrs, slog.String("source", frame.File+":"+strconv.Itoa(frame.Line)))
		}
	}
	return slog.Group("error", attrs...)
}

// walk visits every annotatedError in the tree of err, outermost first.
func walk(err error, visit func(*annotatedError)) {
	if err == nil {
		return
	}
	if ae, ok := err.(*annotatedError); ok { //nolint:errorlint // we walk the chain manually
		visit(ae)
	}
	switch u := err.(type) { //nolint:errorlint // we walk the chain manually
	case interface{ Unwrap() []error }:
		for _, e := range u.Unwrap() {
			walk(e, visit)
		}
	case interface{ Unwrap() error }:
		walk(u.Unwrap(), visit)
	}
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err.
func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

// Join returns an error that wraps the given errors.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}
