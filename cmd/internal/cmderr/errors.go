package cmderr

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Exit codes of the application.
const (
	// CodeInternal is returned for any unclassified failure.
	CodeInternal = 1
	// CodeConfig is returned when configuration can not be read or is invalid.
	CodeConfig = 2
	// CodeNotFound is returned when requested entry is missing.
	CodeNotFound = 3
)

// ExitErr specific error for ExitOnErr function that passes the exit code and error caused.
type ExitErr struct {
	Code  int
	Cause error
}

func (x ExitErr) Error() string { return x.Cause.Error() }

func (x ExitErr) Unwrap() error { return x.Cause }

// Wrap returns ExitErr with the given code. Returns nil if err is nil.
func Wrap(code int, err error) error {
	if err == nil {
		return nil
	}
	return ExitErr{Code: code, Cause: err}
}

// Code returns exit code carried by err, CodeInternal if there is none and
// 0 for nil.
func Code(err error) int {
	if err == nil {
		return 0
	}

	var e ExitErr
	if errors.As(err, &e) {
		return e.Code
	}

	return CodeInternal
}

// ExitOnErr writes error to os.Stderr and calls os.Exit with passed exit code or by default 1.
// Does nothing if err is nil.
func ExitOnErr(err error) {
	if err != nil {
		Print(os.Stderr, err)
		os.Exit(Code(err))
	}
}

// Print writes err to w in the same form as ExitOnErr does.
func Print(w io.Writer, err error) {
	fmt.Fprintln(w, "Error:", err)
}
