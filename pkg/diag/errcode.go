package diag

import (
	"errors"
	"os"
)

// Code is a coarse error class used in log fields and exit reporting.
type Code string

const (
	CodeUnknown     Code = "unknown"
	CodeInput       Code = "input"
	CodeUnsupported Code = "unsupported"
	CodeConfig      Code = "config"
	CodeInternal    Code = "internal"
	CodeIO          Code = "io"
)

// Sentinels wrapped by package-level errors elsewhere.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnsupported  = errors.New("unsupported")
	ErrConfig       = errors.New("invalid configuration")
	ErrInternal     = errors.New("internal error")
)

// Classify maps err onto a Code using sentinels and stdlib error types only.
func Classify(err error) Code {
	switch {
	case err == nil:
		return CodeUnknown
	case errors.Is(err, ErrInvalidInput):
		return CodeInput
	case errors.Is(err, ErrUnsupported):
		return CodeUnsupported
	case errors.Is(err, ErrConfig):
		return CodeConfig
	case errors.Is(err, ErrInternal):
		return CodeInternal
	}
	var perr *os.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	return CodeUnknown
}
