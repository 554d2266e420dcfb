package handler

import (
	"strings"

	"gitlab.com/tozd/go/errors"
)

// Kind classifies a failure. Every kind is fatal to the ingestion run.
type Kind uint8

// Failure kinds.
const (
	// Structural covers malformed or inconsistent headers and framing errors.
	Structural Kind = iota + 1
	// IO covers failures of the underlying file operations.
	IO
	// UnsupportedConversion is returned when a read asks for a sample kind
	// the handler cannot produce.
	UnsupportedConversion
	// Config covers invalid overrides.
	Config
)

func (k Kind) String() string {
	switch k {
	case Structural:
		return "structural"
	case IO:
		return "io"
	case UnsupportedConversion:
		return "unsupported conversion"
	case Config:
		return "config"
	default:
		return "unknown"
	}
}

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrStructural            = errors.New("structural error")
	ErrIO                    = errors.New("i/o error")
	ErrUnsupportedConversion = errors.New("unsupported conversion")
	ErrConfig                = errors.New("configuration error")
)

// Error is the error type returned by handlers and the driver.
type Error struct {
	Kind Kind
	Op   string // operation, like "multi read"
	Path string // file involved, empty or NotARealFile for synthetic sources
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Path != "" && e.Path != NotARealFile {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	b.WriteString(": ")
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else {
		b.WriteString(e.Kind.String())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrStructural:
		return e.Kind == Structural
	case ErrIO:
		return e.Kind == IO
	case ErrUnsupportedConversion:
		return e.Kind == UnsupportedConversion
	case ErrConfig:
		return e.Kind == Config
	}
	return false
}

// Errorf builds an *Error of the given kind with a formatted cause.
func Errorf(kind Kind, op, path, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Path: path, Err: errors.Errorf(format, args...)}
}

// WrapIO wraps an operating system failure. A nil err yields nil.
func WrapIO(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: IO, Op: op, Path: path, Err: err}
}
