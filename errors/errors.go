package errors

import (
	"errors"
	"fmt"
)

// Category classifies error types for targeted handling and monitoring.
type Category string

const (
	CategoryConstruct   Category = "construct"   // input bytes could not be decoded as the declared format
	CategoryUnsupported Category = "unsupported" // operation structurally disallowed for the format
	CategoryBackend     Category = "backend"     // a mutating backend operation failed
	CategoryEncode      Category = "encode"
	CategoryStorage     Category = "storage"
	CategoryConfig      Category = "config"
	CategoryInput       Category = "input"
)

// OpError is the structured error type used throughout the module.
type OpError struct {
	Category Category
	Op       string // operation name
	Err      error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// New creates an OpError.
func New(category Category, op string, err error) *OpError {
	return &OpError{Category: category, Op: op, Err: err}
}

// Wrap wraps an existing error with context.
func Wrap(category Category, op string, err error) error {
	if err == nil {
		return nil
	}
	return New(category, op, err)
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, cat Category) bool {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Category == cat
	}
	return false
}

// IsConstruction reports whether err is a construction failure: the input
// bytes could not be decoded and no entity was produced.
func IsConstruction(err error) bool { return IsCategory(err, CategoryConstruct) }

// IsUnsupported reports whether err is a deterministic capability failure
// (e.g. GIF re-encode).  Callers must not retry.
func IsUnsupported(err error) bool { return IsCategory(err, CategoryUnsupported) }

// IsBackend reports whether err came out of a backend operation.  The entity
// keeps its last successfully installed representation and remains usable.
func IsBackend(err error) bool { return IsCategory(err, CategoryBackend) }

// Sentinel errors for common failure modes.
var (
	ErrGIFEncode     = errors.New("gif re-encoding is not supported")
	ErrEmptyInput    = errors.New("empty input")
	ErrUnknownFormat = errors.New("unknown or unhandled image format")
	ErrInvalidFactor = errors.New("resize factor must be >= 1")
	ErrQueueFull     = errors.New("transform queue full")
	ErrShutdown      = errors.New("transformer stopped")
)
