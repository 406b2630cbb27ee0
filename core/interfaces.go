package core

import (
	"context"
	"time"
)

// Representation is an opaque handle to a decoded raster image.  Handles are
// exclusively owned by an Image entity and released through Close exactly once.
type Representation interface {
	Width() int
	Height() int
	Close()
}

// Backend is the external image-processing capability set the pipeline
// orchestrates but never reimplements.  Every method that produces a
// Representation returns a fresh handle; the caller owns it and is
// responsible for releasing whichever handle it replaces.  Implementations
// live in adapters/ and must be safe for concurrent use across goroutines.
type Backend interface {
	// Decode loads a full-resolution representation from encoded bytes.
	Decode(ctx context.Context, data []byte, format Format) (Representation, error)

	// DecodeShrink re-decodes JPEG bytes at 1/shrink scale (shrink in {2,4,8}),
	// instructing the codec to discard detail during decode.
	DecodeShrink(ctx context.Context, data []byte, shrink int) (Representation, error)

	// Shrink reduces both axes by the integer factor n.
	Shrink(ctx context.Context, rep Representation, n int) (Representation, error)

	// Scale applies an affine scale transform with the given interpolator.
	// scale is in (0, 1]: the pipeline only ever downscales.
	Scale(ctx context.Context, rep Representation, scale float64, interp Interpolator) (Representation, error)

	// ExtractArea crops the rectangle [x, x+w) x [y, y+h).  The backend is
	// the authority on bounds validation.
	ExtractArea(ctx context.Context, rep Representation, x, y, w, h int) (Representation, error)

	// ToColorSpace converts the representation to the target interpretation.
	ToColorSpace(ctx context.Context, rep Representation, space ColorSpace) (Representation, error)

	// Encode serialises the representation in the given format.
	Encode(ctx context.Context, rep Representation, format Format, opts EncodeOptions) ([]byte, error)

	// Close releases backend-wide resources.  Call once at process exit.
	Close()
}

// Logger is a minimal structured logging interface.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// MetricsCollector receives performance observations from the pipeline.
type MetricsCollector interface {
	RecordProcessingTime(opName string, d interface{ Seconds() float64 })
	RecordThroughput(bytes int64)
	RecordError(opName string, category string)
}

// Hook is an optional observer invoked around pipeline operations.
type Hook interface {
	BeforeOp(ctx context.Context, opName string, img *Image)
	AfterOp(ctx context.Context, opName string, img *Image, d time.Duration, err error)
}
