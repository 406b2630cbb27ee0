// Package imageresizer decodes an encoded image, resizes it by combining
// integer-factor pre-shrinking with a fractional residual affine scale,
// optionally crops and colourspace-normalizes it, and re-encodes it for
// delivery.  Pixel work is delegated to a backend (libvips in production,
// a pure-Go fallback for cgo-free builds); this module owns the
// orchestration policy.
package imageresizer

import (
	"context"
	"fmt"
	"io"

	"github.com/Skryldev/image-resizer/config"
	"github.com/Skryldev/image-resizer/core"
	apperrors "github.com/Skryldev/image-resizer/errors"
	"github.com/Skryldev/image-resizer/resize"
	"github.com/Skryldev/image-resizer/utils"
)

// Re-export Format constants for convenience.
const (
	JPEG = core.FormatJPEG
	PNG  = core.FormatPNG
	GIF  = core.FormatGIF
)

// DefaultConfig returns a sensible production configuration.
func DefaultConfig() config.Config { return config.Default() }

// DetectFormat sniffs the magic header of data.
func DetectFormat(data []byte) (core.Format, error) {
	f := core.Format(utils.DetectFormat(data))
	switch f {
	case core.FormatJPEG, core.FormatPNG, core.FormatGIF:
		return f, nil
	}
	return core.FormatUnknown, apperrors.New(apperrors.CategoryInput, "detect_format",
		apperrors.ErrUnknownFormat)
}

// Open sniffs the format of data and constructs an image entity.  The entity
// borrows data for its lifetime; release it with Close when done.
func Open(ctx context.Context, backend core.Backend, data []byte) (*core.Image, error) {
	format, err := DetectFormat(data)
	if err != nil {
		return nil, err
	}
	return core.NewImage(ctx, backend, data, format)
}

// OpenReader drains r (bounded by cfg.MaxImageBytes when set) and constructs
// an image entity from the result.
func OpenReader(ctx context.Context, backend core.Backend, r io.Reader, cfg config.Config) (*core.Image, error) {
	if cfg.MaxImageBytes > 0 {
		r = &utils.LimitedReader{R: r, Max: cfg.MaxImageBytes}
	}
	buf, err := utils.DrainReader(ctx, r, cfg.ChunkSize)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryInput, "open_reader", err)
	}
	data := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)
	return Open(ctx, backend, data)
}

// NewPipeline creates a reusable pipeline over the given operations.
func NewPipeline(ops ...resize.Operation) *resize.Pipeline {
	return resize.New().Use(ops...)
}

// ── Operation constructors ────────────────────────────────────────────────────

// Shrink returns an operation applying the integer pre-shrink policy.
func Shrink(factor float64) resize.Operation { return &resize.ShrinkOp{Factor: factor} }

// ResidualScale returns an operation resolving the fractional leftover of
// factor via a bilinear affine transform.
func ResidualScale(factor float64) resize.Operation {
	return &resize.ResidualScaleOp{Factor: factor}
}

// Crop returns a crop operation.
func Crop(x, y, width, height int) resize.Operation {
	return &resize.CropOp{X: x, Y: y, Width: width, Height: height}
}

// Colourspace returns a colourspace conversion operation.
func Colourspace(space core.ColorSpace) resize.Operation {
	return &resize.ColourspaceOp{Space: space}
}

// Resize returns an operation resolving a width/height/fit request into the
// shrink / affine / crop sequence.
func Resize(params resize.ResizeParams) resize.Operation {
	return &resize.ResizeOp{Params: params}
}

// ResizeFromParams parses a request parameter list (e.g.
// "width=300,height=200,fit=crop") into a resize operation.
func ResizeFromParams(params string) (resize.Operation, error) {
	p, err := resize.ParseParams(params)
	if err != nil {
		return nil, fmt.Errorf("parse params: %w", err)
	}
	return &resize.ResizeOp{Params: p}, nil
}
