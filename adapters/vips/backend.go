//go:build cgo

// Package vips implements the backend capability set on libvips via govips.
// JPEG shrink-on-load goes through the codec's import shrink parameter, so a
// reduction routed this way never materialises the full-resolution bitmap.
package vips

import (
	"context"
	"fmt"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/Skryldev/image-resizer/config"
	"github.com/Skryldev/image-resizer/core"
)

// Backend is a libvips-powered core.Backend.  Safe for concurrent use across
// goroutines; libvips manages its own internal thread pool and operation
// cache, sized once at startup.
type Backend struct {
	cfg config.BackendConfig
}

// NewBackend initialises libvips and returns a ready Backend.  Call Close()
// when the process exits.
func NewBackend(cfg config.BackendConfig) *Backend {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxCacheMem <= 0 {
		cfg.MaxCacheMem = 128 * 1024 * 1024
	}
	if cfg.MaxCacheOps <= 0 {
		cfg.MaxCacheOps = 256
	}
	govips.Startup(&govips.Config{
		ConcurrencyLevel: cfg.Concurrency,
		MaxCacheMem:      cfg.MaxCacheMem,
		MaxCacheSize:     cfg.MaxCacheOps,
		ReportLeaks:      cfg.ReportLeaks,
	})
	return &Backend{cfg: cfg}
}

// Close releases all libvips resources.  Call once at process exit.
func (b *Backend) Close() {
	govips.Shutdown()
}

// Rep wraps a *govips.ImageRef as a core.Representation.
type Rep struct {
	ref *govips.ImageRef
}

func (r *Rep) Width() int  { return r.ref.Width() }
func (r *Rep) Height() int { return r.ref.Height() }
func (r *Rep) Close()      { r.ref.Close() }

// Ref returns the underlying govips image for direct backend access.
func (r *Rep) Ref() *govips.ImageRef { return r.ref }

func (b *Backend) Decode(ctx context.Context, data []byte, format core.Format) (core.Representation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ref, err := govips.NewImageFromBuffer(data)
	if err != nil {
		return nil, fmt.Errorf("vips: decode: %w", err)
	}
	if got := imageTypeToFormat(ref.Format()); got != format {
		ref.Close()
		return nil, fmt.Errorf("vips: decode: declared format %s, buffer is %s", format, got)
	}
	return &Rep{ref: ref}, nil
}

func (b *Backend) DecodeShrink(ctx context.Context, data []byte, shrink int) (core.Representation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if shrink != 2 && shrink != 4 && shrink != 8 {
		return nil, fmt.Errorf("vips: shrink-on-load step must be 2, 4 or 8, got %d", shrink)
	}
	params := govips.NewImportParams()
	params.JpegShrinkFactor.Set(shrink)
	ref, err := govips.LoadImageFromBuffer(data, params)
	if err != nil {
		return nil, fmt.Errorf("vips: shrink-on-load decode: %w", err)
	}
	return &Rep{ref: ref}, nil
}

func (b *Backend) Shrink(ctx context.Context, rep core.Representation, n int) (core.Representation, error) {
	if n < 1 {
		return nil, fmt.Errorf("vips: integer shrink factor must be >= 1, got %d", n)
	}
	return b.transform(ctx, rep, "shrink", func(ref *govips.ImageRef) error {
		return ref.Resize(1/float64(n), govips.KernelLinear)
	})
}

func (b *Backend) Scale(ctx context.Context, rep core.Representation, scale float64, interp core.Interpolator) (core.Representation, error) {
	if scale <= 0 || scale > 1 {
		return nil, fmt.Errorf("vips: scale must be in (0, 1], got %g", scale)
	}
	return b.transform(ctx, rep, "scale", func(ref *govips.ImageRef) error {
		return ref.Resize(scale, kernelFor(interp))
	})
}

func (b *Backend) ExtractArea(ctx context.Context, rep core.Representation, x, y, w, h int) (core.Representation, error) {
	return b.transform(ctx, rep, "extract_area", func(ref *govips.ImageRef) error {
		return ref.ExtractArea(x, y, w, h)
	})
}

func (b *Backend) ToColorSpace(ctx context.Context, rep core.Representation, space core.ColorSpace) (core.Representation, error) {
	interpretation, err := interpretationFor(space)
	if err != nil {
		return nil, err
	}
	return b.transform(ctx, rep, "colourspace", func(ref *govips.ImageRef) error {
		return ref.ToColorSpace(interpretation)
	})
}

func (b *Backend) Encode(ctx context.Context, rep core.Representation, format core.Format, opts core.EncodeOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vr, err := unwrap(rep)
	if err != nil {
		return nil, err
	}

	switch format {
	case core.FormatJPEG:
		ep := govips.NewJpegExportParams()
		if opts.Quality > 0 {
			ep.Quality = opts.Quality
		}
		ep.StripMetadata = opts.StripEXIF
		ep.Interlace = opts.Interlaced
		buf, _, err := vr.ref.ExportJpeg(ep)
		if err != nil {
			return nil, fmt.Errorf("vips: encode jpeg: %w", err)
		}
		return buf, nil

	case core.FormatPNG:
		ep := govips.NewPngExportParams()
		if opts.Compression > 0 {
			ep.Compression = opts.Compression
		}
		ep.StripMetadata = opts.StripEXIF
		ep.Interlace = opts.Interlaced
		buf, _, err := vr.ref.ExportPng(ep)
		if err != nil {
			return nil, fmt.Errorf("vips: encode png: %w", err)
		}
		return buf, nil

	default:
		return nil, fmt.Errorf("vips: no encoder for format %s", format)
	}
}

// transform copies the source ref, applies mutate to the copy, and returns it
// as a fresh representation.  The source ref is untouched, so the entity's
// swap-and-release discipline holds even when mutate fails.
func (b *Backend) transform(ctx context.Context, rep core.Representation, op string, mutate func(*govips.ImageRef) error) (core.Representation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vr, err := unwrap(rep)
	if err != nil {
		return nil, err
	}
	cp, err := vr.ref.Copy()
	if err != nil {
		return nil, fmt.Errorf("vips: %s: copy: %w", op, err)
	}
	if err := mutate(cp); err != nil {
		cp.Close()
		return nil, fmt.Errorf("vips: %s: %w", op, err)
	}
	return &Rep{ref: cp}, nil
}

func kernelFor(interp core.Interpolator) govips.Kernel {
	if interp == core.InterpBicubic {
		return govips.KernelCubic
	}
	return govips.KernelLinear
}

func interpretationFor(space core.ColorSpace) (govips.Interpretation, error) {
	switch space {
	case core.ColorSpaceSRGB:
		return govips.InterpretationSRGB, nil
	case core.ColorSpaceGray:
		return govips.InterpretationBW, nil
	case core.ColorSpaceCMYK:
		return govips.InterpretationCMYK, nil
	}
	return govips.InterpretationError, fmt.Errorf("vips: unsupported colourspace %s", space)
}

func imageTypeToFormat(t govips.ImageType) core.Format {
	switch t {
	case govips.ImageTypeJPEG:
		return core.FormatJPEG
	case govips.ImageTypePNG:
		return core.FormatPNG
	case govips.ImageTypeGIF:
		return core.FormatGIF
	}
	return core.FormatUnknown
}

func unwrap(rep core.Representation) (*Rep, error) {
	r, ok := rep.(*Rep)
	if !ok || r == nil {
		return nil, fmt.Errorf("vips: representation was not produced by this backend")
	}
	return r, nil
}

// compile-time interface checks
var _ core.Backend = (*Backend)(nil)
var _ core.Representation = (*Rep)(nil)
