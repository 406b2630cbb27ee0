// Package native implements the backend capability set with pure-Go codecs.
// It exists so the pipeline can run without cgo; production deployments use
// the libvips backend in adapters/vips.
package native

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math"

	"github.com/nfnt/resize"
	xdraw "golang.org/x/image/draw"

	"github.com/Skryldev/image-resizer/core"
	"github.com/Skryldev/image-resizer/utils"
)

// Config configures the native backend.
type Config struct {
	DefaultQuality int // JPEG quality when EncodeOptions.Quality == 0
	PNGCompression int // zlib level 0-9; 0 = encoder default
}

// Backend is a pure-Go core.Backend.  Safe for concurrent use; every call
// allocates fresh pixel buffers and shares nothing.
type Backend struct {
	cfg Config
}

// NewBackend returns a ready Backend.
func NewBackend(cfg Config) *Backend {
	if cfg.DefaultQuality <= 0 {
		cfg.DefaultQuality = 85
	}
	return &Backend{cfg: cfg}
}

// Close releases nothing; pixel buffers are garbage collected.
func (b *Backend) Close() {}

// Rep wraps a decoded image.Image as a core.Representation.
type Rep struct {
	img image.Image
}

func (r *Rep) Width() int  { return r.img.Bounds().Dx() }
func (r *Rep) Height() int { return r.img.Bounds().Dy() }

// Close is a no-op; the handle contract is satisfied by dropping the
// reference.
func (r *Rep) Close() {}

// Image returns the wrapped decoded image.
func (r *Rep) Image() image.Image { return r.img }

func (b *Backend) Decode(ctx context.Context, data []byte, format core.Format) (core.Representation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		img image.Image
		err error
	)
	switch format {
	case core.FormatJPEG:
		img, err = jpeg.Decode(utils.BytesReader(data))
	case core.FormatPNG:
		img, err = png.Decode(utils.BytesReader(data))
	case core.FormatGIF:
		img, err = gif.Decode(utils.BytesReader(data))
	default:
		return nil, fmt.Errorf("native: no decoder for format %s", format)
	}
	if err != nil {
		return nil, fmt.Errorf("native: decode %s: %w", format, err)
	}
	return &Rep{img: img}, nil
}

func (b *Backend) DecodeShrink(ctx context.Context, data []byte, shrink int) (core.Representation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if shrink != 2 && shrink != 4 && shrink != 8 {
		return nil, fmt.Errorf("native: shrink-on-load step must be 2, 4 or 8, got %d", shrink)
	}

	// The stdlib JPEG decoder has no DCT-domain scaled decode; decode full
	// and box-shrink after.  Geometrically equivalent, just not as cheap.
	img, err := jpeg.Decode(utils.BytesReader(data))
	if err != nil {
		return nil, fmt.Errorf("native: shrink-on-load decode: %w", err)
	}
	return &Rep{img: shrinkImage(img, shrink)}, nil
}

func (b *Backend) Shrink(ctx context.Context, rep core.Representation, n int) (core.Representation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := unwrap(rep)
	if err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, fmt.Errorf("native: integer shrink factor must be >= 1, got %d", n)
	}
	if n == 1 {
		return &Rep{img: src}, nil
	}
	return &Rep{img: shrinkImage(src, n)}, nil
}

func (b *Backend) Scale(ctx context.Context, rep core.Representation, scale float64, interp core.Interpolator) (core.Representation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := unwrap(rep)
	if err != nil {
		return nil, err
	}
	if scale <= 0 || scale > 1 {
		return nil, fmt.Errorf("native: scale must be in (0, 1], got %g", scale)
	}

	bounds := src.Bounds()
	dstW := int(math.Round(float64(bounds.Dx()) * scale))
	dstH := int(math.Round(float64(bounds.Dy()) * scale))
	if dstW < 1 {
		dstW = 1
	}
	if dstH < 1 {
		dstH = 1
	}

	var sampler xdraw.Interpolator
	switch interp {
	case core.InterpBicubic:
		sampler = xdraw.CatmullRom
	default:
		sampler = xdraw.BiLinear
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	sampler.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return &Rep{img: dst}, nil
}

func (b *Backend) ExtractArea(ctx context.Context, rep core.Representation, x, y, w, h int) (core.Representation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := unwrap(rep)
	if err != nil {
		return nil, err
	}

	rect := image.Rect(x, y, x+w, y+h)
	if x < 0 || y < 0 || w <= 0 || h <= 0 || !rect.In(src.Bounds()) {
		return nil, fmt.Errorf("native: extract area %v exceeds image bounds %v", rect, src.Bounds())
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), src, rect.Min, draw.Src)
	return &Rep{img: dst}, nil
}

func (b *Backend) ToColorSpace(ctx context.Context, rep core.Representation, space core.ColorSpace) (core.Representation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := unwrap(rep)
	if err != nil {
		return nil, err
	}

	bounds := src.Bounds()
	switch space {
	case core.ColorSpaceSRGB:
		dst := image.NewRGBA(bounds)
		draw.Draw(dst, bounds, src, bounds.Min, draw.Src)
		return &Rep{img: dst}, nil
	case core.ColorSpaceGray:
		dst := image.NewGray(bounds)
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				dst.Set(x, y, color.GrayModel.Convert(src.At(x, y)))
			}
		}
		return &Rep{img: dst}, nil
	case core.ColorSpaceCMYK:
		dst := image.NewCMYK(bounds)
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				dst.Set(x, y, color.CMYKModel.Convert(src.At(x, y)))
			}
		}
		return &Rep{img: dst}, nil
	}
	return nil, fmt.Errorf("native: unsupported colourspace %s", space)
}

func (b *Backend) Encode(ctx context.Context, rep core.Representation, format core.Format, opts core.EncodeOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := unwrap(rep)
	if err != nil {
		return nil, err
	}

	buf := utils.AcquireBuffer()
	defer utils.ReleaseBuffer(buf)

	switch format {
	case core.FormatJPEG:
		quality := opts.Quality
		if quality <= 0 {
			quality = b.cfg.DefaultQuality
		}
		if err := jpeg.Encode(buf, src, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("native: encode jpeg: %w", err)
		}
	case core.FormatPNG:
		level := opts.Compression
		if level == 0 {
			level = b.cfg.PNGCompression
		}
		enc := png.Encoder{CompressionLevel: pngLevel(level)}
		if err := enc.Encode(buf, src); err != nil {
			return nil, fmt.Errorf("native: encode png: %w", err)
		}
	default:
		return nil, fmt.Errorf("native: no encoder for format %s", format)
	}

	return utils.CloneBytes(buf.Bytes()), nil
}

// shrinkImage reduces both axes by the integer factor n using a bilinear
// resampler at the exact target size (vips_shrink analogue).
func shrinkImage(src image.Image, n int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx() / n
	h := bounds.Dy() / n
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return resize.Resize(uint(w), uint(h), src, resize.Bilinear)
}

func pngLevel(level int) png.CompressionLevel {
	switch {
	case level <= 0:
		return png.DefaultCompression
	case level <= 3:
		return png.BestSpeed
	case level >= 9:
		return png.BestCompression
	default:
		return png.DefaultCompression
	}
}

func unwrap(rep core.Representation) (image.Image, error) {
	r, ok := rep.(*Rep)
	if !ok || r == nil {
		return nil, fmt.Errorf("native: representation was not produced by this backend")
	}
	return r.img, nil
}

// compile-time interface checks
var _ core.Backend = (*Backend)(nil)
var _ core.Representation = (*Rep)(nil)
