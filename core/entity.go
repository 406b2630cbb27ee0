package core

import (
	"context"
	"fmt"

	apperrors "github.com/Skryldev/image-resizer/errors"
)

// Image is the mutable unit of work: a decoded representation plus the
// metadata the pipeline needs to mutate it in place.  An Image is not safe
// for concurrent use; callers must serialize access per entity.  Distinct
// entities may be processed concurrently.
type Image struct {
	backend Backend
	rep     Representation

	// source holds the original encoded buffer, borrowed from the caller.
	// Shrink-on-load re-decodes from it, so it must stay valid for the
	// entity's lifetime.  Never mutated here.
	source []byte
	format Format
}

// NewImage decodes data through the backend's format-appropriate loader and
// returns a ready entity.  On decode failure no entity is produced.
func NewImage(ctx context.Context, backend Backend, data []byte, format Format) (*Image, error) {
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.CategoryInput, "image.new", apperrors.ErrEmptyInput)
	}
	switch format {
	case FormatJPEG, FormatPNG, FormatGIF:
	default:
		return nil, apperrors.New(apperrors.CategoryInput, "image.new",
			fmt.Errorf("%w: %s", apperrors.ErrUnknownFormat, format))
	}

	rep, err := backend.Decode(ctx, data, format)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryConstruct, "image.new", err)
	}
	return &Image{backend: backend, rep: rep, source: data, format: format}, nil
}

// Format returns the source format, fixed at construction.
func (img *Image) Format() Format { return img.format }

// Source returns the borrowed original encoded bytes.
func (img *Image) Source() []byte { return img.source }

// Dimensions queries the current representation.  Never cached, so it is
// always consistent with the most recent mutation.
func (img *Image) Dimensions() (width, height int) {
	return img.rep.Width(), img.rep.Height()
}

// swap installs rep as the current representation and releases the previous
// handle.  Exactly one handle is live at any point; callers only invoke swap
// after the backend call producing rep has succeeded, so a failed operation
// leaves the prior representation installed and usable.
func (img *Image) swap(rep Representation) {
	old := img.rep
	img.rep = rep
	if old != nil {
		old.Close()
	}
}

// ShrinkOnLoad re-decodes the source bytes at 1/step scale.  Only valid for
// formats whose codec supports scaled decode (JPEG).
func (img *Image) ShrinkOnLoad(ctx context.Context, step int) error {
	if !img.format.CanShrinkOnLoad() {
		return apperrors.New(apperrors.CategoryUnsupported, "image.shrink_on_load",
			fmt.Errorf("format %s has no shrink-on-load", img.format))
	}
	if step != 2 && step != 4 && step != 8 {
		return apperrors.New(apperrors.CategoryInput, "image.shrink_on_load",
			fmt.Errorf("shrink step must be 2, 4 or 8, got %d", step))
	}
	rep, err := img.backend.DecodeShrink(ctx, img.source, step)
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryBackend, "image.shrink_on_load", err)
	}
	img.swap(rep)
	return nil
}

// ShrinkBy reduces both axes by the integer factor n.
func (img *Image) ShrinkBy(ctx context.Context, n int) error {
	if n < 1 {
		return apperrors.New(apperrors.CategoryInput, "image.shrink",
			fmt.Errorf("integer shrink factor must be >= 1, got %d", n))
	}
	rep, err := img.backend.Shrink(ctx, img.rep, n)
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryBackend, "image.shrink", err)
	}
	img.swap(rep)
	return nil
}

// ScaleBy applies an affine scale with the given interpolator.  scale must be
// in (0, 1]: this pipeline never upscales.
func (img *Image) ScaleBy(ctx context.Context, scale float64, interp Interpolator) error {
	if scale <= 0 || scale > 1 {
		return apperrors.New(apperrors.CategoryInput, "image.scale",
			fmt.Errorf("scale must be in (0, 1], got %g", scale))
	}
	rep, err := img.backend.Scale(ctx, img.rep, scale, interp)
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryBackend, "image.scale", err)
	}
	img.swap(rep)
	return nil
}

// Crop extracts the rectangle [x, x+w) x [y, y+h).  Bounds validation is the
// backend's; its rejection surfaces as a backend error.
func (img *Image) Crop(ctx context.Context, x, y, w, h int) error {
	rep, err := img.backend.ExtractArea(ctx, img.rep, x, y, w, h)
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryBackend, "image.crop", err)
	}
	img.swap(rep)
	return nil
}

// Colourspace converts the representation to the target interpretation.
func (img *Image) Colourspace(ctx context.Context, space ColorSpace) error {
	rep, err := img.backend.ToColorSpace(ctx, img.rep, space)
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryBackend, "image.colourspace", err)
	}
	img.swap(rep)
	return nil
}

// Encode serialises the current representation.  GIF entities are decode-only;
// the failure is a fixed capability limit, not a transient error.
func (img *Image) Encode(ctx context.Context, opts EncodeOptions) ([]byte, error) {
	if !img.format.CanEncode() {
		return nil, apperrors.New(apperrors.CategoryUnsupported, "image.encode", apperrors.ErrGIFEncode)
	}
	data, err := img.backend.Encode(ctx, img.rep, img.format, opts)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "image.encode", err)
	}
	return data, nil
}

// Close releases the representation.  Safe to call more than once; the
// entity is unusable afterwards.
func (img *Image) Close() {
	if img.rep != nil {
		img.rep.Close()
		img.rep = nil
	}
}
