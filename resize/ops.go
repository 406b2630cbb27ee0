package resize

import (
	"context"

	"github.com/Skryldev/image-resizer/core"
)

// An Operation is a single image manipulation applied through a Pipeline.
// Operations mutate the entity in place and report success or a specific
// error to the caller; none of them retry internally.
type Operation interface {
	Name() string
	Apply(ctx context.Context, img *core.Image) error
}

// ShrinkOp applies the integer pre-shrink policy for Factor.
type ShrinkOp struct {
	Factor float64
}

func (o *ShrinkOp) Name() string { return "shrink" }

func (o *ShrinkOp) Apply(ctx context.Context, img *core.Image) error {
	return Shrink(ctx, img, o.Factor)
}

// ResidualScaleOp resolves the fractional leftover of Factor via an affine
// transform.  Interp defaults to bilinear.
type ResidualScaleOp struct {
	Factor float64
	Interp core.Interpolator
}

func (o *ResidualScaleOp) Name() string { return "affine" }

func (o *ResidualScaleOp) Apply(ctx context.Context, img *core.Image) error {
	interp := o.Interp
	if interp == "" {
		interp = core.InterpBilinear
	}
	return affineResidualScale(ctx, img, o.Factor, interp)
}

// CropOp extracts a rectangle from the image.  Bounds validation is left to
// the backend.
type CropOp struct {
	X, Y, Width, Height int
}

func (o *CropOp) Name() string { return "crop" }

func (o *CropOp) Apply(ctx context.Context, img *core.Image) error {
	return img.Crop(ctx, o.X, o.Y, o.Width, o.Height)
}

// ColourspaceOp converts the image to a target colour interpretation.
type ColourspaceOp struct {
	Space core.ColorSpace
}

func (o *ColourspaceOp) Name() string { return "colourspace" }

func (o *ColourspaceOp) Apply(ctx context.Context, img *core.Image) error {
	return img.Colourspace(ctx, o.Space)
}

var (
	_ Operation = (*ShrinkOp)(nil)
	_ Operation = (*ResidualScaleOp)(nil)
	_ Operation = (*CropOp)(nil)
	_ Operation = (*ColourspaceOp)(nil)
	_ Operation = (*ResizeOp)(nil)
)
