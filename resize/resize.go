package resize

import (
	"context"
	"math"

	"github.com/Skryldev/image-resizer/core"
)

// FitMode controls how a width/height request maps onto the source aspect
// ratio.
type FitMode string

const (
	// FitClip scales the image to fit entirely within the requested box.
	FitClip FitMode = "clip"
	// FitCrop fills the requested box and crops the overflow.
	FitCrop FitMode = "crop"
)

// Gravity selects which part of the image survives a crop.
type Gravity string

const (
	GravityCenter Gravity = "center"
	GravityTop    Gravity = "top"
	GravityBottom Gravity = "bottom"
	GravityLeft   Gravity = "left"
	GravityRight  Gravity = "right"
	// GravityPoint centres the crop box on an explicit source coordinate.
	GravityPoint Gravity = "point"
)

// ResizeParams describes a target geometry.  Width and/or Height must be set;
// a zero axis is derived from the other, preserving aspect ratio.
type ResizeParams struct {
	Width  int
	Height int
	Fit    FitMode
	// Gravity and Point apply only when Fit is FitCrop.
	Gravity Gravity
	PointX  int
	PointY  int
}

// ResizeOp resolves a ResizeParams request into the shrink / affine / crop
// sequence.  Requests for an identical or enlarged image are a no-op: this
// pipeline only ever reduces.
type ResizeOp struct {
	Params ResizeParams
	Interp core.Interpolator
}

func (o *ResizeOp) Name() string { return "resize" }

func (o *ResizeOp) Apply(ctx context.Context, img *core.Image) error {
	p := o.Params
	w, h := img.Dimensions()

	if (p.Width > w || p.Height > h) || (p.Width == w && p.Height == h) {
		return nil
	}

	factor := fitFactor(w, h, p)
	if factor <= 1 {
		return nil
	}

	if err := Shrink(ctx, img, factor); err != nil {
		return err
	}

	interp := o.Interp
	if interp == "" {
		interp = core.InterpBilinear
	}
	if err := affineResidualScale(ctx, img, factor, interp); err != nil {
		return err
	}

	if p.Fit != FitCrop {
		return nil
	}

	cw, ch := img.Dimensions()

	// The crop point was given in source coordinates; bring it down to the
	// resized image.
	px := p.PointX * cw / w
	py := p.PointY * ch / h

	bx, by, bw, bh := cropBounds(cw, ch, p, px, py)
	if bx == 0 && by == 0 && bw == cw && bh == ch {
		return nil
	}
	return img.Crop(ctx, bx, by, bw, bh)
}

// fitFactor returns the resize factor between the current size and the
// requested geometry.  With both axes fixed, cropping wants the smallest
// per-axis factor (fill the box) and clipping the largest (fit inside it).
func fitFactor(w, h int, p ResizeParams) float64 {
	switch {
	case p.Width > 0 && p.Height > 0:
		xf := float64(w) / float64(p.Width)
		yf := float64(h) / float64(p.Height)
		if p.Fit == FitCrop {
			return math.Min(xf, yf)
		}
		return math.Max(xf, yf)
	case p.Width > 0:
		return float64(w) / float64(p.Width)
	case p.Height > 0:
		return float64(h) / float64(p.Height)
	}
	return 1
}

// cropBounds returns the rectangle to extract for the requested gravity,
// clamped to the image.
func cropBounds(w, h int, p ResizeParams, px, py int) (x, y, bw, bh int) {
	bw, bh = p.Width, p.Height
	if bw == 0 || bw > w {
		bw = w
	}
	if bh == 0 || bh > h {
		bh = h
	}

	switch p.Gravity {
	case GravityPoint:
		x = clamp(px-bw/2, 0, w-bw)
		y = clamp(py-bh/2, 0, h-bh)
	case GravityLeft:
		y = (h - bh) / 2
	case GravityRight:
		x = w - bw
		y = (h - bh) / 2
	case GravityTop:
		x = (w - bw) / 2
	case GravityBottom:
		x = (w - bw) / 2
		y = h - bh
	default:
		x = (w - bw) / 2
		y = (h - bh) / 2
	}
	return x, y, bw, bh
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
