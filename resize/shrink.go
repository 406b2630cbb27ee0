// Package resize implements the resize orchestration strategy: cheap
// integer-factor pre-shrinking (shrink-on-load where the codec supports it)
// followed by a fractional residual scale through an interpolated affine
// transform, plus the crop and colourspace operations that share the image
// entity's replace-in-place contract.
package resize

import (
	"context"
	"fmt"
	"math"

	"github.com/Skryldev/image-resizer/core"
	apperrors "github.com/Skryldev/image-resizer/errors"
)

// shrinkStep returns the largest shrink-on-load step in {2, 4, 8} not
// exceeding factor.  Larger steps win: they minimise the decoded pixel count.
func shrinkStep(factor float64) int {
	switch {
	case factor >= 8:
		return 8
	case factor >= 4:
		return 4
	default:
		return 2
	}
}

// appliedReduction returns the total integer reduction Shrink applies for the
// given factor: the shrink-on-load step, the residual integer shrink, both,
// or 1 when the factor is below the shrink threshold.
func appliedReduction(format core.Format, factor float64) float64 {
	if factor < 2 {
		return 1
	}
	reduction := 1.0
	if format.CanShrinkOnLoad() {
		step := shrinkStep(factor)
		reduction = float64(step)
		factor /= float64(step)
		if factor < 2 {
			return reduction
		}
	}
	return reduction * math.Floor(factor)
}

// Shrink reduces each linear dimension of img by factor using the cheapest
// available integer reduction, leaving any fractional leftover for
// AffineResidualScale.  Policy:
//
//  1. factor < 2: no-op.  Pre-shrinking only pays off at factor >= 2; below
//     that the affine pass alone is cheaper.
//  2. JPEG: re-decode the source bytes with the largest shrink-on-load step
//     in {2, 4, 8} not exceeding factor.  The codec discards DCT detail
//     during decode, which beats materialising the full bitmap and
//     discarding pixels afterwards.  Stop if the residual drops below 2.
//  3. Otherwise shrink the current representation by floor(factor) in both
//     axes.
//
// A backend failure aborts with an error; the entity keeps its last
// successfully installed representation.
func Shrink(ctx context.Context, img *core.Image, factor float64) error {
	if factor < 1 {
		return apperrors.New(apperrors.CategoryInput, "resize.shrink",
			fmt.Errorf("%w, got %g", apperrors.ErrInvalidFactor, factor))
	}
	if factor < 2 {
		return nil
	}

	if img.Format().CanShrinkOnLoad() {
		step := shrinkStep(factor)
		if err := img.ShrinkOnLoad(ctx, step); err != nil {
			return err
		}
		factor /= float64(step)
		if factor < 2 {
			return nil
		}
	}

	return img.ShrinkBy(ctx, int(math.Floor(factor)))
}

// AffineResidualScale resolves the fractional leftover of factor after the
// integer reduction Shrink applied (or would apply), scaling the image by
// reduction/factor in both axes.  factor is the original requested factor,
// not the residual; pass 1 if no Shrink call was made.  The residual is
// always in (0, 1]: this step downscales or does nothing.  When the residual
// is exactly 1 the backend is not invoked at all.
func AffineResidualScale(ctx context.Context, img *core.Image, factor float64) error {
	return affineResidualScale(ctx, img, factor, core.InterpBilinear)
}

func affineResidualScale(ctx context.Context, img *core.Image, factor float64, interp core.Interpolator) error {
	if factor < 1 {
		return apperrors.New(apperrors.CategoryInput, "resize.affine",
			fmt.Errorf("%w, got %g", apperrors.ErrInvalidFactor, factor))
	}

	residual := appliedReduction(img.Format(), factor) / factor
	if residual == 1 {
		// Identity transform; skipping the backend is observably equivalent.
		return nil
	}
	return img.ScaleBy(ctx, residual, interp)
}
