package resize

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/Skryldev/image-resizer/errors"
)

// ParseParams parses a comma-separated request parameter list into a
// ResizeParams.  The recognised keys are:
//
//	width=<px>
//	height=<px>
//	fit=clip | crop | crop:<gravity> | crop:point:<x>:<y>
//
// Defaults: fit=clip, gravity=center.  At least one of width and height must
// be set.
func ParseParams(params string) (ResizeParams, error) {
	p := ResizeParams{Fit: FitClip, Gravity: GravityCenter}

	if params == "" {
		return p, apperrors.New(apperrors.CategoryInput, "resize.params",
			fmt.Errorf("empty parameter list"))
	}

	for _, field := range strings.Split(params, ",") {
		kv := strings.SplitN(field, "=", 2)
		if len(kv) != 2 {
			return p, apperrors.New(apperrors.CategoryInput, "resize.params",
				fmt.Errorf("malformed parameter %q", field))
		}
		key, value := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])

		var err error
		switch key {
		case "width":
			p.Width, err = parseDim(key, value)
		case "height":
			p.Height, err = parseDim(key, value)
		case "fit":
			err = parseFit(&p, value)
		default:
			err = apperrors.New(apperrors.CategoryInput, "resize.params",
				fmt.Errorf("unknown parameter %q", key))
		}
		if err != nil {
			return p, err
		}
	}

	if p.Width == 0 && p.Height == 0 {
		return p, apperrors.New(apperrors.CategoryInput, "resize.params",
			fmt.Errorf("width and/or height must be set"))
	}
	if p.Fit == FitCrop && (p.Width == 0 || p.Height == 0) {
		return p, apperrors.New(apperrors.CategoryInput, "resize.params",
			fmt.Errorf("fit=crop requires both width and height"))
	}
	return p, nil
}

func parseDim(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, apperrors.New(apperrors.CategoryInput, "resize.params",
			fmt.Errorf("%s: %q is not a valid dimension", key, value))
	}
	return n, nil
}

func parseFit(p *ResizeParams, value string) error {
	parts := strings.Split(value, ":")
	switch FitMode(parts[0]) {
	case FitClip:
		p.Fit = FitClip
		return nil
	case FitCrop:
		p.Fit = FitCrop
	default:
		return apperrors.New(apperrors.CategoryInput, "resize.params",
			fmt.Errorf("fit: unknown mode %q", parts[0]))
	}

	if len(parts) == 1 {
		return nil
	}

	switch g := Gravity(parts[1]); g {
	case GravityCenter, GravityTop, GravityBottom, GravityLeft, GravityRight:
		p.Gravity = g
		if len(parts) > 2 {
			return apperrors.New(apperrors.CategoryInput, "resize.params",
				fmt.Errorf("fit: trailing values after gravity %q", g))
		}
	case GravityPoint:
		p.Gravity = GravityPoint
		if len(parts) != 4 {
			return apperrors.New(apperrors.CategoryInput, "resize.params",
				fmt.Errorf("fit: crop:point requires x and y coordinates"))
		}
		x, errX := strconv.Atoi(parts[2])
		y, errY := strconv.Atoi(parts[3])
		if errX != nil || errY != nil || x < 0 || y < 0 {
			return apperrors.New(apperrors.CategoryInput, "resize.params",
				fmt.Errorf("fit: invalid crop point %q:%q", parts[2], parts[3]))
		}
		p.PointX, p.PointY = x, y
	default:
		return apperrors.New(apperrors.CategoryInput, "resize.params",
			fmt.Errorf("fit: unknown gravity %q", parts[1]))
	}
	return nil
}
