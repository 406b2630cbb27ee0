package core

// Format identifies an image codec.  The set is closed: the pipeline handles
// exactly these three formats, and capability checks hang off the Format value
// so unsupported combinations are rejected at one boundary.
type Format string

const (
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatGIF     Format = "gif"
	FormatUnknown Format = "unknown"
)

// CanShrinkOnLoad reports whether the codec supports decoding directly at a
// reduced resolution.  Only JPEG discards DCT detail during decode.
func (f Format) CanShrinkOnLoad() bool { return f == FormatJPEG }

// CanEncode reports whether the pipeline can write this format back out.
// GIF is decode-only.
func (f Format) CanEncode() bool { return f == FormatJPEG || f == FormatPNG }

// MIME returns the MIME type for the format.
func (f Format) MIME() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatGIF:
		return "image/gif"
	}
	return "application/octet-stream"
}

func (f Format) String() string { return string(f) }

// ColorSpace represents the image colour interpretation.
type ColorSpace string

const (
	ColorSpaceSRGB ColorSpace = "srgb"
	ColorSpaceGray ColorSpace = "gray"
	ColorSpaceCMYK ColorSpace = "cmyk"
)

// Interpolator selects the resampling blend used by affine scaling.
type Interpolator string

const (
	// InterpBilinear is the pipeline default; cheapest acceptable quality.
	InterpBilinear Interpolator = "bilinear"
	InterpBicubic  Interpolator = "bicubic"
)

// EncodeOptions carries format-specific encoding parameters.
type EncodeOptions struct {
	Quality     int // JPEG quality 1-100; 0 = backend default
	Compression int // PNG zlib level 0-9; 0 = backend default
	StripEXIF   bool
	Interlaced  bool // progressive JPEG / interlaced PNG
}
