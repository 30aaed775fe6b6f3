package atlas

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/gogpu/batch/gpucore"
)

// Source is pixel data that can be placed in an atlas. The set of
// implementations is closed: RawSource, ImageSource and PlaceholderSource.
type Source interface {
	Width() int
	Height() int
	Format() gpucore.TextureFormat
	MinFilter() gpucore.FilterMode
	MagFilter() gpucore.FilterMode

	// Unique requests a dedicated atlas instance sized to the source.
	Unique() bool

	// Valid is false for sources that stand in for data not loaded yet.
	Valid() bool

	// WriteInto uploads the pixels with their top-left corner at (x, y).
	WriteInto(dev gpucore.Device, tex gpucore.TextureID, x, y int) error

	source()
}

// SourceOption configures a source.
type SourceOption func(*sourceOptions)

type sourceOptions struct {
	minFilter gpucore.FilterMode
	magFilter gpucore.FilterMode
	unique    bool
}

// WithFilters sets the minification and magnification filters used when
// the source opens a new instance.
func WithFilters(minFilter, magFilter gpucore.FilterMode) SourceOption {
	return func(o *sourceOptions) {
		o.minFilter = minFilter
		o.magFilter = magFilter
	}
}

// AsUnique gives the source its own instance.
func AsUnique() SourceOption {
	return func(o *sourceOptions) {
		o.unique = true
	}
}

func applySourceOptions(opts []SourceOption) sourceOptions {
	var o sourceOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o sourceOptions) MinFilter() gpucore.FilterMode { return o.minFilter }
func (o sourceOptions) MagFilter() gpucore.FilterMode { return o.magFilter }
func (o sourceOptions) Unique() bool                  { return o.unique }

// RawSource is tightly packed pixel data in a known format.
type RawSource struct {
	sourceOptions
	width  int
	height int
	format gpucore.TextureFormat
	pixels []byte
}

// NewRawSource wraps pixels. The slice is not copied and must not be
// modified until the source has been uploaded.
func NewRawSource(width, height int, format gpucore.TextureFormat, pixels []byte, opts ...SourceOption) (*RawSource, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%dx%d: %w", width, height, ErrInvalidSource)
	}
	if bpp := format.BytesPerPixel(); bpp == 0 || len(pixels) != width*height*bpp {
		return nil, fmt.Errorf("%dx%d %s with %d bytes: %w", width, height, format, len(pixels), ErrInvalidSource)
	}
	return &RawSource{
		sourceOptions: applySourceOptions(opts),
		width:         width,
		height:        height,
		format:        format,
		pixels:        pixels,
	}, nil
}

func (s *RawSource) Width() int                    { return s.width }
func (s *RawSource) Height() int                   { return s.height }
func (s *RawSource) Format() gpucore.TextureFormat { return s.format }
func (s *RawSource) Valid() bool                   { return true }
func (s *RawSource) source()                       {}

// Pixels returns the wrapped pixel data.
func (s *RawSource) Pixels() []byte { return s.pixels }

func (s *RawSource) WriteInto(dev gpucore.Device, tex gpucore.TextureID, x, y int) error {
	return dev.WriteTexture(tex, x, y, s.width, s.height, s.pixels)
}

// ImageSource is a decoded image, converted to RGBA once at construction.
type ImageSource struct {
	sourceOptions
	rgba *image.RGBA
}

// NewImageSource converts img to RGBA.
func NewImageSource(img image.Image, opts ...SourceOption) (*ImageSource, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("image %v: %w", b, ErrInvalidSource)
	}
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != 4*b.Dx() || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Copy(rgba, image.Point{}, img, b, draw.Src, nil)
	}
	return &ImageSource{sourceOptions: applySourceOptions(opts), rgba: rgba}, nil
}

func (s *ImageSource) Width() int                    { return s.rgba.Rect.Dx() }
func (s *ImageSource) Height() int                   { return s.rgba.Rect.Dy() }
func (s *ImageSource) Format() gpucore.TextureFormat { return gpucore.TextureFormatRGBA8 }
func (s *ImageSource) Valid() bool                   { return true }
func (s *ImageSource) source()                       {}

// Image returns the RGBA pixels.
func (s *ImageSource) Image() *image.RGBA { return s.rgba }

func (s *ImageSource) WriteInto(dev gpucore.Device, tex gpucore.TextureID, x, y int) error {
	return dev.WriteTexture(tex, x, y, s.Width(), s.Height(), s.rgba.Pix)
}

// PlaceholderSource reserves a 1x1 RGBA cell for an image that is still
// loading. It uploads nothing and is never Valid.
type PlaceholderSource struct {
	sourceOptions
}

// NewPlaceholder creates a placeholder carrying the filters of the image
// it stands in for.
func NewPlaceholder(opts ...SourceOption) *PlaceholderSource {
	return &PlaceholderSource{sourceOptions: applySourceOptions(opts)}
}

func (s *PlaceholderSource) Width() int                    { return 1 }
func (s *PlaceholderSource) Height() int                   { return 1 }
func (s *PlaceholderSource) Format() gpucore.TextureFormat { return gpucore.TextureFormatRGBA8 }
func (s *PlaceholderSource) Valid() bool                   { return false }
func (s *PlaceholderSource) source()                       {}

func (s *PlaceholderSource) WriteInto(gpucore.Device, gpucore.TextureID, int, int) error {
	return nil
}
