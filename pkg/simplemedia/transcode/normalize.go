package transcode

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxWidth = 1920
	DefaultQuality  = 85

	// DefaultMaxPixels bounds decoded area so a small file cannot expand
	// into an enormous bitmap (about 160 MB as RGBA)
	DefaultMaxPixels = 40_000_000
)

// Normalizer decodes images, downscales anything wider than MaxWidth and
// re-encodes to JPEG at a fixed quality. Images are never enlarged.
type Normalizer struct {
	MaxWidth  int
	Quality   int
	MaxPixels int
	Scaler    draw.Scaler
}

func NewNormalizer(maxWidth, quality int) *Normalizer {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &Normalizer{
		MaxWidth:  maxWidth,
		Quality:   quality,
		MaxPixels: DefaultMaxPixels,
		Scaler:    draw.CatmullRom,
	}
}

func (n *Normalizer) Mode() Mode { return ModeNormalize }

func (n *Normalizer) Transcode(ctx context.Context, src Source) (*Output, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(src.Content))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty image", ErrUndecodable)
	}
	if n.MaxPixels > 0 && cfg.Width*cfg.Height > n.MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds pixel limit", ErrUndecodable, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(src.Content))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	width, height := TargetSize(img.Bounds().Dx(), img.Bounds().Dy(), n.MaxWidth)
	dst := n.flatten(img, width, height)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: n.Quality}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}

	return &Output{
		Content:     buf.Bytes(),
		ContentType: "image/jpeg",
		Extension:   "jpg",
		Width:       width,
		Height:      height,
	}, nil
}

// flatten draws img onto an opaque white canvas of the target size, since
// JPEG has no alpha channel.
func (n *Normalizer) flatten(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	b := img.Bounds()
	if width == b.Dx() && height == b.Dy() {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
		return dst
	}

	scaler := n.Scaler
	if scaler == nil {
		scaler = draw.CatmullRom
	}
	scaler.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// TargetSize returns the dimensions after a downscale-only fit to maxWidth,
// preserving aspect ratio.
func TargetSize(width, height, maxWidth int) (int, int) {
	if maxWidth <= 0 || width <= maxWidth {
		return width, height
	}
	h := int(float64(height)*float64(maxWidth)/float64(width) + 0.5)
	if h < 1 {
		h = 1
	}
	return maxWidth, h
}
