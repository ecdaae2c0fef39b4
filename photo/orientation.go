package photo

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"

	"github.com/jlyon1/party-camera-ios/capture"
	"github.com/rwcarlsen/goexif/exif"
)

// ReadOrientation extracts the EXIF orientation tag from encoded image bytes
func ReadOrientation(data []byte) (capture.Orientation, error) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to decode exif: %w", err)
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 0, fmt.Errorf("no orientation tag: %w", err)
	}

	v, err := tag.Int(0)
	if err != nil {
		return 0, fmt.Errorf("invalid orientation tag: %w", err)
	}

	o := capture.Orientation(v)
	if !o.Valid() {
		return 0, fmt.Errorf("orientation out of range: %d", v)
	}
	return o, nil
}

// Upright transforms img so that it displays correctly for orientation o
func Upright(img image.Image, o capture.Orientation) image.Image {
	if o == capture.OrientationUp || !o.Valid() {
		return img
	}

	src := image.NewRGBA(img.Bounds())
	draw.Draw(src, src.Bounds(), img, img.Bounds().Min, draw.Src)

	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dw, dh := w, h
	if o.SwapsDimensions() {
		dw, dh = h, w
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := mapPixel(o, x, y, w, h)
			dst.Set(dx, dy, src.At(src.Bounds().Min.X+x, src.Bounds().Min.Y+y))
		}
	}
	return dst
}

// mapPixel returns where stored pixel (x, y) lands in the upright image
func mapPixel(o capture.Orientation, x, y, w, h int) (int, int) {
	switch o {
	case capture.OrientationUpMirrored:
		return w - 1 - x, y
	case capture.OrientationDown:
		return w - 1 - x, h - 1 - y
	case capture.OrientationDownMirrored:
		return x, h - 1 - y
	case capture.OrientationLeftMirrored:
		return y, x
	case capture.OrientationRight:
		return h - 1 - y, x
	case capture.OrientationRightMirrored:
		return h - 1 - y, w - 1 - x
	case capture.OrientationLeft:
		return y, w - 1 - x
	default:
		return x, y
	}
}
