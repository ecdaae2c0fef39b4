package photo

import (
	"image"
	"time"

	"github.com/jlyon1/party-camera-ios/capture"
)

// CapturedPhoto is a normalized, immutable capture ready for upload
type CapturedPhoto struct {
	ID          string
	Data        []byte // encoded image exactly as the camera produced it
	Width       int
	Height      int
	Orientation capture.Orientation
	Timestamp   time.Time
	Thumbnail   *Thumbnail
}

// Thumbnail is a small upright image used only for on-screen feedback
type Thumbnail struct {
	Image  image.Image
	Width  int
	Height int
}

func newThumbnail(img image.Image) *Thumbnail {
	b := img.Bounds()
	return &Thumbnail{Image: img, Width: b.Dx(), Height: b.Dy()}
}
