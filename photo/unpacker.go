package photo

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/jlyon1/party-camera-ios/capture"
	"github.com/jlyon1/party-camera-ios/ccc/logging"
)

// DefaultThumbnailMaxEdge bounds the longer side of generated thumbnails
const DefaultThumbnailMaxEdge = 240

// Unpacker turns raw camera output into CapturedPhotos. It never fails with
// an error: unusable captures are dropped so one bad exposure cannot stall
// the photo stream.
type Unpacker interface {
	Unpack(raw capture.RawCapture) (*CapturedPhoto, bool)
}

type unpacker struct {
	thumbnailMaxEdge int
	logger           logging.Logger
}

// NewUnpacker creates an Unpacker producing thumbnails at most maxEdge pixels on their longer side
func NewUnpacker(thumbnailMaxEdge int, logger logging.Logger) Unpacker {
	if logger == nil {
		logger = logging.NopLogger
	}
	if thumbnailMaxEdge <= 0 {
		thumbnailMaxEdge = DefaultThumbnailMaxEdge
	}
	return &unpacker{
		thumbnailMaxEdge: thumbnailMaxEdge,
		logger:           logger,
	}
}

func (u *unpacker) Unpack(raw capture.RawCapture) (*CapturedPhoto, bool) {
	if len(raw.Data) == 0 {
		u.logger.Warn("Dropping capture without image data", "captureId", raw.ID)
		return nil, false
	}

	orientation, ok := u.orientation(raw)
	if !ok {
		u.logger.Warn("Dropping capture without orientation metadata", "captureId", raw.ID)
		return nil, false
	}

	width, height := raw.Width, raw.Height
	var decoded image.Image
	if width <= 0 || height <= 0 || raw.Preview == nil {
		img, _, err := image.Decode(bytes.NewReader(raw.Data))
		if err != nil {
			u.logger.Warn("Dropping capture with undecodable image data", "captureId", raw.ID, "error", err)
			return nil, false
		}
		decoded = img
		width, height = img.Bounds().Dx(), img.Bounds().Dy()
	}

	source := raw.Preview
	if source == nil {
		source = decoded
	}
	thumb := Upright(Downscale(source, u.thumbnailMaxEdge), orientation)

	return &CapturedPhoto{
		ID:          raw.ID,
		Data:        raw.Data,
		Width:       width,
		Height:      height,
		Orientation: orientation,
		Timestamp:   raw.Timestamp,
		Thumbnail:   newThumbnail(thumb),
	}, true
}

// orientation prefers what the device reported and falls back to EXIF in the bytes
func (u *unpacker) orientation(raw capture.RawCapture) (capture.Orientation, bool) {
	if raw.Orientation != nil {
		return *raw.Orientation, raw.Orientation.Valid()
	}

	o, err := ReadOrientation(raw.Data)
	if err != nil {
		u.logger.Debug("No usable exif orientation", "captureId", raw.ID, "error", err)
		return 0, false
	}
	return o, true
}
