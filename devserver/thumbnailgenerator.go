package devserver

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/jlyon1/party-camera-ios/ccc/logging"
	"github.com/jlyon1/party-camera-ios/photo"
)

// ThumbnailGenerator defines the interface for generating image thumbnails
type ThumbnailGenerator interface {
	// GenerateThumbnail returns an upright JPEG thumbnail of the encoded image
	GenerateThumbnail(data []byte) ([]byte, error)
}

// JPEGThumbnailGenerator decodes JPEG or PNG uploads, applies their EXIF
// orientation and re-encodes a downscaled JPEG.
type JPEGThumbnailGenerator struct {
	logger  logging.Logger
	maxEdge int
	quality int
}

func NewJPEGThumbnailGenerator(logger logging.Logger, maxEdge int) *JPEGThumbnailGenerator {
	if logger == nil {
		logger = logging.NopLogger
	}
	if maxEdge <= 0 {
		maxEdge = photo.DefaultThumbnailMaxEdge
	}
	return &JPEGThumbnailGenerator{logger: logger, maxEdge: maxEdge, quality: 80}
}

func (g *JPEGThumbnailGenerator) GenerateThumbnail(data []byte) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	thumb := photo.Downscale(img, g.maxEdge)
	if orientation, err := photo.ReadOrientation(data); err == nil {
		thumb = photo.Upright(thumb, orientation)
	} else {
		g.logger.Debug("Thumbnail source has no orientation", "format", format)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: g.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
