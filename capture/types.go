package capture

import (
	"image"
	"time"
)

// DevicePosition selects which physical camera a session reads from
type DevicePosition int

const (
	PositionBack DevicePosition = iota
	PositionFront
)

func (p DevicePosition) String() string {
	if p == PositionFront {
		return "front"
	}
	return "back"
}

// Toggle returns the opposite position
func (p DevicePosition) Toggle() DevicePosition {
	if p == PositionFront {
		return PositionBack
	}
	return PositionFront
}

// Orientation is the EXIF orientation tag (1-8) describing how stored pixels
// must be transformed for upright display.
type Orientation uint16

const (
	OrientationUp            Orientation = 1
	OrientationUpMirrored    Orientation = 2
	OrientationDown          Orientation = 3
	OrientationDownMirrored  Orientation = 4
	OrientationLeftMirrored  Orientation = 5
	OrientationRight         Orientation = 6
	OrientationRightMirrored Orientation = 7
	OrientationLeft          Orientation = 8
)

func (o Orientation) Valid() bool {
	return o >= OrientationUp && o <= OrientationLeft
}

// SwapsDimensions reports whether upright display exchanges width and height
func (o Orientation) SwapsDimensions() bool {
	return o >= OrientationLeftMirrored && o <= OrientationLeft
}

// Frame is one live preview frame
type Frame struct {
	Image     image.Image
	Timestamp time.Time
	Device    DevicePosition
}

// RawCapture is what the device reports for one completed exposure, before
// it has been checked for usability.
type RawCapture struct {
	ID          string
	Data        []byte       // encoded image, nil when the device produced nothing usable
	Preview     image.Image  // small preview rendered by the device, optional
	Width       int
	Height      int
	Orientation *Orientation // nil when the device reported no orientation metadata
	Timestamp   time.Time
	Device      DevicePosition
}
