package gocvcam

import (
	"fmt"
	"image"
	"strconv"
	"time"

	"github.com/jlyon1/party-camera-ios/capture"
	"gocv.io/x/gocv"
)

// Device implements capture.Device over an OpenCV VideoCapture. Back and
// front are two separate capture devices, identified by index or path.
type Device struct {
	backDevice  string
	frontDevice string
	jpegQuality int
	previewEdge int

	webcam *gocv.VideoCapture
	frame  gocv.Mat
}

// NewDevice creates a gocv-backed device. previewEdge bounds the longer side
// of preview frames.
func NewDevice(backDevice, frontDevice string, jpegQuality, previewEdge int) *Device {
	if previewEdge <= 0 {
		previewEdge = 480
	}
	return &Device{
		backDevice:  backDevice,
		frontDevice: frontDevice,
		jpegQuality: jpegQuality,
		previewEdge: previewEdge,
	}
}

func (d *Device) Open(position capture.DevicePosition) error {
	if d.webcam != nil {
		return nil
	}

	name := d.backDevice
	if position == capture.PositionFront {
		name = d.frontDevice
	}

	webcam, err := openVideoCapture(name)
	if err != nil {
		return err
	}

	d.webcam = webcam
	d.frame = gocv.NewMat()
	return nil
}

// openVideoCapture accepts either a numeric index or a device path
func openVideoCapture(name string) (*gocv.VideoCapture, error) {
	if id, err := strconv.Atoi(name); err == nil {
		webcam, err := gocv.OpenVideoCapture(id)
		if err != nil {
			return nil, fmt.Errorf("failed to open webcam %d: %w", id, err)
		}
		return webcam, nil
	}

	webcam, err := gocv.OpenVideoCapture(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open webcam %s: %w", name, err)
	}
	return webcam, nil
}

func (d *Device) ReadFrame() (image.Image, error) {
	if err := d.read(); err != nil {
		return nil, err
	}

	preview := gocv.NewMat()
	defer preview.Close()
	d.scaleTo(&preview, d.previewEdge)

	return preview.ToImage()
}

func (d *Device) Capture() (*capture.RawCapture, error) {
	if err := d.read(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, d.frame, []int{gocv.IMWriteJpegQuality, d.jpegQuality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode capture: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases native memory that Close frees
	data := append([]byte(nil), buf.GetBytes()...)

	thumb := gocv.NewMat()
	defer thumb.Close()
	d.scaleTo(&thumb, 240)

	preview, err := thumb.ToImage()
	if err != nil {
		preview = nil
	}

	// webcams do not report orientation; frames are always stored upright
	orientation := capture.OrientationUp

	return &capture.RawCapture{
		Data:        data,
		Preview:     preview,
		Width:       d.frame.Cols(),
		Height:      d.frame.Rows(),
		Orientation: &orientation,
		Timestamp:   time.Now(),
	}, nil
}

func (d *Device) Close() error {
	if d.webcam == nil {
		return nil
	}
	d.frame.Close()
	err := d.webcam.Close()
	d.webcam = nil
	return err
}

func (d *Device) read() error {
	if d.webcam == nil {
		return fmt.Errorf("webcam not initialized")
	}
	if ok := d.webcam.Read(&d.frame); !ok {
		return fmt.Errorf("failed to read frame from webcam")
	}
	if d.frame.Empty() {
		return fmt.Errorf("empty frame from webcam")
	}
	return nil
}

// scaleTo resizes the current frame into dst so its longer side is at most edge
func (d *Device) scaleTo(dst *gocv.Mat, edge int) {
	w, h := d.frame.Cols(), d.frame.Rows()
	longer := w
	if h > longer {
		longer = h
	}
	if longer <= edge {
		d.frame.CopyTo(dst)
		return
	}
	scale := float64(edge) / float64(longer)
	gocv.Resize(d.frame, dst, image.Point{}, scale, scale, gocv.InterpolationArea)
}
