package capture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"time"

	"github.com/jlyon1/party-camera-ios/ccc/logging"
)

// VirtualOptions configures the synthetic camera
type VirtualOptions struct {
	Width         int
	Height        int
	PreviewWidth  int
	PreviewHeight int
	ExposureDelay time.Duration
	JPEGQuality   int
	Orientation   Orientation // reported with every capture; 0 means none
}

// DefaultVirtualOptions mirror a phone camera in portrait at a small scale
var DefaultVirtualOptions = VirtualOptions{
	Width:         640,
	Height:        480,
	PreviewWidth:  160,
	PreviewHeight: 120,
	ExposureDelay: 50 * time.Millisecond,
	JPEGQuality:   85,
	Orientation:   OrientationRight,
}

// VirtualDevice renders gradient frames instead of reading hardware. Each
// position draws in its own tint so switches are observable.
type VirtualDevice struct {
	options VirtualOptions

	mu       sync.Mutex
	open     bool
	position DevicePosition
	tick     int
	captures int
	failNext error
}

func NewVirtualDevice(options VirtualOptions) *VirtualDevice {
	if options.Width <= 0 || options.Height <= 0 {
		options.Width, options.Height = DefaultVirtualOptions.Width, DefaultVirtualOptions.Height
	}
	if options.PreviewWidth <= 0 || options.PreviewHeight <= 0 {
		options.PreviewWidth, options.PreviewHeight = options.Width/4, options.Height/4
	}
	if options.JPEGQuality <= 0 {
		options.JPEGQuality = DefaultVirtualOptions.JPEGQuality
	}
	return &VirtualDevice{options: options}
}

func (d *VirtualDevice) Open(position DevicePosition) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = true
	d.position = position
	return nil
}

func (d *VirtualDevice) ReadFrame() (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return nil, errors.New("virtual camera not open")
	}
	d.tick++
	return d.render(d.options.PreviewWidth, d.options.PreviewHeight, d.tick), nil
}

func (d *VirtualDevice) Capture() (*RawCapture, error) {
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return nil, errors.New("virtual camera not open")
	}
	if err := d.failNext; err != nil {
		d.failNext = nil
		d.mu.Unlock()
		return nil, err
	}
	d.captures++
	n := d.captures
	full := d.render(d.options.Width, d.options.Height, n*7)
	preview := d.render(d.options.PreviewWidth, d.options.PreviewHeight, n*7)
	d.mu.Unlock()

	if d.options.ExposureDelay > 0 {
		time.Sleep(d.options.ExposureDelay)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, full, &jpeg.Options{Quality: d.options.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode capture: %w", err)
	}

	raw := &RawCapture{
		Data:      buf.Bytes(),
		Preview:   preview,
		Width:     d.options.Width,
		Height:    d.options.Height,
		Timestamp: time.Now(),
	}
	if d.options.Orientation != 0 {
		o := d.options.Orientation
		raw.Orientation = &o
	}
	return raw, nil
}

// FailNextCapture makes the next Capture return err
func (d *VirtualDevice) FailNextCapture(err error) {
	d.mu.Lock()
	d.failNext = err
	d.mu.Unlock()
}

// Captures returns how many exposures succeeded
func (d *VirtualDevice) Captures() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.captures
}

func (d *VirtualDevice) Close() error {
	d.mu.Lock()
	d.open = false
	d.mu.Unlock()
	return nil
}

// render draws a diagonal gradient whose phase moves with seed; d.mu must be held
func (d *VirtualDevice) render(w, h, seed int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	tint := uint8(40)
	if d.position == PositionFront {
		tint = 200
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8((x + seed) * 255 / (w + 1)),
				G: uint8((y + seed) * 255 / (h + 1)),
				B: tint,
				A: 255,
			})
		}
	}
	return img
}

// NewVirtualSession is a convenience for a session over a VirtualDevice
func NewVirtualSession(options VirtualOptions, sessionOptions SessionOptions, logger logging.Logger) (Session, *VirtualDevice) {
	device := NewVirtualDevice(options)
	return NewSession(device, sessionOptions, logger), device
}
