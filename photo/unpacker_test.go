package photo

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
	"time"

	"github.com/jlyon1/party-camera-ios/capture"
)

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

// withExifOrientation splices a minimal big-endian EXIF APP1 segment carrying
// only the orientation tag right after the SOI marker.
func withExifOrientation(data []byte, o capture.Orientation) []byte {
	var tiff bytes.Buffer
	tiff.WriteString("MM")
	binary.Write(&tiff, binary.BigEndian, uint16(42))
	binary.Write(&tiff, binary.BigEndian, uint32(8))
	binary.Write(&tiff, binary.BigEndian, uint16(1))      // one IFD entry
	binary.Write(&tiff, binary.BigEndian, uint16(0x0112)) // Orientation
	binary.Write(&tiff, binary.BigEndian, uint16(3))      // SHORT
	binary.Write(&tiff, binary.BigEndian, uint32(1))
	binary.Write(&tiff, binary.BigEndian, uint16(o))
	binary.Write(&tiff, binary.BigEndian, uint16(0))
	binary.Write(&tiff, binary.BigEndian, uint32(0)) // no next IFD

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)

	var out bytes.Buffer
	out.Write(data[:2])
	out.Write([]byte{0xFF, 0xE1})
	binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write(data[2:])
	return out.Bytes()
}

func orientationPtr(o capture.Orientation) *capture.Orientation {
	return &o
}

func TestUnpack_UsesDeviceMetadataAndPreview(t *testing.T) {
	u := NewUnpacker(16, nil)
	preview := image.NewRGBA(image.Rect(0, 0, 40, 30))
	ts := time.Now()

	photo, ok := u.Unpack(capture.RawCapture{
		ID:          "c1",
		Data:        []byte("not decoded when metadata is complete"),
		Preview:     preview,
		Width:       4000,
		Height:      3000,
		Orientation: orientationPtr(capture.OrientationRight),
		Timestamp:   ts,
	})
	if !ok {
		t.Fatal("expected capture to unpack")
	}

	if photo.Width != 4000 || photo.Height != 3000 {
		t.Errorf("dimensions = %dx%d, want 4000x3000", photo.Width, photo.Height)
	}
	if photo.Orientation != capture.OrientationRight {
		t.Errorf("Orientation = %d, want %d", photo.Orientation, capture.OrientationRight)
	}
	if !photo.Timestamp.Equal(ts) || photo.ID != "c1" {
		t.Errorf("metadata not carried over: %+v", photo)
	}

	// 40x30 preview scaled to 16x12 then rotated upright to 12x16
	if photo.Thumbnail.Width != 12 || photo.Thumbnail.Height != 16 {
		t.Errorf("thumbnail = %dx%d, want 12x16", photo.Thumbnail.Width, photo.Thumbnail.Height)
	}
}

func TestUnpack_FallsBackToExifAndDecodedImage(t *testing.T) {
	u := NewUnpacker(20, nil)
	data := withExifOrientation(encodeJPEG(t, 80, 40), capture.OrientationLeft)

	photo, ok := u.Unpack(capture.RawCapture{ID: "c2", Data: data})
	if !ok {
		t.Fatal("expected capture with exif orientation to unpack")
	}

	if photo.Orientation != capture.OrientationLeft {
		t.Errorf("Orientation = %d, want %d", photo.Orientation, capture.OrientationLeft)
	}
	if photo.Width != 80 || photo.Height != 40 {
		t.Errorf("dimensions = %dx%d, want 80x40", photo.Width, photo.Height)
	}
	if !bytes.Equal(photo.Data, data) {
		t.Error("encoded bytes must be passed through untouched")
	}
	if photo.Thumbnail.Width != 10 || photo.Thumbnail.Height != 20 {
		t.Errorf("thumbnail = %dx%d, want 10x20", photo.Thumbnail.Width, photo.Thumbnail.Height)
	}
}

func TestUnpack_DropsUnusableCaptures(t *testing.T) {
	u := NewUnpacker(0, nil)
	plain := encodeJPEG(t, 8, 8)

	tests := []struct {
		name string
		raw  capture.RawCapture
	}{
		{"no data", capture.RawCapture{Orientation: orientationPtr(capture.OrientationUp)}},
		{"no orientation anywhere", capture.RawCapture{Data: plain}},
		{"invalid orientation", capture.RawCapture{Data: plain, Orientation: orientationPtr(9)}},
		{"garbage bytes", capture.RawCapture{Data: []byte("garbage"), Orientation: orientationPtr(capture.OrientationUp)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if photo, ok := u.Unpack(tt.raw); ok || photo != nil {
				t.Errorf("expected drop, got %+v", photo)
			}
		})
	}
}

func TestReadOrientation(t *testing.T) {
	data := withExifOrientation(encodeJPEG(t, 4, 4), capture.OrientationDown)
	o, err := ReadOrientation(data)
	if err != nil {
		t.Fatalf("ReadOrientation failed: %v", err)
	}
	if o != capture.OrientationDown {
		t.Errorf("orientation = %d, want %d", o, capture.OrientationDown)
	}

	if _, err := ReadOrientation(encodeJPEG(t, 4, 4)); err == nil {
		t.Error("expected error for jpeg without exif")
	}
}

func TestUpright_Rotations(t *testing.T) {
	// 2x1 image: red at (0,0), blue at (1,0)
	src := image.NewRGBA(image.Rect(0, 0, 2, 1))
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	src.SetRGBA(0, 0, red)
	src.SetRGBA(1, 0, blue)

	tests := []struct {
		o          capture.Orientation
		w, h       int
		redX, redY int
	}{
		{capture.OrientationUp, 2, 1, 0, 0},
		{capture.OrientationUpMirrored, 2, 1, 1, 0},
		{capture.OrientationDown, 2, 1, 1, 0},
		{capture.OrientationRight, 1, 2, 0, 0},
		{capture.OrientationLeft, 1, 2, 0, 1},
	}

	for _, tt := range tests {
		out := Upright(src, tt.o)
		b := out.Bounds()
		if b.Dx() != tt.w || b.Dy() != tt.h {
			t.Errorf("orientation %d: size %dx%d, want %dx%d", tt.o, b.Dx(), b.Dy(), tt.w, tt.h)
			continue
		}
		r, _, _, _ := out.At(tt.redX, tt.redY).RGBA()
		if r>>8 != 255 {
			t.Errorf("orientation %d: red pixel not at (%d,%d)", tt.o, tt.redX, tt.redY)
		}
	}
}

func TestDownscale_KeepsSmallImages(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 5))
	if Downscale(img, 10) != image.Image(img) {
		t.Error("image within bounds should be returned unchanged")
	}

	out := Downscale(image.NewRGBA(image.Rect(0, 0, 1000, 10)), 100)
	if out.Bounds().Dx() != 100 || out.Bounds().Dy() != 1 {
		t.Errorf("size = %v, want 100x1", out.Bounds())
	}
}
