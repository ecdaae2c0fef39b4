package photo

import (
	"image"
	"image/color"
)

// Downscale shrinks img with a box filter so its longer side is at most maxEdge.
// Images already within bounds are returned unchanged.
func Downscale(img image.Image, maxEdge int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 || (w <= maxEdge && h <= maxEdge) {
		return img
	}

	tw, th := fitWithin(w, h, maxEdge)
	dst := image.NewRGBA(image.Rect(0, 0, tw, th))

	for ty := 0; ty < th; ty++ {
		y0 := b.Min.Y + ty*h/th
		y1 := b.Min.Y + (ty+1)*h/th
		for tx := 0; tx < tw; tx++ {
			x0 := b.Min.X + tx*w/tw
			x1 := b.Min.X + (tx+1)*w/tw
			dst.SetRGBA(tx, ty, average(img, x0, y0, x1, y1))
		}
	}
	return dst
}

// fitWithin scales w x h down to fit in an edge x edge square, keeping aspect ratio
func fitWithin(w, h, edge int) (int, int) {
	if w >= h {
		th := h * edge / w
		if th < 1 {
			th = 1
		}
		return edge, th
	}
	tw := w * edge / h
	if tw < 1 {
		tw = 1
	}
	return tw, edge
}

func average(img image.Image, x0, y0, x1, y1 int) color.RGBA {
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}

	var r, g, b, a, n uint64
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			cr, cg, cb, ca := img.At(x, y).RGBA()
			r += uint64(cr)
			g += uint64(cg)
			b += uint64(cb)
			a += uint64(ca)
			n++
		}
	}
	return color.RGBA{
		R: uint8(r / n >> 8),
		G: uint8(g / n >> 8),
		B: uint8(b / n >> 8),
		A: uint8(a / n >> 8),
	}
}
