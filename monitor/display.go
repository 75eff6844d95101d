package monitor

import (
	"image/color"

	"ember/hal"

	"tinygo.org/x/drivers"
)

// region is a horizontal band of an RGB565 framebuffer seen as a
// drivers.Displayer. Coordinates are relative to the band.
type region struct {
	fb     hal.Framebuffer
	y0     int
	height int

	top     int
	scratch []byte
}

func newRegion(fb hal.Framebuffer, y0, height int) *region {
	if fb == nil {
		return &region{}
	}
	if y0 < 0 {
		y0 = 0
	}
	if y0+height > fb.Height() {
		height = fb.Height() - y0
	}
	if height < 0 {
		height = 0
	}
	return &region{fb: fb, y0: y0, height: height}
}

func (d *region) usable() bool {
	return d.fb != nil && d.fb.Format() == hal.PixelFormatRGB565 && d.fb.Buffer() != nil
}

func (d *region) Size() (x, y int16) {
	if d.fb == nil {
		return 0, 0
	}
	return int16(d.fb.Width()), int16(d.height)
}

func (d *region) SetPixel(x, y int16, c color.RGBA) {
	if !d.usable() {
		return
	}
	ix, iy := int(x), int(y)
	if ix < 0 || ix >= d.fb.Width() || iy < 0 || iy >= d.height {
		return
	}

	buf := d.fb.Buffer()
	pixel := hal.RGB565(c.R, c.G, c.B)
	off := d.row(iy)*d.fb.StrideBytes() + ix*2
	if off < 0 || off+1 >= len(buf) {
		return
	}
	buf[off] = byte(pixel)
	buf[off+1] = byte(pixel >> 8)
}

func (d *region) Display() error {
	if d.fb == nil {
		return nil
	}
	return d.fb.Present()
}

func (d *region) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	if !d.usable() {
		return nil
	}
	w := d.fb.Width()
	x0 := clampInt(int(x), 0, w)
	y0 := clampInt(int(y), 0, d.height)
	x1 := clampInt(int(x)+int(width), 0, w)
	y1 := clampInt(int(y)+int(height), 0, d.height)
	if x0 >= x1 || y0 >= y1 {
		return nil
	}

	buf := d.fb.Buffer()
	pixel := hal.RGB565(c.R, c.G, c.B)
	lo, hi := byte(pixel), byte(pixel>>8)
	stride := d.fb.StrideBytes()
	for py := y0; py < y1; py++ {
		row := d.row(py) * stride
		for px := x0; px < x1; px++ {
			off := row + px*2
			if off+1 >= len(buf) {
				continue
			}
			buf[off] = lo
			buf[off+1] = hi
		}
	}
	return nil
}

// SetScroll makes band row line the top visible row, the way a display
// with hardware vertical scrolling does. The band is rotated in place and
// later drawing is mapped through the new offset.
func (d *region) SetScroll(line int16) {
	if !d.usable() || d.height == 0 {
		return
	}
	n := wrapInt(int(line)-d.top, d.height)
	d.top = wrapInt(int(line), d.height)
	if n == 0 {
		return
	}

	buf := d.fb.Buffer()
	stride := d.fb.StrideBytes()
	lo := d.y0 * stride
	hi := (d.y0 + d.height) * stride
	if hi > len(buf) {
		hi = len(buf)
	}
	band := buf[lo:hi]
	cut := n * stride
	if cut >= len(band) {
		return
	}
	if cap(d.scratch) < cut {
		d.scratch = make([]byte, cut)
	}
	head := d.scratch[:cut]
	copy(head, band[:cut])
	copy(band, band[cut:])
	copy(band[len(band)-cut:], head)
}

// row maps a band row to a framebuffer row.
func (d *region) row(y int) int {
	return d.y0 + wrapInt(y-d.top, d.height)
}

func (d *region) SetRotation(rotation drivers.Rotation) error {
	return nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func wrapInt(v, n int) int {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}
