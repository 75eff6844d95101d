package monitor

import (
	"image/color"

	"ember/hal"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyterm"
)

var (
	fgColor     = color.RGBA{R: 0xE0, G: 0xE0, B: 0xE0, A: 0xFF}
	bgColor     = color.RGBA{R: 0x10, G: 0x10, B: 0x20, A: 0xFF}
	accentColor = color.RGBA{R: 0xFF, G: 0xC0, B: 0x40, A: 0xFF}
)

const (
	fontHeight = 6
	fontOffset = 5
)

var font = &tinyfont.TomThumb

// Console is a scrolling VT100 terminal in a band of a framebuffer. It
// satisfies hal.Logger, so log lines can be mirrored on screen.
type Console struct {
	d     *region
	t     *tinyterm.Terminal
	lines uint64
}

// NewConsole returns a console covering rows [y0, y0+height) of fb.
func NewConsole(fb hal.Framebuffer, y0, height int) *Console {
	c := &Console{d: newRegion(fb, y0, height)}
	c.Reset()
	return c
}

// Reset clears the console.
func (c *Console) Reset() {
	if c.d.fb == nil {
		return
	}
	c.d.SetScroll(0)
	_ = c.d.FillRectangle(0, 0, int16(c.d.fb.Width()), int16(c.d.height), bgColor)
	c.t = tinyterm.NewTerminal(c.d)
	c.t.Configure(&tinyterm.Config{
		Font:       font,
		FontHeight: fontHeight,
		FontOffset: fontOffset,
	})
}

// Write feeds raw bytes, escape sequences included, to the terminal.
func (c *Console) Write(p []byte) (int, error) {
	if c.d.fb == nil {
		return len(p), nil
	}
	return c.t.Write(p)
}

func (c *Console) WriteLineString(s string) {
	c.Write([]byte(s + "\r\n"))
	c.lines++
}

func (c *Console) WriteLineBytes(b []byte) {
	c.WriteLineString(string(b))
}

// Lines returns the number of lines written since creation.
func (c *Console) Lines() uint64 { return c.lines }

// Flush presents the framebuffer.
func (c *Console) Flush() error {
	return c.d.Display()
}

// writeLine draws s at text row row of d, clearing the row first.
func writeLine(d *region, row int, s string, c color.RGBA) {
	if d.fb == nil {
		return
	}
	y := int16(row * fontHeight)
	_ = d.FillRectangle(0, y, int16(d.fb.Width()), fontHeight, bgColor)
	tinyfont.WriteLine(d, font, 1, y+fontOffset, s, c)
}
