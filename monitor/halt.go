package monitor

import (
	"fmt"
	"image/color"
	"strings"
	"unicode/utf8"

	"ember/hal"
	"ember/kernel"

	"tinygo.org/x/tinyfont"
)

var haltInk = color.RGBA{A: 0xFF}

// HaltLines formats a halt report, one line per entry.
func HaltLines(info kernel.HaltInfo) []string {
	lines := []string{
		"Ember halt:",
		fmt.Sprintf("thread: %d %s", info.Thread, info.Name),
		"reason: " + info.Reason,
	}
	if len(info.Stack) == 0 {
		return append(lines, "stack: unavailable")
	}
	lines = append(lines, "stack:")
	for _, line := range strings.Split(string(info.Stack), "\n") {
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// DrawHalt paints a halt report over the whole framebuffer, wrapping long
// lines and dropping what does not fit.
func DrawHalt(fb hal.Framebuffer, info kernel.HaltInfo) {
	if fb == nil {
		return
	}
	fb.ClearRGB(0xFF, 0xFF, 0xFF)

	d := newRegion(fb, 0, fb.Height())
	_, charWidth := tinyfont.LineWidth(font, "0")
	if charWidth == 0 {
		_ = fb.Present()
		return
	}
	cols := fb.Width() / int(charWidth)
	if cols <= 0 {
		cols = 1
	}

	row := 0
	for _, line := range HaltLines(info) {
		for len(line) > 0 {
			if (row+1)*fontHeight > fb.Height() {
				_ = fb.Present()
				return
			}
			chunk, rest := takeRunes(line, cols)
			tinyfont.WriteLine(d, font, 1, int16(row*fontHeight+fontOffset), chunk, haltInk)
			row++
			line = strings.TrimLeft(rest, " ")
		}
	}
	_ = fb.Present()
}

func takeRunes(s string, n int) (prefix, rest string) {
	if n <= 0 || s == "" {
		return "", s
	}
	i, count := 0, 0
	for i < len(s) && count < n {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
		count++
	}
	return s[:i], s[i:]
}
