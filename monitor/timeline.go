package monitor

import (
	"image"
	"io"
	"strconv"

	"ember/hal"
	"ember/kernel"

	"github.com/fogleman/gg"
)

// TimelineOptions sizes a timeline image.
type TimelineOptions struct {
	Width, Height int
	// End is the time the last switched-in thread ran until. Zero means the
	// time of the last event.
	End kernel.Time
}

const (
	laneLabelWidth = 72
	laneMargin     = 4
)

// lane colors, cycled by first appearance; idle is always grey.
var laneColors = [][3]float64{
	{0.30, 0.60, 0.95},
	{0.95, 0.55, 0.25},
	{0.35, 0.80, 0.45},
	{0.85, 0.35, 0.55},
	{0.65, 0.50, 0.90},
	{0.95, 0.85, 0.30},
	{0.30, 0.80, 0.80},
}

// Segment is one stretch of time a thread held the CPU.
type Segment struct {
	Thread     kernel.ThreadID
	Name       string
	Start, End kernel.Time
	// Left is the state the thread switched into at End, StateCurrent for
	// the open segment.
	Left kernel.ThreadState
}

// Segments turns a switch trace into CPU segments, one per event. The last
// segment runs until end.
func Segments(events []kernel.TraceEvent, end kernel.Time) []Segment {
	if len(events) == 0 {
		return nil
	}
	if end == 0 {
		end = events[len(events)-1].Time
	}

	segs := make([]Segment, 0, len(events))
	for i, ev := range events {
		stop := end
		left := kernel.StateCurrent
		if i+1 < len(events) {
			stop = events[i+1].Time
			left = events[i+1].State
		}
		segs = append(segs, Segment{
			Thread: ev.To,
			Name:   ev.ToName,
			Start:  ev.Time,
			End:    stop,
			Left:   left,
		})
	}
	return segs
}

// RenderTimeline draws one lane per thread with a bar for every segment.
func RenderTimeline(events []kernel.TraceEvent, opts TimelineOptions) image.Image {
	return drawTimeline(events, opts).Image()
}

// WriteTimelinePNG renders the timeline and encodes it as PNG.
func WriteTimelinePNG(w io.Writer, events []kernel.TraceEvent, opts TimelineOptions) error {
	return drawTimeline(events, opts).EncodePNG(w)
}

func drawTimeline(events []kernel.TraceEvent, opts TimelineOptions) *gg.Context {
	if opts.Width <= laneLabelWidth {
		opts.Width = 800
	}
	if opts.Height <= 0 {
		opts.Height = 240
	}

	dc := gg.NewContext(opts.Width, opts.Height)
	dc.SetRGB(0.06, 0.06, 0.12)
	dc.Clear()

	segs := Segments(events, opts.End)
	if len(segs) == 0 {
		dc.SetRGB(1, 1, 1)
		dc.DrawString("no trace", laneMargin, 16)
		return dc
	}

	var lanes []kernel.ThreadID
	names := map[kernel.ThreadID]string{}
	index := map[kernel.ThreadID]int{}
	addLane := func(id kernel.ThreadID, name string) {
		if _, ok := index[id]; !ok {
			index[id] = len(lanes)
			lanes = append(lanes, id)
			names[id] = name
		}
	}
	addLane(events[0].From, events[0].FromName)
	for _, s := range segs {
		addLane(s.Thread, s.Name)
	}

	start := events[0].Time
	span := float64(kernel.TimeDiff(start, segs[len(segs)-1].End))
	if span <= 0 {
		span = 1
	}
	plotW := float64(opts.Width - laneLabelWidth - laneMargin)
	laneH := float64(opts.Height-laneMargin) / float64(len(lanes))
	x := func(t kernel.Time) float64 {
		return laneLabelWidth + plotW*float64(kernel.TimeDiff(start, t))/span
	}

	for i, id := range lanes {
		y := float64(laneMargin) + laneH*float64(i)
		dc.SetRGB(0.15, 0.15, 0.22)
		dc.DrawRectangle(laneLabelWidth, y, plotW, laneH-2)
		dc.Fill()
		dc.SetRGB(0.9, 0.9, 0.9)
		dc.DrawStringAnchored(names[id], laneMargin, y+laneH/2, 0, 0.5)
	}

	for _, s := range segs {
		i := index[s.Thread]
		y := float64(laneMargin) + laneH*float64(i)
		if s.Name == "idle" {
			dc.SetRGB(0.45, 0.45, 0.45)
		} else {
			c := laneColors[i%len(laneColors)]
			dc.SetRGB(c[0], c[1], c[2])
		}
		w := x(s.End) - x(s.Start)
		if w < 1 {
			w = 1
		}
		dc.DrawRectangle(x(s.Start), y+1, w, laneH-4)
		dc.Fill()

		// A red edge marks a thread that blocked, as opposed to being
		// preempted.
		if s.Left.Blocked() || s.Left == kernel.StateFinal {
			dc.SetRGB(0.9, 0.2, 0.2)
			dc.SetLineWidth(2)
			dc.DrawLine(x(s.End), y+1, x(s.End), y+laneH-3)
			dc.Stroke()
		}
	}

	dc.SetRGB(0.9, 0.9, 0.9)
	dc.DrawStringAnchored(formatTime(start), laneLabelWidth, float64(opts.Height-2), 0, 0)
	dc.DrawStringAnchored(formatTime(segs[len(segs)-1].End), float64(opts.Width-laneMargin), float64(opts.Height-2), 1, 0)
	return dc
}

// Blit copies img into an RGB565 framebuffer, clipped to both bounds.
func Blit(fb hal.Framebuffer, img image.Image) {
	if fb == nil || fb.Format() != hal.PixelFormatRGB565 {
		return
	}
	buf := fb.Buffer()
	b := img.Bounds()
	w := min(b.Dx(), fb.Width())
	h := min(b.Dy(), fb.Height())
	stride := fb.StrideBytes()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			p := hal.RGB565(uint8(r>>8), uint8(g>>8), uint8(bl>>8))
			off := y*stride + x*2
			if off+1 >= len(buf) {
				return
			}
			buf[off] = byte(p)
			buf[off+1] = byte(p >> 8)
		}
	}
}

func formatTime(t kernel.Time) string {
	return "t=" + strconv.FormatUint(uint64(t), 10)
}
