package market

import (
	"fmt"
	"io"
)

// Gap is a run of missing windows between two emitted candles.
type Gap struct {
	After Boundary // last boundary present before the gap
	Len   int      // number of missing windows
}

type GapStats struct {
	Windows    int // windows spanned from first to last candle
	Present    int
	Missing    int
	GapCount   int
	LongestGap int
	Synthetic  int
}

// FindGaps walks candles in order and reports every place where consecutive
// boundaries are further than one width apart. Interpolated output has none.
func FindGaps(candles []Candle, g Granularity) []Gap {
	width := Boundary(g.Seconds())
	if width == 0 || len(candles) < 2 {
		return nil
	}

	var gaps []Gap
	prev := candles[0].Boundary
	for _, c := range candles[1:] {
		if step := c.Boundary - prev; step > width {
			gaps = append(gaps, Gap{After: prev, Len: int(step/width) - 1})
		}
		prev = c.Boundary
	}
	return gaps
}

// Stats summarises a finished candle sequence.
func Stats(candles []Candle, g Granularity) GapStats {
	gt := NewGapTracker(g)
	for _, c := range candles {
		gt.Observe(c)
	}
	return gt.Stats()
}

// GapTracker builds GapStats incrementally as candles are emitted.
type GapTracker struct {
	width Boundary
	first Boundary
	prev  Boundary
	stats GapStats
}

func NewGapTracker(g Granularity) *GapTracker {
	return &GapTracker{width: Boundary(g.Seconds())}
}

func (gt *GapTracker) Observe(c Candle) {
	if gt.width == 0 {
		return
	}
	if gt.stats.Present == 0 {
		gt.first = c.Boundary
	} else if step := c.Boundary - gt.prev; step > gt.width {
		n := int(step/gt.width) - 1
		gt.stats.GapCount++
		gt.stats.Missing += n
		if n > gt.stats.LongestGap {
			gt.stats.LongestGap = n
		}
	}
	gt.prev = c.Boundary
	gt.stats.Present++
	if c.Synthetic {
		gt.stats.Synthetic++
	}
	gt.stats.Windows = int((gt.prev-gt.first)/gt.width) + 1
}

func (gt *GapTracker) Stats() GapStats {
	return gt.stats
}

func (s GapStats) Print(w io.Writer) {
	fmt.Fprintln(w, "---- Candle Stats ----")
	fmt.Fprintf(w, "     Windows: %d\n", s.Windows)
	fmt.Fprintf(w, "     Present: %d\n", s.Present)
	fmt.Fprintf(w, "   Synthetic: %d\n", s.Synthetic)
	fmt.Fprintf(w, "     Missing: %d\n", s.Missing)
	fmt.Fprintf(w, "  Total Gaps: %d\n", s.GapCount)
	fmt.Fprintf(w, " Longest Gap: %d windows\n", s.LongestGap)
	fmt.Fprintln(w, "----------------------")
}
