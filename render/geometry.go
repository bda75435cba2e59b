package render

import "math"

// cellAspect corrects for terminal character cells being roughly twice
// as tall as they are wide.
const cellAspect = 2.0

// defaultAspect stands in when a core reports no usable aspect ratio.
const defaultAspect = 4.0 / 3.0

// FitGrid computes the largest character grid that fits within cols x
// rows while preserving the source aspect ratio after cell-aspect
// correction. One dimension always saturates its capacity; the other is
// derived from the ratio.
func FitGrid(cols, rows int, aspect float64) (int, int) {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	if aspect <= 0 || math.IsNaN(aspect) || math.IsInf(aspect, 0) {
		aspect = defaultAspect
	}

	// Rows needed to show the full width at the corrected ratio. If the
	// terminal is tall enough, width saturates; otherwise height does.
	need := float64(cols) / (aspect * cellAspect)
	if need <= float64(rows) {
		return cols, clampDim(need, rows)
	}
	return clampDim(float64(rows)*aspect*cellAspect, cols), rows
}

func clampDim(v float64, limit int) int {
	n := int(math.Round(v))
	if n < 1 {
		return 1
	}
	if n > limit {
		return limit
	}
	return n
}
