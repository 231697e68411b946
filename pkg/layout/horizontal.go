package layout

import (
	"math"

	"github.com/james-see/scoregrid/pkg/diag"
	"github.com/james-see/scoregrid/pkg/rational"
)

// durationScale converts whole notes to the time unit of the spacing curve,
// 256 to the whole note.
const durationScale = 256

// DurationSpace is the room reserved after an object lasting d whole notes.
// When longest, the longest duration of the score, exceeds a whole note,
// durations are scaled down so that value gets a whole note's room.
func DurationSpace(d, longest rational.Rat, linear, nonLinear, unit float64) float64 {
	if !d.IsPositive() || d.IsInfinite() {
		return 0
	}
	t := d.Float64()
	if longest.IsFinite() && longest.CmpInt(1) > 0 {
		t /= longest.Float64()
	}
	return math.Pow(t*durationScale, nonLinear) * linear * unit
}

func (e *Engine) durationSpace(d, longest rational.Rat) float64 {
	return DurationSpace(d, longest, e.opts.SpacingLinear, e.opts.SpacingNonLinear, e.unit())
}

// alignMeasure computes the minimum width of every column of c and lays
// them out left to right. Single-staff objects settle first; cross-staff
// objects are then checked against the union of the staves they span.
func (e *Engine) alignMeasure(c *MeasureContent, longest rational.Rat) *MeasureAligner {
	if len(c.Columns) == 0 || c.Columns[0].Type != MeasureStart {
		c.Column(c.Start, MeasureStart)
	}
	if last := c.Columns[len(c.Columns)-1]; last.Type != MeasureEnd {
		c.Column(last.Time, MeasureEnd)
	}

	staves := c.staffSize
	need := make([][]float64, len(c.Columns))
	for i, col := range c.Columns {
		widest := make([]float64, staves)
		longestHere := make([]rational.Rat, staves)
		for _, o := range col.objects {
			if o.IsCrossStaff() {
				continue
			}
			if o.Staff < 0 || o.Staff >= staves {
				diag.Malformed(e.log, "object on staff %d in measure %d has no staff", o.Staff, c.Index)
				continue
			}
			widest[o.Staff] = max(widest[o.Staff], o.Width)
			longestHere[o.Staff] = rational.Max(longestHere[o.Staff], o.Duration)
		}
		need[i] = make([]float64, staves)
		for s := range need[i] {
			need[i][s] = widest[s] + e.durationSpace(longestHere[s], longest)
		}
	}

	for i, col := range c.Columns {
		for _, o := range col.objects {
			if !o.IsCrossStaff() {
				continue
			}
			lo, hi := max(o.Staff, 0), min(o.SpanTo, staves-1)
			if lo > hi {
				diag.Malformed(e.log, "cross-staff object %d-%d in measure %d has no staff", o.Staff, o.SpanTo, c.Index)
				continue
			}
			w := o.Width + e.durationSpace(o.Duration, longest)
			for s := lo; s <= hi; s++ {
				w = max(w, need[i][s])
			}
			for s := lo; s <= hi; s++ {
				need[i][s] = w
			}
		}
	}

	x := 0.0
	for i, col := range c.Columns {
		w := 0.0
		for _, n := range need[i] {
			w = max(w, n)
		}
		if w > 0 {
			w += e.opts.ColumnMargin
		}
		col.X, col.MinWidth = x, w
		if col.Type != MeasureEnd {
			x += w
		}
	}

	return &MeasureAligner{
		Index:    c.Index,
		Width:    x,
		Columns:  c.Columns,
		minWidth: x,
		content:  c,
	}
}
