package layout

// StackStaves places staves top to bottom, each staffHeight+gap below the
// previous one. Where the upper staff's overflow below and the lower
// staff's overflow above add up to more than gap, the lower staff and
// every staff after it move down by the excess.
func StackStaves(above, below []float64, staffHeight, gap float64) []StaffAlignment {
	out := make([]StaffAlignment, len(above))
	shift := 0.0
	for i := range out {
		if i > 0 {
			shift += max(0, below[i-1]+above[i]-gap)
		}
		out[i] = StaffAlignment{
			Index:         i,
			Y:             float64(i)*(staffHeight+gap) + shift,
			OverflowAbove: above[i],
			OverflowBelow: below[i],
		}
	}
	return out
}

// stackSystem merges the overflow of every measure of s and stacks its staves.
func (e *Engine) stackSystem(s *System, staves int) {
	above := make([]float64, staves)
	below := make([]float64, staves)
	for _, m := range s.Measures {
		for i := 0; i < staves; i++ {
			if i < len(m.content.Above) {
				above[i] = max(above[i], m.content.Above[i])
				below[i] = max(below[i], m.content.Below[i])
			}
		}
	}
	s.Staves = StackStaves(above, below, e.opts.StaffHeight, e.opts.StaffGap)
	s.Height = 0
	if n := len(s.Staves); n > 0 {
		last := s.Staves[n-1]
		s.Height = last.Y + e.opts.StaffHeight + last.OverflowBelow
	}
}
