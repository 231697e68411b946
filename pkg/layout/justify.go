package layout

// Justify rescales the gaps between ascending positions so that the last
// position lands exactly on target. held[k] keeps the gap ending at pos[k]
// at its width. The ratio applied to the other gaps is returned; when
// every gap is held, or the held gaps alone overshoot the target, all gaps
// are scaled alike.
func Justify(pos []float64, held []bool, target float64) float64 {
	n := len(pos)
	if n < 2 {
		return 1
	}
	start := pos[0]
	total := pos[n-1] - start
	if total <= 0 {
		return 1
	}

	fixed := 0.0
	for k := 1; k < n; k++ {
		if k < len(held) && held[k] {
			fixed += pos[k] - pos[k-1]
		}
	}
	free := total - fixed
	ratio := 0.0
	if free > 0 {
		ratio = (target - start - fixed) / free
	}
	if ratio <= 0 {
		fixed, ratio = 0, (target-start)/total
		held = nil
	}

	prev, out := start, start
	for k := 1; k < n; k++ {
		gap := pos[k] - prev
		prev = pos[k]
		if k >= len(held) || !held[k] {
			gap *= ratio
		}
		out += gap
		pos[k] = out
	}
	pos[n-1] = target
	return ratio
}

// justifySystem stretches the measures of s to width and returns the ratio.
func (e *Engine) justifySystem(s *System, width float64) float64 {
	var pos []float64
	var held []bool
	offset := 0.0
	prev := MeasureStart
	for _, m := range s.Measures {
		for _, col := range m.Columns {
			pos = append(pos, offset+col.X)
			hold := e.opts.HoldBarlineGaps && (col.Type.IsBarline() || prev.IsBarline())
			held = append(held, hold)
			prev = col.Type
		}
		offset += m.minWidth
	}

	ratio := Justify(pos, held, width)

	i := 0
	for _, m := range s.Measures {
		m.X = pos[i]
		for _, col := range m.Columns {
			col.X = pos[i] - m.X
			i++
		}
		m.Width = pos[i-1] - m.X
	}
	s.Width = width
	s.Ratio = ratio
	return ratio
}
