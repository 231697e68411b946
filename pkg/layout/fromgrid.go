package layout

import (
	"github.com/james-see/scoregrid/pkg/grid"
	"github.com/james-see/scoregrid/pkg/token"
)

var defaultClef = token.Clef{Sign: 'G', Line: 2}

// FromGrid finalizes g and turns each measure into alignment input. Staves
// are numbered top to bottom in declaration order. step is the distance
// between a staff line and the next space, used for ledger-line overflow.
func FromGrid(g *grid.Grid, m Metrics, step float64) []*MeasureContent {
	g.Finalize()

	offsets := make([]int, g.PartCount())
	staves := 0
	for p := range offsets {
		offsets[p] = staves
		staves += g.StaffCount(p)
	}
	clefs := make([]token.Clef, staves)
	for i := range clefs {
		clefs[i] = defaultClef
	}
	lyricHeight := m.Height(token.Syllable{Text: "x"})

	var out []*MeasureContent
	var pendingLeft *token.Barline
	for mi, gm := range g.Measures {
		c := NewMeasureContent(mi, staves, gm.Timestamp)
		c.Column(gm.Timestamp, MeasureStart)
		if pendingLeft != nil {
			col := c.Column(gm.Timestamp, LeftBarline)
			for i := 0; i < staves; i++ {
				col.Add(Object{Staff: i, SpanTo: -1, Width: m.Width(*pendingLeft)})
			}
			pendingLeft = nil
		}

		scoreDef := mi == 0
		for _, s := range gm.Slices {
			if !s.IsValid() {
				continue
			}
			var typ AlignmentType
			switch s.Type {
			case grid.Notes:
				scoreDef = false
				typ = Default
			case grid.GraceNotes:
				scoreDef = false
				typ = GraceNote
			case grid.Clefs:
				typ = pick(scoreDef, ScoreDefClef, Clef)
			case grid.KeySigs:
				typ = pick(scoreDef, ScoreDefKeySig, KeySig)
			case grid.TimeSigs:
				typ = pick(scoreDef, ScoreDefMeterSig, MeterSig)
			case grid.Tempos:
				raiseTempo(c, s, m)
				continue
			case grid.Measures:
				bar, ok := barlineOf(s)
				if ok && bar.Style == token.BarRepeatForward && mi+1 < len(g.Measures) {
					pendingLeft = &bar
					continue
				}
				typ = RightBarline
			default:
				continue
			}

			col := c.Column(s.Timestamp, typ)
			for p, part := range s.Parts {
				for st, staff := range part.Staves {
					idx := offsets[p] + st
					addCells(col, idx, staff, m, clefs, step, c)
					if s.Type != grid.Notes {
						continue
					}
					below := 0.0
					for v := 0; v < g.VerseCount(p, st); v++ {
						if tok := staff.Verse(v); tok != nil && !tok.IsNull() {
							below = float64(v+1) * lyricHeight
						}
					}
					if g.DynamicsCount(p, st) > 0 && staff.Dynamics != nil {
						below = float64(g.VerseCount(p, st))*lyricHeight + m.Height(staff.Dynamics)
					}
					c.Raise(idx, 0, below)
					if st == 0 && part.Harmony != nil {
						c.Raise(idx, m.Height(part.Harmony), 0)
					}
				}
			}
		}
		c.Column(gm.End(), MeasureEnd)
		out = append(out, c)
	}
	return out
}

func pick(cond bool, a, b AlignmentType) AlignmentType {
	if cond {
		return a
	}
	return b
}

// addCells anchors the real tokens of one staff and records ledger-line
// overflow. Clef cells update the clef in force.
func addCells(col *Alignment, idx int, staff *grid.Staff, m Metrics, clefs []token.Clef, step float64, c *MeasureContent) {
	for _, cell := range staff.Voices {
		if cell == nil || cell.Transferred || cell.IsNull() {
			continue
		}
		o := Object{Staff: idx, SpanTo: -1, Width: m.Width(cell.Token)}
		switch t := cell.Token.(type) {
		case token.Clef:
			clefs[idx] = t
		case token.Note:
			if !t.Grace {
				o.Duration = t.Duration
			}
			above, below := pitchOverflow(t, clefs[idx], step)
			c.Raise(idx, above, below)
		}
		col.Add(o)
	}
}

func raiseTempo(c *MeasureContent, s *grid.Slice, m Metrics) {
	for _, part := range s.Parts {
		for _, staff := range part.Staves {
			if cell := staff.Voice(0); !cell.IsNull() {
				c.Raise(0, m.Height(cell.Token), 0)
				return
			}
		}
	}
}

func barlineOf(s *grid.Slice) (token.Barline, bool) {
	for _, part := range s.Parts {
		for _, staff := range part.Staves {
			if cell := staff.Voice(0); cell != nil {
				if bar, ok := cell.Token.(token.Barline); ok {
					return bar, true
				}
			}
		}
	}
	return token.Barline{}, false
}
