package grid

import (
	"github.com/james-see/scoregrid/pkg/diag"
	"github.com/james-see/scoregrid/pkg/rational"
	"github.com/james-see/scoregrid/pkg/token"
)

// manipulatorCheck inserts a manipulator slice wherever a staff changes its
// voice count between adjacent slices. The exclusive interpretation line
// counts as a slice with one voice per staff.
func (g *Grid) manipulatorCheck() bool {
	slices := append([]*Slice(nil), g.all...)
	if len(slices) == 0 {
		return false
	}

	found := false
	if ms := g.manipulatorBetween(g.headerSlice(), slices[0]); ms != nil {
		m := slices[0].measure
		m.insertAt(m.index(slices[0]), ms)
		found = true
	}
	for i := 0; i+1 < len(slices); i++ {
		a, b := slices[i], slices[i+1]
		ms := g.manipulatorBetween(a, b)
		if ms == nil {
			continue
		}
		m := a.measure
		m.insertAt(m.index(a)+1, ms)
		found = true
	}
	return found
}

func (g *Grid) headerSlice() *Slice {
	s := newSlice(rational.Zero, Labels, g.shape)
	for _, part := range s.Parts {
		for _, staff := range part.Staves {
			staff.SetToken(0, token.InterpNull, rational.Zero)
		}
	}
	return s
}

// manipulatorBetween returns the manipulator slice needed between a and b,
// or nil when every staff keeps its voice count.
func (g *Grid) manipulatorBetween(a, b *Slice) *Slice {
	if len(a.Parts) != len(b.Parts) {
		diag.Strange(g.log, "part count %d at %v differs from %d at %v",
			len(a.Parts), a.Timestamp, len(b.Parts), b.Timestamp)
		return nil
	}
	need := false
	for p := range a.Parts {
		if len(a.Parts[p].Staves) != len(b.Parts[p].Staves) {
			diag.Strange(g.log, "staff count of part %d differs between %v and %v", p, a.Timestamp, b.Timestamp)
			return nil
		}
		for s := range a.Parts[p].Staves {
			if a.Staff(p, s).width() != b.Staff(p, s).width() {
				need = true
			}
		}
	}
	if !need {
		return nil
	}

	ms := newSlice(b.Timestamp, Manipulators, a.Shape())
	for p, part := range ms.Parts {
		for s, staff := range part.Staves {
			for v, tok := range manipulatorTokens(a.Staff(p, s).width(), b.Staff(p, s).width()) {
				staff.SetToken(v, tok, rational.Zero)
			}
		}
	}
	return ms
}

// manipulatorTokens returns the tokens turning v1 spines into v2. Growth
// splits trailing spines, a growth past doubling ends in a multi-way split,
// and shrinking merges the tail.
func manipulatorTokens(v1, v2 int) []token.Token {
	toks := make([]token.Token, 0, v1)
	repeat := func(n int, tok token.Token) {
		for i := 0; i < n; i++ {
			toks = append(toks, tok)
		}
	}
	split := token.Manip{Op: token.Split}

	switch {
	case v1 == v2:
		repeat(v1, token.InterpNull)
	case v2 == 2*v1:
		repeat(v1, split)
	case v2 > 2*v1:
		repeat(v1-1, split)
		toks = append(toks, token.Manip{Op: token.Split, N: v2 - 2*(v1-1)})
	case v2 > v1:
		doubled := v2 - v1
		repeat(v1-doubled, token.InterpNull)
		repeat(doubled, split)
	default:
		shrink := v1 - v2 + 1
		repeat(v1-shrink, token.InterpNull)
		repeat(shrink, token.Manip{Op: token.Merge})
	}
	return toks
}

type address struct{ p, s int }

// columnOrder lists staves in output order: parts and staves right to left.
func (g *Grid) columnOrder() []address {
	var cols []address
	for p := len(g.shape) - 1; p >= 0; p-- {
		for s := g.shape[p] - 1; s >= 0; s-- {
			cols = append(cols, address{p, s})
		}
	}
	return cols
}

// separated reports whether side columns follow the staff in output order.
func (g *Grid) separated(a address) bool {
	if g.verses[a.p][a.s] > 0 || g.dynamics[a.p][a.s] > 0 {
		return true
	}
	return a.s == 0 && g.harmony[a.p] > 0
}

// cleanupManipulators moves merges off any manipulator line where two
// neighboring staves merge into each other's boundary, repeating until
// each line merges within one staff at a time.
func (g *Grid) cleanupManipulators() {
	limit := g.opts.MaxCleanupPasses
	if limit <= 0 {
		limit = 1
		for _, n := range g.shape {
			limit += n
		}
	}

	for _, m := range g.Measures {
		for i := 0; i < len(m.Slices); i++ {
			cur := m.Slices[i]
			if cur.Type != Manipulators {
				continue
			}
			var added []*Slice
			for {
				ns := g.splitAdjacentMerges(cur)
				if ns == nil {
					break
				}
				added = append(added, ns)
				if len(added) >= limit {
					diag.Strange(g.log, "merge cleanup at %v did not settle after %d lines", cur.Timestamp, limit)
					break
				}
			}
			if len(added) > 0 {
				m.insertAt(i, added...)
				i += len(added)
			}
		}
	}
}

// splitAdjacentMerges handles the first conflict on cur. It returns the new
// line to emit before cur, or nil when cur has no conflict.
func (g *Grid) splitAdjacentMerges(cur *Slice) *Slice {
	cols := g.columnOrder()
	for k := 0; k+1 < len(cols); k++ {
		l, r := cols[k], cols[k+1]
		if g.separated(l) {
			continue
		}
		if isMerge(lastCell(cur.Staff(l.p, l.s))) && isMerge(firstCell(cur.Staff(r.p, r.s))) {
			return g.transferMerges(cur, l)
		}
	}
	return nil
}

// transferMerges builds a line on which only staff l merges, and rewrites
// l on cur so its merged spines pass through as one.
func (g *Grid) transferMerges(cur *Slice, l address) *Slice {
	ns := newSlice(cur.Timestamp, Manipulators, cur.Shape())
	for p, part := range cur.Parts {
		for s, staff := range part.Staves {
			dst := ns.Staff(p, s)
			v := 0
			for _, cell := range staff.Voices {
				if cell != nil && cell.Transferred {
					continue
				}
				tok := token.Token(token.InterpNull)
				if p == l.p && s == l.s && isMerge(cell) {
					tok = token.Manip{Op: token.Merge}
				}
				dst.SetToken(v, tok, rational.Zero)
				v++
			}
			if v == 0 {
				dst.SetToken(0, token.InterpNull, rational.Zero)
			}
		}
	}

	merging := false
	for _, cell := range cur.Staff(l.p, l.s).Voices {
		if cell == nil || cell.Transferred {
			continue
		}
		if !isMerge(cell) {
			merging = false
			continue
		}
		if merging {
			cell.Transferred = true
		}
		cell.Token = token.InterpNull
		merging = true
	}
	return ns
}

func firstCell(s *Staff) *Voice {
	for _, v := range s.Voices {
		if v == nil || !v.Transferred {
			return v
		}
	}
	return nil
}

func lastCell(s *Staff) *Voice {
	for i := len(s.Voices) - 1; i >= 0; i-- {
		if v := s.Voices[i]; v == nil || !v.Transferred {
			return v
		}
	}
	return nil
}
