package grid

import "github.com/james-see/scoregrid/pkg/token"

// RemoveRedundantClefChanges nulls every clef equal to the clef already in
// force on its staff and invalidates clef slices left with no clef at all.
// It must run after every clef has been inserted.
func (g *Grid) RemoveRedundantClefChanges() {
	current := make(map[address]string)
	for _, m := range g.Measures {
		for _, s := range m.Slices {
			if s.Type != Clefs {
				continue
			}
			kept := false
			for p, part := range s.Parts {
				for st, staff := range part.Staves {
					cell := staff.Voice(0)
					if cell.IsNull() {
						continue
					}
					key := address{p, st}
					clef := cell.Token.String()
					if current[key] == clef {
						cell.Token = token.InterpNull
						continue
					}
					current[key] = clef
					kept = true
				}
			}
			if !kept {
				s.Invalidate()
			}
		}
	}
}
