package grid

import (
	"fmt"
	"io"
	"strings"

	"github.com/james-see/scoregrid/pkg/token"
)

type columnKind int

const (
	colRecip columnKind = iota
	colVoice
	colVerse
	colDynamics
	colHarmony
)

// Lines finalizes the grid and returns every output line as its fields.
func (g *Grid) Lines() [][]string {
	g.Finalize()

	lines := [][]string{g.uniformLine(func(kind columnKind, _, _ int) string {
		switch kind {
		case colRecip:
			return token.Recip.String()
		case colVerse:
			return token.Lyric.String()
		case colDynamics:
			return token.Dynam.String()
		case colHarmony:
			return token.Harm.String()
		}
		return token.Kern.String()
	})}

	if g.opts.StaffIndications {
		lines = append(lines, g.uniformLine(func(kind columnKind, p, _ int) string {
			if kind == colRecip {
				return token.InterpNull.String()
			}
			return fmt.Sprintf("*part%d", p+1)
		}))
		lines = append(lines, g.uniformLine(func(kind columnKind, p, s int) string {
			if kind == colRecip || kind == colHarmony {
				return token.InterpNull.String()
			}
			return fmt.Sprintf("*staff%d", g.staffNumber(p, s))
		}))
	}

	for _, s := range g.all {
		lines = append(lines, g.row(s))
	}

	return append(lines, g.uniformLine(func(columnKind, int, int) string {
		return token.Terminator.String()
	}))
}

// WriteTo writes the lines tab separated, one per row.
func (g *Grid) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, line := range g.Lines() {
		n, err := io.WriteString(w, strings.Join(line, "\t")+"\n")
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// String renders the grid as Humdrum text.
func (g *Grid) String() string {
	var b strings.Builder
	_, _ = g.WriteTo(&b)
	return b.String()
}

// ColumnCount is the number of fields on a line where every staff holds a
// single voice.
func (g *Grid) ColumnCount() int {
	return len(g.uniformLine(func(columnKind, int, int) string { return "" }))
}

func (g *Grid) staffNumber(p, s int) int {
	n := s + 1
	for i := 0; i < p; i++ {
		n += g.shape[i]
	}
	return n
}

// uniformLine builds a line with one field per staff and side column.
func (g *Grid) uniformLine(field func(kind columnKind, p, s int) string) []string {
	var out []string
	if g.opts.RecipSpine {
		out = append(out, field(colRecip, -1, -1))
	}
	for p := len(g.shape) - 1; p >= 0; p-- {
		for s := g.shape[p] - 1; s >= 0; s-- {
			out = append(out, field(colVoice, p, s))
			for v := 0; v < g.verses[p][s]; v++ {
				out = append(out, field(colVerse, p, s))
			}
			if g.dynamics[p][s] > 0 {
				out = append(out, field(colDynamics, p, s))
			}
		}
		if g.harmony[p] > 0 {
			out = append(out, field(colHarmony, p, -1))
		}
	}
	return out
}

func (g *Grid) row(s *Slice) []string {
	empty := g.emptyField(s)
	if !s.Type.IsSpined() {
		if cell := s.Staff(0, 0).Voice(0); !cell.IsNull() {
			return []string{cell.Token.String()}
		}
		return []string{"!!"}
	}

	var out []string
	if g.opts.RecipSpine {
		out = append(out, g.recipField(s, empty))
	}
	for p := len(s.Parts) - 1; p >= 0; p-- {
		part := s.Parts[p]
		for st := len(part.Staves) - 1; st >= 0; st-- {
			staff := part.Staves[st]
			n := 0
			for _, cell := range staff.Voices {
				if cell != nil && cell.Transferred {
					continue
				}
				out = append(out, field(cell, empty))
				n++
			}
			if n == 0 {
				out = append(out, empty)
			}
			for v := 0; v < g.VerseCount(p, st); v++ {
				out = append(out, sideField(staff.Verse(v), empty))
			}
			if g.DynamicsCount(p, st) > 0 {
				out = append(out, sideField(staff.Dynamics, empty))
			}
		}
		if g.HarmonyCount(p) > 0 {
			out = append(out, sideField(part.Harmony, empty))
		}
	}
	return out
}

// emptyField is the placeholder for cells without content. Barline lines
// repeat the barline in every column.
func (g *Grid) emptyField(s *Slice) string {
	if s.Type.IsMeasure() {
		for _, part := range s.Parts {
			for _, staff := range part.Staves {
				if cell := staff.Voice(0); !cell.IsNull() {
					return cell.Token.String()
				}
			}
		}
	}
	return s.Type.Null().String()
}

func (g *Grid) recipField(s *Slice, empty string) string {
	switch s.Type {
	case Notes:
		return s.Duration.Recip()
	case GraceNotes:
		return "q"
	}
	return empty
}

func field(cell *Voice, empty string) string {
	if cell == nil || cell.Token == nil {
		return empty
	}
	if cell.Token.IsNull() {
		return empty
	}
	return cell.Token.String()
}

func sideField(tok token.Token, empty string) string {
	if tok == nil || tok.IsNull() {
		return empty
	}
	return tok.String()
}
