package layout

import (
	"github.com/james-see/scoregrid/pkg/token"
)

// Metrics measures glyphs. Widths and heights share the unit of Options.
type Metrics interface {
	// Width is the horizontal room taken by tok's glyphs.
	Width(tok token.Token) float64
	// Height is the vertical room of a floating annotation such as a
	// lyric, a dynamic mark, a chord symbol or a tempo mark.
	Height(tok token.Token) float64
}

// FixedMetrics sizes every glyph as a multiple of Unit, a staff space.
type FixedMetrics struct {
	Unit float64
}

// DefaultMetrics uses a staff space of 10.
var DefaultMetrics = FixedMetrics{Unit: 10}

func (m FixedMetrics) Width(tok token.Token) float64 {
	u := m.Unit
	switch t := tok.(type) {
	case token.Note:
		w := 1.2 * u
		if t.Grace {
			w = 0.8 * u
		}
		for _, p := range t.Pitches {
			if p.Alter != 0 || p.ShowNatural {
				w += u
				break
			}
		}
		w += 0.5 * u * float64(dots(t))
		return w
	case token.Clef:
		return 2.5 * u
	case token.KeySig:
		return u*float64(abs(t.Fifths)) + 0.5*u
	case token.TimeSig:
		return 2 * u
	case token.Barline:
		switch t.Style {
		case token.BarFinal, token.BarDouble:
			return u
		case token.BarRepeatBackward, token.BarRepeatForward:
			return 1.5 * u
		case token.BarRepeatBoth:
			return 2.5 * u
		}
		return 0.3 * u
	}
	return 0
}

func (m FixedMetrics) Height(tok token.Token) float64 {
	if tok == nil || tok.IsNull() {
		return 0
	}
	switch tok.(type) {
	case token.Syllable, token.Text:
		return 3 * m.Unit
	case token.Harmony, token.Tempo:
		return 3.5 * m.Unit
	}
	return 2.5 * m.Unit
}

func dots(n token.Note) int {
	r := n.Duration.Recip()
	c := 0
	for i := len(r) - 1; i >= 0 && r[i] == '.'; i-- {
		c++
	}
	return c
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

var stepIndex = map[byte]int{'C': 0, 'D': 1, 'E': 2, 'F': 3, 'G': 4, 'A': 5, 'B': 6}

func diatonic(p token.Pitch) int { return p.Octave*7 + stepIndex[p.Step] }

// staffRange returns the diatonic positions of the bottom and top lines
// of a five-line staff under clef c.
func staffRange(c token.Clef) (bottom, top int) {
	ref := diatonic(token.Pitch{Step: 'G', Octave: 4})
	line := 2
	switch c.Sign {
	case 'F':
		ref, line = diatonic(token.Pitch{Step: 'F', Octave: 3}), 4
	case 'C':
		ref, line = diatonic(token.Pitch{Step: 'C', Octave: 4}), 3
	}
	if c.Line > 0 {
		line = c.Line
	}
	ref += 7 * c.Octave
	bottom = ref - 2*(line-1)
	return bottom, bottom + 8
}

// pitchOverflow is how far a note's heads reach beyond the staff lines,
// step being the distance between a line and the next space.
func pitchOverflow(n token.Note, c token.Clef, step float64) (above, below float64) {
	bottom, top := staffRange(c)
	for _, p := range n.Pitches {
		d := diatonic(p)
		if d > top {
			above = max(above, float64(d-top)*step)
		}
		if d < bottom {
			below = max(below, float64(bottom-d)*step)
		}
	}
	return above, below
}
