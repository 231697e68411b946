package grid

import (
	"github.com/james-see/scoregrid/pkg/rational"
	"github.com/james-see/scoregrid/pkg/token"
)

// addMeasureLines appends a barline slice to every measure but the last.
// Each staff gets one barline per voice, using the smaller of the voice
// counts on either side; manipulators reconcile the rest.
func (g *Grid) addMeasureLines() {
	numbers, internal := g.barNumbers()
	for m := 0; m+1 < len(g.Measures); m++ {
		cur, next := g.Measures[m], g.Measures[m+1]
		last, first := cur.lastValid(), next.firstValid()
		if last == nil || first == nil {
			continue
		}

		bar := token.Barline{Style: cur.Style, Number: numbers[m+1]}
		if internal[m+1] {
			bar.Number = 0
		}
		ms := cur.AddSlice(Measures, first.Timestamp)
		for p, part := range ms.Parts {
			for s, staff := range part.Staves {
				n := min(last.Staff(p, s).VoiceCount(), first.Staff(p, s).VoiceCount())
				for v := 0; v < max(n, 1); v++ {
					staff.SetToken(v, bar, rational.Zero)
				}
			}
		}
	}
}

// addLastMeasure closes the grid with a final barline, one per staff.
func (g *Grid) addLastMeasure() {
	if len(g.Measures) == 0 || len(g.all) == 0 {
		return
	}
	m := g.Measures[len(g.Measures)-1]
	model := g.all[len(g.all)-1]

	style := m.Style
	if style == token.BarPlain {
		style = token.BarFinal
	}
	ts := rational.Max(m.End(), model.Timestamp.Add(model.Duration))
	ms := m.AddSlice(Measures, ts)
	for _, part := range ms.Parts {
		for _, staff := range part.Staves {
			staff.SetToken(0, token.Barline{Style: style}, rational.Zero)
		}
	}
}

// BarNumbers returns the bar number of each measure.
//
// Two adjacent partial measures whose durations add up to one full
// time-signature duration count as one bar split by a pickup, so the
// second does not advance the count. A partial first measure is bar 0.
// With SourceBarNumbers the declared numbers are used, falling back to
// counting where a measure declares none.
func (g *Grid) BarNumbers() []int {
	n, _ := g.barNumbers()
	return n
}

func (g *Grid) barNumbers() ([]int, []bool) {
	count := len(g.Measures)
	numbers := make([]int, count)
	internal := make([]bool, count)
	if count == 0 {
		return numbers, internal
	}

	for i := 1; i < count; i++ {
		a, b := g.Measures[i-1], g.Measures[i]
		if internal[i-1] || !a.IsPartial() || !b.IsPartial() {
			continue
		}
		if a.Duration.Add(b.Duration).Equal(a.TimeSigDur) {
			internal[i] = true
		}
	}

	if g.opts.SourceBarNumbers {
		for i, m := range g.Measures {
			switch {
			case m.Number > 0:
				numbers[i] = m.Number
			case i > 0:
				numbers[i] = numbers[i-1] + 1
			default:
				numbers[i] = 1
			}
		}
		return numbers, internal
	}

	cur := 1
	if g.Measures[0].IsPartial() && !(count > 1 && internal[1]) {
		cur = 0
	}
	numbers[0] = cur
	for i := 1; i < count; i++ {
		if !internal[i] {
			cur++
		}
		numbers[i] = cur
	}
	return numbers, internal
}
