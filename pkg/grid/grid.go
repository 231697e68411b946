// Package grid organizes timed musical tokens into slices across parts,
// staves and voices, and linearizes them into Humdrum spines.
package grid

import (
	"github.com/sirupsen/logrus"

	"github.com/james-see/scoregrid/pkg/diag"
	"github.com/james-see/scoregrid/pkg/rational"
)

// Options configures linearization.
type Options struct {
	// RecipSpine prepends a **recip spine giving each line's duration.
	RecipSpine bool
	// SourceBarNumbers numbers barlines from Measure.Number instead of
	// counting measures.
	SourceBarNumbers bool
	// StaffIndications emits *staffN and *partN lines after the header.
	StaffIndications bool
	// MaxCleanupPasses bounds the adjacent-merge split loop per manipulator
	// line. Zero picks one pass per staff plus one.
	MaxCleanupPasses int
	Logger           logrus.FieldLogger
}

// Grid is the ordered measures of one conversion job.
type Grid struct {
	Measures []*Measure

	shape    []int
	verses   [][]int
	dynamics [][]int
	harmony  []int

	all       []*Slice
	opts      Options
	log       logrus.FieldLogger
	finalized bool
}

// New creates an empty grid. staves gives the staff count of each part in
// declaration order.
func New(staves []int, opts Options) *Grid {
	g := &Grid{
		shape:    append([]int(nil), staves...),
		verses:   make([][]int, len(staves)),
		dynamics: make([][]int, len(staves)),
		harmony:  make([]int, len(staves)),
		opts:     opts,
		log:      diag.For(opts.Logger, "grid"),
	}
	for p, n := range staves {
		g.verses[p] = make([]int, n)
		g.dynamics[p] = make([]int, n)
	}
	return g
}

// PartCount returns the number of parts.
func (g *Grid) PartCount() int { return len(g.shape) }

// StaffCount returns the number of staves in part p.
func (g *Grid) StaffCount(p int) int {
	if p < 0 || p >= len(g.shape) {
		return 0
	}
	return g.shape[p]
}

// AddMeasure appends a measure.
func (g *Grid) AddMeasure(start, dur, timeSigDur rational.Rat) *Measure {
	m := &Measure{Timestamp: start, Duration: dur, TimeSigDur: timeSigDur, grid: g}
	g.Measures = append(g.Measures, m)
	return m
}

func (g *Grid) inRange(p, s int) bool {
	return p >= 0 && p < len(g.shape) && s >= 0 && s < g.shape[p]
}

// SetVerseCount sets the number of lyric columns emitted for a staff.
func (g *Grid) SetVerseCount(p, s, n int) {
	if g.inRange(p, s) && n > g.verses[p][s] {
		g.verses[p][s] = n
	}
}

// VerseCount returns the number of lyric columns of a staff.
func (g *Grid) VerseCount(p, s int) int {
	if !g.inRange(p, s) {
		return 0
	}
	return g.verses[p][s]
}

// SetDynamicsCount sets the number of dynamics columns (0 or 1) of a staff.
func (g *Grid) SetDynamicsCount(p, s, n int) {
	if g.inRange(p, s) && n > g.dynamics[p][s] {
		g.dynamics[p][s] = min(n, 1)
	}
}

// DynamicsCount returns the number of dynamics columns of a staff.
func (g *Grid) DynamicsCount(p, s int) int {
	if !g.inRange(p, s) {
		return 0
	}
	return g.dynamics[p][s]
}

// SetHarmonyCount sets the number of harmony columns (0 or 1) of a part.
func (g *Grid) SetHarmonyCount(p, n int) {
	if p >= 0 && p < len(g.harmony) && n > g.harmony[p] {
		g.harmony[p] = min(n, 1)
	}
}

// HarmonyCount returns the number of harmony columns of a part.
func (g *Grid) HarmonyCount(p int) int {
	if p < 0 || p >= len(g.harmony) {
		return 0
	}
	return g.harmony[p]
}

// Slices returns every valid slice in order, rebuilt from the measures.
func (g *Grid) Slices() []*Slice {
	g.buildSingleList()
	return g.all
}

// buildSingleList flattens the measures and sets each slice duration to
// the gap to the following slice.
func (g *Grid) buildSingleList() {
	g.all = g.all[:0]
	for _, m := range g.Measures {
		for _, s := range m.Slices {
			if s.IsValid() {
				g.all = append(g.all, s)
			}
		}
	}

	for i := 0; i+1 < len(g.all); i++ {
		d := g.all[i+1].Timestamp.Sub(g.all[i].Timestamp)
		if d.IsNegative() {
			diag.Malformed(g.log, "slice at %v follows slice at %v", g.all[i+1].Timestamp, g.all[i].Timestamp)
			d = rational.Zero
		}
		g.all[i].Duration = d
	}
	if n := len(g.all); n > 0 {
		g.all[n-1].Duration = g.lastDuration(g.all[n-1])
	}
}

// lastDuration is the duration of the final slice: the time left in its
// measure for data slices, otherwise zero.
func (g *Grid) lastDuration(s *Slice) rational.Rat {
	if s.Type != Notes {
		return rational.Zero
	}
	if m := s.measure; m != nil {
		if d := m.End().Sub(s.Timestamp); d.IsPositive() {
			return d
		}
	}
	for _, part := range s.Parts {
		for _, staff := range part.Staves {
			for _, v := range staff.Voices {
				if v != nil && v.Next.IsPositive() {
					return v.Next
				}
			}
		}
	}
	return rational.Zero
}

// addNullTokens extends every real token in a data slice across the
// following slices it still sounds through.
func (g *Grid) addNullTokens() {
	for i, s := range g.all {
		if s.Type != Notes {
			continue
		}
		for p, part := range s.Parts {
			for st, staff := range part.Staves {
				for v, cell := range staff.Voices {
					if cell.IsNull() || !cell.Next.IsPositive() {
						continue
					}
					g.extendDurationToken(i, p, st, v, cell.Next)
				}
			}
		}
	}
}

func (g *Grid) extendDurationToken(i, p, s, v int, dur rational.Rat) {
	left := dur
	for j := i + 1; j < len(g.all); j++ {
		left = left.Sub(g.all[j-1].Duration)
		if left.IsZero() {
			return
		}
		if left.IsNegative() {
			diag.Malformed(g.log, "negative duration %v remaining in part %d staff %d voice %d at %v",
				left, p, s, v, g.all[j].Timestamp)
			return
		}

		next := g.all[j]
		staff := next.Staff(p, s)
		if staff == nil {
			diag.Strange(g.log, "missing part %d staff %d at %v", p, s, next.Timestamp)
			return
		}
		if cell := staff.Voice(v); !cell.IsNull() {
			if next.Type.IsData() {
				diag.Malformed(g.log, "token %q at %v overlaps a sounding note in part %d staff %d voice %d",
					cell.Token, next.Timestamp, p, s, v)
				return
			}
			// interpretations such as a clef change keep their content
			continue
		}
		cell := staff.SetToken(v, next.Type.Null(), left)
		cell.Prev = dur.Sub(left)
	}
}

// padInterpretations gives interpretation and grace slices at least as many
// voices per staff as the slice before, so a clef change inside
// multi-voice music does not force a merge and a re-split.
func (g *Grid) padInterpretations() {
	for i := 1; i < len(g.all); i++ {
		s := g.all[i]
		if s.Type == Notes || s.Type.IsMeasure() || s.Type == Manipulators {
			continue
		}
		prev := g.all[i-1]
		for p, part := range s.Parts {
			for st := range part.Staves {
				want := prev.Staff(p, st).VoiceCount()
				if s.Staff(p, st).VoiceCount() < want {
					s.fill(p, st, want)
				}
			}
		}
	}
}

// Finalize runs the whole-grid passes once: null extension, barlines,
// manipulators and manipulator cleanup. Lines calls it implicitly.
func (g *Grid) Finalize() {
	if g.finalized {
		return
	}
	g.finalized = true

	g.buildSingleList()
	g.addNullTokens()
	g.padInterpretations()
	g.addMeasureLines()
	g.buildSingleList()
	g.addLastMeasure()
	// the final barline must take part in the manipulator check
	g.buildSingleList()
	if g.manipulatorCheck() {
		g.cleanupManipulators()
	}
	g.buildSingleList()
	g.log.WithField("slices", len(g.all)).Debug("grid finalized")
}
