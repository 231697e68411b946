package grid

import (
	"github.com/james-see/scoregrid/pkg/rational"
	"github.com/james-see/scoregrid/pkg/token"
)

// Measure is the ordered slices of one bar.
type Measure struct {
	Slices     []*Slice
	Timestamp  rational.Rat
	Duration   rational.Rat
	TimeSigDur rational.Rat
	// Style is the barline closing the measure.
	Style token.BarStyle
	// Number is the bar number declared by the source, 0 when absent.
	Number int

	grid *Grid
}

// AddSlice appends a slice of the given type. Callers append in time order,
// interpretations before data at the same timestamp.
func (m *Measure) AddSlice(typ SliceType, ts rational.Rat) *Slice {
	s := newSlice(ts, typ, m.grid.shape)
	s.measure = m
	m.Slices = append(m.Slices, s)
	return s
}

// IsPartial reports whether the measure is shorter than its time signature.
func (m *Measure) IsPartial() bool {
	return m.TimeSigDur.IsPositive() && m.Duration.Less(m.TimeSigDur)
}

// End returns the timestamp at which the measure closes.
func (m *Measure) End() rational.Rat { return m.Timestamp.Add(m.Duration) }

func (m *Measure) index(s *Slice) int {
	for i, x := range m.Slices {
		if x == s {
			return i
		}
	}
	return -1
}

func (m *Measure) insertAt(i int, s ...*Slice) {
	for _, x := range s {
		x.measure = m
	}
	rest := append([]*Slice{}, m.Slices[i:]...)
	m.Slices = append(append(m.Slices[:i], s...), rest...)
}

func (m *Measure) firstValid() *Slice {
	for _, s := range m.Slices {
		if s.IsValid() {
			return s
		}
	}
	return nil
}

func (m *Measure) lastValid() *Slice {
	for i := len(m.Slices) - 1; i >= 0; i-- {
		if m.Slices[i].IsValid() {
			return m.Slices[i]
		}
	}
	return nil
}
