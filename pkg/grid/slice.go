package grid

import (
	"github.com/james-see/scoregrid/pkg/rational"
	"github.com/james-see/scoregrid/pkg/token"
)

// SliceType tags a slice. The order groups categories: data types come
// first, then measures, then interpretations (manipulators included),
// then spined comments, then global records.
type SliceType int

const (
	Notes SliceType = iota + 1
	GraceNotes
	dataEnd
	Measures
	measureEnd
	Clefs
	Transpositions
	KeySigs
	TimeSigs
	Tempos
	Labels
	Manipulators
	interpEnd
	Layouts
	LocalComments
	spinedEnd
	GlobalComments
	ReferenceRecords
	otherEnd
	Invalid
)

var sliceTypeNames = map[SliceType]string{
	Notes:            "notes",
	GraceNotes:       "grace-notes",
	Measures:         "measures",
	Clefs:            "clefs",
	Transpositions:   "transpositions",
	KeySigs:          "keysigs",
	TimeSigs:         "timesigs",
	Tempos:           "tempos",
	Labels:           "labels",
	Manipulators:     "manipulators",
	Layouts:          "layouts",
	LocalComments:    "local-comments",
	GlobalComments:   "global-comments",
	ReferenceRecords: "reference-records",
	Invalid:          "invalid",
}

func (t SliceType) String() string {
	if s, ok := sliceTypeNames[t]; ok {
		return s
	}
	return "unknown"
}

// IsData reports duration-bearing types.
func (t SliceType) IsData() bool { return t > 0 && t < dataEnd }

// IsMeasure reports barline types.
func (t SliceType) IsMeasure() bool { return t > dataEnd && t < measureEnd }

// IsInterpretation reports interpretation types, manipulators included.
func (t SliceType) IsInterpretation() bool { return t > measureEnd && t < interpEnd }

// IsSpined reports whether lines of this type carry one field per column.
func (t SliceType) IsSpined() bool { return t > 0 && t < spinedEnd && t != dataEnd && t != measureEnd && t != interpEnd }

// Category returns the placeholder category for empty cells.
func (t SliceType) Category() token.Category {
	switch {
	case t.IsData():
		return token.CategoryData
	case t.IsMeasure():
		return token.CategoryMeasure
	case t.IsInterpretation():
		return token.CategoryInterpretation
	}
	return token.CategoryComment
}

// Null returns the placeholder token for the type.
func (t SliceType) Null() token.Token { return token.Null(t.Category()) }

// Voice is one voice's cell at one slice.
type Voice struct {
	Token token.Token
	// Next is the duration still owed to the token from this slice on.
	Next rational.Rat
	// Prev is the duration of the token already consumed before this slice.
	Prev rational.Rat
	// Transferred marks a cell whose content moved to another manipulator
	// line. Transferred cells are neither counted nor emitted.
	Transferred bool
}

// IsNull reports whether v is absent or holds a placeholder.
func (v *Voice) IsNull() bool {
	return v == nil || v.Token == nil || v.Token.IsNull()
}

// Side holds side-channel tokens attached to a staff or a part.
type Side struct {
	Verses   []token.Token
	Harmony  token.Token
	Dynamics token.Token
}

// SetVerse stores a lyric token for verse n, growing the list as needed.
func (s *Side) SetVerse(n int, tok token.Token) {
	for len(s.Verses) <= n {
		s.Verses = append(s.Verses, nil)
	}
	s.Verses[n] = tok
}

// Verse returns the token of verse n or nil.
func (s *Side) Verse(n int) token.Token {
	if n < 0 || n >= len(s.Verses) {
		return nil
	}
	return s.Verses[n]
}

// Staff is the voices of one staff at one slice.
type Staff struct {
	Voices []*Voice
	Side
}

// SetToken places tok in voice v, growing the voice list with nil cells.
func (s *Staff) SetToken(v int, tok token.Token, dur rational.Rat) *Voice {
	for len(s.Voices) <= v {
		s.Voices = append(s.Voices, nil)
	}
	cell := &Voice{Token: tok, Next: dur}
	s.Voices[v] = cell
	return cell
}

// Voice returns voice v or nil.
func (s *Staff) Voice(v int) *Voice {
	if s == nil || v < 0 || v >= len(s.Voices) {
		return nil
	}
	return s.Voices[v]
}

// VoiceCount is the number of cells this staff emits, ignoring transferred ones.
func (s *Staff) VoiceCount() int {
	n := 0
	for _, v := range s.Voices {
		if v == nil || !v.Transferred {
			n++
		}
	}
	return n
}

// width is the number of spines the staff occupies; an empty staff still
// occupies one.
func (s *Staff) width() int {
	if n := s.VoiceCount(); n > 0 {
		return n
	}
	return 1
}

// ManipulatorCounts returns how many spines enter and leave the staff on a
// manipulator line. Consecutive merges collapse into one spine.
func (s *Staff) ManipulatorCounts() (in, out int) {
	merging := false
	for _, v := range s.Voices {
		if v != nil && v.Transferred {
			continue
		}
		in++
		m, ok := manip(v)
		switch {
		case ok && m.Op == token.Merge:
			if !merging {
				out++
			}
			merging = true
			continue
		case ok:
			out += m.Outputs()
		default:
			out++
		}
		merging = false
	}
	if in == 0 {
		return 1, 1
	}
	return in, out
}

func manip(v *Voice) (token.Manip, bool) {
	if v == nil || v.Token == nil {
		return token.Manip{}, false
	}
	m, ok := v.Token.(token.Manip)
	return m, ok
}

func isMerge(v *Voice) bool {
	m, ok := manip(v)
	return ok && m.Op == token.Merge
}

// Part is the staves of one part at one slice.
type Part struct {
	Staves []*Staff
	Side
}

// Slice is a cross-section of the whole score at one instant.
type Slice struct {
	Parts     []*Part
	Timestamp rational.Rat
	Duration  rational.Rat
	Type      SliceType

	measure *Measure
}

func newSlice(ts rational.Rat, typ SliceType, shape []int) *Slice {
	s := &Slice{Timestamp: ts, Type: typ, Parts: make([]*Part, len(shape))}
	for p, staves := range shape {
		part := &Part{Staves: make([]*Staff, staves)}
		for i := range part.Staves {
			part.Staves[i] = &Staff{}
		}
		s.Parts[p] = part
	}
	return s
}

// Staff returns staff s of part p or nil.
func (sl *Slice) Staff(p, s int) *Staff {
	if p < 0 || p >= len(sl.Parts) {
		return nil
	}
	part := sl.Parts[p]
	if s < 0 || s >= len(part.Staves) {
		return nil
	}
	return part.Staves[s]
}

// Shape returns the staff count of each part.
func (sl *Slice) Shape() []int {
	shape := make([]int, len(sl.Parts))
	for p, part := range sl.Parts {
		shape[p] = len(part.Staves)
	}
	return shape
}

// Measure returns the measure owning the slice.
func (sl *Slice) Measure() *Measure { return sl.measure }

// Invalidate marks the slice as logically removed.
func (sl *Slice) Invalidate() { sl.Type = Invalid }

// IsValid reports whether the slice takes part in output.
func (sl *Slice) IsValid() bool { return sl.Type != Invalid }

// fill pads every staff up to n voices with the slice's placeholder.
func (sl *Slice) fill(p, s, n int) {
	staff := sl.Staff(p, s)
	for v := 0; v < n; v++ {
		if cell := staff.Voice(v); cell == nil || cell.Token == nil {
			staff.SetToken(v, sl.Type.Null(), rational.Zero)
		}
	}
}
